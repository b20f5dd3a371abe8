package room

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/settlement"
	"github.com/wfunc/cardroom/state"
)

// Act applies one player action and returns the public view after it.
func (r *Room) Act(ctx context.Context, a game.Action) (*View, error) {
	var view *View
	err := r.Do(ctx, func() error {
		if err := r.handle(a); err != nil {
			return err
		}
		v := r.view()
		view = &v
		return nil
	})
	if err != nil {
		return nil, game.Annotate(err, r.ID, a.PlayerID)
	}
	return view, nil
}

// View returns the public view of the room.
func (r *Room) View(ctx context.Context) (*View, error) {
	var view *View
	err := r.Do(ctx, func() error {
		v := r.view()
		view = &v
		return nil
	})
	return view, err
}

func (r *Room) handle(a game.Action) error {
	if a.PlayerID == "" {
		return game.Errorf(game.KindIllegalMove, "missing player id")
	}
	switch a.Type {
	case game.ActionJoin:
		return r.join(a.PlayerID, a.Role)
	case game.ActionSit:
		return r.sit(a.PlayerID, a.Seat, a.Amount)
	case game.ActionStandUp:
		return r.standUp(a.PlayerID)
	case game.ActionLeave:
		return r.leave(a.PlayerID)
	}
	if _, ok := r.members[a.PlayerID]; !ok {
		return game.Errorf(game.KindNotFound, "%s is not in the room", a.PlayerID)
	}
	return r.StateMachine.GetCurrentState().HandleAction(a)
}

func (r *Room) join(playerID string, role game.Role) error {
	if r.Status() == state.IDCancelled {
		return game.Errorf(game.KindRoomNotJoinable, "room is cancelled")
	}
	if role == "" {
		role = game.RolePlayer
	}
	if role != game.RolePlayer && role != game.RoleSpectator {
		return game.Errorf(game.KindIllegalMove, "unknown role %q", role)
	}
	if cur, ok := r.members[playerID]; ok {
		if cur == role {
			return nil
		}
		if r.seatOf(playerID) != nil {
			return game.Errorf(game.KindIllegalMove, "stand up before becoming a %s", role)
		}
	}
	r.members[playerID] = role
	r.touch()
	logger.Log.Infow("player joined", "room_id", r.ID, "player_id", playerID, "role", role)
	return nil
}

func (r *Room) sit(playerID string, want *int, amount decimal.Decimal) error {
	role, ok := r.members[playerID]
	if !ok {
		return game.Errorf(game.KindNotFound, "%s has not joined", playerID)
	}
	if role != game.RolePlayer {
		return game.Errorf(game.KindIllegalMove, "spectators cannot sit")
	}
	if r.seatOf(playerID) != nil {
		return game.Errorf(game.KindIllegalMove, "already seated")
	}
	if r.Type == game.Blot && r.Status() == state.IDPlaying {
		return game.Errorf(game.KindRoomNotJoinable, "match in progress")
	}
	if len(r.seated()) >= r.MaxPlayers {
		return game.Errorf(game.KindRoomCapacity, "all %d seats taken", r.MaxPlayers)
	}

	idx := -1
	if want != nil {
		if *want < 0 || *want >= r.MaxPlayers {
			return game.Errorf(game.KindIllegalMove, "no seat %d", *want)
		}
		if r.seats[*want] != nil {
			return game.Errorf(game.KindIllegalMove, "seat %d is taken", *want)
		}
		idx = *want
	} else {
		for i, s := range r.seats {
			if s == nil {
				idx = i
				break
			}
		}
	}

	buyIn, err := r.buyInAmount(amount)
	if err != nil {
		return err
	}

	ctx, cancel := r.opContext()
	defer cancel()
	key := r.nextKey(settlement.KindBuyIn)
	if _, err := r.deps.Settler.Settle(ctx, key, settlement.Outcome{playerID: buyIn.Neg()}); err != nil {
		return err
	}

	r.seats[idx] = &game.Seat{PlayerID: playerID, Index: idx, Role: game.RolePlayer, Stack: buyIn}
	r.deps.Monitor.AddSeatedPlayers(1)
	r.touch()
	logger.Log.Infow("player seated", "room_id", r.ID, "player_id", playerID, "seat", idx, "buy_in", buyIn.String())
	return nil
}

func (r *Room) buyInAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	if r.Type == game.Blot {
		if !amount.IsZero() && !amount.Equal(r.Stake) {
			return decimal.Zero, &game.Error{Kind: game.KindIllegalMove, Amount: amount, Msg: "blot buy-in is the room stake"}
		}
		return r.Stake, nil
	}
	lo := r.Stake.Mul(decimal.NewFromInt(r.settings.MinBuyInBB))
	hi := r.Stake.Mul(decimal.NewFromInt(r.settings.MaxBuyInBB))
	if amount.IsZero() {
		return lo, nil
	}
	if !game.Money(amount).Equal(amount) || amount.LessThan(lo) || amount.GreaterThan(hi) {
		return decimal.Zero, &game.Error{
			Kind:   game.KindIllegalMove,
			Amount: amount,
			Msg:    "buy-in must be between " + lo.String() + " and " + hi.String(),
		}
	}
	return amount, nil
}

func (r *Room) standUp(playerID string) error {
	s := r.seatOf(playerID)
	if s == nil {
		return game.Errorf(game.KindIllegalMove, "%s is not seated", playerID)
	}
	if r.Status() == state.IDPlaying {
		if r.Type == game.Blot {
			r.void(playerID + " left the match")
			return nil
		}
		if r.inHand[playerID] {
			return r.leaveHand(s)
		}
	}
	r.cashOut(s)
	if r.Status() == state.IDPlaying && !r.engine.CanStart(len(r.funded())) {
		r.void("not enough players for the next hand")
	}
	return nil
}

// leaveHand takes a poker player out of the running hand. When the rest can
// play on, the chips behind are cashed out and the chips already committed
// stay in the pot; otherwise the hand is voided.
func (r *Room) leaveHand(s *game.Seat) error {
	if !r.engine.CanStart(len(r.inHand) - 1) {
		r.void(s.PlayerID + " left mid-hand")
		return nil
	}
	behind, err := r.engine.Forfeit(s.PlayerID)
	if err != nil {
		return err
	}
	if dead := s.Stack.Sub(behind); dead.IsPositive() {
		r.forfeits[s.PlayerID] = dead
	}
	delete(r.inHand, s.PlayerID)
	r.removeSeat(s)
	logger.Log.Infow("player forfeited", "room_id", r.ID, "player_id", s.PlayerID, "behind", behind.String())

	if behind.IsPositive() {
		r.settleCredit(settlement.KindCashOut, settlement.Outcome{s.PlayerID: behind})
	}
	r.afterEngine()
	return nil
}

func (r *Room) cashOut(s *game.Seat) {
	r.removeSeat(s)
	if s.Stack.IsPositive() {
		r.settleCredit(settlement.KindCashOut, settlement.Outcome{s.PlayerID: s.Stack})
	}
}

func (r *Room) leave(playerID string) error {
	if _, ok := r.members[playerID]; !ok {
		return game.Errorf(game.KindNotFound, "%s is not in the room", playerID)
	}
	if r.seatOf(playerID) != nil {
		if err := r.standUp(playerID); err != nil {
			return err
		}
	}
	delete(r.members, playerID)
	r.touch()
	logger.Log.Infow("player left", "room_id", r.ID, "player_id", playerID)
	return nil
}

// Cancel refunds everything in escrow, removes every member and moves the
// room to cancelled. It returns the members that were removed. A refund the
// ledger does not take yet stays pending on the cancelled room, which keeps
// retrying it and closes itself once nothing is owed.
func (r *Room) Cancel(ctx context.Context) ([]string, error) {
	var removed []string
	err := r.Do(ctx, func() error {
		if r.Status() == state.IDCancelled {
			return nil
		}
		if r.Status() == state.IDPlaying {
			r.void("room closed")
		}
		refund := settlement.Outcome{}
		for _, s := range r.seated() {
			if s.Stack.IsPositive() {
				refund[s.PlayerID] = s.Stack
			}
		}
		r.unseatAll()
		for id := range r.members {
			removed = append(removed, id)
		}
		r.members = make(map[string]game.Role)
		r.changeState(r.cancelled)
		logger.Log.Infow("room cancelled", "room_id", r.ID, "members", len(removed))

		if len(refund) > 0 {
			r.settleCredit(settlement.KindCashOut, refund)
		}
		r.finishCancel()
		return nil
	})
	return removed, game.Annotate(err, r.ID, "")
}

// finishCancel drops the snapshot of a cancelled room that owes nothing.
func (r *Room) finishCancel() {
	if r.deleted {
		return
	}
	if len(r.pending) > 0 {
		logger.Log.Warnw("cancelled room still owes settlements", "room_id", r.ID, "pending", len(r.pending))
		return
	}
	if r.deps.Store != nil {
		dctx, cancel := r.opContext()
		defer cancel()
		if err := r.deps.Store.Delete(dctx, r.ID); err != nil {
			logger.Log.Errorw("room snapshot delete failed", "room_id", r.ID, "error", err)
		}
	}
	r.deleted = true
	if r.onClosed != nil {
		r.onClosed()
	}
}
