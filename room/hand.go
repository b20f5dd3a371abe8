package room

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/models"
	"github.com/wfunc/cardroom/settlement"
	"github.com/wfunc/cardroom/state"
)

type pendingSettlement struct {
	Key     settlement.Key     `json:"key"`
	Outcome settlement.Outcome `json:"outcome"`
}

// dealHand starts the next hand with every funded seat. A deal failure voids
// the round.
func (r *Room) dealHand() error {
	seats := r.funded()
	ps := make([]game.Participant, 0, len(seats))
	for _, s := range seats {
		ps = append(ps, game.Participant{PlayerID: s.PlayerID, Seat: s.Index, Stack: s.Stack})
	}
	if err := r.engine.Start(ps); err != nil {
		logger.Log.Errorw("deal failed", "room_id", r.ID, "error", err)
		r.void("deal failed")
		return err
	}

	r.handNo++
	r.inHand = make(map[string]bool, len(ps))
	for _, p := range ps {
		r.inHand[p.PlayerID] = true
	}
	r.forfeits = make(map[string]decimal.Decimal)
	r.touch()
	logger.Log.Infow("hand dealt", "room_id", r.ID, "hand", r.handNo, "players", len(ps))

	r.afterEngine()
	return nil
}

func (r *Room) afterEngine() {
	if r.Status() == state.IDPlaying && len(r.inHand) > 0 && r.engine.IsHandTerminal() {
		r.onHandEnd()
	}
}

func (r *Room) onHandEnd() {
	out := r.engine.HandOutcome()
	for _, s := range r.seated() {
		if st, ok := out.Stacks[s.PlayerID]; ok {
			s.Stack = st
		}
	}
	r.recordHand(out)
	r.inHand = make(map[string]bool)
	r.forfeits = make(map[string]decimal.Decimal)
	r.touch()
	logger.Log.Infow("hand finished", "room_id", r.ID, "hand", r.handNo, "winners", out.Winners)

	if r.engine.IsMatchOver(r.stacks()) {
		r.finish()
		return
	}
	r.unseatBusted()
	r.scheduleNextHand()
}

// finish pays out the escrow, empties the seats and reopens the room.
func (r *Room) finish() {
	payout := r.engine.MatchPayout(r.stacks())
	r.changeState(r.finished)
	r.cancelNextHand()
	r.unseatAll()
	r.engine = r.newEngine()
	r.changeState(r.waiting)
	logger.Log.Infow("match finished", "room_id", r.ID, "hand", r.handNo)

	out := make(settlement.Outcome, len(payout))
	for id, amt := range payout {
		out[id] = game.Money(amt)
	}
	if len(out) > 0 {
		r.settleCredit(settlement.KindPayout, out)
	}
}

// unseatBusted removes poker players left with nothing, recording the loss.
func (r *Room) unseatBusted() {
	out := settlement.Outcome{}
	for _, s := range r.seated() {
		if !s.Stack.IsPositive() {
			out[s.PlayerID] = decimal.Zero
			r.removeSeat(s)
		}
	}
	if len(out) > 0 {
		r.settleCredit(settlement.KindBust, out)
	}
}

func (r *Room) scheduleNextHand() {
	if r.deps.Timers == nil {
		return
	}
	r.cancelNextHand()
	hand := r.handNo
	r.nextHand = r.deps.Timers.AddTimer(r.settings.NextHandDelay, 0, func() {
		err := r.Do(context.Background(), func() error { return r.startNextHand(hand) })
		if err != nil {
			logger.Log.Warnw("next hand failed", "room_id", r.ID, "hand", hand+1, "error", err)
		}
	})
}

func (r *Room) cancelNextHand() {
	if r.nextHand != 0 && r.deps.Timers != nil {
		r.deps.Timers.RemoveTimer(r.nextHand)
	}
	r.nextHand = 0
}

// startNextHand re-checks the table right before dealing; membership may have
// changed since the task was scheduled.
func (r *Room) startNextHand(after int64) error {
	if r.Status() != state.IDPlaying || r.handNo != after {
		return nil
	}
	r.nextHand = 0
	r.retryPending()
	if len(r.pending) > 0 {
		r.scheduleNextHand()
		return nil
	}
	if !r.engine.CanStart(len(r.funded())) {
		r.void("not enough players for the next hand")
		return nil
	}
	return r.dealHand()
}

// void abandons the current round: every seat gets its hand-start stack
// back, players who forfeited get their committed chips back, and the room
// returns to waiting with empty seats.
func (r *Room) void(reason string) {
	refund := settlement.Outcome{}
	for _, s := range r.seated() {
		if s.Stack.IsPositive() {
			refund[s.PlayerID] = s.Stack
		}
	}
	for id, dead := range r.forfeits {
		refund[id] = refund[id].Add(dead)
	}

	r.cancelNextHand()
	r.unseatAll()
	r.engine = r.newEngine()
	r.inHand = make(map[string]bool)
	r.forfeits = make(map[string]decimal.Decimal)
	r.changeState(r.waiting)
	r.touch()
	logger.Log.Warnw("round voided", "room_id", r.ID, "hand", r.handNo, "reason", reason)

	if len(refund) > 0 {
		r.settleCredit(settlement.KindVoid, refund)
	}
}

// settleCredit pays players out of escrow. The settlement is recorded in the
// snapshot before it is committed so a restart can replay it.
func (r *Room) settleCredit(kind settlement.Kind, outcome settlement.Outcome) {
	r.pending = append(r.pending, pendingSettlement{Key: r.nextKey(kind), Outcome: outcome})
	r.retryPending()
}

// retryPending commits owed settlements in order, keeping the ones that fail.
// Nothing is committed until the snapshot holding the keys is saved.
func (r *Room) retryPending() {
	if len(r.pending) == 0 {
		return
	}
	if r.saved != r.version {
		r.persist()
		if r.saved != r.version {
			return
		}
	}
	ctx, cancel := r.opContext()
	defer cancel()

	kept := r.pending[:0]
	for _, p := range r.pending {
		if _, err := r.deps.Settler.Settle(ctx, p.Key, p.Outcome); err != nil {
			logger.Log.Errorw("settlement pending", "room_id", r.ID, "seq", p.Key.Seq, "kind", p.Key.Kind, "error", err)
			kept = append(kept, p)
		}
	}
	if len(kept) != len(r.pending) {
		r.touch()
	}
	r.pending = kept
}

func (r *Room) recordHand(out game.Outcome) {
	if r.deps.Hands == nil {
		return
	}
	players := make([]models.HandPlayer, 0, len(out.Stacks))
	for id, st := range out.Stacks {
		seat := -1
		if s := r.seatOf(id); s != nil {
			seat = s.Index
		}
		players = append(players, models.HandPlayer{UserID: id, Seat: seat, Stack: st.String()})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].UserID < players[j].UserID })

	pj, err := json.Marshal(players)
	if err != nil {
		return
	}
	rj, err := json.Marshal(out)
	if err != nil {
		return
	}
	ctx, cancel := r.opContext()
	defer cancel()
	err = r.deps.Hands.SaveHandRecord(ctx, &models.HandRecord{
		RoomID:   r.ID,
		GameType: string(r.Type),
		HandSeq:  r.handNo,
		Players:  pj,
		Result:   rj,
	})
	if err != nil {
		logger.Log.Warnw("hand record not saved", "room_id", r.ID, "hand", r.handNo, "error", err)
	}
}
