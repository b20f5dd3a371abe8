package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/gamestate"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/settlement"
	"github.com/wfunc/cardroom/state"
)

// record is everything needed to rebuild a room after a restart.
type record struct {
	ID         string                     `json:"id"`
	Type       game.Type                  `json:"type"`
	Stake      decimal.Decimal            `json:"stake"`
	MaxPlayers int                        `json:"max_players"`
	CreatedAt  time.Time                  `json:"created_at"`
	Status     string                     `json:"status"`
	Members    map[string]game.Role       `json:"members"`
	Seats      []*game.Seat               `json:"seats"`
	InHand     map[string]bool            `json:"in_hand,omitempty"`
	Forfeits   map[string]decimal.Decimal `json:"forfeits,omitempty"`
	LedgerSeq  int64                      `json:"ledger_seq"`
	HandNo     int64                      `json:"hand_no"`
	Pending    []pendingSettlement        `json:"pending,omitempty"`
	Countdown  int                        `json:"countdown"`
	Engine     json.RawMessage            `json:"engine,omitempty"`
}

func (r *Room) record() (record, error) {
	eng, err := r.engine.Marshal()
	if err != nil {
		return record{}, err
	}
	return record{
		ID:         r.ID,
		Type:       r.Type,
		Stake:      r.Stake,
		MaxPlayers: r.MaxPlayers,
		CreatedAt:  r.CreatedAt,
		Status:     r.Status(),
		Members:    r.members,
		Seats:      r.seats,
		InHand:     r.inHand,
		Forfeits:   r.forfeits,
		LedgerSeq:  r.ledgerSeq,
		HandNo:     r.handNo,
		Pending:    r.pending,
		Countdown:  r.waiting.Remaining(),
		Engine:     eng,
	}, nil
}

// persist saves the room snapshot. Failures are logged; the next change
// tries again.
func (r *Room) persist() {
	if r.deleted || r.deps.Store == nil {
		r.saved = r.version
		return
	}
	rec, err := r.record()
	if err != nil {
		logger.Log.Errorw("room snapshot not encodable", "room_id", r.ID, "error", err)
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		logger.Log.Errorw("room snapshot not encodable", "room_id", r.ID, "error", err)
		return
	}

	ctx, cancel := r.opContext()
	defer cancel()
	snap := gamestate.Snapshot{Version: gamestate.CurrentVersion, Data: data}
	if err := r.deps.Store.Save(ctx, r.ID, snap); err != nil {
		logger.Log.Errorw("room snapshot not saved", "room_id", r.ID, "error", err)
		return
	}
	r.saved = r.version
}

// fromSnapshot rebuilds an idle room from a saved snapshot.
func fromSnapshot(snap gamestate.Snapshot, settings Settings, deps Deps) (*Room, error) {
	var rec record
	if err := json.Unmarshal(snap.Data, &rec); err != nil {
		return nil, fmt.Errorf("room: decode snapshot: %w", err)
	}
	if rec.Status == state.IDCancelled && len(rec.Pending) == 0 {
		return nil, game.Errorf(game.KindRoomNotJoinable, "room %s was cancelled", rec.ID)
	}

	r, err := newRoom(Options{ID: rec.ID, Type: rec.Type, Stake: rec.Stake, MaxPlayers: rec.MaxPlayers}, settings, deps)
	if err != nil {
		return nil, err
	}
	if len(rec.Seats) != r.MaxPlayers {
		return nil, fmt.Errorf("room: snapshot %s has %d seats, want %d", rec.ID, len(rec.Seats), r.MaxPlayers)
	}
	if len(rec.Engine) > 0 {
		if err := r.engine.Restore(rec.Engine); err != nil {
			return nil, fmt.Errorf("room: restore engine: %w", err)
		}
	}

	r.CreatedAt = rec.CreatedAt
	r.seats = rec.Seats
	r.ledgerSeq = rec.LedgerSeq
	r.handNo = rec.HandNo
	r.pending = rec.Pending
	if rec.Members != nil {
		r.members = rec.Members
	}
	if rec.InHand != nil {
		r.inHand = rec.InHand
	}
	if rec.Forfeits != nil {
		r.forfeits = rec.Forfeits
	}

	// finished is only ever passed through; a snapshot taken there resumes as waiting
	initial := rec.Status
	if initial == state.IDFinished {
		initial = state.IDWaiting
	}
	r.initStateMachine(initial)
	if rec.Countdown > 0 {
		r.waiting.SetRemaining(rec.Countdown)
	}
	r.version = 1
	r.saved = 1
	return r, nil
}

// catchUp moves the ledger sequence past anything committed after the
// snapshot was taken, so no key is handed out twice. A buy-in the snapshot
// never saw has no seat behind it and is refunded. Runs before the room starts.
func (r *Room) catchUp(ctx context.Context) error {
	if r.deps.Ledger == nil {
		return nil
	}
	recs, err := r.deps.Ledger.Settled(ctx, r.ID, r.ledgerSeq)
	if err != nil {
		return fmt.Errorf("room: ledger for %s: %w", r.ID, err)
	}
	for _, rec := range recs {
		if rec.Key.Seq > r.ledgerSeq {
			r.ledgerSeq = rec.Key.Seq
		}
	}
	for _, rec := range recs {
		if rec.Key.Kind != settlement.KindBuyIn {
			logger.Log.Errorw("settlement newer than snapshot", "room_id", r.ID, "seq", rec.Key.Seq, "kind", rec.Key.Kind)
			continue
		}
		refund := settlement.Outcome{}
		for id, amt := range rec.Outcome {
			if amt.IsNegative() {
				refund[id] = amt.Neg()
			}
		}
		if len(refund) == 0 {
			continue
		}
		r.pending = append(r.pending, pendingSettlement{Key: r.nextKey(settlement.KindVoid), Outcome: refund})
		logger.Log.Warnw("refunding buy-in without a seat", "room_id", r.ID, "seq", rec.Key.Seq)
	}
	return nil
}

// resume runs on the room goroutine after a restore: owed money is paid
// first, then an interrupted hand break is rescheduled. A cancelled room only
// comes back to finish its refunds.
func (r *Room) resume() {
	r.retryPending()
	if r.Status() == state.IDCancelled {
		r.finishCancel()
		return
	}
	if r.Status() == state.IDPlaying && r.engine.IsHandTerminal() && len(r.inHand) == 0 {
		r.scheduleNextHand()
	}
	r.deps.Monitor.AddSeatedPlayers(len(r.seated()))
	r.touch()
}
