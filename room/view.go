package room

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
	"github.com/wfunc/cardroom/logger"
	"github.com/wfunc/cardroom/state"
)

type SeatView struct {
	Index    int             `json:"index"`
	PlayerID string          `json:"player_id"`
	Stack    decimal.Decimal `json:"stack"`
	Ready    bool            `json:"ready"`
	InHand   bool            `json:"in_hand"`
}

// View is the state every member and spectator may see. It never carries
// hole cards or blot hands.
type View struct {
	RoomID          string          `json:"room_id"`
	Type            game.Type       `json:"type"`
	Status          string          `json:"status"`
	Stake           decimal.Decimal `json:"stake"`
	MaxPlayers      int             `json:"max_players"`
	CurrentPlayerID string          `json:"current_player_id,omitempty"`
	Table           any             `json:"table,omitempty"`
	Seats           []SeatView      `json:"seats"`
	Players         []string        `json:"players"`
	Spectators      []string        `json:"spectators,omitempty"`
	Countdown       int             `json:"countdown,omitempty"`
	Hand            int64           `json:"hand"`
	Version         int64           `json:"version"`
}

// PrivateView is sent to one seated player only.
type PrivateView struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
	Hand     any    `json:"hand"`
}

func (r *Room) view() View {
	v := View{
		RoomID:     r.ID,
		Type:       r.Type,
		Status:     r.Status(),
		Stake:      r.Stake,
		MaxPlayers: r.MaxPlayers,
		Table:      r.engine.PublicView(),
		Seats:      []SeatView{},
		Players:    []string{},
		Hand:       r.handNo,
		Version:    r.version,
	}
	if v.Status == state.IDPlaying {
		v.CurrentPlayerID = r.engine.CurrentPlayer()
	} else if v.Status == state.IDWaiting && r.CanStart() {
		v.Countdown = r.waiting.Remaining()
	}
	for _, s := range r.seated() {
		v.Seats = append(v.Seats, SeatView{
			Index:    s.Index,
			PlayerID: s.PlayerID,
			Stack:    s.Stack,
			Ready:    s.Ready,
			InHand:   r.inHand[s.PlayerID],
		})
	}
	for id, role := range r.members {
		if role == game.RoleSpectator {
			v.Spectators = append(v.Spectators, id)
		} else {
			v.Players = append(v.Players, id)
		}
	}
	sort.Strings(v.Players)
	sort.Strings(v.Spectators)
	return v
}

// publish pushes the public view to the room and each dealt-in player's
// private view to that player.
func (r *Room) publish() {
	if r.deps.Sink == nil {
		return
	}
	ctx, cancel := r.opContext()
	defer cancel()

	data, err := json.Marshal(r.view())
	if err != nil {
		logger.Log.Errorw("room view not encodable", "room_id", r.ID, "error", err)
		return
	}
	if err := r.deps.Sink.PublishState(ctx, r.ID, data); err != nil {
		logger.Log.Warnw("publish state failed", "room_id", r.ID, "error", err)
	}

	for _, s := range r.seated() {
		if !r.inHand[s.PlayerID] {
			continue
		}
		hand := r.engine.PrivateView(s.PlayerID)
		if hand == nil {
			continue
		}
		data, err := json.Marshal(PrivateView{RoomID: r.ID, PlayerID: s.PlayerID, Hand: hand})
		if err != nil {
			continue
		}
		if err := r.deps.Sink.PublishPrivate(ctx, r.ID, s.PlayerID, data); err != nil {
			logger.Log.Warnw("publish private state failed", "room_id", r.ID, "player_id", s.PlayerID, "error", err)
		}
	}
}
