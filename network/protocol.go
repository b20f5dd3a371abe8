package network

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/wfunc/cardroom/game"
)

const (
	MsgTypeHeartbeat    = 1
	MsgTypeJoinRoom     = 101
	MsgTypeLeaveRoom    = 102
	MsgTypeCreateRoom   = 103
	MsgTypeSit          = 104
	MsgTypeStandUp      = 105
	MsgTypeReady        = 106
	MsgTypePlayerAction = 202
	MsgTypeRoomState    = 301
	MsgTypePrivateState = 302
	MsgTypeError        = 400
)

// MaxPayload is the largest body the 2-byte length field can carry.
const MaxPayload = 1<<16 - 1

// CreateRoomRequest 创建房间
type CreateRoomRequest struct {
	Type       game.Type       `json:"type"`
	Stake      decimal.Decimal `json:"stake"`
	MaxPlayers int             `json:"max_players,omitempty"`
}

type CreateRoomResponse struct {
	RoomID string `json:"room_id"`
}

// RoomRequest carries the target room for join, leave, sit, stand up and ready.
type RoomRequest struct {
	RoomID string          `json:"room_id"`
	Role   game.Role       `json:"role,omitempty"`
	Seat   *int            `json:"seat,omitempty"`
	Amount decimal.Decimal `json:"amount"`
}

// ActionRequest is a game move inside the sender's current room.
type ActionRequest struct {
	RoomID string      `json:"room_id,omitempty"`
	Action game.Action `json:"action"`
}

// ErrorResponse is sent with MsgTypeError when a request fails.
type ErrorResponse struct {
	MsgID   uint16    `json:"msg_id"`
	Kind    game.Kind `json:"kind,omitempty"`
	Message string    `json:"message"`
}

// NewErrorResponse maps err to the wire error body.
func NewErrorResponse(msgID uint16, err error) ErrorResponse {
	return ErrorResponse{MsgID: msgID, Kind: game.KindOf(err), Message: err.Error()}
}

// Encode marshals v as a packet body.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxPayload {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}
