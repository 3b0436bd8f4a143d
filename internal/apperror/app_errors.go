package apperror

import "errors"

// game rules.
var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell index")
	ErrRematchTooEarly  = errors.New("rematch is only possible after the game is over")
)

// relay rooms.
var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrRoomCodeTaken = errors.New("room code is already taken")
	ErrNotInRoom     = errors.New("participant is not in this room")
	ErrAlreadyInRoom = errors.New("participant is already in a room")
)

// session transport.
var (
	ErrIdentityTaken     = errors.New("identity is already taken")
	ErrConnectionFailed  = errors.New("connection failed")
	ErrConnectTimeout    = errors.New("connection attempt timed out")
	ErrPeerUnavailable   = errors.New("peer is unavailable")
	ErrPeerDisconnected  = errors.New("peer disconnected")
	ErrChannelClosed     = errors.New("channel is closed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrSessionClosed     = errors.New("session is closed")
)
