package broker

import "encoding/json"

// frame types exchanged between a peer and the broker.
const (
	FrameOpen      = "open"
	FrameError     = "error"
	FrameConnect   = "connect"
	FrameConnected = "connected"
	FrameData      = "data"
	FrameClose     = "close"
)

// error kinds.
const (
	KindUnavailableID   = "unavailable-id"
	KindPeerUnavailable = "peer-unavailable"
	KindInvalidFrame    = "invalid-frame"
)

// Frame - one broker envelope. Payload carries an encoded protocol message
// for data frames and is opaque to the broker.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Src     string          `json:"src,omitempty"`
	Dst     string          `json:"dst,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
