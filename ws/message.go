package ws

import "encoding/json"

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON captures the raw payload alongside the type.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// Client-to-server message types.
const (
	MsgAuth       = "auth"
	MsgGuest      = "guest"
	MsgStartRound = "start_round"
	MsgFlipCard   = "flip_card"
	MsgEndRound   = "end_round"
	MsgGetStats   = "get_stats"
	MsgResetStats = "reset_stats"
)

// AuthMsg opens a session for a Neon Auth user.
type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// GuestMsg opens an unsaved session under a display name.
type GuestMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// FlipCardMsg is sent by the client to flip a card.
type FlipCardMsg struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// ErrorMsg is sent when a client message is rejected before it reaches a session.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
