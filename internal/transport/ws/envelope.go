package ws

import "encoding/json"

// Envelope frames every message on the wire, both directions. Client
// requests that want an acknowledgement carry a non-zero Seq; the reply
// comes back as an "ack" envelope with the same Seq. Server pushes carry
// Seq 0.
type Envelope struct {
	Event   string          `json:"event"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckEvent is the reserved event name for acknowledgement replies.
const AckEvent = "ack"

// ErrorPayload is the generic error shape used in acks and error pushes.
type ErrorPayload struct {
	Error string `json:"error"`
}
