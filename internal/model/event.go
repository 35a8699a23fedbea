package model

// Event is one SSE activity event. Seq is assigned by the SSE manager when
// the event is published.
type Event struct {
	Seq         int    `json:"seq"`
	Ts          string `json:"ts"`
	Type        string `json:"type"`
	PayloadJSON string `json:"-"`
}
