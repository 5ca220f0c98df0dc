// Package events defines hub event types and publishers. Events announce
// coordination changes other agents may want to react to: messages and
// handoffs.
package events

// Event kinds.
const (
	KindMessageDirect    = "message.direct"
	KindMessageBroadcast = "message.broadcast"
	KindHandoffCreated   = "handoff.created"
	KindHandoffClaimed   = "handoff.claimed"
	KindHandoffCompleted = "handoff.completed"
)

// HubEvent is emitted after a successful message or handoff operation.
type HubEvent struct {
	Kind      string `json:"kind"`
	HubID     string `json:"hubId"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Operation string `json:"operation"`
	Ref       string `json:"ref,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Targeted reports whether the event is addressed to a single agent.
func (e *HubEvent) Targeted() bool {
	return e.To != "" && e.To != "*"
}
