package events

import "context"

// Streams
const (
	StreamDeal          = "events:deal"
	StreamNotifications = "events:notify"
)

// Event types published outside the ledger taxonomy
const (
	EventDealStatusChanged = "deal_status_changed"
	EventDeadlineOverdue   = "deadline.overdue"
	EventLedgerBroken      = "ledger.chain_broken"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// DealID extracts the deal id carried in the payload, if any.
func (e Event) DealID() string {
	id, _ := e.Payload["deal_id"].(string)
	return id
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, Event) error { return nil }
