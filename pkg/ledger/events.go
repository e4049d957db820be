package ledger

import (
	"context"
	"time"
)

// EventType names a ledger notification.
type EventType string

const (
	EventProductRegistered     EventType = "ProductRegistered"
	EventStageUpdated          EventType = "StageUpdated"
	EventStakeholderAuthorized EventType = "StakeholderAuthorized"
	EventStakeholderRevoked    EventType = "StakeholderRevoked"
)

// Event is a notification emitted after a mutation commits.
//
//	ProductRegistered:     Handle, Name, Principal (registrar)
//	StageUpdated:          Handle, Stage, Principal (handler), Location
//	StakeholderAuthorized: Principal, Role
//	StakeholderRevoked:    Principal
type Event struct {
	Type      EventType `json:"type"`
	Handle    Handle    `json:"handle,omitempty"`
	Name      string    `json:"name,omitempty"`
	Principal Principal `json:"principal"`
	Role      string    `json:"role,omitempty"`
	Stage     *Stage    `json:"stage,omitempty"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier consumes ledger events. Notify must not block for long; the ledger
// calls it while still serializing mutations.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiNotifier delivers each event to every notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, ev Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, Event) {}
