package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fairtrace/provenance/pkg/authz"
	"github.com/fairtrace/provenance/pkg/ledger"
)

var _ ledger.Notifier = (*Sink)(nil)

// Sink records every ledger notification in the audit log. Writes are best
// effort: a failed write is logged and the notification is otherwise lost.
type Sink struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time
}

func NewSink(store *Store, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{store: store, logger: logger, now: time.Now}
}

func (s *Sink) Notify(ctx context.Context, ev ledger.Event) {
	rec := recordFromEvent(ctx, ev)
	rec.ID = uuid.NewString()
	rec.CreatedAt = s.now()
	if err := s.store.Append(ctx, rec); err != nil {
		s.logger.Error("failed to write ledger audit event", "type", ev.Type, "handle", ev.Handle, "error", err)
	}
}

func recordFromEvent(ctx context.Context, ev ledger.Event) *EventRecord {
	rec := &EventRecord{
		Source:    SourceLedger,
		EventType: string(ev.Type),
		Handle:    string(ev.Handle),
		RequestID: middleware.GetReqID(ctx),
		Outcome:   OutcomeSuccess,
		Metadata:  JSONAny{"timestamp": ev.Timestamp.UTC().Format(time.RFC3339Nano)},
	}

	// The event names the principal it is about; the actor is whoever made
	// the request that caused it.
	actor := authz.PrincipalFromContext(ctx)
	switch ev.Type {
	case ledger.EventStakeholderAuthorized, ledger.EventStakeholderRevoked:
		rec.Subject = string(ev.Principal)
		if ev.Role != "" {
			rec.Metadata["role"] = ev.Role
		}
	default:
		if actor == "" {
			actor = ev.Principal
		}
	}
	rec.Actor = string(actor)

	if ev.Name != "" {
		rec.Metadata["name"] = ev.Name
	}
	if ev.Stage != nil {
		rec.Metadata["stage"] = ev.Stage.String()
	}
	if ev.Location != "" {
		rec.Metadata["location"] = ev.Location
	}
	return rec
}
