package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// AdminRole is the role label of the initial stakeholder.
const AdminRole = "Admin"

// Clock returns the current time.
type Clock func() time.Time

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source used for creation times and record
// timestamps.
func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithHandleFunc sets the product handle derivation. Defaults to CompatHandles.
func WithHandleFunc(f HandleFunc) Option {
	return func(l *Ledger) { l.handles = f }
}

// WithNotifier sets the consumer of ledger events.
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// Ledger is the provenance core. Mutations are serialized and each one is
// applied to the store atomically; reads go straight to the store.
type Ledger struct {
	store    Store
	clock    Clock
	handles  HandleFunc
	notifier Notifier
	logger   *slog.Logger

	// mu serializes mutations so every precondition is checked against the
	// state the mutation commits onto.
	mu sync.Mutex
}

// New opens a ledger over store. On an empty store, admin becomes the sole
// admin with role AdminRole. A store that already has an admin must have
// been initialized with the same one.
func New(ctx context.Context, store Store, admin Principal, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store:    store,
		clock:    time.Now,
		handles:  CompatHandles,
		notifier: discardNotifier{},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.notifier == nil {
		l.notifier = discardNotifier{}
	}

	if admin == "" {
		return nil, newError(CodeInvalidTarget, "admin principal is required")
	}
	if err := l.initAdmin(ctx, admin); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initAdmin(ctx context.Context, admin Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var created *Stakeholder
	err := l.store.Update(ctx, func(tx Tx) error {
		current, err := tx.Admin(ctx)
		if err != nil {
			return fmt.Errorf("read admin: %w", err)
		}
		if current != "" {
			if current != admin {
				return fmt.Errorf("ledger already initialized with admin %q, refusing %q", current, admin)
			}
			return nil
		}
		created = &Stakeholder{Principal: admin, Role: AdminRole, AuthorizedAt: l.clock()}
		if err := tx.SetAdmin(ctx, admin); err != nil {
			return fmt.Errorf("set admin: %w", err)
		}
		if err := tx.PutStakeholder(ctx, created); err != nil {
			return fmt.Errorf("authorize admin: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if created != nil {
		l.logger.Info("ledger initialized", "admin", admin)
		l.emit(ctx, Event{
			Type:      EventStakeholderAuthorized,
			Principal: admin,
			Role:      AdminRole,
			Timestamp: created.AuthorizedAt,
		})
	}
	return nil
}

// Admin returns the admin principal.
func (l *Ledger) Admin(ctx context.Context) (Principal, error) {
	p, err := l.store.Admin(ctx)
	if err != nil {
		return "", fmt.Errorf("read admin: %w", err)
	}
	return p, nil
}

// ProductCount returns the number of registered products.
func (l *Ledger) ProductCount(ctx context.Context) (uint64, error) {
	n, err := l.store.ProductCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("read product count: %w", err)
	}
	return n, nil
}

func (l *Ledger) emit(ctx context.Context, ev Event) {
	l.notifier.Notify(ctx, ev)
}

// requireAuthorized is the guard run first by every product mutation.
func requireAuthorized(ctx context.Context, r Reader, caller Principal) error {
	ok, err := authorized(ctx, r, caller)
	if err != nil {
		return err
	}
	if !ok {
		return newError(CodeUnauthorized, "principal %q is not an authorized stakeholder", caller)
	}
	return nil
}

// requireAdmin is the guard run first by every registry mutation.
func requireAdmin(ctx context.Context, r Reader, caller Principal) (Principal, error) {
	admin, err := r.Admin(ctx)
	if err != nil {
		return "", fmt.Errorf("read admin: %w", err)
	}
	if caller == "" || caller != admin {
		return "", newError(CodeUnauthorized, "principal %q is not the admin", caller)
	}
	return admin, nil
}

func authorized(ctx context.Context, r Reader, p Principal) (bool, error) {
	if p == "" {
		return false, nil
	}
	st, err := r.Stakeholder(ctx, p)
	if err != nil {
		return false, fmt.Errorf("read stakeholder: %w", err)
	}
	return st != nil, nil
}
