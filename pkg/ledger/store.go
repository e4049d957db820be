package ledger

import "context"

// Reader is the read side of the ledger state: products by handle, the
// ordered journal by handle, stakeholders by principal, and the two scalars.
// Lookups of absent keys return the zero value and a nil error.
type Reader interface {
	Product(ctx context.Context, h Handle) (*Product, error)
	Journal(ctx context.Context, h Handle) ([]TrackingRecord, error)
	Stakeholder(ctx context.Context, p Principal) (*Stakeholder, error)
	Admin(ctx context.Context) (Principal, error)
	ProductCount(ctx context.Context) (uint64, error)
}

// Tx is a write view handed to Store.Update.
type Tx interface {
	Reader
	PutProduct(ctx context.Context, p *Product) error
	AppendRecord(ctx context.Context, h Handle, rec TrackingRecord) error
	PutStakeholder(ctx context.Context, s *Stakeholder) error
	DeleteStakeholder(ctx context.Context, p Principal) error
	SetAdmin(ctx context.Context, p Principal) error
	SetProductCount(ctx context.Context, n uint64) error
}

// Store persists ledger state. Update applies every write made by fn, or none
// of them when fn (or the commit) fails. View gives fn a consistent snapshot
// of committed state.
type Store interface {
	Reader
	View(ctx context.Context, fn func(r Reader) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
}
