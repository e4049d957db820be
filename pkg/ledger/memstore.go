package ledger

import (
	"context"
	"slices"
	"sync"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps ledger state in process memory. It is used by tests and
// by the server's "memory" database mode.
type MemoryStore struct {
	mu           sync.RWMutex
	products     map[Handle]Product
	journals     map[Handle][]TrackingRecord
	stakeholders map[Principal]Stakeholder
	admin        Principal
	productCount uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:     make(map[Handle]Product),
		journals:     make(map[Handle][]TrackingRecord),
		stakeholders: make(map[Principal]Stakeholder),
	}
}

func (s *MemoryStore) Product(ctx context.Context, h Handle) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.product(h), nil
}

func (s *MemoryStore) Journal(ctx context.Context, h Handle) ([]TrackingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.journals[h]), nil
}

func (s *MemoryStore) Stakeholder(ctx context.Context, p Principal) (*Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stakeholder(p), nil
}

func (s *MemoryStore) Admin(ctx context.Context) (Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin, nil
}

func (s *MemoryStore) ProductCount(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.productCount, nil
}

// View runs fn under the read lock.
func (s *MemoryStore) View(ctx context.Context, fn func(r Reader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memTx{s: s})
}

// Update runs fn under the write lock. Writes are applied immediately and
// undone in reverse order if fn returns an error.
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

func (s *MemoryStore) product(h Handle) *Product {
	p, ok := s.products[h]
	if !ok {
		return nil
	}
	return &p
}

func (s *MemoryStore) stakeholder(p Principal) *Stakeholder {
	st, ok := s.stakeholders[p]
	if !ok {
		return nil
	}
	return &st
}

// memTx operates on the store directly; View and Update hold the lock.
type memTx struct {
	s    *MemoryStore
	undo []func()
}

func (tx *memTx) Product(_ context.Context, h Handle) (*Product, error) {
	return tx.s.product(h), nil
}

func (tx *memTx) Journal(_ context.Context, h Handle) ([]TrackingRecord, error) {
	return slices.Clone(tx.s.journals[h]), nil
}

func (tx *memTx) Stakeholder(_ context.Context, p Principal) (*Stakeholder, error) {
	return tx.s.stakeholder(p), nil
}

func (tx *memTx) Admin(context.Context) (Principal, error) {
	return tx.s.admin, nil
}

func (tx *memTx) ProductCount(context.Context) (uint64, error) {
	return tx.s.productCount, nil
}

func (tx *memTx) PutProduct(_ context.Context, p *Product) error {
	prev, existed := tx.s.products[p.Handle]
	tx.s.products[p.Handle] = *p
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.s.products[p.Handle] = prev
		} else {
			delete(tx.s.products, p.Handle)
		}
	})
	return nil
}

func (tx *memTx) AppendRecord(_ context.Context, h Handle, rec TrackingRecord) error {
	n := len(tx.s.journals[h])
	tx.s.journals[h] = append(tx.s.journals[h], rec)
	tx.undo = append(tx.undo, func() {
		if n == 0 {
			delete(tx.s.journals, h)
			return
		}
		tx.s.journals[h] = tx.s.journals[h][:n]
	})
	return nil
}

func (tx *memTx) PutStakeholder(_ context.Context, st *Stakeholder) error {
	prev, existed := tx.s.stakeholders[st.Principal]
	tx.s.stakeholders[st.Principal] = *st
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.s.stakeholders[st.Principal] = prev
		} else {
			delete(tx.s.stakeholders, st.Principal)
		}
	})
	return nil
}

func (tx *memTx) DeleteStakeholder(_ context.Context, p Principal) error {
	prev, existed := tx.s.stakeholders[p]
	if !existed {
		return nil
	}
	delete(tx.s.stakeholders, p)
	tx.undo = append(tx.undo, func() { tx.s.stakeholders[p] = prev })
	return nil
}

func (tx *memTx) SetAdmin(_ context.Context, p Principal) error {
	prev := tx.s.admin
	tx.s.admin = p
	tx.undo = append(tx.undo, func() { tx.s.admin = prev })
	return nil
}

func (tx *memTx) SetProductCount(_ context.Context, n uint64) error {
	prev := tx.s.productCount
	tx.s.productCount = n
	tx.undo = append(tx.undo, func() { tx.s.productCount = prev })
	return nil
}
