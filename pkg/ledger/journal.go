package ledger

import (
	"context"
	"fmt"
)

// ValidateTransition checks a move from the current stage to next. Moves must
// be strictly forward; skipping intermediate stages is allowed.
func ValidateTransition(h Handle, current, next Stage) error {
	if !next.Valid() || next <= current {
		return newTransitionError(h, current, next)
	}
	return nil
}

// AllowedTransitions lists every stage reachable from current. Sold has none.
func AllowedTransitions(current Stage) []Stage {
	var out []Stage
	for _, s := range Stages() {
		if s > current {
			out = append(out, s)
		}
	}
	return out
}

// Advance moves the product at h to stage next, appending a record with the
// given fields. The record and the new current stage are written together.
func (l *Ledger) Advance(ctx context.Context, caller Principal, h Handle, next Stage, in RecordInput) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rec TrackingRecord
	var from Stage
	err := l.store.Update(ctx, func(tx Tx) error {
		if err := requireAuthorized(ctx, tx, caller); err != nil {
			return err
		}
		p, err := activeProduct(ctx, tx, h)
		if err != nil {
			return err
		}
		from = p.CurrentStage
		if err := ValidateTransition(h, p.CurrentStage, next); err != nil {
			return err
		}
		if err := in.validate(); err != nil {
			return err
		}

		rec = in.record(next, caller, l.clock())
		journey, err := tx.Journal(ctx, h)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		if _, ok := Fold(journey).add(rec); !ok {
			return newError(CodeInvalidInput, "record would overflow the totals of product %s", h)
		}
		if err := tx.AppendRecord(ctx, h, rec); err != nil {
			return fmt.Errorf("append record: %w", err)
		}
		p.CurrentStage = next
		if err := tx.PutProduct(ctx, p); err != nil {
			return fmt.Errorf("put product: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("stage updated", "handle", h, "from", from, "to", next, "handler", caller)
	l.emit(ctx, Event{
		Type:      EventStageUpdated,
		Handle:    h,
		Stage:     &next,
		Principal: caller,
		Location:  in.Location,
		Timestamp: rec.Timestamp,
	})
	return nil
}

func activeProduct(ctx context.Context, r Reader, h Handle) (*Product, error) {
	p, err := r.Product(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("read product: %w", err)
	}
	if p == nil || !p.Active {
		return nil, newError(CodeNotFound, "product %s not found", h)
	}
	return p, nil
}
