package ledger

import (
	"context"
	"fmt"
	"math/bits"
)

// Provenance returns the product at h with its full journey, oldest first.
func (l *Ledger) Provenance(ctx context.Context, h Handle) (*Product, []TrackingRecord, error) {
	var (
		product *Product
		journey []TrackingRecord
	)
	err := l.store.View(ctx, func(r Reader) error {
		p, err := activeProduct(ctx, r, h)
		if err != nil {
			return err
		}
		recs, err := r.Journal(ctx, h)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		product, journey = p, recs
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return product, journey, nil
}

// Totals folds the journey of h into its aggregate metrics.
func (l *Ledger) Totals(ctx context.Context, h Handle) (Totals, error) {
	_, journey, err := l.Provenance(ctx, h)
	if err != nil {
		return Totals{}, err
	}
	return Fold(journey), nil
}

// TotalCarbonFootprint is the sum of CarbonFootprint over the journey of h.
func (l *Ledger) TotalCarbonFootprint(ctx context.Context, h Handle) (uint64, error) {
	t, err := l.Totals(ctx, h)
	return t.CarbonFootprint, err
}

// TotalFairWages is the sum of FairWagesPaid over the journey of h.
func (l *Ledger) TotalFairWages(ctx context.Context, h Handle) (uint64, error) {
	t, err := l.Totals(ctx, h)
	return t.FairWagesPaid, err
}

// JourneyLength is the number of records in the journey of h.
func (l *Ledger) JourneyLength(ctx context.Context, h Handle) (int, error) {
	t, err := l.Totals(ctx, h)
	return t.JourneyLength, err
}

// add folds rec into t. It reports false, leaving t unchanged, when either
// sum would overflow.
func (t Totals) add(rec TrackingRecord) (Totals, bool) {
	carbon, c1 := bits.Add64(t.CarbonFootprint, rec.CarbonFootprint, 0)
	wages, c2 := bits.Add64(t.FairWagesPaid, rec.FairWagesPaid, 0)
	if c1|c2 != 0 {
		return t, false
	}
	return Totals{CarbonFootprint: carbon, FairWagesPaid: wages, JourneyLength: t.JourneyLength + 1}, true
}

// Fold aggregates a journey.
func Fold(journey []TrackingRecord) Totals {
	t := Totals{JourneyLength: len(journey)}
	for _, rec := range journey {
		t.CarbonFootprint += rec.CarbonFootprint
		t.FairWagesPaid += rec.FairWagesPaid
	}
	return t
}
