package ledger

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerTShirt(t *testing.T, l *Ledger, caller Principal) Handle {
	t.Helper()
	h, err := l.Register(context.Background(), caller, RegisterInput{
		Code: "SKU-1",
		Name: "T-Shirt",
		Record: RecordInput{
			Location:          "Gujarat, IN",
			Certifications:    "GOTS",
			CarbonFootprint:   100,
			WorkingConditions: "audited",
			FairWagesPaid:     500,
			Notes:             "organic cotton harvest",
		},
	})
	require.NoError(t, err)
	return h
}

func TestProductJourney(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	require.NoError(t, l.Authorize(ctx, testAdmin, farmer, "Farmer"))
	require.NoError(t, l.Authorize(ctx, testAdmin, mill, "Manufacturer"))
	rec.reset()

	h := registerTShirt(t, l, farmer)
	assert.Len(t, string(h), 64)

	p, journey, err := l.Provenance(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, "SKU-1", p.Code)
	assert.Equal(t, "T-Shirt", p.Name)
	assert.Equal(t, StageRawMaterial, p.CurrentStage)
	assert.Equal(t, farmer, p.Registrar)
	assert.True(t, p.Active)
	require.Len(t, journey, 1)
	assert.Equal(t, StageRawMaterial, journey[0].Stage)
	assert.Equal(t, farmer, journey[0].Handler)
	assert.Equal(t, p.CreatedAt, journey[0].Timestamp)

	err = l.Advance(ctx, mill, h, StageManufacturing, RecordInput{
		Location:        "Tiruppur, IN",
		CarbonFootprint: 50,
		FairWagesPaid:   200,
	})
	require.NoError(t, err)

	p, journey, err = l.Provenance(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StageManufacturing, p.CurrentStage)
	require.Len(t, journey, 2)
	assert.Equal(t, mill, journey[1].Handler)
	assert.Equal(t, "Tiruppur, IN", journey[1].Location)
	assert.True(t, journey[1].Timestamp.After(journey[0].Timestamp))

	totals, err := l.Totals(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, Totals{CarbonFootprint: 150, FairWagesPaid: 700, JourneyLength: 2}, totals)

	carbon, err := l.TotalCarbonFootprint(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), carbon)
	wages, err := l.TotalFairWages(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, uint64(700), wages)
	length, err := l.JourneyLength(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 2, length)

	count, err := l.ProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	assert.Equal(t, []EventType{
		EventProductRegistered,
		EventStageUpdated,
		EventStageUpdated,
	}, rec.types())
	require.NotNil(t, rec.events[1].Stage)
	assert.Equal(t, StageRawMaterial, *rec.events[1].Stage)
	assert.Equal(t, "Gujarat, IN", rec.events[1].Location)
	require.NotNil(t, rec.events[2].Stage)
	assert.Equal(t, StageManufacturing, *rec.events[2].Stage)
	assert.Equal(t, mill, rec.events[2].Principal)
}

func TestAdvance_RejectsBackwardMove(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	h := registerTShirt(t, l, testAdmin)
	require.NoError(t, l.Advance(ctx, testAdmin, h, StageManufacturing, RecordInput{CarbonFootprint: 50, FairWagesPaid: 200}))
	rec.reset()

	err := l.Advance(ctx, testAdmin, h, StageRawMaterial, RecordInput{CarbonFootprint: 999})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, h, te.Handle)
	assert.Equal(t, StageManufacturing, te.From)
	assert.Equal(t, int(StageRawMaterial), te.To)

	p, journey, err := l.Provenance(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, StageManufacturing, p.CurrentStage)
	assert.Len(t, journey, 2)
	assert.Empty(t, rec.types())
}

func TestAdvance_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []Stage
		next    Stage
		wantErr bool
	}{
		{name: "next stage", next: StageManufacturing},
		{name: "skip to retail", next: StageRetail},
		{name: "straight to sold", next: StageSold},
		{name: "same stage", next: StageRawMaterial, wantErr: true},
		{name: "repeat after advance", path: []Stage{StageQuality}, next: StageQuality, wantErr: true},
		{name: "sold is terminal", path: []Stage{StageSold}, next: StageSold, wantErr: true},
		{name: "below range", next: Stage(-1), wantErr: true},
		{name: "above range", next: Stage(6), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			l, _, _ := newTestLedger(t)
			h := registerTShirt(t, l, testAdmin)
			for _, s := range tt.path {
				require.NoError(t, l.Advance(ctx, testAdmin, h, s, RecordInput{}))
			}

			err := l.Advance(ctx, testAdmin, h, tt.next, RecordInput{})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
				length, lerr := l.JourneyLength(ctx, h)
				require.NoError(t, lerr)
				assert.Equal(t, 1+len(tt.path), length)
				return
			}
			require.NoError(t, err)
			p, _, err := l.Provenance(ctx, h)
			require.NoError(t, err)
			assert.Equal(t, tt.next, p.CurrentStage)
		})
	}
}

func TestAdvance_OutOfRangeMessage(t *testing.T) {
	err := ValidateTransition("h", StageRetail, Stage(9))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the stage range")

	err = ValidateTransition("h", StageRetail, StageQuality)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from Retail to Quality")
}

func TestAdvance_Preconditions(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	require.NoError(t, l.Authorize(ctx, testAdmin, farmer, "Farmer"))
	h := registerTShirt(t, l, farmer)

	t.Run("unauthorized caller", func(t *testing.T) {
		err := l.Advance(ctx, outsider, h, StageManufacturing, RecordInput{})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown product", func(t *testing.T) {
		err := l.Advance(ctx, farmer, "deadbeef", StageManufacturing, RecordInput{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unauthorized is checked before existence", func(t *testing.T) {
		err := l.Advance(ctx, outsider, "deadbeef", Stage(42), RecordInput{})
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("revoked stakeholder", func(t *testing.T) {
		require.NoError(t, l.Revoke(ctx, testAdmin, farmer))
		err := l.Advance(ctx, farmer, h, StageManufacturing, RecordInput{})
		assert.ErrorIs(t, err, ErrUnauthorized)

		// The product registered by the revoked farmer stays readable.
		p, _, err := l.Provenance(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, farmer, p.Registrar)
	})
}

func TestRegister_Preconditions(t *testing.T) {
	ctx := context.Background()
	l, _, rec := newTestLedger(t)
	rec.reset()

	_, err := l.Register(ctx, outsider, RegisterInput{Code: "SKU-1", Name: "T-Shirt"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = l.Register(ctx, "", RegisterInput{Code: "SKU-1", Name: "T-Shirt"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = l.Register(ctx, testAdmin, RegisterInput{Code: " ", Name: "T-Shirt"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	count, err := l.ProductCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, rec.types())
}

func TestRegister_DuplicateWithinOneSecond(t *testing.T) {
	ctx := context.Background()
	fixed := func() time.Time { return testNow }

	t.Run("compat handles collide", func(t *testing.T) {
		l, err := New(ctx, NewMemoryStore(), testAdmin, WithClock(fixed))
		require.NoError(t, err)

		h, err := l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "T-Shirt"})
		require.NoError(t, err)
		require.NoError(t, l.Advance(ctx, testAdmin, h, StageQuality, RecordInput{}))

		_, err = l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "Other"})
		assert.ErrorIs(t, err, ErrDuplicateProduct)

		// The first product is untouched.
		p, journey, err := l.Provenance(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, "T-Shirt", p.Name)
		assert.Equal(t, StageQuality, p.CurrentStage)
		assert.Len(t, journey, 2)
		count, err := l.ProductCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})

	t.Run("sequenced handles stay distinct", func(t *testing.T) {
		l, err := New(ctx, NewMemoryStore(), testAdmin, WithClock(fixed), WithHandleFunc(SequencedHandles))
		require.NoError(t, err)

		h1, err := l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "T-Shirt"})
		require.NoError(t, err)
		h2, err := l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "T-Shirt"})
		require.NoError(t, err)
		assert.NotEqual(t, h1, h2)
	})
}

func TestProvenance_NotFound(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, _, err := l.Provenance(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.Totals(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.JourneyLength(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProvenance_ReadsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)
	h := registerTShirt(t, l, testAdmin)

	p1, j1, err := l.Provenance(ctx, h)
	require.NoError(t, err)
	p2, j2, err := l.Provenance(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, j1, j2)

	// Mutating a returned journey does not leak into the ledger.
	j1[0].CarbonFootprint = 1
	_, j3, err := l.Provenance(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), j3[0].CarbonFootprint)
}

func TestAllowedTransitions(t *testing.T) {
	assert.Equal(t, []Stage{StageManufacturing, StageQuality, StageDistribution, StageRetail, StageSold}, AllowedTransitions(StageRawMaterial))
	assert.Equal(t, []Stage{StageSold}, AllowedTransitions(StageRetail))
	assert.Empty(t, AllowedTransitions(StageSold))
}

func TestFold(t *testing.T) {
	assert.Equal(t, Totals{}, Fold(nil))
	assert.Equal(t, Totals{CarbonFootprint: 7, FairWagesPaid: 11, JourneyLength: 2}, Fold([]TrackingRecord{
		{CarbonFootprint: 3, FairWagesPaid: 5},
		{CarbonFootprint: 4, FairWagesPaid: 6},
	}))
}

func TestRecordMetrics_Bounded(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLedger(t)

	_, err := l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "T-Shirt", Record: RecordInput{CarbonFootprint: math.MaxUint64}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "T-Shirt", Record: RecordInput{FairWagesPaid: MaxMetric + 1}})
	assert.ErrorIs(t, err, ErrInvalidInput)
	count, err := l.ProductCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	h, err := l.Register(ctx, testAdmin, RegisterInput{Code: "SKU-1", Name: "T-Shirt", Record: RecordInput{CarbonFootprint: MaxMetric}})
	require.NoError(t, err)
	err = l.Advance(ctx, testAdmin, h, StageManufacturing, RecordInput{CarbonFootprint: MaxMetric + 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, l.Advance(ctx, testAdmin, h, StageManufacturing, RecordInput{CarbonFootprint: MaxMetric}))

	// MaxMetric*2 leaves room for exactly one more unit.
	err = l.Advance(ctx, testAdmin, h, StageQuality, RecordInput{CarbonFootprint: 2})
	assert.ErrorIs(t, err, ErrInvalidInput)
	n, err := l.JourneyLength(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a rejected advance writes nothing")

	require.NoError(t, l.Advance(ctx, testAdmin, h, StageQuality, RecordInput{CarbonFootprint: 1}))
	total, err := l.TotalCarbonFootprint(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), total)

	_, journey, err := l.Provenance(ctx, h)
	require.NoError(t, err)
	var sum uint64
	for _, rec := range journey {
		sum += rec.CarbonFootprint
	}
	assert.Equal(t, total, sum)

	err = l.Advance(ctx, testAdmin, h, StageSold, RecordInput{CarbonFootprint: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
