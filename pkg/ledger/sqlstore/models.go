package sqlstore

import (
	"time"

	"github.com/fairtrace/provenance/pkg/ledger"
)

// productRow is the registry entry of one product.
type productRow struct {
	Handle       string    `gorm:"primaryKey;column:handle;size:64"`
	Code         string    `gorm:"column:code;not null"`
	Name         string    `gorm:"column:name;not null"`
	CurrentStage int       `gorm:"column:current_stage;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	Registrar    string    `gorm:"column:registrar;size:255"`
	Active       bool      `gorm:"column:active"`
}

func (productRow) TableName() string { return "products" }

func (r *productRow) toProduct() *ledger.Product {
	return &ledger.Product{
		Handle:       ledger.Handle(r.Handle),
		Code:         r.Code,
		Name:         r.Name,
		CurrentStage: ledger.Stage(r.CurrentStage),
		CreatedAt:    r.CreatedAt.UTC(),
		Registrar:    ledger.Principal(r.Registrar),
		Active:       r.Active,
	}
}

func productRowFrom(p *ledger.Product) *productRow {
	return &productRow{
		Handle:       string(p.Handle),
		Code:         p.Code,
		Name:         p.Name,
		CurrentStage: int(p.CurrentStage),
		CreatedAt:    p.CreatedAt,
		Registrar:    string(p.Registrar),
		Active:       p.Active,
	}
}

// journeyRow is one journal entry. Seq orders the journal of a handle and is
// unique per handle, so two concurrent appends cannot share a position.
type journeyRow struct {
	ID                uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	Handle            string    `gorm:"column:handle;size:64;not null;uniqueIndex:idx_journey_handle_seq,priority:1"`
	Seq               int       `gorm:"column:seq;not null;uniqueIndex:idx_journey_handle_seq,priority:2"`
	Stage             int       `gorm:"column:stage;not null"`
	Handler           string    `gorm:"column:handler;size:255"`
	Location          string    `gorm:"column:location"`
	Timestamp         time.Time `gorm:"column:timestamp"`
	Certifications    string    `gorm:"column:certifications"`
	CarbonFootprint   uint64    `gorm:"column:carbon_footprint"`
	WorkingConditions string    `gorm:"column:working_conditions"`
	FairWagesPaid     uint64    `gorm:"column:fair_wages_paid"`
	Notes             string    `gorm:"column:notes"`
}

func (journeyRow) TableName() string { return "journey_records" }

func (r *journeyRow) toRecord() ledger.TrackingRecord {
	return ledger.TrackingRecord{
		Stage:             ledger.Stage(r.Stage),
		Handler:           ledger.Principal(r.Handler),
		Location:          r.Location,
		Timestamp:         r.Timestamp.UTC(),
		Certifications:    r.Certifications,
		CarbonFootprint:   r.CarbonFootprint,
		WorkingConditions: r.WorkingConditions,
		FairWagesPaid:     r.FairWagesPaid,
		Notes:             r.Notes,
	}
}

type stakeholderRow struct {
	Principal    string    `gorm:"primaryKey;column:principal;size:255"`
	Role         string    `gorm:"column:role;not null"`
	AuthorizedAt time.Time `gorm:"column:authorized_at"`
}

func (stakeholderRow) TableName() string { return "stakeholders" }

func (r *stakeholderRow) toStakeholder() *ledger.Stakeholder {
	return &ledger.Stakeholder{
		Principal:    ledger.Principal(r.Principal),
		Role:         r.Role,
		AuthorizedAt: r.AuthorizedAt.UTC(),
	}
}

// scalarRow holds the ledger-wide singletons keyed by name.
type scalarRow struct {
	Key   string `gorm:"primaryKey;column:key;size:64"`
	Value string `gorm:"column:value"`
}

func (scalarRow) TableName() string { return "ledger_scalars" }

const (
	keyAdmin        = "admin"
	keyProductCount = "product_count"
)
