// Package ledger implements the provenance core: the stakeholder authorization
// registry, the product registry, the append-only provenance journal with its
// forward-only stage machine, and the read-only aggregations over the journal.
package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Stage is a supply-chain phase. Stages are totally ordered by their ordinal.
type Stage int

const (
	StageRawMaterial Stage = iota
	StageManufacturing
	StageQuality
	StageDistribution
	StageRetail
	StageSold
)

var stageNames = [...]string{
	StageRawMaterial:   "RawMaterial",
	StageManufacturing: "Manufacturing",
	StageQuality:       "Quality",
	StageDistribution:  "Distribution",
	StageRetail:        "Retail",
	StageSold:          "Sold",
}

// Stages returns every stage in order.
func Stages() []Stage {
	return []Stage{StageRawMaterial, StageManufacturing, StageQuality, StageDistribution, StageRetail, StageSold}
}

// Valid reports whether s is inside the enumeration.
func (s Stage) Valid() bool {
	return s >= StageRawMaterial && s <= StageSold
}

func (s Stage) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// ParseStage resolves a stage by name (case-insensitive) or by ordinal.
func ParseStage(v string) (Stage, error) {
	v = strings.TrimSpace(v)
	for i, name := range stageNames {
		if strings.EqualFold(name, v) {
			return Stage(i), nil
		}
	}
	if n, err := strconv.Atoi(v); err == nil && Stage(n).Valid() {
		return Stage(n), nil
	}
	return 0, fmt.Errorf("unknown stage %q", v)
}

// MarshalJSON encodes the stage by name.
func (s Stage) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid stage %d", int(s))
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts either the stage name or its ordinal.
func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		parsed, err := ParseStage(name)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("stage must be a name or an ordinal: %w", err)
	}
	// Out-of-range ordinals are kept so the transition check can reject them.
	*s = Stage(n)
	return nil
}

// Principal is an authenticated caller identity. The empty principal is the
// null identity.
type Principal string

// Handle is the derived, unique identifier of a registered product.
type Handle string

// Stakeholder is an authorized principal and its role label.
type Stakeholder struct {
	Principal    Principal `json:"principal"`
	Role         string    `json:"role"`
	AuthorizedAt time.Time `json:"authorizedAt"`
}

// Product is the registry entry of a tracked item.
type Product struct {
	Handle       Handle    `json:"handle"`
	Code         string    `json:"code"`
	Name         string    `json:"name"`
	CurrentStage Stage     `json:"currentStage"`
	CreatedAt    time.Time `json:"createdAt"`
	Registrar    Principal `json:"registrar"`
	Active       bool      `json:"active"`
}

// TrackingRecord is one immutable journal entry.
type TrackingRecord struct {
	Stage             Stage     `json:"stage"`
	Handler           Principal `json:"handler"`
	Location          string    `json:"location"`
	Timestamp         time.Time `json:"timestamp"`
	Certifications    string    `json:"certifications"`
	CarbonFootprint   uint64    `json:"carbonFootprint"` // grams CO2
	WorkingConditions string    `json:"workingConditions"`
	FairWagesPaid     uint64    `json:"fairWagesPaid"` // minor currency units
	Notes             string    `json:"notes"`
}

// RecordInput carries the caller-supplied fields of a tracking record.
type RecordInput struct {
	Location          string `json:"location"`
	Certifications    string `json:"certifications"`
	CarbonFootprint   uint64 `json:"carbonFootprint"`
	WorkingConditions string `json:"workingConditions"`
	FairWagesPaid     uint64 `json:"fairWagesPaid"`
	Notes             string `json:"notes"`
}

// MaxMetric bounds the carbon footprint and fair wages of one record, so
// that every value fits a signed 64-bit database column.
const MaxMetric = math.MaxInt64

func (in RecordInput) validate() error {
	if in.CarbonFootprint > MaxMetric {
		return newError(CodeInvalidInput, "carbon footprint %d exceeds %d", in.CarbonFootprint, uint64(MaxMetric))
	}
	if in.FairWagesPaid > MaxMetric {
		return newError(CodeInvalidInput, "fair wages paid %d exceeds %d", in.FairWagesPaid, uint64(MaxMetric))
	}
	return nil
}

func (in RecordInput) record(stage Stage, handler Principal, at time.Time) TrackingRecord {
	return TrackingRecord{
		Stage:             stage,
		Handler:           handler,
		Location:          in.Location,
		Timestamp:         at,
		Certifications:    in.Certifications,
		CarbonFootprint:   in.CarbonFootprint,
		WorkingConditions: in.WorkingConditions,
		FairWagesPaid:     in.FairWagesPaid,
		Notes:             in.Notes,
	}
}

// RegisterInput describes a product registration.
type RegisterInput struct {
	Code   string      `json:"code"`
	Name   string      `json:"name"`
	Record RecordInput `json:"record"`
}

// Totals are the aggregations over a product's journey.
type Totals struct {
	CarbonFootprint uint64 `json:"totalCarbonFootprint"`
	FairWagesPaid   uint64 `json:"totalFairWages"`
	JourneyLength   int    `json:"journeyLength"`
}
