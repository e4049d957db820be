package audit

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Event sources.
const (
	SourceLedger = "ledger"
	SourceHTTP   = "http"
)

// Outcomes of an audited request.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeFailure = "failure"
)

// JSONAny is a map column stored as JSON text.
type JSONAny map[string]any

func (m *JSONAny) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("unsupported type for JSONAny: %T", value)
	}
	return json.Unmarshal(b, m)
}

func (m JSONAny) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// EventRecord is one immutable audit log entry. Ledger notifications and
// audited HTTP requests share the table and are told apart by Source.
type EventRecord struct {
	ID         string    `gorm:"primaryKey;column:id;type:varchar(36)"`
	Source     string    `gorm:"column:source;index:idx_audit_source;not null"`
	EventType  string    `gorm:"column:event_type;index:idx_audit_type;not null"`
	Actor      string    `gorm:"column:actor;index:idx_audit_actor"`
	Subject    string    `gorm:"column:subject"`
	Handle     string    `gorm:"column:handle;size:64;index:idx_audit_handle"`
	RequestID  string    `gorm:"column:request_id"`
	Action     string    `gorm:"column:action"`
	Resource   string    `gorm:"column:resource"`
	Outcome    string    `gorm:"column:outcome"`
	StatusCode int       `gorm:"column:status_code"`
	Metadata   JSONAny   `gorm:"column:metadata;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;index:idx_audit_created"`
}

func (EventRecord) TableName() string { return "audit_events" }
