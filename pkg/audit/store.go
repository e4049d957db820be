package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Store is the append-only audit log.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the audit_events table.
func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&EventRecord{}); err != nil {
		return fmt.Errorf("auto-migrate audit_events: %w", err)
	}
	return nil
}

// Append writes a new record. Times are stored in UTC so they compare
// correctly on every backend.
func (s *Store) Append(ctx context.Context, ev *EventRecord) error {
	ev.CreatedAt = ev.CreatedAt.UTC()
	if err := s.db.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when no record has the id.
func (s *Store) GetByID(ctx context.Context, id string) (*EventRecord, error) {
	var rec EventRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return &rec, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Source    string
	EventType string
	Actor     string
	Handle    string
}

func (f ListFilter) apply(q *gorm.DB) *gorm.DB {
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.Actor != "" {
		q = q.Where("actor = ?", f.Actor)
	}
	if f.Handle != "" {
		q = q.Where("handle = ?", f.Handle)
	}
	return q
}

// List returns one page of matching records, newest first, the token of the
// next page ("" on the last page) and the total number of matches.
// pageToken is the RFC3339Nano creation time and the id of the last record
// of the previous page, joined by "_". Records sharing a creation time are
// ordered by id, so none is skipped at a page boundary.
func (s *Store) List(ctx context.Context, f ListFilter, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	db := s.db.WithContext(ctx)

	var total int64
	if err := f.apply(db.Model(&EventRecord{})).Count(&total).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	q := f.apply(db.Model(&EventRecord{})).Order("created_at DESC, id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		ts, id, _ := strings.Cut(pageToken, "_")
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		t = t.UTC()
		if id == "" {
			q = q.Where("created_at < ?", t)
		} else {
			q = q.Where("(created_at < ? OR (created_at = ? AND id < ?))", t, t, id)
		}
	}

	var records []EventRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	var next string
	if len(records) > pageSize {
		last := records[pageSize-1]
		next = last.CreatedAt.UTC().Format(time.RFC3339Nano) + "_" + last.ID
		records = records[:pageSize]
	}
	return records, next, int(total), nil
}

// ListByHandle lists the records of one product.
func (s *Store) ListByHandle(ctx context.Context, handle string, pageSize int, pageToken string) ([]EventRecord, string, int, error) {
	return s.List(ctx, ListFilter{Handle: handle}, pageSize, pageToken)
}

// DeleteOlderThan removes records created before cutoff and reports how many
// were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff.UTC()).Delete(&EventRecord{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete old audit events: %w", res.Error)
	}
	return res.RowsAffected, nil
}
