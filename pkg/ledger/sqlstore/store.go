// Package sqlstore persists the ledger in a relational database through gorm.
// SQLite, PostgreSQL and MySQL are supported.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fairtrace/provenance/pkg/ledger"
)

var _ ledger.Store = (*Store)(nil)

// Store implements ledger.Store on a gorm database. Every Update runs in one
// database transaction.
type Store struct {
	db *gorm.DB
}

// New wraps db. Call AutoMigrate before first use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// AutoMigrate creates or updates the ledger tables. Concurrent replicas are
// serialized by a migration lock.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return NewMigrationLocker(s.db).WithLock(ctx, func() error {
		db := s.db.WithContext(ctx)
		for _, m := range []any{&productRow{}, &journeyRow{}, &stakeholderRow{}, &scalarRow{}} {
			if err := db.AutoMigrate(m); err != nil {
				return fmt.Errorf("auto-migrate %T: %w", m, err)
			}
		}
		return nil
	})
}

func (s *Store) Product(ctx context.Context, h ledger.Handle) (*ledger.Product, error) {
	return s.conn(ctx).Product(ctx, h)
}

func (s *Store) Journal(ctx context.Context, h ledger.Handle) ([]ledger.TrackingRecord, error) {
	return s.conn(ctx).Journal(ctx, h)
}

func (s *Store) Stakeholder(ctx context.Context, p ledger.Principal) (*ledger.Stakeholder, error) {
	return s.conn(ctx).Stakeholder(ctx, p)
}

func (s *Store) Admin(ctx context.Context) (ledger.Principal, error) {
	return s.conn(ctx).Admin(ctx)
}

func (s *Store) ProductCount(ctx context.Context) (uint64, error) {
	return s.conn(ctx).ProductCount(ctx)
}

// View runs fn inside a transaction that is always rolled back.
func (s *Store) View(ctx context.Context, fn func(r ledger.Reader) error) error {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin read transaction: %w", tx.Error)
	}
	defer tx.Rollback()
	return fn(&conn{db: tx})
}

// Update runs fn inside a transaction, committing only when fn succeeds.
// The transaction first locks the admin row, so updates from every replica
// sharing the database apply one at a time and each reads the state the
// previous one committed.
func (s *Store) Update(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockLedger(tx); err != nil {
			return err
		}
		return fn(&conn{db: tx})
	})
}

// lockLedger takes SELECT ... FOR UPDATE on the admin scalar. SQLite has no
// row locks; Open limits it to one connection, which serializes writers.
// Before the admin exists there is no row to lock and initialization relies
// on the scalar upserts.
func lockLedger(tx *gorm.DB) error {
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	var rows []scalarRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: keyAdmin}).
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	return nil
}

func (s *Store) conn(ctx context.Context) *conn {
	return &conn{db: s.db.WithContext(ctx)}
}

// conn runs reads and writes on either the base connection or a transaction.
type conn struct {
	db *gorm.DB
}

func (c *conn) Product(_ context.Context, h ledger.Handle) (*ledger.Product, error) {
	var row productRow
	err := c.db.Where("handle = ?", string(h)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return row.toProduct(), nil
}

func (c *conn) Journal(_ context.Context, h ledger.Handle) ([]ledger.TrackingRecord, error) {
	var rows []journeyRow
	if err := c.db.Where("handle = ?", string(h)).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list journey records: %w", err)
	}
	out := make([]ledger.TrackingRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].toRecord()
	}
	return out, nil
}

func (c *conn) Stakeholder(_ context.Context, p ledger.Principal) (*ledger.Stakeholder, error) {
	var row stakeholderRow
	err := c.db.Where("principal = ?", string(p)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stakeholder: %w", err)
	}
	return row.toStakeholder(), nil
}

func (c *conn) Admin(_ context.Context) (ledger.Principal, error) {
	v, err := c.scalar(keyAdmin)
	return ledger.Principal(v), err
}

func (c *conn) ProductCount(_ context.Context) (uint64, error) {
	v, err := c.scalar(keyProductCount)
	if err != nil || v == "" {
		return 0, err
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse product count %q: %w", v, err)
	}
	return n, nil
}

func (c *conn) PutProduct(_ context.Context, p *ledger.Product) error {
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "handle"}},
		DoUpdates: clause.AssignmentColumns([]string{"code", "name", "current_stage", "registrar", "active"}),
	}).Create(productRowFrom(p)).Error
}

func (c *conn) AppendRecord(_ context.Context, h ledger.Handle, rec ledger.TrackingRecord) error {
	var n int64
	if err := c.db.Model(&journeyRow{}).Where("handle = ?", string(h)).Count(&n).Error; err != nil {
		return fmt.Errorf("count journey records: %w", err)
	}
	row := &journeyRow{
		Handle:            string(h),
		Seq:               int(n),
		Stage:             int(rec.Stage),
		Handler:           string(rec.Handler),
		Location:          rec.Location,
		Timestamp:         rec.Timestamp,
		Certifications:    rec.Certifications,
		CarbonFootprint:   rec.CarbonFootprint,
		WorkingConditions: rec.WorkingConditions,
		FairWagesPaid:     rec.FairWagesPaid,
		Notes:             rec.Notes,
	}
	return c.db.Create(row).Error
}

func (c *conn) PutStakeholder(_ context.Context, st *ledger.Stakeholder) error {
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "principal"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "authorized_at"}),
	}).Create(&stakeholderRow{
		Principal:    string(st.Principal),
		Role:         st.Role,
		AuthorizedAt: st.AuthorizedAt,
	}).Error
}

func (c *conn) DeleteStakeholder(_ context.Context, p ledger.Principal) error {
	return c.db.Where("principal = ?", string(p)).Delete(&stakeholderRow{}).Error
}

func (c *conn) SetAdmin(_ context.Context, p ledger.Principal) error {
	return c.setScalar(keyAdmin, string(p))
}

func (c *conn) SetProductCount(_ context.Context, n uint64) error {
	return c.setScalar(keyProductCount, strconv.FormatUint(n, 10))
}

func (c *conn) scalar(key string) (string, error) {
	var row scalarRow
	err := c.db.Where(clause.Eq{Column: clause.Column{Name: "key"}, Value: key}).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return row.Value, nil
}

func (c *conn) setScalar(key, value string) error {
	return c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&scalarRow{Key: key, Value: value}).Error
}
