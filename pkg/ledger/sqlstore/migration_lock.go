package sqlstore

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"gorm.io/gorm"
)

const lockName = "provenance-ledger-migration"

// MigrationLocker serializes schema migrations across server replicas that
// share one database.
type MigrationLocker interface {
	// WithLock blocks until the lock is held, runs fn, then releases it.
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a lock for the dialect of db: a session advisory
// lock on PostgreSQL, a lock row elsewhere. A nil db gets a lock that always
// succeeds.
func NewMigrationLocker(db *gorm.DB) MigrationLocker {
	if db == nil {
		return noopLock{}
	}
	if db.Dialector.Name() == "postgres" {
		return &advisoryLock{db: db, key: int64(crc32.ChecksumIEEE([]byte(lockName)))}
	}
	// The lock table must exist before two callers race on their first insert.
	_ = db.AutoMigrate(&lockRow{})
	return &rowLock{
		db:       db,
		attempts: 30,
		interval: time.Second,
		staleAge: 5 * time.Minute,
	}
}

type noopLock struct{}

func (noopLock) WithLock(_ context.Context, fn func() error) error {
	return fn()
}

type advisoryLock struct {
	db  *gorm.DB
	key int64
}

func (l *advisoryLock) WithLock(ctx context.Context, fn func() error) error {
	if err := l.db.WithContext(ctx).Exec("SELECT pg_advisory_lock(?)", l.key).Error; err != nil {
		return fmt.Errorf("acquire advisory lock %s: %w", lockName, err)
	}
	defer l.db.Exec("SELECT pg_advisory_unlock(?)", l.key)
	return fn()
}

// lockRow is held by whoever inserted it. Rows older than staleAge belong to
// a crashed holder and are cleared before each attempt.
type lockRow struct {
	Name     string    `gorm:"primaryKey;column:name;size:64"`
	Holder   string    `gorm:"column:holder"`
	LockedAt time.Time `gorm:"column:locked_at"`
}

func (lockRow) TableName() string { return "ledger_migration_lock" }

type rowLock struct {
	db       *gorm.DB
	attempts int
	interval time.Duration
	staleAge time.Duration
}

func (l *rowLock) WithLock(ctx context.Context, fn func() error) error {
	holder, _ := os.Hostname()
	if holder == "" {
		holder = "unknown"
	}

	var lastErr error
	for i := 0; i < l.attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(l.interval):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		db := l.db.WithContext(ctx)
		db.Where("name = ? AND locked_at < ?", lockName, time.Now().Add(-l.staleAge)).Delete(&lockRow{})
		lastErr = db.Create(&lockRow{Name: lockName, Holder: holder, LockedAt: time.Now()}).Error
		if lastErr == nil {
			defer l.db.Where("name = ?", lockName).Delete(&lockRow{})
			return fn()
		}
	}
	return fmt.Errorf("acquire migration lock after %d attempts: %w", l.attempts, lastErr)
}
