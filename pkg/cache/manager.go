package cache

import (
	"context"
	"net/http"

	"github.com/fairtrace/provenance/pkg/ledger"
)

var _ ledger.Notifier = (*Manager)(nil)

// Manager owns the response cache of one API base path and invalidates it
// from ledger notifications.
type Manager struct {
	responses *LRUCache
	basePath  string
}

// NewManager returns nil when cfg is nil or disabled. A nil *Manager is
// valid and caches nothing.
func NewManager(cfg *Config, basePath string) *Manager {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	return &Manager{
		responses: NewLRUCache(cfg.MaxSize, cfg.TTL),
		basePath:  basePath,
	}
}

// Middleware caches the routes it wraps.
func (m *Manager) Middleware() func(http.Handler) http.Handler {
	if m == nil {
		return Middleware(nil)
	}
	return Middleware(m.responses)
}

// Notify drops every response the event may have changed.
func (m *Manager) Notify(_ context.Context, ev ledger.Event) {
	if m == nil {
		return
	}
	switch ev.Type {
	case ledger.EventProductRegistered, ledger.EventStageUpdated:
		m.responses.InvalidatePrefix(m.basePath + "/products/" + string(ev.Handle))
		m.responses.Invalidate(m.basePath + "/stats")
	case ledger.EventStakeholderAuthorized, ledger.EventStakeholderRevoked:
		m.responses.Invalidate(m.basePath + "/stakeholders/" + string(ev.Principal))
	default:
		m.responses.InvalidateAll()
	}
}

// InvalidateAll empties the cache.
func (m *Manager) InvalidateAll() {
	if m == nil {
		return
	}
	m.responses.InvalidateAll()
}
