package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fairtrace/provenance/pkg/ledger"
)

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestMiddleware(t *testing.T) {
	calls := 0
	h := Middleware(NewLRUCache(10, time.Minute))(countingHandler(&calls, http.StatusOK))

	if got := serve(h, http.MethodGet, "/p/h1").Header().Get("X-Cache"); got != "MISS" {
		t.Fatalf("first request X-Cache = %q, want MISS", got)
	}
	rec := serve(h, http.MethodGet, "/p/h1")
	if got := rec.Header().Get("X-Cache"); got != "HIT" {
		t.Fatalf("second request X-Cache = %q, want HIT", got)
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected cached body %q", rec.Body.String())
	}
	serve(h, http.MethodGet, "/p/h1?x=1")
	serve(h, http.MethodPost, "/p/h1")
	serve(h, http.MethodPost, "/p/h1")
	if calls != 4 {
		t.Fatalf("handler calls = %d, want 4", calls)
	}
}

func TestMiddleware_Non200NotCached(t *testing.T) {
	calls := 0
	h := Middleware(NewLRUCache(10, time.Minute))(countingHandler(&calls, http.StatusNotFound))
	serve(h, http.MethodGet, "/p/missing")
	serve(h, http.MethodGet, "/p/missing")
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
}

func TestMiddleware_NilCache(t *testing.T) {
	calls := 0
	h := Middleware(nil)(countingHandler(&calls, http.StatusOK))
	rec := serve(h, http.MethodGet, "/p/h1")
	serve(h, http.MethodGet, "/p/h1")
	if calls != 2 || rec.Header().Get("X-Cache") != "" {
		t.Fatalf("expected pass-through, calls %d header %q", calls, rec.Header().Get("X-Cache"))
	}
}

func TestManager_InvalidatesFromLedgerEvents(t *testing.T) {
	const base = "/api/provenance/v1"
	m := NewManager(&Config{Enabled: true, TTL: time.Minute, MaxSize: 10}, base)

	calls := 0
	h := m.Middleware()(countingHandler(&calls, http.StatusOK))
	for _, target := range []string{base + "/products/h1", base + "/products/h1/totals", base + "/products/h2", base + "/stats", base + "/stakeholders/mill"} {
		serve(h, http.MethodGet, target)
	}
	if m.responses.Size() != 5 {
		t.Fatalf("size = %d, want 5", m.responses.Size())
	}

	stage := ledger.StageManufacturing
	m.Notify(context.Background(), ledger.Event{Type: ledger.EventStageUpdated, Handle: "h1", Stage: &stage})
	if m.responses.Size() != 2 {
		t.Fatalf("after StageUpdated size = %d, want 2", m.responses.Size())
	}

	m.Notify(context.Background(), ledger.Event{Type: ledger.EventStakeholderRevoked, Principal: "mill"})
	if m.responses.Size() != 1 {
		t.Fatalf("after StakeholderRevoked size = %d, want 1", m.responses.Size())
	}
	if _, ok := m.responses.Get(base + "/products/h2"); !ok {
		t.Fatal("expected unrelated product kept")
	}
}

func TestManager_EscapedPrincipals(t *testing.T) {
	const base = "/api/provenance/v1"
	m := NewManager(&Config{Enabled: true, TTL: time.Minute, MaxSize: 10}, base)

	calls := 0
	h := m.Middleware()(countingHandler(&calls, http.StatusOK))
	for _, tt := range []struct {
		principal ledger.Principal
		target    string
	}{
		{"Jane Doe", base + "/stakeholders/Jane%20Doe"},
		{"spiffe://org/mill", base + "/stakeholders/spiffe:%2F%2Forg%2Fmill"},
	} {
		serve(h, http.MethodGet, tt.target)
		if got := serve(h, http.MethodGet, tt.target).Header().Get("X-Cache"); got != "HIT" {
			t.Fatalf("%s: X-Cache = %q before revoke, want HIT", tt.principal, got)
		}
		m.Notify(context.Background(), ledger.Event{Type: ledger.EventStakeholderRevoked, Principal: tt.principal})
		if got := serve(h, http.MethodGet, tt.target).Header().Get("X-Cache"); got != "MISS" {
			t.Fatalf("%s: X-Cache = %q after revoke, want MISS", tt.principal, got)
		}
	}
}

func TestMiddleware_QueryBypassesCache(t *testing.T) {
	calls := 0
	c := NewLRUCache(10, time.Minute)
	h := Middleware(c)(countingHandler(&calls, http.StatusOK))
	serve(h, http.MethodGet, "/p/h1?verbose=1")
	rec := serve(h, http.MethodGet, "/p/h1?verbose=1")
	if calls != 2 || rec.Header().Get("X-Cache") != "" || c.Size() != 0 {
		t.Fatalf("expected bypass, calls %d header %q size %d", calls, rec.Header().Get("X-Cache"), c.Size())
	}
}

func TestNewManager_Disabled(t *testing.T) {
	m := NewManager(DefaultConfig(), "/api")
	if m != nil {
		t.Fatal("expected nil manager for disabled config")
	}
	m.Notify(context.Background(), ledger.Event{Type: ledger.EventStageUpdated})
	m.InvalidateAll()

	calls := 0
	h := m.Middleware()(countingHandler(&calls, http.StatusOK))
	serve(h, http.MethodGet, "/x")
	serve(h, http.MethodGet, "/x")
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}
