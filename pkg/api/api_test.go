package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairtrace/provenance/pkg/cache"
	"github.com/fairtrace/provenance/pkg/ledger"
)

const admin = "root"

type testServer struct {
	t      *testing.T
	router http.Handler
	ledger *ledger.Ledger
}

func newTestServer(t *testing.T, opts ...ServerOption) *testServer {
	t.Helper()
	l, err := ledger.New(context.Background(), ledger.NewMemoryStore(), admin)
	require.NoError(t, err)
	return &testServer{t: t, router: NewServer(l, nil, opts...).Router(), ledger: l}
}

func (ts *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, BasePath+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Remote-User", user)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["code"]
}

func (ts *testServer) register(user, code string) ledger.Handle {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/products", user, map[string]any{
		"code":   code,
		"name":   "T-Shirt",
		"record": map[string]any{"location": "Gujarat", "carbonFootprint": 100, "fairWagesPaid": 500},
	})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]ledger.Handle](ts.t, rec)["handle"]
}

func TestAPI_ProductJourney(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/stakeholders", admin, map[string]string{"principal": "farmer", "role": "Farmer"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/stakeholders", admin, map[string]string{"principal": "mill", "role": "Mill"}).Code)

	h := ts.register("farmer", "SKU-1")
	require.Len(t, string(h), 64)

	rec = ts.do(http.MethodPost, "/products/"+string(h)+"/stages", "mill", map[string]any{
		"stage":  "Manufacturing",
		"record": map[string]any{"location": "Tiruppur", "carbonFootprint": 50, "fairWagesPaid": 200},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	prov := decode[provenanceResponse](t, rec)
	assert.Equal(t, ledger.StageManufacturing, prov.Product.CurrentStage)
	require.Len(t, prov.Journey, 2)
	assert.Equal(t, ledger.Principal("mill"), prov.Journey[1].Handler)

	totals := decode[ledger.Totals](t, ts.do(http.MethodGet, "/products/"+string(h)+"/totals", "", nil))
	assert.Equal(t, ledger.Totals{CarbonFootprint: 150, FairWagesPaid: 700, JourneyLength: 2}, totals)

	assert.Equal(t, uint64(150), decode[map[string]uint64](t, ts.do(http.MethodGet, "/products/"+string(h)+"/carbon", "", nil))["totalCarbonFootprint"])
	assert.Equal(t, uint64(700), decode[map[string]uint64](t, ts.do(http.MethodGet, "/products/"+string(h)+"/wages", "", nil))["totalFairWages"])
	assert.Equal(t, 2, decode[map[string]int](t, ts.do(http.MethodGet, "/products/"+string(h)+"/journey-length", "", nil))["journeyLength"])

	stats := decode[map[string]any](t, ts.do(http.MethodGet, "/stats", "", nil))
	assert.Equal(t, admin, stats["admin"])
	assert.EqualValues(t, 1, stats["productCount"])
}

func TestAPI_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	h := ts.register(admin, "SKU-1")
	advance := func(stage any) map[string]any { return map[string]any{"stage": stage} }

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		status int
		code   string
	}{
		{"anonymous register", http.MethodPost, "/products", "", map[string]string{"code": "X", "name": "Y"}, http.StatusForbidden, "UNAUTHORIZED"},
		{"outsider advance", http.MethodPost, "/products/" + string(h) + "/stages", "eve", advance("Sold"), http.StatusForbidden, "UNAUTHORIZED"},
		{"unknown product", http.MethodGet, "/products/deadbeef", "", nil, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"unknown product totals", http.MethodGet, "/products/deadbeef/totals", "", nil, http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"backward move", http.MethodPost, "/products/" + string(h) + "/stages", admin, advance("RawMaterial"), http.StatusConflict, "INVALID_TRANSITION"},
		{"out of range", http.MethodPost, "/products/" + string(h) + "/stages", admin, advance(9), http.StatusConflict, "INVALID_TRANSITION"},
		{"missing stage", http.MethodPost, "/products/" + string(h) + "/stages", admin, map[string]any{}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown stage name", http.MethodPost, "/products/" + string(h) + "/stages", admin, advance("Shipped"), http.StatusBadRequest, "INVALID_INPUT"},
		{"duplicate authorize", http.MethodPost, "/stakeholders", admin, map[string]string{"principal": admin, "role": "Admin"}, http.StatusConflict, "ALREADY_AUTHORIZED"},
		{"empty target", http.MethodPost, "/stakeholders", admin, map[string]string{"principal": "", "role": "Mill"}, http.StatusBadRequest, "INVALID_TARGET"},
		{"revoke admin", http.MethodDelete, "/stakeholders/" + admin, admin, nil, http.StatusConflict, "CANNOT_REVOKE_ADMIN"},
		{"revoke stranger", http.MethodDelete, "/stakeholders/eve", admin, nil, http.StatusConflict, "NOT_AUTHORIZED"},
		{"non-admin authorize", http.MethodPost, "/stakeholders", "eve", map[string]string{"principal": "eve", "role": "Mill"}, http.StatusForbidden, "UNAUTHORIZED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestAPI_DuplicateProduct(t *testing.T) {
	ts := newTestServer(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l, err := ledger.New(context.Background(), ledger.NewMemoryStore(), admin,
		ledger.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	ts.router = NewServer(l, nil).Router()

	ts.register(admin, "SKU-1")
	rec := ts.do(http.MethodPost, "/products", admin, map[string]string{"code": "SKU-1", "name": "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_PRODUCT", errorCode(t, rec))
}

func TestAPI_Stakeholders(t *testing.T) {
	ts := newTestServer(t)

	got := decode[stakeholderResponse](t, ts.do(http.MethodGet, "/stakeholders/"+admin, "", nil))
	assert.Equal(t, stakeholderResponse{Principal: admin, Authorized: true, Role: "Admin"}, got)

	require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/stakeholders", admin, map[string]string{"principal": "mill", "role": "Mill"}).Code)
	assert.True(t, decode[stakeholderResponse](t, ts.do(http.MethodGet, "/stakeholders/mill", "", nil)).Authorized)

	rec := ts.do(http.MethodDelete, "/stakeholders/mill", admin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.False(t, decode[stakeholderResponse](t, ts.do(http.MethodGet, "/stakeholders/mill", "", nil)).Authorized)
}

func TestAPI_EscapedPrincipals(t *testing.T) {
	m := cache.NewManager(&cache.Config{Enabled: true, TTL: time.Hour, MaxSize: 100}, BasePath)
	l, err := ledger.New(context.Background(), ledger.NewMemoryStore(), admin, ledger.WithNotifier(m))
	require.NoError(t, err)
	ts := &testServer{t: t, router: NewServer(l, nil, WithCache(m)).Router(), ledger: l}

	for _, p := range []ledger.Principal{"Jane Doe", "spiffe://org/mill", "100% organic"} {
		path := "/stakeholders/" + url.PathEscape(string(p))
		require.Equal(t, http.StatusCreated, ts.do(http.MethodPost, "/stakeholders", admin, map[string]string{"principal": string(p), "role": "Farmer"}).Code, p)

		rec := ts.do(http.MethodGet, path, "", nil)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), p)
		assert.Equal(t, stakeholderResponse{Principal: p, Authorized: true, Role: "Farmer"}, decode[stakeholderResponse](t, rec))
		assert.Equal(t, "HIT", ts.do(http.MethodGet, path, "", nil).Header().Get("X-Cache"), p)

		rec = ts.do(http.MethodDelete, path, admin, nil)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		authorized, err := l.IsAuthorized(context.Background(), p)
		require.NoError(t, err)
		assert.False(t, authorized, p)

		rec = ts.do(http.MethodGet, path, "", nil)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), p)
		assert.Equal(t, stakeholderResponse{Principal: p}, decode[stakeholderResponse](t, rec))
	}
}

func TestAPI_UndecodablePrincipal(t *testing.T) {
	ts := newTestServer(t)
	s := NewServer(ts.ledger, nil)

	req := httptest.NewRequest(http.MethodGet, BasePath+"/stakeholders/x", nil)
	req.URL.RawPath = BasePath + "/stakeholders/bad%zz"
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("principal", "bad%zz")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	s.stakeholderHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestAPI_BadBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, BasePath+"/products", bytes.NewBufferString("{not json"))
	req.Header.Set("X-Remote-User", admin)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", errorCode(t, rec))
}

func TestAPI_Stages(t *testing.T) {
	ts := newTestServer(t)
	var body struct {
		Stages []stageInfo `json:"stages"`
	}
	rec := ts.do(http.MethodGet, "/stages", "", nil)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Stages, 6)
	assert.Len(t, body.Stages[0].Next, 5)
	assert.Equal(t, ledger.StageSold, body.Stages[5].Stage)
	assert.Empty(t, body.Stages[5].Next)
}

func TestAPI_CachedReadsSeeAdvances(t *testing.T) {
	m := cache.NewManager(&cache.Config{Enabled: true, TTL: time.Hour, MaxSize: 100}, BasePath)
	l, err := ledger.New(context.Background(), ledger.NewMemoryStore(), admin, ledger.WithNotifier(m))
	require.NoError(t, err)
	ts := &testServer{t: t, router: NewServer(l, nil, WithCache(m)).Router(), ledger: l}

	h := ts.register(admin, "SKU-1")
	path := "/products/" + string(h) + "/totals"
	assert.Equal(t, "MISS", ts.do(http.MethodGet, path, "", nil).Header().Get("X-Cache"))
	assert.Equal(t, "HIT", ts.do(http.MethodGet, path, "", nil).Header().Get("X-Cache"))

	require.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/products/"+string(h)+"/stages", admin, map[string]any{"stage": "Sold"}).Code)
	rec := ts.do(http.MethodGet, path, "", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 2, decode[ledger.Totals](t, rec).JourneyLength)
}

type brokenStore struct {
	*ledger.MemoryStore
}

func (brokenStore) View(context.Context, func(ledger.Reader) error) error {
	return errors.New("disk on fire")
}

func TestAPI_StorageFailureIsInternal(t *testing.T) {
	l, err := ledger.New(context.Background(), brokenStore{ledger.NewMemoryStore()}, admin)
	require.NoError(t, err)
	ts := &testServer{t: t, router: NewServer(l, nil).Router(), ledger: l}

	rec := ts.do(http.MethodGet, "/products/abc", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "INTERNAL", body["code"])
	assert.NotContains(t, body["message"], "disk on fire")
}

func TestAPI_Health(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ready", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "not_configured", checks["database"].(map[string]any)["status"])
}

func TestStatusFor(t *testing.T) {
	for code, want := range map[ledger.Code]int{
		ledger.CodeInvalidInput:      400,
		ledger.CodeInvalidRole:       400,
		ledger.CodeUnauthorized:      403,
		ledger.CodeNotFound:          404,
		ledger.CodeCannotRevokeAdmin: 409,
		ledger.Code("SOMETHING"):     500,
	} {
		assert.Equal(t, want, statusFor(code), fmt.Sprint(code))
	}
}
