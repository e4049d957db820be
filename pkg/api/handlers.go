package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/fairtrace/provenance/pkg/authz"
	"github.com/fairtrace/provenance/pkg/ledger"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, string(ledger.CodeInvalidInput), fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func caller(r *http.Request) ledger.Principal {
	return authz.PrincipalFromContext(r.Context())
}

// principalParam decodes the {principal} route parameter. chi matches on the
// escaped path whenever it differs from the decoded one, which leaves
// escapes such as %2F in the parameter.
func principalParam(w http.ResponseWriter, r *http.Request) (ledger.Principal, bool) {
	v := chi.URLParam(r, "principal")
	if r.URL.RawPath == "" {
		return ledger.Principal(v), true
	}
	p, err := url.PathUnescape(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(ledger.CodeInvalidInput), fmt.Sprintf("invalid principal %q: %v", v, err))
		return "", false
	}
	return ledger.Principal(p), true
}

func handleParam(r *http.Request) ledger.Handle {
	return ledger.Handle(chi.URLParam(r, "handle"))
}

type authorizeRequest struct {
	Principal ledger.Principal `json:"principal"`
	Role      string           `json:"role"`
}

type stakeholderResponse struct {
	Principal  ledger.Principal `json:"principal"`
	Authorized bool             `json:"authorized"`
	Role       string           `json:"role,omitempty"`
}

func (s *Server) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	var req authorizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.ledger.Authorize(r.Context(), caller(r), req.Principal, req.Role); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stakeholderResponse{Principal: req.Principal, Authorized: true, Role: req.Role})
}

func (s *Server) revokeHandler(w http.ResponseWriter, r *http.Request) {
	target, ok := principalParam(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Revoke(r.Context(), caller(r), target); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) stakeholderHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principalParam(w, r)
	if !ok {
		return
	}
	st, err := s.ledger.Stakeholder(r.Context(), p)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	resp := stakeholderResponse{Principal: p}
	if st != nil {
		resp.Authorized = true
		resp.Role = st.Role
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.RegisterInput
	if !decodeBody(w, r, &req) {
		return
	}
	h, err := s.ledger.Register(r.Context(), caller(r), req)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	w.Header().Set("Location", BasePath+"/products/"+string(h))
	writeJSON(w, http.StatusCreated, map[string]ledger.Handle{"handle": h})
}

type advanceRequest struct {
	Stage  *ledger.Stage      `json:"stage"`
	Record ledger.RecordInput `json:"record"`
}

type provenanceResponse struct {
	Product *ledger.Product         `json:"product"`
	Journey []ledger.TrackingRecord `json:"journey"`
}

func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Stage == nil {
		writeError(w, http.StatusBadRequest, string(ledger.CodeInvalidInput), "stage is required")
		return
	}
	h := handleParam(r)
	if err := s.ledger.Advance(r.Context(), caller(r), h, *req.Stage, req.Record); err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	s.writeProvenance(w, r, h)
}

func (s *Server) provenanceHandler(w http.ResponseWriter, r *http.Request) {
	s.writeProvenance(w, r, handleParam(r))
}

func (s *Server) writeProvenance(w http.ResponseWriter, r *http.Request, h ledger.Handle) {
	p, journey, err := s.ledger.Provenance(r.Context(), h)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, provenanceResponse{Product: p, Journey: journey})
}

func (s *Server) totalsHandler(w http.ResponseWriter, r *http.Request) {
	totals, err := s.ledger.Totals(r.Context(), handleParam(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func (s *Server) carbonHandler(w http.ResponseWriter, r *http.Request) {
	v, err := s.ledger.TotalCarbonFootprint(r.Context(), handleParam(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"totalCarbonFootprint": v})
}

func (s *Server) wagesHandler(w http.ResponseWriter, r *http.Request) {
	v, err := s.ledger.TotalFairWages(r.Context(), handleParam(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"totalFairWages": v})
}

func (s *Server) journeyLengthHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.ledger.JourneyLength(r.Context(), handleParam(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"journeyLength": n})
}

type stageInfo struct {
	Stage   ledger.Stage   `json:"stage"`
	Ordinal int            `json:"ordinal"`
	Next    []ledger.Stage `json:"next"`
}

// stagesHandler lists the stage machine: every stage and where it may move.
func (s *Server) stagesHandler(w http.ResponseWriter, _ *http.Request) {
	stages := ledger.Stages()
	out := make([]stageInfo, len(stages))
	for i, st := range stages {
		next := ledger.AllowedTransitions(st)
		if next == nil {
			next = []ledger.Stage{}
		}
		out[i] = stageInfo{Stage: st, Ordinal: int(st), Next: next}
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": out})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	admin, err := s.ledger.Admin(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	count, err := s.ledger.ProductCount(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admin": admin, "productCount": count})
}
