package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairtrace/provenance/pkg/ledger"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// statusFor maps a ledger failure code to its HTTP status.
func statusFor(code ledger.Code) int {
	switch code {
	case ledger.CodeInvalidInput, ledger.CodeInvalidTarget, ledger.CodeInvalidRole:
		return http.StatusBadRequest
	case ledger.CodeUnauthorized:
		return http.StatusForbidden
	case ledger.CodeNotFound:
		return http.StatusNotFound
	case ledger.CodeInvalidTransition, ledger.CodeDuplicateProduct, ledger.CodeAlreadyAuthorized,
		ledger.CodeNotAuthorized, ledger.CodeCannotRevokeAdmin:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError reports err with the status of its ledger code. Errors
// that are not ledger failures are storage faults and become 500 without
// exposing their text.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	var le *ledger.LedgerError
	var te *ledger.TransitionError
	switch {
	case errors.As(err, &te):
		writeError(w, statusFor(te.Code), string(te.Code), te.Message)
	case errors.As(err, &le):
		writeError(w, statusFor(le.Code), string(le.Code), le.Message)
	default:
		s.logger.Error("ledger operation failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
