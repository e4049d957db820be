package api

import (
	"net/http"
	"time"
)

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler reports ready when the database answers and the ledger has
// its admin.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	ready := true

	dbStatus := map[string]string{"status": "not_configured"}
	if s.db != nil {
		dbStatus["status"] = "up"
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			dbStatus["status"] = "down"
			dbStatus["error"] = err.Error()
			ready = false
		}
	}

	ledgerStatus := map[string]string{"status": "up"}
	if admin, err := s.ledger.Admin(r.Context()); err != nil {
		ledgerStatus["status"] = "down"
		ledgerStatus["error"] = err.Error()
		ready = false
	} else if admin == "" {
		ledgerStatus["status"] = "uninitialized"
		ready = false
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": map[string]any{
			"database": dbStatus,
			"ledger":   ledgerStatus,
		},
	})
}
