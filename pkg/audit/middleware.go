package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/fairtrace/provenance/pkg/authz"
)

type responseCapture struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rc *responseCapture) WriteHeader(code int) {
	if !rc.written {
		rc.statusCode = code
		rc.written = true
	}
	rc.ResponseWriter.WriteHeader(code)
}

func (rc *responseCapture) Write(b []byte) (int, error) {
	if !rc.written {
		rc.statusCode = http.StatusOK
		rc.written = true
	}
	return rc.ResponseWriter.Write(b)
}

// Middleware records every mutating request after its handler returns.
// A failed audit write never fails the request.
func Middleware(store *Store, cfg *Config, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if store == nil || cfg == nil || !cfg.Enabled || !shouldAudit(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			capture := &responseCapture{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			outcome := outcomeFromStatus(capture.statusCode)
			if outcome == OutcomeDenied && !cfg.LogDenied {
				return
			}

			ctx := r.Context()
			actor := string(authz.PrincipalFromContext(ctx))
			if actor == "" {
				actor = "anonymous"
			}
			resource, id, _ := apiPath(r.URL.Path)
			rec := &EventRecord{
				ID:         uuid.NewString(),
				Source:     SourceHTTP,
				EventType:  "request",
				Actor:      actor,
				RequestID:  middleware.GetReqID(ctx),
				Action:     actionVerb(r.Method, r.URL.Path),
				Resource:   resource,
				Outcome:    outcome,
				StatusCode: capture.statusCode,
				CreatedAt:  start,
				Metadata: JSONAny{
					"method":   r.Method,
					"path":     r.URL.Path,
					"duration": time.Since(start).String(),
				},
			}
			switch resource {
			case "products":
				rec.Handle = id
			case "stakeholders":
				rec.Subject = id
			}

			if err := store.Append(ctx, rec); err != nil {
				logger.Error("failed to write audit event", "error", err, "requestID", rec.RequestID)
			}
		})
	}
}
