package audit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// ListEventsHandler serves GET /events.
// Query params: source, eventType, actor, handle, pageSize, pageToken.
func ListEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ListFilter{
			Source:    q.Get("source"),
			EventType: q.Get("eventType"),
			Actor:     q.Get("actor"),
			Handle:    q.Get("handle"),
		}
		pageSize := 0
		if v, err := strconv.Atoi(q.Get("pageSize")); err == nil {
			pageSize = v
		}

		records, next, total, err := store.List(r.Context(), filter, pageSize, q.Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("failed to list audit events: %v", err))
			return
		}

		events := make([]eventResponse, len(records))
		for i := range records {
			events[i] = toResponse(&records[i])
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": next,
			"totalSize":     total,
		})
	}
}

// GetEventHandler serves GET /events/{eventId}.
func GetEventHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "eventId")
		rec, err := store.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL", fmt.Sprintf("failed to get audit event: %v", err))
			return
		}
		if rec == nil {
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("audit event %q not found", id))
			return
		}
		writeJSON(w, http.StatusOK, toResponse(rec))
	}
}

type eventResponse struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	EventType  string         `json:"eventType"`
	Actor      string         `json:"actor,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Handle     string         `json:"handle,omitempty"`
	RequestID  string         `json:"requestId,omitempty"`
	Action     string         `json:"action,omitempty"`
	Resource   string         `json:"resource,omitempty"`
	Outcome    string         `json:"outcome"`
	StatusCode int            `json:"statusCode,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

func toResponse(rec *EventRecord) eventResponse {
	return eventResponse{
		ID:         rec.ID,
		Source:     rec.Source,
		EventType:  rec.EventType,
		Actor:      rec.Actor,
		Subject:    rec.Subject,
		Handle:     rec.Handle,
		RequestID:  rec.RequestID,
		Action:     rec.Action,
		Resource:   rec.Resource,
		Outcome:    rec.Outcome,
		StatusCode: rec.StatusCode,
		Metadata:   map[string]any(rec.Metadata),
		CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
