package audit

import (
	"github.com/go-chi/chi/v5"

	"github.com/fairtrace/provenance/pkg/authz"
)

// Router serves the audit API. A non-nil authorizer guards both endpoints.
func Router(store *Store, authorizer authz.Authorizer) chi.Router {
	r := chi.NewRouter()
	list := ListEventsHandler(store)
	get := GetEventHandler(store)

	if authorizer != nil {
		r.With(authz.RequirePermission(authorizer, authz.ResourceAudit, authz.VerbList)).Get("/events", list)
		r.With(authz.RequirePermission(authorizer, authz.ResourceAudit, authz.VerbGet)).Get("/events/{eventId}", get)
	} else {
		r.Get("/events", list)
		r.Get("/events/{eventId}", get)
	}
	return r
}
