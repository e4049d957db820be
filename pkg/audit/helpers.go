package audit

import (
	"net/http"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	mutatingMethods = mapset.NewSet(http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)
	healthPaths     = mapset.NewSet("/livez", "/readyz", "/healthz")
)

// shouldAudit reports whether a request changes state. Reads and health
// checks are never audited.
func shouldAudit(method, path string) bool {
	return !healthPaths.Contains(path) && mutatingMethods.Contains(method)
}

// apiPath splits /api/{service}/{version}/{resource}/{id}/{sub}... into the
// parts after the version.
func apiPath(path string) (resource, id, sub string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 || parts[0] != "api" {
		return "", "", ""
	}
	parts = parts[3:]
	resource = parts[0]
	if len(parts) > 1 {
		id = parts[1]
	}
	if len(parts) > 2 {
		sub = parts[2]
	}
	return resource, id, sub
}

// actionVerb names a request by the ledger operation it invokes, falling
// back to the HTTP method.
func actionVerb(method, path string) string {
	resource, id, sub := apiPath(path)
	switch {
	case resource == "stakeholders" && method == http.MethodPost && id == "":
		return "authorize"
	case resource == "stakeholders" && method == http.MethodDelete && id != "":
		return "revoke"
	case resource == "products" && method == http.MethodPost && id == "":
		return "register"
	case resource == "products" && method == http.MethodPost && sub == "stages":
		return "advance"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut:
		return "update"
	case http.MethodPatch:
		return "patch"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// outcomeFromStatus maps an HTTP status to an audit outcome.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeFailure
	}
}
