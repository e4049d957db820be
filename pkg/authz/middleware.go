package authz

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// RequirePermission rejects requests whose caller the authorizer denies.
func RequirePermission(authorizer Authorizer, resource, verb string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			allowed, err := authorizer.Authorize(r.Context(), Request{
				Principal: principal,
				Resource:  resource,
				Verb:      verb,
			})
			switch {
			case err != nil:
				deny(w, http.StatusInternalServerError, "INTERNAL", "authorization check failed")
			case !allowed:
				deny(w, http.StatusForbidden, "FORBIDDEN",
					fmt.Sprintf("principal %q may not %s %s", principal, verb, resource))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

func deny(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
