package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/fairtrace/provenance/pkg/ledger"
)

type identityCtxKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	Principal ledger.Principal
	Groups    []string
}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext returns the identity attached to ctx, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityCtxKey{}).(Identity)
	return id, ok
}

// PrincipalFromContext returns the caller principal, or the null principal
// when the request carried no identity.
func PrincipalFromContext(ctx context.Context) ledger.Principal {
	id, _ := IdentityFromContext(ctx)
	return id.Principal
}

// IdentityMiddleware reads X-Remote-User and the comma separated
// X-Remote-Group headers. A request without X-Remote-User proceeds with no
// identity, so the ledger rejects any mutation it attempts.
func IdentityMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := strings.TrimSpace(r.Header.Get("X-Remote-User"))
			if user == "" {
				next.ServeHTTP(w, r)
				return
			}

			var groups []string
			for _, g := range strings.Split(r.Header.Get("X-Remote-Group"), ",") {
				if g = strings.TrimSpace(g); g != "" {
					groups = append(groups, g)
				}
			}
			ctx := WithIdentity(r.Context(), Identity{Principal: ledger.Principal(user), Groups: groups})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
