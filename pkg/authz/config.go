package authz

import (
	"fmt"
	"net/http"
)

// Mode selects how the caller principal is resolved.
type Mode string

const (
	// ModeHeader trusts the X-Remote-User header set by an authenticating proxy.
	ModeHeader Mode = "header"
	// ModeJWT reads the principal from a Bearer token.
	ModeJWT Mode = "jwt"
)

// Middleware returns the identity middleware for mode.
func Middleware(mode Mode, jwtCfg JWTConfig) (func(http.Handler) http.Handler, error) {
	switch mode {
	case ModeHeader, "":
		return IdentityMiddleware(), nil
	case ModeJWT:
		return JWTIdentityMiddleware(jwtCfg)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}
