package authz

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fairtrace/provenance/pkg/ledger"
)

// JWTConfig configures principal extraction from Bearer tokens.
type JWTConfig struct {
	// PrincipalClaim is the claim holding the principal, in dot notation for
	// nested claims. Default "sub".
	PrincipalClaim string

	// PublicKeyPath is a PEM encoded RSA public key. When empty, tokens are
	// decoded without signature verification; only use that behind a proxy
	// that has already verified them.
	PublicKeyPath string

	// Issuer and Audience are checked on verified tokens only.
	Issuer   string
	Audience string

	Logger *slog.Logger
}

// JWTIdentityMiddleware resolves the caller from "Authorization: Bearer".
// A missing, invalid or unverifiable token leaves the request without an
// identity.
func JWTIdentityMiddleware(cfg JWTConfig) (func(http.Handler) http.Handler, error) {
	if cfg.PrincipalClaim == "" {
		cfg.PrincipalClaim = "sub"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	var key *rsa.PublicKey
	if cfg.PublicKeyPath != "" {
		var err error
		key, err = loadRSAPublicKey(cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		cfg.Logger.Info("jwt identity: verifying RS256 signatures", "keyPath", cfg.PublicKeyPath)
	} else {
		cfg.Logger.Warn("jwt identity: no public key configured, tokens are not verified")
	}

	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512"})}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(parserOpts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := parseClaims(parser, raw, key)
			if err != nil {
				cfg.Logger.Debug("jwt identity: rejected token", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			principal := claimString(claims, cfg.PrincipalClaim)
			if principal == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithIdentity(r.Context(), Identity{
				Principal: ledger.Principal(principal),
				Groups:    claimStrings(claims, "groups"),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func loadRSAPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jwt public key %s: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("jwt public key is %T, want RSA", parsed)
	}
	return key, nil
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func parseClaims(parser *jwt.Parser, raw string, key *rsa.PublicKey) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if key == nil {
		if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
			return nil, err
		}
		return claims, nil
	}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// claimAt walks a dot separated claim path.
func claimAt(claims jwt.MapClaims, path string) (any, bool) {
	var cur any = map[string]any(claims)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func claimString(claims jwt.MapClaims, path string) string {
	v, _ := claimAt(claims, path)
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func claimStrings(claims jwt.MapClaims, path string) []string {
	v, _ := claimAt(claims, path)
	arr, _ := v.([]any)
	var out []string
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
