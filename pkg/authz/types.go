// Package authz resolves the caller identity of a request and guards the
// operator-facing endpoints that sit outside the ledger's own access rules.
package authz

import (
	"context"

	"github.com/fairtrace/provenance/pkg/ledger"
)

// Resource names guarded by an Authorizer.
const (
	ResourceAudit  = "audit"
	ResourceEvents = "events"
)

// Verb names guarded by an Authorizer.
const (
	VerbGet    = "get"
	VerbList   = "list"
	VerbStream = "stream"
)

// Request is one authorization check.
type Request struct {
	Principal ledger.Principal
	Resource  string
	Verb      string
}

// Authorizer decides whether a principal may act on a resource.
type Authorizer interface {
	Authorize(ctx context.Context, req Request) (bool, error)
}
