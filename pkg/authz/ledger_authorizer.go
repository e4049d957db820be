package authz

import (
	"context"
	"fmt"

	"github.com/fairtrace/provenance/pkg/ledger"
)

// AdminSource reports the ledger admin.
type AdminSource interface {
	Admin(ctx context.Context) (ledger.Principal, error)
}

// LedgerAuthorizer limits the audit log to the ledger admin. Other resources
// are open to any caller.
type LedgerAuthorizer struct {
	Ledger AdminSource
}

func (a *LedgerAuthorizer) Authorize(ctx context.Context, req Request) (bool, error) {
	if req.Resource != ResourceAudit {
		return true, nil
	}
	if req.Principal == "" {
		return false, nil
	}
	admin, err := a.Ledger.Admin(ctx)
	if err != nil {
		return false, fmt.Errorf("read ledger admin: %w", err)
	}
	return req.Principal == admin, nil
}
