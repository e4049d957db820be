package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Authorize adds target to the stakeholder set with the given role. Only the
// admin may call it.
func (l *Ledger) Authorize(ctx context.Context, caller, target Principal, role string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var st *Stakeholder
	err := l.store.Update(ctx, func(tx Tx) error {
		if _, err := requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		if strings.TrimSpace(string(target)) == "" {
			return newError(CodeInvalidTarget, "target principal is required")
		}
		ok, err := authorized(ctx, tx, target)
		if err != nil {
			return err
		}
		if ok {
			return newError(CodeAlreadyAuthorized, "principal %q is already authorized", target)
		}
		if strings.TrimSpace(role) == "" {
			return newError(CodeInvalidRole, "role is required")
		}

		st = &Stakeholder{Principal: target, Role: role, AuthorizedAt: l.clock()}
		if err := tx.PutStakeholder(ctx, st); err != nil {
			return fmt.Errorf("put stakeholder: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("stakeholder authorized", "principal", target, "role", role, "by", caller)
	l.emit(ctx, Event{
		Type:      EventStakeholderAuthorized,
		Principal: target,
		Role:      role,
		Timestamp: st.AuthorizedAt,
	})
	return nil
}

// Revoke removes target from the stakeholder set. The admin itself can never
// be revoked.
func (l *Ledger) Revoke(ctx context.Context, caller, target Principal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.store.Update(ctx, func(tx Tx) error {
		admin, err := requireAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		ok, err := authorized(ctx, tx, target)
		if err != nil {
			return err
		}
		if !ok {
			return newError(CodeNotAuthorized, "principal %q is not authorized", target)
		}
		if target == admin {
			return newError(CodeCannotRevokeAdmin, "the admin %q cannot be revoked", target)
		}
		if err := tx.DeleteStakeholder(ctx, target); err != nil {
			return fmt.Errorf("delete stakeholder: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("stakeholder revoked", "principal", target, "by", caller)
	l.emit(ctx, Event{
		Type:      EventStakeholderRevoked,
		Principal: target,
		Timestamp: l.clock(),
	})
	return nil
}

// IsAuthorized reports whether p may mutate ledger state.
func (l *Ledger) IsAuthorized(ctx context.Context, p Principal) (bool, error) {
	return authorized(ctx, l.store, p)
}

// Stakeholder returns the stakeholder entry for p, or nil when p is not
// authorized.
func (l *Ledger) Stakeholder(ctx context.Context, p Principal) (*Stakeholder, error) {
	if p == "" {
		return nil, nil
	}
	st, err := l.store.Stakeholder(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("read stakeholder: %w", err)
	}
	return st, nil
}
