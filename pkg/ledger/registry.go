package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Register creates a product at StageRawMaterial and writes its first
// journal record in the same update. The returned handle is the product's
// only external identifier.
func (l *Ledger) Register(ctx context.Context, caller Principal, in RegisterInput) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var product *Product
	err := l.store.Update(ctx, func(tx Tx) error {
		if err := requireAuthorized(ctx, tx, caller); err != nil {
			return err
		}
		if strings.TrimSpace(in.Code) == "" {
			return newError(CodeInvalidInput, "product code is required")
		}
		if strings.TrimSpace(in.Name) == "" {
			return newError(CodeInvalidInput, "product name is required")
		}
		if err := in.Record.validate(); err != nil {
			return err
		}

		count, err := tx.ProductCount(ctx)
		if err != nil {
			return fmt.Errorf("read product count: %w", err)
		}
		now := l.clock()
		h := l.handles(HandleInput{Code: in.Code, Time: now, Caller: caller, Sequence: count})

		existing, err := tx.Product(ctx, h)
		if err != nil {
			return fmt.Errorf("read product: %w", err)
		}
		if existing != nil && existing.Active {
			return newError(CodeDuplicateProduct, "product %s already registered", h)
		}

		product = &Product{
			Handle:       h,
			Code:         in.Code,
			Name:         in.Name,
			CurrentStage: StageRawMaterial,
			CreatedAt:    now,
			Registrar:    caller,
			Active:       true,
		}
		if err := tx.PutProduct(ctx, product); err != nil {
			return fmt.Errorf("put product: %w", err)
		}
		if err := tx.AppendRecord(ctx, h, in.Record.record(StageRawMaterial, caller, now)); err != nil {
			return fmt.Errorf("append initial record: %w", err)
		}
		if err := tx.SetProductCount(ctx, count+1); err != nil {
			return fmt.Errorf("set product count: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	l.logger.Info("product registered", "handle", product.Handle, "code", product.Code, "registrar", caller)
	stage := StageRawMaterial
	l.emit(ctx, Event{
		Type:      EventProductRegistered,
		Handle:    product.Handle,
		Name:      product.Name,
		Principal: caller,
		Timestamp: product.CreatedAt,
	})
	l.emit(ctx, Event{
		Type:      EventStageUpdated,
		Handle:    product.Handle,
		Stage:     &stage,
		Principal: caller,
		Location:  in.Record.Location,
		Timestamp: product.CreatedAt,
	})
	return product.Handle, nil
}
