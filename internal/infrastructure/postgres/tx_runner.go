package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/hka-connector/internal/application/billing"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
)

var _ billing.HKATxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunHKA inicia una transacción, ejecuta fn con los repos de factura y adjuntos
// atados a la tx y hace Commit o Rollback. Estado HKA y adjuntos quedan juntos o no quedan.
func (r *TxRunner) RunHKA(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	attachmentRepo repository.AttachmentRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewInvoiceRepository(tx), NewAttachmentRepository(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
