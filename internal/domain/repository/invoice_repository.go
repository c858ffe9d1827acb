package repository

import (
	"context"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// InvoiceRepository define el puerto de persistencia de facturas para el conector HKA.
type InvoiceRepository interface {
	// GetByID devuelve la factura completa (emisor, receptor, líneas en orden,
	// término de pago, detracción). nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// ListPendingSend facturas en to_send, out_invoice, diario de ventas y contabilizadas.
	// Solo cabecera: ID, CompanyID, Name y estado HKA.
	ListPendingSend(ctx context.Context, limit int) ([]*entity.Invoice, error)
	// ListPendingDownload facturas en sent a las que les falta al menos un artefacto.
	ListPendingDownload(ctx context.Context, limit int) ([]*entity.Invoice, error)
	// UpdateHKAState persiste todos los campos de integración (hka_*) solo si la
	// factura sigue en el estado leído (status y retry_count de from). Si otro
	// proceso la cambió entretanto devuelve domain.ErrConflict.
	UpdateHKAState(ctx context.Context, invoiceID string, from, to entity.HKAState) error
}
