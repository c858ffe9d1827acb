package repository

import (
	"context"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// AttachmentRepository almacén durable de archivos binarios asociados a facturas.
type AttachmentRepository interface {
	Save(ctx context.Context, att *entity.Attachment) error
	// ListByInvoice devuelve los adjuntos sin el contenido (Data vacío).
	ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Attachment, error)
}
