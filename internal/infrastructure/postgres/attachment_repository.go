package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
)

var _ repository.AttachmentRepository = (*AttachmentRepo)(nil)

// AttachmentRepo adjuntos binarios (XML, PDF, CDR) en la tabla attachments.
type AttachmentRepo struct {
	q Querier
}

// NewAttachmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewAttachmentRepository(q Querier) *AttachmentRepo {
	return &AttachmentRepo{q: q}
}

// Save inserta el adjunto. Un mismo nombre por factura solo se guarda una vez:
// el repetido no se inserta y devuelve domain.ErrConflict sin abortar la
// transacción en curso.
func (r *AttachmentRepo) Save(ctx context.Context, att *entity.Attachment) error {
	if att.ID == "" {
		att.ID = uuid.New().String()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO attachments (id, invoice_id, name, mime_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (invoice_id, name) DO NOTHING`
	tag, err := r.q.Exec(ctx, query, att.ID, att.InvoiceID, att.Name, att.MimeType, att.Data, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: adjunto %s ya existe", domain.ErrConflict, att.Name)
	}
	return nil
}

// ListByInvoice devuelve los metadatos de los adjuntos de la factura (sin Data).
func (r *AttachmentRepo) ListByInvoice(ctx context.Context, invoiceID string) ([]*entity.Attachment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, name, mime_type, created_at
		FROM attachments WHERE invoice_id = $1 ORDER BY created_at, name`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	var list []*entity.Attachment
	for rows.Next() {
		var a entity.Attachment
		if err := rows.Scan(&a.ID, &a.InvoiceID, &a.Name, &a.MimeType, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
