package billing

import (
	"context"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
	infrahka "github.com/jhoicas/hka-connector/internal/infrastructure/hka"
)

// HKATxRunner ejecuta fn en una transacción con los repos que cambian juntos:
// estado HKA de la factura y sus adjuntos.
type HKATxRunner interface {
	RunHKA(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		attachmentRepo repository.AttachmentRepository,
	) error) error
}

// HKAGateway puerto de salida hacia The Factory HKA. La implementación
// concreta (infrahka.Client) gestiona el token; en tests se inyecta un fake.
type HKAGateway interface {
	Send(ctx context.Context, creds infrahka.Credentials, doc *domainhka.Document) (infrahka.SendResult, error)
	Download(ctx context.Context, creds infrahka.Credentials, fullDocumentID string, kind entity.ArtifactKind) (infrahka.DownloadResult, error)
}

// PreviewPDFGenerator genera el PDF borrador a partir del documento que se enviaría.
type PreviewPDFGenerator interface {
	GeneratePreview(inv *entity.Invoice, doc *domainhka.Document) ([]byte, error)
}

// NotesExtractor convierte las notas enriquecidas en bloques de texto plano.
type NotesExtractor func(html string) []string

var _ HKAGateway = (*infrahka.Client)(nil)
