package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/hka-connector/internal/application/billing"
	"github.com/jhoicas/hka-connector/internal/application/dto"
	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// hkaOperations operaciones manuales sobre una factura. Lo implementa *billing.HKAService.
type hkaOperations interface {
	EnqueuePosted(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error)
	Requeue(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error)
	Status(ctx context.Context, companyID, invoiceID string) (*dto.HKAStatusResponse, error)
	PreviewPDF(ctx context.Context, companyID, invoiceID string) ([]byte, string, error)
}

// passTrigger disparo manual de pasadas y envío puntual. Lo implementa
// *billing.Scheduler, que comparte el candado con el cron.
type passTrigger interface {
	RunSend(ctx context.Context) (billing.PassReport, bool)
	RunDownload(ctx context.Context) (billing.PassReport, bool)
	SendInvoice(ctx context.Context, companyID, invoiceID string) (entity.HKAState, bool, error)
}

var errSendPassRunning = errors.New("ya hay una pasada send en curso")

// HKAHandler maneja las peticiones HTTP de la integración con HKA (protegido).
type HKAHandler struct {
	ops    hkaOperations
	passes passTrigger
}

// NewHKAHandler construye el handler.
func NewHKAHandler(ops hkaOperations, passes passTrigger) *HKAHandler {
	return &HKAHandler{ops: ops, passes: passes}
}

// ── Pasadas ───────────────────────────────────────────────────────────────────

// RunSendPass ejecuta la pasada de envío de forma síncrona.
// POST /api/hka/passes/send
func (h *HKAHandler) RunSendPass(c *fiber.Ctx) error {
	report, ran := h.passes.RunSend(c.UserContext())
	return passResponse(c, report, ran)
}

// RunDownloadPass ejecuta la pasada de descarga de forma síncrona.
// POST /api/hka/passes/download
func (h *HKAHandler) RunDownloadPass(c *fiber.Ctx) error {
	report, ran := h.passes.RunDownload(c.UserContext())
	return passResponse(c, report, ran)
}

func passResponse(c *fiber.Ctx, report billing.PassReport, ran bool) error {
	if !ran {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "PASS_RUNNING", Message: "ya hay una pasada " + report.Pass + " en curso"})
	}
	return c.JSON(report.ToDTO())
}

// ── Facturas ──────────────────────────────────────────────────────────────────

// Status estado de integración y adjuntos de una factura.
// GET /api/hka/invoices/:id
func (h *HKAHandler) Status(c *fiber.Ctx) error {
	companyID, id, ok := invoiceTarget(c)
	if !ok {
		return nil
	}
	out, err := h.ops.Status(c.UserContext(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Send envía la factura a HKA en el momento. 409 PASS_RUNNING si la pasada
// de envío está en curso.
// POST /api/hka/invoices/:id/send
func (h *HKAHandler) Send(c *fiber.Ctx) error {
	return h.stateOp(c, func(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error) {
		st, ran, err := h.passes.SendInvoice(ctx, companyID, invoiceID)
		if err == nil && !ran {
			return st, errSendPassRunning
		}
		return st, err
	})
}

// Enqueue marca la factura como pendiente de envío.
// POST /api/hka/invoices/:id/enqueue
func (h *HKAHandler) Enqueue(c *fiber.Ctx) error {
	return h.stateOp(c, h.ops.EnqueuePosted)
}

// Requeue devuelve a la cola una factura rechazada.
// POST /api/hka/invoices/:id/requeue
func (h *HKAHandler) Requeue(c *fiber.Ctx) error {
	return h.stateOp(c, h.ops.Requeue)
}

// Preview descarga el PDF borrador.
// GET /api/hka/invoices/:id/preview.pdf
func (h *HKAHandler) Preview(c *fiber.Ctx) error {
	companyID, id, ok := invoiceTarget(c)
	if !ok {
		return nil
	}
	pdf, filename, err := h.ops.PreviewPDF(c.UserContext(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+filename+`"`)
	return c.Send(pdf)
}

func (h *HKAHandler) stateOp(c *fiber.Ctx, op func(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error)) error {
	companyID, id, ok := invoiceTarget(c)
	if !ok {
		return nil
	}
	st, err := op(c.UserContext(), companyID, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(dto.HKAStateResponse{
		InvoiceID:    id,
		Status:       st.Status,
		CPENumber:    st.CPENumber,
		SentAt:       st.SentAt,
		ErrorMessage: st.ErrorMessage,
		RetryCount:   st.RetryCount,
	})
}

// invoiceTarget empresa del token + id de la ruta. Con ok=false la respuesta de error ya está escrita.
func invoiceTarget(c *fiber.Ctx) (companyID, id string, ok bool) {
	companyID = GetCompanyID(c)
	if companyID == "" {
		_ = c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
		return "", "", false
	}
	id = c.Params("id")
	if id == "" {
		_ = c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
		return "", "", false
	}
	return companyID, id, true
}

// writeError traduce los errores de dominio a HTTP.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errSendPassRunning):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "PASS_RUNNING", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrConfiguration):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "HKA_CONFIGURATION", Message: err.Error()})
	case errors.Is(err, domain.ErrAuthentication), errors.Is(err, domain.ErrTransport):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "HKA_UNAVAILABLE", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
