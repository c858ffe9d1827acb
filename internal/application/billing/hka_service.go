package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/hka-connector/internal/application/dto"
	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
	infrahka "github.com/jhoicas/hka-connector/internal/infrastructure/hka"
	"github.com/jhoicas/hka-connector/internal/infrastructure/metrics"
	pkghka "github.com/jhoicas/hka-connector/pkg/hka"
)

// Nombres de las pasadas (logs, métricas, scheduler).
const (
	PassSend     = "send"
	PassDownload = "download"
)

// HKAServiceConfig parámetros de las pasadas.
type HKAServiceConfig struct {
	MaxRetries int
	BatchLimit int
}

// PassReport resumen de una pasada.
type PassReport struct {
	Pass       string
	Processed  int
	Accepted   int
	Rejected   int
	Failed     int
	Skipped    int
	Downloaded int
	Missing    int
	Duration   time.Duration
	Err        error // error al listar; las fallas por factura quedan en la factura
}

// ToDTO convierte el reporte a su forma HTTP.
func (r PassReport) ToDTO() dto.PassReportResponse {
	out := dto.PassReportResponse{
		Pass:       r.Pass,
		Processed:  r.Processed,
		Accepted:   r.Accepted,
		Rejected:   r.Rejected,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		Downloaded: r.Downloaded,
		Missing:    r.Missing,
		DurationMS: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// HKAService orquesta el envío de comprobantes a HKA y la descarga de sus artefactos:
//
//	listar → credenciales por empresa → construir → enviar → transición → persistir
//
// Las pasadas son secuenciales y ningún error de una factura detiene el lote:
// todo termina registrado en la factura o en el log.
type HKAService struct {
	invoiceRepo    repository.InvoiceRepository
	attachmentRepo repository.AttachmentRepository
	companyRepo    repository.CompanyRepository
	tx             HKATxRunner
	gateway        HKAGateway
	builder        *domainhka.PayloadBuilder
	cfg            HKAServiceConfig
	log            zerolog.Logger

	extractNotes NotesExtractor
	preview      PreviewPDFGenerator
	now          func() time.Time
}

// NewHKAService construye el servicio con sus dependencias obligatorias.
func NewHKAService(
	invoiceRepo repository.InvoiceRepository,
	attachmentRepo repository.AttachmentRepository,
	companyRepo repository.CompanyRepository,
	tx HKATxRunner,
	gateway HKAGateway,
	builder *domainhka.PayloadBuilder,
	cfg HKAServiceConfig,
	log zerolog.Logger,
) *HKAService {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BatchLimit < 1 {
		cfg.BatchLimit = 100
	}
	return &HKAService{
		invoiceRepo:    invoiceRepo,
		attachmentRepo: attachmentRepo,
		companyRepo:    companyRepo,
		tx:             tx,
		gateway:        gateway,
		builder:        builder,
		cfg:            cfg,
		log:            log,
		now:            time.Now,
	}
}

// WithNotesExtractor activa la extracción de información adicional desde las notas.
func (s *HKAService) WithNotesExtractor(fn NotesExtractor) *HKAService {
	s.extractNotes = fn
	return s
}

// WithPreviewGenerator habilita PreviewPDF.
func (s *HKAService) WithPreviewGenerator(g PreviewPDFGenerator) *HKAService {
	s.preview = g
	return s
}

// WithClock reemplaza el reloj (tests).
func (s *HKAService) WithClock(now func() time.Time) *HKAService {
	s.now = now
	return s
}

// ── Pasada de envío ───────────────────────────────────────────────────────────

// SendPending envía todas las facturas en to_send. Idempotente por invocación:
// una factura ya enviada no vuelve a aparecer en la lista.
func (s *HKAService) SendPending(ctx context.Context) (report PassReport) {
	start := time.Now()
	report = PassReport{Pass: PassSend}
	defer func() { report.Duration = time.Since(start) }()

	invs, err := s.invoiceRepo.ListPendingSend(ctx, s.cfg.BatchLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("no se pudieron listar facturas pendientes de envío")
		report.Err = err
		return report
	}

	tenants := newTenantCache(s.companyRepo)
	for _, head := range invs {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Msg("pasada de envío interrumpida")
			break
		}
		report.Processed++

		inv, err := s.invoiceRepo.GetByID(ctx, head.ID)
		if err != nil || inv == nil {
			s.recordSendFailure(ctx, head, fmt.Sprintf("no se pudo cargar la factura: %v", err), &report)
			continue
		}
		creds, err := tenants.credentials(inv.CompanyID, inv.Issuer)
		if err != nil {
			if tenants.firstFailure(inv.CompanyID) {
				s.log.Error().Err(err).Str("company_id", inv.CompanyID).Msg("empresa mal configurada; se omiten sus facturas")
			}
			metrics.RecordSend(metrics.OutcomeSkipped)
			report.Skipped++
			continue
		}
		s.send(ctx, inv, creds, &report)
	}

	s.log.Info().
		Int("processed", report.Processed).
		Int("accepted", report.Accepted).
		Int("rejected", report.Rejected).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("pasada de envío HKA terminada")
	return report
}

// send construye, envía y persiste el resultado de una factura ya cargada.
func (s *HKAService) send(ctx context.Context, inv *entity.Invoice, creds infrahka.Credentials, report *PassReport) entity.HKAState {
	log := s.log.With().Str("invoice", inv.Name).Str("company_id", inv.CompanyID).Logger()

	s.enrichAdditionalInfo(inv)
	doc, err := s.builder.Build(inv)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo construir el documento")
		return s.recordSendFailure(ctx, inv, err.Error(), report)
	}

	res, err := s.gateway.Send(ctx, creds, doc)
	if err != nil {
		if ctx.Err() != nil {
			// apagado: no consumir un reintento por una cancelación propia
			log.Warn().Err(err).Msg("envío cancelado")
			return inv.HKA
		}
		log.Error().Err(err).Msg("fallo al enviar a HKA")
		return s.recordSendFailure(ctx, inv, err.Error(), report)
	}

	var ev domainhka.Event
	if res.Accepted {
		ev = domainhka.SendAccepted{RemoteDocNumber: res.RemoteDocNumber, XML: res.XML, At: s.now()}
	} else {
		ev = domainhka.SendRejected{Message: res.Message}
	}
	state, err := s.apply(ctx, inv, ev)
	if errors.Is(err, domain.ErrConflict) {
		// otro envío ya cambió la factura; su resultado prevalece
		log.Warn().Err(err).Bool("accepted", res.Accepted).Msg("la factura cambió de estado durante el envío; se descarta la respuesta")
		report.Skipped++
		metrics.RecordSend(metrics.OutcomeSkipped)
		return inv.HKA
	}
	if err != nil {
		log.Error().Err(err).Msg("HKA respondió pero no se pudo persistir el resultado")
		report.Failed++
		metrics.RecordSend(metrics.OutcomeFailed)
		return inv.HKA
	}

	if res.Accepted {
		report.Accepted++
		metrics.RecordSend(metrics.OutcomeAccepted)
		log.Info().Str("cpe", res.RemoteDocNumber).Msg("comprobante aceptado por HKA")
	} else {
		report.Rejected++
		metrics.RecordSend(metrics.OutcomeRejected)
		log.Warn().
			Str("message", res.Message).
			Int("retry_count", state.RetryCount).
			Bool("exhausted", domainhka.Exhausted(state, s.cfg.MaxRetries)).
			Err(domain.ErrRemoteRejection).
			Msg("comprobante rechazado por HKA")
	}
	return state
}

func (s *HKAService) recordSendFailure(ctx context.Context, inv *entity.Invoice, msg string, report *PassReport) entity.HKAState {
	report.Failed++
	metrics.RecordSend(metrics.OutcomeFailed)
	state, err := s.apply(ctx, inv, domainhka.SendFailed{Message: msg})
	if err != nil {
		s.log.Error().Err(err).Str("invoice", inv.Name).Msg("no se pudo registrar el fallo en la factura")
		return inv.HKA
	}
	return state
}

// enrichAdditionalInfo deriva la información adicional desde las notas si no vino explícita.
func (s *HKAService) enrichAdditionalInfo(inv *entity.Invoice) {
	if len(inv.AdditionalInfo) > 0 || inv.Notes == "" || s.extractNotes == nil {
		return
	}
	inv.AdditionalInfo = domainhka.ParseInfoBlocks(s.extractNotes(inv.Notes))
}

// ── Pasada de descarga ────────────────────────────────────────────────────────

// DownloadPending descarga los artefactos que falten de las facturas enviadas.
// Cada tipo se intenta por separado; un fallo en uno no impide los demás.
func (s *HKAService) DownloadPending(ctx context.Context) (report PassReport) {
	start := time.Now()
	report = PassReport{Pass: PassDownload}
	defer func() { report.Duration = time.Since(start) }()

	invs, err := s.invoiceRepo.ListPendingDownload(ctx, s.cfg.BatchLimit)
	if err != nil {
		s.log.Error().Err(err).Msg("no se pudieron listar facturas pendientes de descarga")
		report.Err = err
		return report
	}

	tenants := newTenantCache(s.companyRepo)
	for _, inv := range invs {
		if ctx.Err() != nil {
			s.log.Warn().Err(ctx.Err()).Msg("pasada de descarga interrumpida")
			break
		}
		report.Processed++
		log := s.log.With().Str("invoice", inv.Name).Str("company_id", inv.CompanyID).Logger()

		if inv.HKA.CPENumber == "" {
			log.Warn().Msg("factura enviada sin numeración HKA; no se puede descargar")
			report.Skipped++
			continue
		}
		creds, err := tenants.credentialsByID(ctx, inv.CompanyID)
		if err != nil {
			if tenants.firstFailure(inv.CompanyID) {
				log.Error().Err(err).Msg("empresa mal configurada; se omiten sus descargas")
			}
			report.Skipped++
			continue
		}

		fullID := domainhka.FullDocumentID(inv.DocumentTypeCode, inv.HKA.CPENumber)
		for _, kind := range inv.HKA.MissingArtifacts() {
			s.downloadOne(ctx, inv, creds, fullID, kind, &report, log)
		}
	}

	s.log.Info().
		Int("processed", report.Processed).
		Int("downloaded", report.Downloaded).
		Int("missing", report.Missing).
		Int("failed", report.Failed).
		Msg("pasada de descarga HKA terminada")
	return report
}

func (s *HKAService) downloadOne(ctx context.Context, inv *entity.Invoice, creds infrahka.Credentials, fullID string, kind entity.ArtifactKind, report *PassReport, log zerolog.Logger) {
	res, err := s.gateway.Download(ctx, creds, fullID, kind)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("fallo al descargar artefacto")
		metrics.RecordDownload(string(kind), metrics.OutcomeError)
		report.Failed++
		return
	}
	if !res.OK() {
		log.Info().Str("kind", string(kind)).Int("codigo", res.Code).Str("message", res.Message).Msg("artefacto aún no disponible")
		metrics.RecordDownload(string(kind), metrics.OutcomeMissing)
		report.Missing++
		return
	}
	if _, err := s.apply(ctx, inv, domainhka.ArtifactDownloaded{Kind: kind, Data: res.Content}); err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("no se pudo guardar el artefacto")
		metrics.RecordDownload(string(kind), metrics.OutcomeError)
		report.Failed++
		return
	}
	metrics.RecordDownload(string(kind), metrics.OutcomeOK)
	report.Downloaded++
}

// ── Operaciones manuales ──────────────────────────────────────────────────────

// SendInvoice envía una factura puntual. Solo facturas y notas de crédito, y
// solo si no fue enviada ni rechazada definitivamente. Desde HTTP se invoca a
// través de Scheduler.SendInvoice, que la excluye de la pasada de envío.
func (s *HKAService) SendInvoice(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error) {
	inv, err := s.load(ctx, companyID, invoiceID)
	if err != nil {
		return entity.HKAState{}, err
	}
	if !inv.IsSendable() {
		return inv.HKA, fmt.Errorf("%w: solo se envían facturas y notas de crédito (move_type %q)", domain.ErrInvalidInput, inv.MoveType)
	}
	if inv.HKA.Status == entity.HKAStatusNone {
		if inv.HKA, err = s.apply(ctx, inv, domainhka.Enqueue{}); err != nil {
			return entity.HKAState{}, err
		}
	}
	if inv.HKA.Status != entity.HKAStatusToSend {
		return inv.HKA, fmt.Errorf("%w: la factura está en estado %q", domain.ErrConflict, inv.HKA.Status)
	}
	creds, err := credentialsFor(inv.Issuer)
	if err != nil {
		return inv.HKA, err
	}
	var report PassReport
	state := s.send(ctx, inv, creds, &report)
	if report.Skipped > 0 {
		return state, fmt.Errorf("%w: la factura cambió de estado durante el envío", domain.ErrConflict)
	}
	return state, nil
}

// EnqueuePosted marca como to_send una factura de venta recién contabilizada.
// Las que no califican se devuelven sin cambios.
func (s *HKAService) EnqueuePosted(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error) {
	inv, err := s.load(ctx, companyID, invoiceID)
	if err != nil {
		return entity.HKAState{}, err
	}
	if !inv.IsQueueable() {
		return inv.HKA, nil
	}
	return s.apply(ctx, inv, domainhka.Enqueue{})
}

// Requeue devuelve a la cola una factura rechazada, con el contador en cero.
func (s *HKAService) Requeue(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error) {
	inv, err := s.load(ctx, companyID, invoiceID)
	if err != nil {
		return entity.HKAState{}, err
	}
	if inv.HKA.Status != entity.HKAStatusRejected {
		return inv.HKA, fmt.Errorf("%w: solo se reencolan facturas rechazadas (estado %q)", domain.ErrConflict, inv.HKA.Status)
	}
	return s.apply(ctx, inv, domainhka.Requeue{})
}

// Status devuelve el estado de integración y los adjuntos almacenados.
func (s *HKAService) Status(ctx context.Context, companyID, invoiceID string) (*dto.HKAStatusResponse, error) {
	inv, err := s.load(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	atts, err := s.attachmentRepo.ListByInvoice(ctx, inv.ID)
	if err != nil {
		return nil, fmt.Errorf("listar adjuntos: %w", err)
	}
	out := &dto.HKAStatusResponse{
		InvoiceID:    inv.ID,
		Name:         inv.Name,
		Status:       inv.HKA.Status,
		CPENumber:    inv.HKA.CPENumber,
		SentAt:       inv.HKA.SentAt,
		ErrorMessage: inv.HKA.ErrorMessage,
		RetryCount:   inv.HKA.RetryCount,
		Exhausted:    domainhka.Exhausted(inv.HKA, s.cfg.MaxRetries),
		Artifacts:    dto.HKAArtifactFlags{XML: inv.HKA.XMLFile, PDF: inv.HKA.PDFFile, CDR: inv.HKA.CDRFile},
		Attachments:  make([]dto.AttachmentResponse, 0, len(atts)),
	}
	for _, a := range atts {
		out.Attachments = append(out.Attachments, dto.AttachmentResponse{
			ID: a.ID, Name: a.Name, MimeType: a.MimeType, CreatedAt: a.CreatedAt,
		})
	}
	return out, nil
}

// PreviewPDF genera un PDF borrador con el documento que se enviaría a HKA.
// No cambia el estado de la factura.
func (s *HKAService) PreviewPDF(ctx context.Context, companyID, invoiceID string) (pdfBytes []byte, filename string, err error) {
	if s.preview == nil {
		return nil, "", fmt.Errorf("%w: vista previa PDF deshabilitada", domain.ErrConfiguration)
	}
	inv, err := s.load(ctx, companyID, invoiceID)
	if err != nil {
		return nil, "", err
	}
	s.enrichAdditionalInfo(inv)
	doc, err := s.builder.Build(inv)
	if err != nil {
		return nil, "", err
	}
	pdfBytes, err = s.preview.GeneratePreview(inv, doc)
	if err != nil {
		return nil, "", fmt.Errorf("preview: generar PDF: %w", err)
	}
	return pdfBytes, inv.Name + "-borrador.pdf", nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// load obtiene la factura completa y verifica que pertenezca a la empresa.
func (s *HKAService) load(ctx context.Context, companyID, invoiceID string) (*entity.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("obtener factura: %w", err)
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if companyID != "" && inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	return inv, nil
}

// apply calcula la transición y persiste estado y efectos en una sola transacción.
func (s *HKAService) apply(ctx context.Context, inv *entity.Invoice, ev domainhka.Event) (entity.HKAState, error) {
	next, effects := domainhka.Transition(inv.HKA, ev, s.cfg.MaxRetries)
	if next == inv.HKA && len(effects) == 0 {
		return next, nil
	}
	err := s.tx.RunHKA(ctx, func(invoiceRepo repository.InvoiceRepository, attachmentRepo repository.AttachmentRepository) error {
		for _, eff := range effects {
			store, ok := eff.(domainhka.StoreArtifact)
			if !ok {
				continue
			}
			att := &entity.Attachment{
				InvoiceID: inv.ID,
				Name:      inv.AttachmentName(store.Kind),
				MimeType:  store.Kind.MimeType(),
				Data:      store.Data,
				CreatedAt: s.now().UTC(),
			}
			if err := attachmentRepo.Save(ctx, att); err != nil && !errors.Is(err, domain.ErrConflict) {
				return fmt.Errorf("guardar adjunto %s: %w", att.Name, err)
			}
		}
		return invoiceRepo.UpdateHKAState(ctx, inv.ID, inv.HKA, next)
	})
	if err != nil {
		return inv.HKA, err
	}
	inv.HKA = next
	return next, nil
}

// credentialsFor valida credenciales y RUC del emisor.
func credentialsFor(c *entity.Company) (infrahka.Credentials, error) {
	creds, err := infrahka.CredentialsFor(c)
	if err != nil {
		return creds, err
	}
	if err := pkghka.ValidateRUC(c.RUC); err != nil {
		return infrahka.Credentials{}, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return creds, nil
}

// tenantCache resuelve credenciales una vez por empresa y pasada.
type tenantCache struct {
	companies repository.CompanyRepository
	creds     map[string]infrahka.Credentials
	errs      map[string]error
	reported  map[string]bool
}

func newTenantCache(companies repository.CompanyRepository) *tenantCache {
	return &tenantCache{
		companies: companies,
		creds:     map[string]infrahka.Credentials{},
		errs:      map[string]error{},
		reported:  map[string]bool{},
	}
}

// credentials usa el emisor ya cargado con la factura.
func (t *tenantCache) credentials(companyID string, issuer *entity.Company) (infrahka.Credentials, error) {
	if err, ok := t.errs[companyID]; ok {
		return infrahka.Credentials{}, err
	}
	if c, ok := t.creds[companyID]; ok {
		return c, nil
	}
	c, err := credentialsFor(issuer)
	if err != nil {
		t.errs[companyID] = err
		return c, err
	}
	t.creds[companyID] = c
	return c, nil
}

// credentialsByID carga la empresa solo si aún no se resolvió en esta pasada.
func (t *tenantCache) credentialsByID(ctx context.Context, companyID string) (infrahka.Credentials, error) {
	if err, ok := t.errs[companyID]; ok {
		return infrahka.Credentials{}, err
	}
	if c, ok := t.creds[companyID]; ok {
		return c, nil
	}
	company, err := t.companies.GetByID(ctx, companyID)
	if err != nil {
		// error de lectura: no se memoriza, la siguiente factura lo reintenta
		return infrahka.Credentials{}, fmt.Errorf("obtener empresa: %w", err)
	}
	// empresa inexistente: CredentialsFor(nil) la reporta como mal configurada
	return t.credentials(companyID, company)
}

// firstFailure devuelve true solo la primera vez por empresa (un log por tenant y pasada).
func (t *tenantCache) firstFailure(companyID string) bool {
	if t.reported[companyID] {
		return false
	}
	t.reported[companyID] = true
	return true
}
