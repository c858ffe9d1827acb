package billing_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hka-connector/internal/application/billing"
	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	infrahka "github.com/jhoicas/hka-connector/internal/infrastructure/hka"
)

// ──────────────────────────────────────────────────────────────────────────────
// Escenario completo: envío aceptado → descarga parcial → descarga completa
// ──────────────────────────────────────────────────────────────────────────────

func TestHKAService_EscenarioCompleto(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(invoice("inv-1", companyA, "F001-1"))
	gw := &fakeGateway{
		sendFn: func(doc *domainhka.Document) (infrahka.SendResult, error) {
			return infrahka.SendResult{Accepted: true, RemoteDocNumber: "F001-00000001", XML: []byte("<Invoice/>")}, nil
		},
		downloads: map[entity.ArtifactKind]infrahka.DownloadResult{
			entity.ArtifactPDF: {Code: 0, Content: []byte("%PDF")},
		},
	}
	svc := newService(store, gw)

	// 1. envío
	rep := svc.SendPending(ctx)
	assert.Equal(t, 1, rep.Processed)
	assert.Equal(t, 1, rep.Accepted)
	assert.NoError(t, rep.Err)

	st := store.state("inv-1")
	assert.Equal(t, entity.HKAStatusSent, st.Status)
	assert.Equal(t, "F001-00000001", st.CPENumber)
	require.NotNil(t, st.SentAt)
	assert.Equal(t, fixedNow, *st.SentAt)
	assert.Zero(t, st.RetryCount)
	assert.True(t, st.XMLFile)

	xml := store.attachment("F001-1.xml")
	require.NotNil(t, xml)
	assert.Equal(t, "application/xml", xml.MimeType)
	assert.Equal(t, []byte("<Invoice/>"), xml.Data)

	// una segunda pasada no reenvía
	svc.SendPending(ctx)
	assert.Equal(t, 1, gw.sendCount())

	// 2. descarga: PDF disponible, CDR todavía no
	rep = svc.DownloadPending(ctx)
	assert.Equal(t, 1, rep.Downloaded)
	assert.Equal(t, 1, rep.Missing)
	st = store.state("inv-1")
	assert.True(t, st.PDFFile)
	assert.False(t, st.CDRFile)
	assert.Equal(t, []string{
		"20100066603-01-F001-00000001:PDF",
		"20100066603-01-F001-00000001:CDR",
	}, gw.fetched, "solo se piden los artefactos que faltan")
	pdf := store.attachment("F001-1.pdf")
	require.NotNil(t, pdf)
	assert.Equal(t, "application/pdf", pdf.MimeType)

	// 3. el CDR aparece en la siguiente pasada
	gw.downloads[entity.ArtifactCDR] = infrahka.DownloadResult{Code: 0, Content: []byte("PK")}
	rep = svc.DownloadPending(ctx)
	assert.Equal(t, 1, rep.Downloaded)
	st = store.state("inv-1")
	assert.True(t, st.CDRFile)
	assert.Equal(t, entity.HKAStatusSent, st.Status, "sent no se promueve a accepted")
	cdr := store.attachment("F001-1.zip")
	require.NotNil(t, cdr)
	assert.Equal(t, "application/zip", cdr.MimeType)

	// 4. ya no queda nada por descargar
	rep = svc.DownloadPending(ctx)
	assert.Zero(t, rep.Processed)
}

// ──────────────────────────────────────────────────────────────────────────────
// Rechazos y fallos
// ──────────────────────────────────────────────────────────────────────────────

func TestHKAService_TresRechazosDejanLaFacturaRechazada(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(invoice("inv-1", companyA, "F001-1"))
	gw := &fakeGateway{sendFn: func(*domainhka.Document) (infrahka.SendResult, error) {
		return infrahka.SendResult{Accepted: false, Message: "2800 - RUC del receptor no válido"}, nil
	}}
	svc := newService(store, gw)

	for i := 0; i < 3; i++ {
		rep := svc.SendPending(ctx)
		assert.Equal(t, 1, rep.Rejected, "pasada %d", i+1)
	}
	st := store.state("inv-1")
	assert.Equal(t, entity.HKAStatusRejected, st.Status)
	assert.Equal(t, 3, st.RetryCount)
	assert.Equal(t, "2800 - RUC del receptor no válido", st.ErrorMessage)

	rep := svc.SendPending(ctx)
	assert.Zero(t, rep.Processed)
	assert.Equal(t, 3, gw.sendCount())
}

func TestHKAService_ErrorDeTransporteConsumeReintento(t *testing.T) {
	store := newMemStore(invoice("inv-1", companyA, "F001-1"))
	gw := &fakeGateway{sendFn: func(*domainhka.Document) (infrahka.SendResult, error) {
		return infrahka.SendResult{}, errors.Join(domain.ErrTransport, errors.New("connection reset"))
	}}
	svc := newService(store, gw)

	rep := svc.SendPending(context.Background())
	assert.Equal(t, 1, rep.Failed)

	st := store.state("inv-1")
	assert.Equal(t, entity.HKAStatusToSend, st.Status)
	assert.Equal(t, 1, st.RetryCount)
	assert.Contains(t, st.ErrorMessage, "connection reset")
}

func TestHKAService_FacturaMalFormadaNoDetieneElLote(t *testing.T) {
	bad := invoice("inv-1", companyA, "F0011")
	good := invoice("inv-2", companyA, "F001-2")
	store := newMemStore(bad, good)
	gw := &fakeGateway{}
	svc := newService(store, gw)

	rep := svc.SendPending(context.Background())
	assert.Equal(t, 2, rep.Processed)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Accepted)

	assert.Equal(t, 1, store.state("inv-1").RetryCount)
	assert.Equal(t, entity.HKAStatusSent, store.state("inv-2").Status)
	assert.Equal(t, 1, gw.sendCount())
}

func TestHKAService_EmpresaSinCredencialesSeOmite(t *testing.T) {
	orphan := invoice("inv-1", companyA, "F001-1")
	orphan.Issuer.HKAPassword = ""
	badRUC := invoice("inv-2", companyB, "F001-2")
	badRUC.Issuer.RUC = "20100066604"
	store := newMemStore(orphan, badRUC)
	gw := &fakeGateway{}
	svc := newService(store, gw)

	rep := svc.SendPending(context.Background())
	assert.Equal(t, 2, rep.Skipped)
	assert.Zero(t, gw.sendCount())
	assert.Equal(t, entity.HKAState{Status: entity.HKAStatusToSend}, store.state("inv-1"), "la factura no se toca")
	assert.Equal(t, entity.HKAState{Status: entity.HKAStatusToSend}, store.state("inv-2"))
}

func TestHKAService_InformacionAdicionalDesdeNotas(t *testing.T) {
	inv := invoice("inv-1", companyA, "F001-1")
	inv.Notes = "<p>Ref: ABC123</p><p>sin separador</p>"
	store := newMemStore(inv)
	gw := &fakeGateway{}
	svc := newService(store, gw).WithNotesExtractor(func(html string) []string {
		return []string{"Ref: ABC123", "sin separador"}
	})

	svc.SendPending(context.Background())
	require.Equal(t, 1, gw.sendCount())
	assert.Equal(t, []domainhka.InfoAdicional{{Seccion: "1", Titulo: "Ref", Valor: "ABC123"}}, gw.sent[0].PersonalizacionPDF)
}

// ──────────────────────────────────────────────────────────────────────────────
// Operaciones manuales
// ──────────────────────────────────────────────────────────────────────────────

func TestHKAService_SendInvoice(t *testing.T) {
	ctx := context.Background()
	refund := invoice("nc-1", companyA, "FC01-1")
	refund.MoveType = entity.MoveTypeOutRefund
	refund.DocumentTypeCode = "07"
	refund.HKA = entity.HKAState{}
	entry := invoice("as-1", companyA, "AS-1")
	entry.MoveType = "entry"
	sent := invoice("inv-9", companyA, "F001-9")
	sent.HKA = entity.HKAState{Status: entity.HKAStatusSent, CPENumber: "F001-9"}
	store := newMemStore(refund, entry, sent)
	svc := newService(store, &fakeGateway{})

	st, err := svc.SendInvoice(ctx, companyA, "nc-1")
	require.NoError(t, err)
	assert.Equal(t, entity.HKAStatusSent, st.Status)
	assert.Equal(t, "FC01-1", st.CPENumber)

	_, err = svc.SendInvoice(ctx, companyA, "as-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.SendInvoice(ctx, companyA, "inv-9")
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.SendInvoice(ctx, companyB, "inv-9")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.SendInvoice(ctx, companyA, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHKAService_RespuestaTardiaNoPisaUnEnvioAceptado(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(invoice("inv-1", companyA, "F001-1"))
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	gw := &fakeGateway{sendFn: func(doc *domainhka.Document) (infrahka.SendResult, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
			return infrahka.SendResult{Accepted: false, Message: "documento duplicado"}, nil
		}
		return infrahka.SendResult{Accepted: true, RemoteDocNumber: "F001-1", XML: []byte("<Invoice/>")}, nil
	}}
	svc := newService(store, gw)

	done := make(chan billing.PassReport, 1)
	go func() { done <- svc.SendPending(ctx) }()
	<-entered

	st, err := svc.SendInvoice(ctx, companyA, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.HKAStatusSent, st.Status)

	close(release)
	rep := <-done
	assert.Equal(t, 1, rep.Skipped)
	assert.Zero(t, rep.Rejected)

	final := store.state("inv-1")
	assert.Equal(t, entity.HKAStatusSent, final.Status, "sent no se pierde por una respuesta tardía")
	assert.Equal(t, "F001-1", final.CPENumber)
	assert.True(t, final.XMLFile)
	assert.Zero(t, final.RetryCount)
	assert.Empty(t, final.ErrorMessage)
}

func TestHKAService_EnqueuePosted(t *testing.T) {
	ctx := context.Background()
	posted := invoice("inv-1", companyA, "F001-1")
	posted.HKA = entity.HKAState{}
	draft := invoice("inv-2", companyA, "F001-2")
	draft.HKA = entity.HKAState{}
	draft.State = entity.MoveStateDraft
	store := newMemStore(posted, draft)
	svc := newService(store, &fakeGateway{})

	st, err := svc.EnqueuePosted(ctx, companyA, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.HKAStatusToSend, st.Status)
	assert.Equal(t, entity.HKAStatusToSend, store.state("inv-1").Status)

	st, err = svc.EnqueuePosted(ctx, companyA, "inv-2")
	require.NoError(t, err)
	assert.Equal(t, entity.HKAStatusNone, st.Status)
}

func TestHKAService_Requeue(t *testing.T) {
	ctx := context.Background()
	rejected := invoice("inv-1", companyA, "F001-1")
	rejected.HKA = entity.HKAState{Status: entity.HKAStatusRejected, RetryCount: 3, ErrorMessage: "x"}
	store := newMemStore(rejected, invoice("inv-2", companyA, "F001-2"))
	svc := newService(store, &fakeGateway{})

	st, err := svc.Requeue(ctx, companyA, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, entity.HKAState{Status: entity.HKAStatusToSend}, st)

	_, err = svc.Requeue(ctx, companyA, "inv-2")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestHKAService_Status(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(invoice("inv-1", companyA, "F001-1"))
	gw := &fakeGateway{sendFn: func(*domainhka.Document) (infrahka.SendResult, error) {
		return infrahka.SendResult{Accepted: true, RemoteDocNumber: "F001-1", XML: []byte("<x/>")}, nil
	}}
	svc := newService(store, gw)
	svc.SendPending(ctx)

	out, err := svc.Status(ctx, companyA, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "sent", out.Status)
	assert.True(t, out.Artifacts.XML)
	assert.False(t, out.Exhausted)
	require.Len(t, out.Attachments, 1)
	assert.Equal(t, "F001-1.xml", out.Attachments[0].Name)
}

type fakePreview struct{ got *domainhka.Document }

func (f *fakePreview) GeneratePreview(_ *entity.Invoice, doc *domainhka.Document) ([]byte, error) {
	f.got = doc
	return []byte("%PDF-preview"), nil
}

func TestHKAService_PreviewPDF(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(invoice("inv-1", companyA, "F001-1"))
	svc := newService(store, &fakeGateway{})

	_, _, err := svc.PreviewPDF(ctx, companyA, "inv-1")
	assert.ErrorIs(t, err, domain.ErrConfiguration, "sin generador configurado")

	prev := &fakePreview{}
	svc.WithPreviewGenerator(prev)
	data, name, err := svc.PreviewPDF(ctx, companyA, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-preview"), data)
	assert.Equal(t, "F001-1-borrador.pdf", name)
	require.NotNil(t, prev.got)
	assert.Equal(t, "F001", prev.got.Serie)
	assert.Equal(t, entity.HKAStatusToSend, store.state("inv-1").Status, "la vista previa no cambia el estado")
}
