package billing_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/hka-connector/internal/application/billing"
	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
	infrahka "github.com/jhoicas/hka-connector/internal/infrastructure/hka"
)

// ──────────────────────────────────────────────────────────────────────────────
// memStore: facturas + adjuntos en memoria, implementa los puertos y HKATxRunner
// ──────────────────────────────────────────────────────────────────────────────

type memStore struct {
	mu          sync.Mutex
	invoices    map[string]*entity.Invoice
	attachments []*entity.Attachment
}

func newMemStore(invs ...*entity.Invoice) *memStore {
	s := &memStore{invoices: map[string]*entity.Invoice{}}
	for _, inv := range invs {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return nil, nil
	}
	cp := *inv
	return &cp, nil
}

func (s *memStore) ListPendingSend(_ context.Context, limit int) ([]*entity.Invoice, error) {
	return s.list(limit, func(inv *entity.Invoice) bool { return inv.HKA.Status == entity.HKAStatusToSend })
}

func (s *memStore) ListPendingDownload(_ context.Context, limit int) ([]*entity.Invoice, error) {
	return s.list(limit, func(inv *entity.Invoice) bool {
		return inv.HKA.Status == entity.HKAStatusSent && len(inv.HKA.MissingArtifacts()) > 0
	})
}

func (s *memStore) list(limit int, keep func(*entity.Invoice) bool) ([]*entity.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range s.invoices {
		if !inv.IsQueueable() || !keep(inv) {
			continue
		}
		out = append(out, &entity.Invoice{
			ID: inv.ID, CompanyID: inv.CompanyID, Name: inv.Name,
			DocumentTypeCode: inv.DocumentTypeCode, HKA: inv.HKA,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompanyID != out[j].CompanyID {
			return out[i].CompanyID < out[j].CompanyID
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) UpdateHKAState(_ context.Context, invoiceID string, from, to entity.HKAState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[invoiceID]
	if !ok || inv.HKA.Status != from.Status || inv.HKA.RetryCount != from.RetryCount {
		return domain.ErrConflict
	}
	inv.HKA = to
	return nil
}

func (s *memStore) Save(_ context.Context, att *entity.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attachments {
		if a.InvoiceID == att.InvoiceID && a.Name == att.Name {
			return domain.ErrConflict
		}
	}
	cp := *att
	if cp.ID == "" {
		cp.ID = att.Name
	}
	s.attachments = append(s.attachments, &cp)
	return nil
}

func (s *memStore) ListByInvoice(_ context.Context, invoiceID string) ([]*entity.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entity.Attachment
	for _, a := range s.attachments {
		if a.InvoiceID == invoiceID {
			cp := *a
			cp.Data = nil
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memStore) RunHKA(_ context.Context, fn func(repository.InvoiceRepository, repository.AttachmentRepository) error) error {
	return fn(s, s)
}

func (s *memStore) state(id string) entity.HKAState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invoices[id].HKA
}

func (s *memStore) attachment(name string) *entity.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attachments {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// memCompanies resuelve empresas a partir de los emisores de las facturas del store.
type memCompanies struct{ store *memStore }

func (c memCompanies) GetByID(_ context.Context, id string) (*entity.Company, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	for _, inv := range c.store.invoices {
		if inv.CompanyID == id && inv.Issuer != nil {
			cp := *inv.Issuer
			return &cp, nil
		}
	}
	return nil, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// fakeGateway: HKA simulado a nivel de puerto
// ──────────────────────────────────────────────────────────────────────────────

type fakeGateway struct {
	mu        sync.Mutex
	sendFn    func(doc *domainhka.Document) (infrahka.SendResult, error)
	downloads map[entity.ArtifactKind]infrahka.DownloadResult
	sent      []*domainhka.Document
	fetched   []string
}

func (g *fakeGateway) Send(_ context.Context, _ infrahka.Credentials, doc *domainhka.Document) (infrahka.SendResult, error) {
	g.mu.Lock()
	g.sent = append(g.sent, doc)
	fn := g.sendFn
	g.mu.Unlock()
	if fn == nil {
		return infrahka.SendResult{Accepted: true, RemoteDocNumber: doc.Serie + "-" + doc.Correlativo}, nil
	}
	return fn(doc)
}

func (g *fakeGateway) Download(_ context.Context, creds infrahka.Credentials, fullID string, kind entity.ArtifactKind) (infrahka.DownloadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetched = append(g.fetched, creds.RUC+"-"+fullID+":"+string(kind))
	res, ok := g.downloads[kind]
	if !ok {
		return infrahka.DownloadResult{Code: 1, Message: "no disponible"}, nil
	}
	return res, nil
}

func (g *fakeGateway) sendCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

// ──────────────────────────────────────────────────────────────────────────────
// Datos
// ──────────────────────────────────────────────────────────────────────────────

var (
	fixedNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	issue    = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
)

const (
	companyA = "co-a"
	companyB = "co-b"
)

func company(id string) *entity.Company {
	return &entity.Company{
		ID: id, Name: "Empresa " + id, RUC: "20100066603",
		Street: "Av. Arequipa 100", City: "Lima", State: "Lima", CountryCode: "PE", Ubigeo: "150101",
		HKAUser: "user-" + id, HKAPassword: "secret", HKATestMode: true,
	}
}

func invoice(id, companyID, name string) *entity.Invoice {
	inv := &entity.Invoice{
		ID: id, CompanyID: companyID, Name: name, DocumentTypeCode: "01",
		MoveType: entity.MoveTypeOutInvoice, State: entity.MoveStatePosted, JournalType: entity.JournalTypeSale,
		InvoiceDate: issue, DueDate: issue, CurrencyCode: "PEN",
		Issuer:    company(companyID),
		Recipient: &entity.Partner{ID: "p-1", Name: "Cliente SAC", TaxIDType: "6", TaxID: "20601030013"},
		Lines: []entity.InvoiceLine{{
			Description: "Servicio", Quantity: decimal.NewFromInt(1),
			UnitPrice: decimal.NewFromInt(100), PriceSubtotal: decimal.NewFromInt(100),
			PriceTotal: decimal.NewFromInt(118), TaxRate: decimal.NewFromInt(18),
		}},
		HKA: entity.HKAState{Status: entity.HKAStatusToSend},
	}
	inv.SetTotals(decimal.NewFromInt(100), decimal.NewFromInt(18), decimal.NewFromInt(118))
	return inv
}

func newService(store *memStore, gw *fakeGateway) *billing.HKAService {
	builder := domainhka.NewPayloadBuilder(domainhka.BuilderConfig{Location: time.UTC}, func() time.Time { return fixedNow })
	return billing.NewHKAService(store, store, memCompanies{store}, store, gw, builder,
		billing.HKAServiceConfig{MaxRetries: 3, BatchLimit: 50}, zerolog.Nop(),
	).WithClock(func() time.Time { return fixedNow })
}
