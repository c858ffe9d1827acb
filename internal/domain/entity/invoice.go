package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de integración con HKA (hka_status).
const (
	HKAStatusNone     = ""         // Aún no encolada
	HKAStatusToSend   = "to_send"  // Pendiente de envío
	HKAStatusSent     = "sent"     // Aceptada por HKA, artefactos en descarga
	HKAStatusAccepted = "accepted" // Confirmada por canal externo
	HKAStatusRejected = "rejected" // Rechazada; terminal si agotó reintentos
)

// Tipos de movimiento contable que interesan al conector.
const (
	MoveTypeOutInvoice = "out_invoice"
	MoveTypeOutRefund  = "out_refund"
)

// Estados contables y tipos de diario.
const (
	MoveStateDraft  = "draft"
	MoveStatePosted = "posted"
	JournalTypeSale = "sale"
)

// HKAState campos de integración de la factura con HKA.
type HKAState struct {
	Status       string
	CPENumber    string // numeración asignada por HKA
	SentAt       *time.Time
	ErrorMessage string
	RetryCount   int
	XMLFile      bool
	PDFFile      bool
	CDRFile      bool
}

// HasArtifact informa si el artefacto ya fue almacenado.
func (s HKAState) HasArtifact(kind ArtifactKind) bool {
	switch kind {
	case ArtifactXML:
		return s.XMLFile
	case ArtifactPDF:
		return s.PDFFile
	case ArtifactCDR:
		return s.CDRFile
	}
	return false
}

// MissingArtifacts devuelve los artefactos pendientes de descarga, en orden XML, PDF, CDR.
func (s HKAState) MissingArtifacts() []ArtifactKind {
	var out []ArtifactKind
	for _, k := range ArtifactKinds {
		if !s.HasArtifact(k) {
			out = append(out, k)
		}
	}
	return out
}

// InfoEntry par título/valor de información adicional (personalizacionPDF).
type InfoEntry struct {
	Title string
	Value string
}

// Detraction datos de detracción SPOT. Amount es derivado: ver DetractionAmount.
type Detraction struct {
	Code          string          // Catálogo 54
	PaymentMethod string          // Catálogo 59
	Rate          decimal.Decimal // porcentaje, ej. 4
	Amount        decimal.Decimal
	BankAccount   string // cuenta del Banco de la Nación
}

// Invoice representa el comprobante electrónico con sus partes, líneas y estado HKA.
type Invoice struct {
	ID                string
	CompanyID         string
	Name              string // SERIE-CORRELATIVO, ej. F001-1
	DocumentTypeCode  string // Catálogo 01
	MoveType          string
	State             string
	JournalType       string
	OperationTypeCode string // Catálogo 51; vacío = valor por defecto configurado
	InvoiceDate       time.Time
	DueDate           time.Time
	CurrencyCode      string

	Issuer    *Company
	Recipient *Partner
	Lines     []InvoiceLine

	AmountUntaxed decimal.Decimal
	AmountTax     decimal.Decimal
	AmountTotal   decimal.Decimal

	PaymentTerm    *PaymentTerm
	Notes          string // texto enriquecido (HTML) tal como lo captura el usuario
	AdditionalInfo []InfoEntry
	Detraction     *Detraction

	HKA HKAState

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DetractionAmount calcula round(total * rate / 100, 2).
func DetractionAmount(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}

// SetTotals actualiza los totales y recalcula la detracción.
func (inv *Invoice) SetTotals(untaxed, tax, total decimal.Decimal) {
	inv.AmountUntaxed = untaxed.Round(2)
	inv.AmountTax = tax.Round(2)
	inv.AmountTotal = total.Round(2)
	inv.recomputeDetraction()
}

// SetDetraction asigna (o quita, con nil) la detracción y recalcula su monto.
func (inv *Invoice) SetDetraction(d *Detraction) {
	inv.Detraction = d
	inv.recomputeDetraction()
}

func (inv *Invoice) recomputeDetraction() {
	if inv.Detraction == nil {
		return
	}
	inv.Detraction.Amount = DetractionAmount(inv.AmountTotal, inv.Detraction.Rate)
}

// DetractionTotal devuelve el monto de detracción, cero si no aplica.
func (inv *Invoice) DetractionTotal() decimal.Decimal {
	if inv.Detraction == nil {
		return decimal.Zero
	}
	return inv.Detraction.Amount
}

// NetAmount total menos detracción: base de las cuotas.
func (inv *Invoice) NetAmount() decimal.Decimal {
	return inv.AmountTotal.Sub(inv.DetractionTotal())
}

// IsSendable informa si la factura puede enviarse manualmente (facturas y notas de crédito).
func (inv *Invoice) IsSendable() bool {
	return inv.MoveType == MoveTypeOutInvoice || inv.MoveType == MoveTypeOutRefund
}

// IsQueueable informa si al contabilizarse debe quedar en to_send.
func (inv *Invoice) IsQueueable() bool {
	return inv.MoveType == MoveTypeOutInvoice && inv.JournalType == JournalTypeSale && inv.State == MoveStatePosted
}

// AttachmentName nombre del adjunto para un artefacto: {Name}.{ext}.
func (inv *Invoice) AttachmentName(kind ArtifactKind) string {
	return inv.Name + "." + kind.Extension()
}
