package hka

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	pkghka "github.com/jhoicas/hka-connector/pkg/hka"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

var hundred = decimal.NewFromInt(100)

// BuilderConfig valores de catálogo que antes se resolvían implícitamente.
type BuilderConfig struct {
	DefaultOperationType string         // "0101" si vacío
	ImmediateTermID      string         // término de pago que se considera contado
	UnitCode             string         // "NIU" si vacío
	PDFSection           string         // "1" si vacío
	Location             *time.Location // zona de horaEmision; time.Local si nil
}

// PayloadBuilder construye el documentoElectronico a partir de la factura.
// Es determinista para un reloj fijo: no hace I/O ni muta la factura.
type PayloadBuilder struct {
	cfg BuilderConfig
	now func() time.Time
}

// NewPayloadBuilder crea el builder. now puede ser nil (time.Now).
func NewPayloadBuilder(cfg BuilderConfig, now func() time.Time) *PayloadBuilder {
	if cfg.DefaultOperationType == "" {
		cfg.DefaultOperationType = pkghka.OperationVentaInterna
	}
	if cfg.UnitCode == "" {
		cfg.UnitCode = pkghka.UnitNIU
	}
	if cfg.PDFSection == "" {
		cfg.PDFSection = "1"
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &PayloadBuilder{cfg: cfg, now: now}
}

// Build genera el Document. Devuelve domain.ErrInvalidInput si faltan datos
// estructurales (emisor, receptor, fecha o un nombre sin guion).
func (b *PayloadBuilder) Build(inv *entity.Invoice) (*Document, error) {
	if inv == nil || inv.Issuer == nil || inv.Recipient == nil {
		return nil, fmt.Errorf("%w: factura sin emisor o receptor", domain.ErrInvalidInput)
	}
	if inv.InvoiceDate.IsZero() {
		return nil, fmt.Errorf("%w: factura %s sin fecha de emisión", domain.ErrInvalidInput, inv.Name)
	}
	serie, correlativo, ok := SplitDocumentName(inv.Name)
	if !ok {
		return nil, fmt.Errorf("%w: nombre %q no tiene formato SERIE-NUMERO", domain.ErrInvalidInput, inv.Name)
	}

	dueDate := inv.DueDate
	if dueDate.IsZero() {
		dueDate = inv.InvoiceDate
	}
	opType := inv.OperationTypeCode
	if opType == "" {
		opType = b.cfg.DefaultOperationType
	}

	doc := &Document{
		FechaEmision:        inv.InvoiceDate.Format(dateLayout),
		FechaVencimiento:    dueDate.Format(dateLayout),
		HoraEmision:         b.now().In(b.cfg.Location).Format(timeLayout),
		TipoDocumento:       inv.DocumentTypeCode,
		Serie:               serie,
		Correlativo:         correlativo,
		CodigoTipoOperacion: opType,
		Emisor:              buildEmisor(inv.Issuer),
		Receptor:            buildReceptor(inv.Recipient),
		FacturaNegociable:   b.buildPaymentTerms(inv),
		Producto:            b.buildItems(inv.Lines),
		Totales:             buildTotals(inv),
		Pago: Pago{
			FechaInicio: inv.InvoiceDate.Format(dateLayout),
			FechaFin:    inv.InvoiceDate.Format(dateLayout),
			Moneda:      inv.CurrencyCode,
		},
		PersonalizacionPDF: b.buildAdditionalInfo(inv.AdditionalInfo),
		Detraccion:         buildDetraction(inv.Detraction),
	}
	return doc, nil
}

// SplitDocumentName separa "F001-123" en serie y correlativo por el PRIMER guion.
func SplitDocumentName(name string) (serie, correlativo string, ok bool) {
	serie, correlativo, ok = strings.Cut(strings.TrimSpace(name), "-")
	if !ok || serie == "" || correlativo == "" {
		return "", "", false
	}
	return serie, correlativo, true
}

// FullDocumentID identificador que espera /DescargaArchivo tras el RUC:
// TIPO-SERIE-CORRELATIVO. Si la numeración ya trae el tipo, se respeta.
func FullDocumentID(docType, cpeNumber string) string {
	if docType == "" || strings.HasPrefix(cpeNumber, docType+"-") {
		return cpeNumber
	}
	return docType + "-" + cpeNumber
}

// ── secciones ──────────────────────────────────────────────────────────────────

func buildEmisor(c *entity.Company) Emisor {
	return Emisor{
		RUC:             c.RUC,
		NombreComercial: c.Name,
		LugarExpedicion: pkghka.LugarExpedicionDefault,
		DomicilioFiscal: c.Street,
		Urbanizacion:    c.Street2,
		Distrito:        c.City,
		Provincia:       c.State,
		Departamento:    c.State,
		CodigoPais:      c.CountryCode,
		Ubigeo:          c.Ubigeo,
	}
}

func buildReceptor(p *entity.Partner) Receptor {
	return Receptor{
		TipoDocumento: p.TaxIDType,
		NumDocumento:  p.TaxID,
		RazonSocial:   p.Name,
		Notificar:     pkghka.NotificarNo,
	}
}

func (b *PayloadBuilder) buildItems(lines []entity.InvoiceLine) []Producto {
	items := make([]Producto, 0, len(lines))
	for i, line := range lines {
		base := line.PriceSubtotal
		tax := base.Mul(line.TaxRate).Div(hundred)
		unit := line.UnitCode
		if unit == "" {
			unit = b.cfg.UnitCode
		}
		items = append(items, Producto{
			NumeroOrden:             strconv.Itoa(i + 1),
			Descripcion:             line.Description,
			Cantidad:                strconv.FormatInt(line.Quantity.IntPart(), 10),
			UnidadMedida:            unit,
			ValorUnitarioBI:         Money(line.UnitPrice),
			ValorVentaItemQxBI:      Money(base),
			PrecioVentaUnitarioItem: Money(line.PriceTotal),
			MontoTotalImpuestoItem:  Money(tax),
			IGV: IGV{
				BaseImponible: Money(base),
				Porcentaje:    Money(line.TaxRate),
				Monto:         Money(tax),
				Tipo:          pkghka.IGVGravadoOneroso,
			},
		})
	}
	return items
}

func buildTotals(inv *entity.Invoice) Totales {
	return Totales{
		ImporteTotalPagar:   Money(inv.AmountTotal),
		ImporteTotalVenta:   Money(inv.AmountTotal),
		MontoTotalImpuestos: Money(inv.AmountTax),
		SubtotalValorVenta:  Money(inv.AmountUntaxed),
		TotalIGV:            Money(inv.AmountTax),
		Subtotal:            Subtotal{IGV: Money(inv.AmountUntaxed)},
	}
}

func (b *PayloadBuilder) buildPaymentTerms(inv *entity.Invoice) FacturaNegociable {
	if b.isImmediate(inv.PaymentTerm) {
		return FacturaNegociable{ModoPago: pkghka.PaymentModeContado, MontoNetoPendiente: "0"}
	}
	net := inv.NetAmount()
	dues := ComputeInstallments(inv.PaymentTerm, inv.InvoiceDate, net)
	cuotas := make([]Cuota, 0, len(dues))
	for _, d := range dues {
		cuotas = append(cuotas, Cuota{
			Identificador: d.ID,
			FechaPago:     d.DueDate.Format(dateLayout),
			Monto:         Money(d.Amount),
		})
	}
	return FacturaNegociable{
		ModoPago:           pkghka.PaymentModeCredito,
		MontoNetoPendiente: Money(net),
		Cuotas:             cuotas,
	}
}

func (b *PayloadBuilder) isImmediate(term *entity.PaymentTerm) bool {
	return term == nil || term.ID == b.cfg.ImmediateTermID
}

func (b *PayloadBuilder) buildAdditionalInfo(entries []entity.InfoEntry) []InfoAdicional {
	if len(entries) == 0 {
		return nil
	}
	out := make([]InfoAdicional, 0, len(entries))
	for _, e := range entries {
		out = append(out, InfoAdicional{Seccion: b.cfg.PDFSection, Titulo: e.Title, Valor: e.Value})
	}
	return out
}

func buildDetraction(d *entity.Detraction) *Detraccion {
	if d == nil {
		return nil
	}
	return &Detraccion{
		Codigo:               d.Code,
		MedioPago:            d.PaymentMethod,
		Monto:                Money(d.Amount),
		NumCuentaBancoNacion: d.BankAccount,
		Porcentaje:           Money(d.Rate),
	}
}

// Money formatea un monto o porcentaje con exactamente dos decimales.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
