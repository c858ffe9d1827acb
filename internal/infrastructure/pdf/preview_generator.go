// Package pdf genera la vista previa (borrador) del comprobante a partir del
// documentoElectronico que se enviaría a HKA. La representación impresa
// oficial la emite HKA y se descarga como artefacto PDF.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + RUC  │  Tipo + SERIE-CORRELATIVO     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  EMISOR: Domicilio fiscal / ubigeo                          │
//	│  RECEPTOR: Razón social + documento                         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | V.Unit | IGV% | Valor venta     │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Op. gravada / IGV / TOTAL                         │
//	│  FORMA DE PAGO + CUOTAS + DETRACCIÓN                        │
//	│  INFORMACIÓN ADICIONAL                                      │
//	│  FOOTER: QR + leyenda BORRADOR                              │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
	domainhka "github.com/jhoicas/hka-connector/internal/domain/hka"
	pkghka "github.com/jhoicas/hka-connector/pkg/hka"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorDraft   = &props.Color{Red: 190, Green: 30, Blue: 45}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// MarotoPreviewGenerator implementa billing.PreviewPDFGenerator usando Maroto v2.
type MarotoPreviewGenerator struct{}

// NewMarotoPreviewGenerator construye el generador.
func NewMarotoPreviewGenerator() *MarotoPreviewGenerator { return &MarotoPreviewGenerator{} }

// GeneratePreview genera el PDF borrador y devuelve sus bytes.
func (g *MarotoPreviewGenerator) GeneratePreview(inv *entity.Invoice, doc *domainhka.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("pdf: documento nil")
	}
	author := doc.Emisor.NombreComercial
	if inv != nil && inv.Issuer != nil {
		author = inv.Issuer.Name
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(DocumentTitle(doc.TipoDocumento)+" (borrador)", true).
		WithAuthor(author, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(draftBanner())
	m.AddRows(headerRow(doc))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(emisorRow(doc.Emisor))
	m.AddRows(receptorRow(doc.Receptor))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	m.AddRows(tableDetailRows(doc.Producto)...)

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc))
	m.AddRows(paymentRows(doc)...)
	m.AddRows(additionalInfoRows(doc.PersonalizacionPDF)...)

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRow(doc))

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return out.GetBytes(), nil
}

// DocumentTitle nombre impreso del tipo de comprobante (Catálogo 01).
func DocumentTitle(docType string) string {
	switch docType {
	case pkghka.DocTypeFactura:
		return "FACTURA ELECTRÓNICA"
	case pkghka.DocTypeBoleta:
		return "BOLETA DE VENTA ELECTRÓNICA"
	case pkghka.DocTypeNotaCredito:
		return "NOTA DE CRÉDITO ELECTRÓNICA"
	case pkghka.DocTypeNotaDebito:
		return "NOTA DE DÉBITO ELECTRÓNICA"
	}
	return "COMPROBANTE ELECTRÓNICO"
}

// QRContent cadena del QR según el formato SUNAT:
// RUC|TIPO|SERIE|NUMERO|IGV|TOTAL|FECHA|TIPO DOC ADQ|NUM DOC ADQ|
func QRContent(doc *domainhka.Document) string {
	return strings.Join([]string{
		doc.Emisor.RUC,
		doc.TipoDocumento,
		doc.Serie,
		doc.Correlativo,
		doc.Totales.TotalIGV,
		doc.Totales.ImporteTotalPagar,
		doc.FechaEmision,
		doc.Receptor.TipoDocumento,
		doc.Receptor.NumDocumento,
	}, "|") + "|"
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func draftBanner() core.Row {
	return row.New(8).Add(col.New(12).Add(
		text.New("BORRADOR - SIN VALOR TRIBUTARIO", props.Text{
			Style: fontstyle.Bold, Size: 11, Align: align.Center, Color: colorDraft, Top: 1,
		}),
	))
}

// headerRow: razón social + RUC (izq) y tipo + número + fecha (der).
func headerRow(doc *domainhka.Document) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New(doc.Emisor.NombreComercial, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("RUC: "+doc.Emisor.RUC, props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(DocumentTitle(doc.TipoDocumento), props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New(doc.Serie+"-"+doc.Correlativo, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New(fmt.Sprintf("Emisión: %s %s", doc.FechaEmision, doc.HoraEmision), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

func emisorRow(e domainhka.Emisor) core.Row {
	addr := joinNonEmpty(", ", e.DomicilioFiscal, e.Urbanizacion, e.Distrito, e.Provincia, e.Departamento)
	return row.New(12).Add(
		col.New(12).Add(
			text.New("DATOS DEL EMISOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("Domicilio fiscal: %s   |   Ubigeo: %s",
				nonEmpty(addr, "-"), nonEmpty(e.Ubigeo, "-"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func receptorRow(r domainhka.Receptor) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("ADQUIRIENTE", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(r.RazonSocial, props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 6,
			}),
			text.New(fmt.Sprintf("%s: %s", identityLabel(r.TipoDocumento), r.NumDocumento),
				props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("V. Unit.", 2, align.Right),
		h("IGV%", 1, align.Center),
		h("Valor venta", 3, align.Right),
	)
}

func tableDetailRows(items []domainhka.Producto) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, p := range items {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(p.Cantidad, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(p.Descripcion, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New(p.ValorUnitarioBI, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(1).Add(text.New(p.IGV.Porcentaje, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(3).Add(text.New(p.ValorVentaItemQxBI, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(doc *domainhka.Document) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	cur := doc.Pago.Moneda
	return row.New(20).Add(
		col.New(5),
		col.New(4).Add(
			label("Op. gravada:"),
			label("IGV:"),
			text.New("IMPORTE TOTAL:", props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 10,
			}),
		),
		col.New(3).Add(
			value(cur+" "+doc.Totales.SubtotalValorVenta),
			text.New(cur+" "+doc.Totales.TotalIGV, props.Text{Size: 9, Align: align.Right, Right: 1, Top: 5}),
			text.New(cur+" "+doc.Totales.ImporteTotalPagar, props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 10,
			}),
		),
	)
}

// paymentRows: forma de pago, cuotas y detracción.
func paymentRows(doc *domainhka.Document) []core.Row {
	fn := doc.FacturaNegociable
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(text.New(
			fmt.Sprintf("Forma de pago: %s   |   Monto neto pendiente: %s %s", fn.ModoPago, doc.Pago.Moneda, fn.MontoNetoPendiente),
			props.Text{Style: fontstyle.Bold, Size: 8, Top: 1},
		))),
	}
	for _, c := range fn.Cuotas {
		rows = append(rows, row.New(4).Add(col.New(12).Add(text.New(
			fmt.Sprintf("%s   vence %s   %s %s", c.Identificador, c.FechaPago, doc.Pago.Moneda, c.Monto),
			props.Text{Size: 7.5, Color: colorGray, Left: 4},
		))))
	}
	if d := doc.Detraccion; d != nil {
		rows = append(rows, row.New(6).Add(col.New(12).Add(text.New(
			fmt.Sprintf("Operación sujeta a detracción (%s%%, código %s): %s   |   Cta. Banco de la Nación: %s",
				d.Porcentaje, d.Codigo, d.Monto, nonEmpty(d.NumCuentaBancoNacion, "-")),
			props.Text{Size: 8, Top: 1},
		))))
	}
	return rows
}

func additionalInfoRows(info []domainhka.InfoAdicional) []core.Row {
	if len(info) == 0 {
		return nil
	}
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(text.New("INFORMACIÓN ADICIONAL", props.Text{
			Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2,
		}))),
	}
	for _, e := range info {
		rows = append(rows, row.New(4).Add(col.New(12).Add(text.New(
			e.Titulo+": "+e.Valor, props.Text{Size: 7.5, Left: 2},
		))))
	}
	return rows
}

func footerRow(doc *domainhka.Document) core.Row {
	return row.New(40).Add(
		col.New(3).Add(code.NewQr(QRContent(doc), props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Vista previa generada antes del envío a The Factory HKA.", props.Text{
				Size: 8, Top: 4, Left: 3, Color: colorGray,
			}),
			text.New("La representación impresa válida se obtiene una vez aceptado por SUNAT.", props.Text{
				Style: fontstyle.Bold, Size: 9, Top: 14, Left: 3, Color: colorDraft,
			}),
		),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func identityLabel(code string) string {
	switch code {
	case pkghka.IdentityRUC:
		return "RUC"
	case pkghka.IdentityDNI:
		return "DNI"
	case pkghka.IdentityCarnetExtr:
		return "C.E."
	case pkghka.IdentityPasaporte:
		return "Pasaporte"
	}
	return "Doc."
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
