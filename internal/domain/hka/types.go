// Package hka contiene la lógica pura del conector con The Factory HKA:
// construcción del documentoElectronico y máquina de estados de envío.
// No hace I/O; el transporte vive en internal/infrastructure/hka.
package hka

// Document es el documentoElectronico que espera /Enviar. Los nombres y el
// anidamiento los dicta el contrato HKA; todos los montos van como string con
// dos decimales.
type Document struct {
	FechaEmision        string `json:"fechaEmision"`
	FechaVencimiento    string `json:"fechaVencimiento"`
	HoraEmision         string `json:"horaEmision"`
	TipoDocumento       string `json:"tipoDocumento"`
	Serie               string `json:"serie"`
	Correlativo         string `json:"correlativo"`
	CodigoTipoOperacion string `json:"codigoTipoOperacion"`

	Emisor             Emisor            `json:"emisor"`
	Receptor           Receptor          `json:"receptor"`
	FacturaNegociable  FacturaNegociable `json:"facturaNegociable"`
	Producto           []Producto        `json:"producto"`
	Totales            Totales           `json:"totales"`
	Pago               Pago              `json:"pago"`
	PersonalizacionPDF []InfoAdicional   `json:"personalizacionPDF,omitempty"`
	Detraccion         *Detraccion       `json:"detraccion,omitempty"`
}

// Emisor datos de la empresa emisora.
type Emisor struct {
	RUC             string `json:"ruc"`
	NombreComercial string `json:"nombreComercial"`
	LugarExpedicion string `json:"lugarExpedicion"`
	DomicilioFiscal string `json:"domicilioFiscal"`
	Urbanizacion    string `json:"urbanizacion"`
	Distrito        string `json:"distrito"`
	Provincia       string `json:"provincia"`
	Departamento    string `json:"departamento"`
	CodigoPais      string `json:"codigoPais"`
	Ubigeo          string `json:"ubigeo"`
}

// Receptor datos del adquiriente.
type Receptor struct {
	TipoDocumento string `json:"tipoDocumento"`
	NumDocumento  string `json:"numDocumento"`
	RazonSocial   string `json:"razonSocial"`
	Notificar     string `json:"notificar"`
}

// FacturaNegociable forma de pago. Cuotas solo en modo Credito.
type FacturaNegociable struct {
	ModoPago           string  `json:"modoPago"`
	MontoNetoPendiente string  `json:"montoNetoPendiente"`
	Cuotas             []Cuota `json:"cuotas,omitempty"`
}

// Cuota una cuota de pago a crédito.
type Cuota struct {
	Identificador string `json:"identificador"`
	FechaPago     string `json:"fechaPago"`
	Monto         string `json:"monto"`
}

// Producto una línea del comprobante.
type Producto struct {
	NumeroOrden             string `json:"numeroOrden"`
	Descripcion             string `json:"descripcion"`
	Cantidad                string `json:"cantidad"`
	UnidadMedida            string `json:"unidadMedida"`
	ValorUnitarioBI         string `json:"valorUnitarioBI"`
	ValorVentaItemQxBI      string `json:"valorVentaItemQxBI"`
	PrecioVentaUnitarioItem string `json:"precioVentaUnitarioItem"`
	MontoTotalImpuestoItem  string `json:"montoTotalImpuestoItem"`
	IGV                     IGV    `json:"IGV"`
}

// IGV impuesto de la línea.
type IGV struct {
	BaseImponible string `json:"baseImponible"`
	Porcentaje    string `json:"porcentaje"`
	Monto         string `json:"monto"`
	Tipo          string `json:"tipo"`
}

// Totales importes globales del comprobante.
type Totales struct {
	ImporteTotalPagar   string   `json:"importeTotalPagar"`
	ImporteTotalVenta   string   `json:"importeTotalVenta"`
	MontoTotalImpuestos string   `json:"montoTotalImpuestos"`
	SubtotalValorVenta  string   `json:"subtotalValorVenta"`
	TotalIGV            string   `json:"totalIGV"`
	Subtotal            Subtotal `json:"subtotal"`
}

// Subtotal base imponible agrupada por impuesto.
type Subtotal struct {
	IGV string `json:"IGV"`
}

// Pago periodo y moneda del pago.
type Pago struct {
	FechaInicio string `json:"fechaInicio"`
	FechaFin    string `json:"fechaFin"`
	Moneda      string `json:"moneda"`
}

// InfoAdicional entrada de personalizacionPDF.
type InfoAdicional struct {
	Seccion string `json:"seccion"`
	Titulo  string `json:"titulo"`
	Valor   string `json:"valor"`
}

// Detraccion bloque SPOT.
type Detraccion struct {
	Codigo               string `json:"codigo"`
	MedioPago            string `json:"medioPago"`
	Monto                string `json:"monto"`
	NumCuentaBancoNacion string `json:"numCuentaBancoNacion"`
	Porcentaje           string `json:"porcentaje"`
}
