// Package hka contiene catálogos SUNAT (Perú) y validaciones que usa el
// conector con The Factory HKA (OSE/PSE).
package hka

// =============================================================================
// Catálogo 01 - Tipo de documento
// =============================================================================

const (
	DocTypeFactura     = "01"
	DocTypeBoleta      = "03"
	DocTypeNotaCredito = "07"
	DocTypeNotaDebito  = "08"
)

// =============================================================================
// Catálogo 06 - Tipo de documento de identidad
// =============================================================================

const (
	IdentityNoDomiciliado = "0"
	IdentityDNI           = "1"
	IdentityCarnetExtr    = "4"
	IdentityRUC           = "6"
	IdentityPasaporte     = "7"
)

// =============================================================================
// Catálogo 07 - Tipo de afectación del IGV
// =============================================================================

const (
	IGVGravadoOneroso = "10" // Gravado - Operación onerosa
)

// =============================================================================
// Catálogo 51 - Tipo de operación
// =============================================================================

const (
	OperationVentaInterna = "0101"
	OperationDetraccion   = "1001" // Operación sujeta a detracción
)

// =============================================================================
// Catálogo 03 - Unidad de medida
// =============================================================================

const (
	UnitNIU = "NIU" // Unidad (bienes)
	UnitZZ  = "ZZ"  // Unidad (servicios)
)

// =============================================================================
// Catálogo 59 - Medios de pago (uso frecuente en detracciones)
// =============================================================================

const (
	PaymentMethodDepositoCuenta = "001"
	PaymentMethodTransferencia  = "003"
)

// Modo de pago de facturaNegociable.
const (
	PaymentModeContado = "Contado"
	PaymentModeCredito = "Credito"
)

// tipoAplicacion de /Autenticacion.
const (
	AppTypeTest = "I"
	AppTypeProd = "P"
)

// Valores fijos exigidos por el contrato HKA.
const (
	LugarExpedicionDefault = "0000"
	NotificarNo            = "NO"
)
