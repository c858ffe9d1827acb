package entity

import "github.com/shopspring/decimal"

// InvoiceLine representa una línea de la factura. El orden del slice en
// Invoice.Lines es significativo (numeroOrden).
type InvoiceLine struct {
	ID            string
	Description   string
	Quantity      decimal.Decimal
	UnitPrice     decimal.Decimal
	PriceSubtotal decimal.Decimal // base imponible de la línea
	PriceTotal    decimal.Decimal // total con impuestos
	TaxRate       decimal.Decimal // porcentaje, ej. 18
	UnitCode      string          // Catálogo 03; vacío = unidad por defecto
}
