package entity

import "github.com/shopspring/decimal"

// Políticas de asignación de una cuota.
const (
	TermValueBalance = "balance"
	TermValuePercent = "percent"
	TermValueFixed   = "fixed"
)

// PaymentTerm término de pago (contado o en cuotas).
type PaymentTerm struct {
	ID    string
	Name  string
	Lines []PaymentTermLine
}

// PaymentTermLine define una cuota: política de monto y desplazamiento desde la fecha de emisión.
type PaymentTermLine struct {
	Value       string          // balance | percent | fixed
	ValueAmount decimal.Decimal // porcentaje (percent) o monto (fixed)
	Months      int
	Days        int
}
