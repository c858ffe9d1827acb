package entity

// Partner representa al receptor (adquiriente) del comprobante.
type Partner struct {
	ID        string
	Name      string
	TaxIDType string // Catálogo 06 SUNAT (6 = RUC, 1 = DNI, ...)
	TaxID     string
	Email     string
}
