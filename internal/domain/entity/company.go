package entity

import "time"

// Company representa una empresa emisora (tenant). Sus credenciales HKA y su
// token se gestionan de forma independiente al resto de empresas.
type Company struct {
	ID          string
	Name        string
	RUC         string // RUC del emisor (11 dígitos)
	Street      string
	Street2     string // urbanización
	City        string // distrito
	State       string // provincia / departamento
	CountryCode string
	Ubigeo      string

	HKAUser     string
	HKAPassword string
	HKATestMode bool // true = ambiente demoint (tipoAplicacion I)

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasHKACredentials informa si la empresa puede autenticarse contra HKA.
func (c *Company) HasHKACredentials() bool {
	return c != nil && c.RUC != "" && c.HKAUser != "" && c.HKAPassword != ""
}
