package entity

import "time"

// Roles de operador. Coinciden con los roles del JWT.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// Estados de la cuenta.
const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User operador de la API del conector (pertenece a una Company).
type User struct {
	ID           string
	CompanyID    string
	Email        string
	PasswordHash string // bcrypt
	Name         string
	Role         string // admin, operator
	Status       string // active, inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
