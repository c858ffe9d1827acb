package repository

import (
	"context"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// CompanyRepository define el puerto de lectura de empresas y sus credenciales HKA.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}
