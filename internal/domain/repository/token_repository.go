package repository

import (
	"context"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// TokenRepository persiste el token HKA por empresa para que sobreviva reinicios.
type TokenRepository interface {
	// Get devuelve el token guardado; nil, nil si la empresa aún no tiene.
	Get(ctx context.Context, companyID string) (*entity.HKAToken, error)
	// Save guarda token y expiración en una sola escritura.
	Save(ctx context.Context, token entity.HKAToken) error
	// Delete invalida el token guardado.
	Delete(ctx context.Context, companyID string) error
}
