package repository

import (
	"context"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
)

// UserRepository define el puerto de persistencia de operadores.
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
}
