package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
)

var _ repository.TokenRepository = (*TokenRepo)(nil)

// TokenRepo persiste el token HKA por empresa en hka_tokens.
type TokenRepo struct {
	pool *pgxpool.Pool
}

// NewTokenRepository construye el adaptador.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// Get devuelve el token guardado o nil si no hay.
func (r *TokenRepo) Get(ctx context.Context, companyID string) (*entity.HKAToken, error) {
	t := entity.HKAToken{CompanyID: companyID}
	err := r.pool.QueryRow(ctx,
		`SELECT token, expires_at FROM hka_tokens WHERE company_id = $1`, companyID,
	).Scan(&t.Value, &t.ExpiresAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get hka token: %w", err)
	}
	return &t, nil
}

// Save guarda token y expiración en un único UPSERT.
func (r *TokenRepo) Save(ctx context.Context, t entity.HKAToken) error {
	query := `
		INSERT INTO hka_tokens (company_id, token, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (company_id) DO UPDATE
		SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, updated_at = now()`
	if _, err := r.pool.Exec(ctx, query, t.CompanyID, t.Value, t.ExpiresAt); err != nil {
		return fmt.Errorf("save hka token: %w", err)
	}
	return nil
}

// Delete elimina el token de la empresa.
func (r *TokenRepo) Delete(ctx context.Context, companyID string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM hka_tokens WHERE company_id = $1`, companyID); err != nil {
		return fmt.Errorf("delete hka token: %w", err)
	}
	return nil
}
