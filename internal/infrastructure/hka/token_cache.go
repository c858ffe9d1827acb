package hka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
	"github.com/jhoicas/hka-connector/internal/domain/repository"
	"github.com/jhoicas/hka-connector/internal/infrastructure/metrics"
)

// AuthFunc obtiene un token nuevo contra /Autenticacion.
type AuthFunc func(ctx context.Context, creds Credentials) (entity.HKAToken, error)

// TokenCache guarda el token vigente de cada empresa en memoria y en el
// repositorio. Como mucho hay una autenticación en curso por empresa; los
// llamadores concurrentes esperan y comparten su resultado.
type TokenCache struct {
	auth  AuthFunc
	repo  repository.TokenRepository
	now   func() time.Time
	log   zerolog.Logger
	group singleflight.Group

	authTimeout time.Duration

	mu     sync.Mutex
	tokens map[string]entity.HKAToken
}

// NewTokenCache crea la caché. repo puede ser nil (solo memoria).
func NewTokenCache(auth AuthFunc, repo repository.TokenRepository, now func() time.Time, log zerolog.Logger) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{
		auth:   auth,
		repo:   repo,
		now:    now,
		log:    log,
		tokens: make(map[string]entity.HKAToken),
	}
}

// WithAuthTimeout acota la autenticación compartida (y el guardado del token).
func (c *TokenCache) WithAuthTimeout(d time.Duration) *TokenCache {
	c.authTimeout = d
	return c
}

// EnsureValid devuelve un token vigente para la empresa, autenticando si hace falta.
// Si la autenticación falla, el token anterior (si había) no se modifica.
func (c *TokenCache) EnsureValid(ctx context.Context, creds Credentials) (entity.HKAToken, error) {
	if tok, ok := c.cached(ctx, creds.CompanyID); ok {
		return tok, nil
	}

	v, err, _ := c.group.Do(creds.CompanyID, func() (any, error) {
		// el resultado lo comparten todos los que esperan: no depende de la
		// cancelación de quien llegó primero
		ctx := context.WithoutCancel(ctx)
		if c.authTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.authTimeout)
			defer cancel()
		}
		// otro llamador pudo haber refrescado mientras esperábamos
		if tok, ok := c.cached(ctx, creds.CompanyID); ok {
			return tok, nil
		}
		tok, err := c.auth(ctx, creds)
		if err != nil {
			metrics.RecordTokenRefresh(metrics.OutcomeError)
			return entity.HKAToken{}, err
		}
		metrics.RecordTokenRefresh(metrics.OutcomeOK)
		tok.CompanyID = creds.CompanyID
		if c.repo != nil {
			if err := c.repo.Save(ctx, tok); err != nil {
				return entity.HKAToken{}, fmt.Errorf("guardar token HKA: %w", err)
			}
		}
		c.mu.Lock()
		c.tokens[creds.CompanyID] = tok
		c.mu.Unlock()

		c.log.Info().
			Str("company_id", creds.CompanyID).
			Time("expires_at", tok.ExpiresAt).
			Msg("token HKA renovado")
		return tok, nil
	})
	if err != nil {
		return entity.HKAToken{}, err
	}
	return v.(entity.HKAToken), nil
}

// Invalidate descarta el token de la empresa en memoria y en el repositorio.
func (c *TokenCache) Invalidate(ctx context.Context, companyID string) error {
	c.mu.Lock()
	delete(c.tokens, companyID)
	c.mu.Unlock()
	if c.repo == nil {
		return nil
	}
	return c.repo.Delete(ctx, companyID)
}

// cached busca primero en memoria y luego en el repositorio (tras un reinicio).
func (c *TokenCache) cached(ctx context.Context, companyID string) (entity.HKAToken, bool) {
	now := c.now()

	c.mu.Lock()
	tok, ok := c.tokens[companyID]
	c.mu.Unlock()
	if ok && tok.ValidAt(now) {
		return tok, true
	}
	if c.repo == nil {
		return entity.HKAToken{}, false
	}

	stored, err := c.repo.Get(ctx, companyID)
	if err != nil {
		c.log.Warn().Err(err).Str("company_id", companyID).Msg("no se pudo leer el token HKA persistido")
		return entity.HKAToken{}, false
	}
	if stored == nil || !stored.ValidAt(now) {
		return entity.HKAToken{}, false
	}
	c.mu.Lock()
	c.tokens[companyID] = *stored
	c.mu.Unlock()
	return *stored, true
}
