package hka_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/hka-connector/internal/domain"
	"github.com/jhoicas/hka-connector/internal/domain/entity"
	"github.com/jhoicas/hka-connector/internal/infrastructure/hka"
)

// fakeClock reloj controlable.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenCache_ReautenticaTrasExpirar(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	var calls atomic.Int32
	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		n := calls.Add(1)
		return entity.HKAToken{Value: "tok-" + string(rune('0'+n)), ExpiresAt: clock.Now().Add(time.Hour)}, nil
	}
	cache := hka.NewTokenCache(auth, newMemTokenRepo(), clock.Now, zerolog.Nop())

	t1, err := cache.EnsureValid(context.Background(), testCreds)
	require.NoError(t, err)
	t2, err := cache.EnsureValid(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Hour)
	t3, err := cache.EnsureValid(context.Background(), testCreds)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "un token en su instante de expiración ya no vale")
	assert.Equal(t, "tok-2", t3.Value)
	assert.Equal(t, "co-1", t3.CompanyID)
}

func TestTokenCache_UnaSolaAutenticacionConcurrente(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		calls.Add(1)
		<-release
		return entity.HKAToken{Value: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	cache := hka.NewTokenCache(auth, newMemTokenRepo(), nil, zerolog.Nop())

	const workers = 16
	var wg sync.WaitGroup
	results := make([]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := cache.EnsureValid(context.Background(), testCreds)
			if err == nil {
				results[i] = tok.Value
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestTokenCache_EmpresasIndependientes(t *testing.T) {
	var calls atomic.Int32
	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		calls.Add(1)
		return entity.HKAToken{Value: "tok-" + creds.CompanyID, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	cache := hka.NewTokenCache(auth, nil, nil, zerolog.Nop())

	other := testCreds
	other.CompanyID = "co-2"
	a, err := cache.EnsureValid(context.Background(), testCreds)
	require.NoError(t, err)
	b, err := cache.EnsureValid(context.Background(), other)
	require.NoError(t, err)

	assert.Equal(t, "tok-co-1", a.Value)
	assert.Equal(t, "tok-co-2", b.Value)
	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenCache_FalloNoTocaElTokenAnterior(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	repo := newMemTokenRepo()
	old := entity.HKAToken{CompanyID: "co-1", Value: "viejo", ExpiresAt: clock.Now().Add(-time.Minute)}
	require.NoError(t, repo.Save(context.Background(), old))

	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		return entity.HKAToken{}, errors.Join(domain.ErrAuthentication, errors.New("servicio caído"))
	}
	cache := hka.NewTokenCache(auth, repo, clock.Now, zerolog.Nop())

	_, err := cache.EnsureValid(context.Background(), testCreds)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAuthentication)

	stored, err := repo.Get(context.Background(), "co-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, old, *stored)
}

func TestTokenCache_Invalidate(t *testing.T) {
	var calls atomic.Int32
	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		calls.Add(1)
		return entity.HKAToken{Value: "t", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	repo := newMemTokenRepo()
	cache := hka.NewTokenCache(auth, repo, nil, zerolog.Nop())

	_, err := cache.EnsureValid(context.Background(), testCreds)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), "co-1"))
	_, err = cache.EnsureValid(context.Background(), testCreds)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load())
}

func TestTokenCache_CancelacionDelPrimeroNoAfectaAlResto(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return entity.HKAToken{}, ctx.Err()
		}
		return entity.HKAToken{Value: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	cache := hka.NewTokenCache(auth, newMemTokenRepo(), nil, zerolog.Nop()).WithAuthTimeout(5 * time.Second)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.EnsureValid(firstCtx, testCreds)
		firstErr <- err
	}()
	<-started

	secondTok := make(chan string, 1)
	go func() {
		tok, err := cache.EnsureValid(context.Background(), testCreds)
		if err != nil {
			secondTok <- "error: " + err.Error()
			return
		}
		secondTok <- tok.Value
	}()

	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "shared", <-secondTok)
	assert.NoError(t, <-firstErr, "la autenticación compartida no hereda la cancelación")
}

func TestTokenCache_TimeoutDeAutenticacion(t *testing.T) {
	auth := func(ctx context.Context, creds hka.Credentials) (entity.HKAToken, error) {
		<-ctx.Done()
		return entity.HKAToken{}, ctx.Err()
	}
	cache := hka.NewTokenCache(auth, newMemTokenRepo(), nil, zerolog.Nop()).WithAuthTimeout(20 * time.Millisecond)

	_, err := cache.EnsureValid(context.Background(), testCreds)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
