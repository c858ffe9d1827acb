package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"github.com/jhoicas/hka-connector/internal/domain/entity"
	"github.com/jhoicas/hka-connector/internal/infrastructure/metrics"
)

// PassRunner los dos puntos de entrada que dispara el scheduler, más el envío
// manual, que comparte el candado de la pasada de envío.
type PassRunner interface {
	SendPending(ctx context.Context) PassReport
	DownloadPending(ctx context.Context) PassReport
	SendInvoice(ctx context.Context, companyID, invoiceID string) (entity.HKAState, error)
}

// Scheduler ejecuta las pasadas de envío y descarga periódicamente.
// Una pasada que se dispara mientras la anterior sigue en curso se omite.
type Scheduler struct {
	runner PassRunner
	cron   *cron.Cron
	log    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex // protege stopped y los wg.Add
	stopped bool
	wg      sync.WaitGroup

	sendMu     sync.Mutex
	downloadMu sync.Mutex
}

// NewScheduler construye el scheduler; no arranca hasta Start.
func NewScheduler(runner PassRunner, log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		cron:   cron.New(),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registra las dos pasadas con expresiones cron ("@every 5m", "0 */10 * * * *").
func (s *Scheduler) Start(sendSpec, downloadSpec string) error {
	err := s.cron.AddFunc(sendSpec, func() { s.RunSend(s.ctx) })
	if err != nil {
		return fmt.Errorf("scheduler: expresión de envío %q: %w", sendSpec, err)
	}
	err = s.cron.AddFunc(downloadSpec, func() { s.RunDownload(s.ctx) })
	if err != nil {
		return fmt.Errorf("scheduler: expresión de descarga %q: %w", downloadSpec, err)
	}
	s.cron.Start()
	s.log.Info().Str("send", sendSpec).Str("download", downloadSpec).Msg("scheduler HKA iniciado")
	return nil
}

// Stop detiene el cron, cancela las pasadas en curso y espera a que terminen.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
	s.log.Info().Msg("scheduler HKA detenido")
}

// RunSend ejecuta la pasada de envío si no hay otra en curso.
// ran es false cuando se omitió por solapamiento.
func (s *Scheduler) RunSend(ctx context.Context) (report PassReport, ran bool) {
	return s.run(ctx, PassSend, &s.sendMu, s.runner.SendPending)
}

// RunDownload ejecuta la pasada de descarga si no hay otra en curso.
func (s *Scheduler) RunDownload(ctx context.Context) (report PassReport, ran bool) {
	return s.run(ctx, PassDownload, &s.downloadMu, s.runner.DownloadPending)
}

// SendInvoice envía una factura puntual con el candado de la pasada de envío.
// ran es false si hay una pasada en curso (o el scheduler está detenido).
func (s *Scheduler) SendInvoice(ctx context.Context, companyID, invoiceID string) (state entity.HKAState, ran bool, err error) {
	release, ok := s.acquire(PassSend, &s.sendMu)
	if !ok {
		return entity.HKAState{}, false, nil
	}
	defer release()
	state, err = s.runner.SendInvoice(ctx, companyID, invoiceID)
	return state, true, err
}

func (s *Scheduler) run(ctx context.Context, pass string, mu *sync.Mutex, fn func(context.Context) PassReport) (PassReport, bool) {
	release, ok := s.acquire(pass, mu)
	if !ok {
		return PassReport{Pass: pass}, false
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("pass", pass).Interface("panic", r).Msg("pasada HKA abortada por panic")
		}
	}()

	report := fn(ctx)
	metrics.ObservePass(pass, report.Duration)
	return report, true
}

// acquire registra la ejecución para Stop y toma el candado de la pasada.
func (s *Scheduler) acquire(pass string, mu *sync.Mutex) (release func(), ok bool) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.log.Warn().Str("pass", pass).Msg("scheduler detenido; se omite")
		return nil, false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if !mu.TryLock() {
		s.wg.Done()
		s.log.Warn().Str("pass", pass).Msg("pasada anterior en curso; se omite")
		metrics.RecordPassSkipped(pass)
		return nil, false
	}
	return func() {
		mu.Unlock()
		s.wg.Done()
	}, true
}
