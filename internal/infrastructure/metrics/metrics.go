// Package metrics expone los contadores del conector HKA en formato Prometheus.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hka"

// Resultados de envío.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
	OutcomeOK       = "ok"
	OutcomeMissing  = "missing"
	OutcomeError    = "error"
)

var (
	sendCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_total",
			Help:      "Facturas procesadas por /Enviar, por resultado.",
		},
		[]string{"outcome"},
	)
	downloadCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_total",
			Help:      "Descargas de artefactos por tipo y resultado.",
		},
		[]string{"kind", "outcome"},
	)
	tokenRefreshCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refresh_total",
			Help:      "Autenticaciones contra /Autenticacion por resultado.",
		},
		[]string{"outcome"},
	)
	passDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duración de cada pasada del planificador.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"pass"},
	)
	passSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_skipped_total",
			Help:      "Pasadas omitidas porque la anterior seguía en curso.",
		},
		[]string{"pass"},
	)
)

var registerMetrics sync.Once

// Register registra todas las métricas en el registerer dado (prometheus.DefaultRegisterer si nil).
func Register(r prometheus.Registerer) {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	registerMetrics.Do(func() {
		r.MustRegister(sendCounter, downloadCounter, tokenRefreshCounter, passDuration, passSkipped)
	})
}

// RecordSend cuenta un intento de envío.
func RecordSend(outcome string) {
	sendCounter.WithLabelValues(outcome).Inc()
}

// RecordDownload cuenta una descarga de artefacto.
func RecordDownload(kind, outcome string) {
	downloadCounter.WithLabelValues(kind, outcome).Inc()
}

// RecordTokenRefresh cuenta una autenticación.
func RecordTokenRefresh(outcome string) {
	tokenRefreshCounter.WithLabelValues(outcome).Inc()
}

// ObservePass registra la duración de una pasada.
func ObservePass(pass string, d time.Duration) {
	passDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// RecordPassSkipped cuenta una pasada omitida por solapamiento.
func RecordPassSkipped(pass string) {
	passSkipped.WithLabelValues(pass).Inc()
}
