// Package metrics define los collectors Prometheus del adapter, del
// reconciliador de schema y del emulador HTTP.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados de operación (label "result").
const (
	ResultOK        = "ok"
	ResultMiss      = "miss"
	ResultError     = "error"
	ResultSwallowed = "swallowed"
)

// Collectors agrupa las métricas del adapter. Un *Collectors nil es válido:
// todas las operaciones de observación son no-ops.
type Collectors struct {
	Operations *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Reconcile  *prometheus.CounterVec
	Requests   *prometheus.CounterVec
	Latency    *prometheus.HistogramVec
}

// New crea los collectors (sin registrarlos).
func New() *Collectors {
	return &Collectors{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pbauth_operations_total",
			Help: "Operaciones del adapter por entidad y resultado",
		}, []string{"op", "entity", "result"}), // result: ok|miss|error|swallowed

		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pbauth_operation_duration_seconds",
			Help:    "Latencia de las operaciones del adapter (incluye llamadas al store)",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),

		Reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pbauth_reconcile_total",
			Help: "Reconciliaciones de colección por estado",
		}, []string{"collection", "status"}), // status: created|unchanged|patched|patch_failed|create_failed

		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pbauth_emulator_requests_total",
			Help: "Requests servidas por el emulador",
		}, []string{"method", "route", "status"}),

		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pbauth_emulator_request_duration_seconds",
			Help:    "Latencia de los requests del emulador",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Register registra los collectors en reg (o en el default si es nil),
// ignorando los ya registrados.
func (c *Collectors) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, col := range []prometheus.Collector{c.Operations, c.Duration, c.Reconcile, c.Requests, c.Latency} {
		if err := registerCollector(reg, col); err != nil {
			return err
		}
	}
	return nil
}

// ObserveOperation registra el resultado y la duración de una operación.
func (c *Collectors) ObserveOperation(op, entity, result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Operations.WithLabelValues(op, entity, result).Inc()
	c.Duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveReconcile registra el estado final de la reconciliación de una colección.
func (c *Collectors) ObserveReconcile(collection, status string) {
	if c == nil {
		return
	}
	c.Reconcile.WithLabelValues(collection, status).Inc()
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
