// Package metrics registers the server's Prometheus instruments and the
// optional /metrics listener.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	SessionsOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nexus_sessions_online",
		Help: "Registered sessions in the world manager.",
	})
	UnknownOpcodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_unknown_opcodes_total",
		Help: "Frames received with no registered handler.",
	})
	Disconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nexus_disconnects_total",
		Help: "Connections closed, by reason.",
	}, []string{"reason"})
	BroadcastPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_broadcast_packets_total",
		Help: "Packets fanned out by zone broadcasts.",
	})
	ZoneEntities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nexus_zone_entities",
		Help: "Entities owned per zone instance.",
	}, []string{"zone"})
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nexus_zone_tick_seconds",
		Help:    "Zone tick wall time.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})
	TickSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nexus_tick_skips_total",
		Help: "Scheduler firings skipped because the previous tick overran.",
	})
)

// Serve exposes /metrics on addr. Returns immediately; the listener runs
// until the process exits. Empty addr disables the endpoint.
func Serve(addr string, log *zap.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics listener failed", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
}
