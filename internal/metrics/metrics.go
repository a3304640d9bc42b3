/*
 * metrics.go
 *
 * Copyright 2014 Johannes Zarl
 */
/*
 * This file is part of unsharedfs.
 *
 * This program can be distributed under the terms of the GNU GPLv3.
 * See the file COPYING.
 */

// Package metrics is the optional observability ambient concern
// SPEC_FULL.md adds beyond spec.md's scope: per-callback call counts,
// error counts and latency, exported for Prometheus to scrape. None of
// this is load-bearing for correctness — every method is safe to call
// on a nil *Metrics, so dispatcher code never has to branch on whether
// metrics were enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jzarl/unsharedfs/internal/logger"
)

// Metrics holds the Prometheus collectors for one mount.
type Metrics struct {
	calls    *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New registers unsharedfs's collectors against a fresh registry and
// returns a Metrics ready to record against.
func New() *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unsharedfs",
			Name:      "callback_calls_total",
			Help:      "Number of times each FUSE callback was invoked.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unsharedfs",
			Name:      "callback_errors_total",
			Help:      "Number of times each FUSE callback returned an error.",
		}, []string{"op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unsharedfs",
			Name:      "callback_duration_seconds",
			Help:      "Latency of each FUSE callback.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	prometheus.MustRegister(m.calls, m.errors, m.duration)
	return m
}

// Observe records a callback invocation and returns a function the
// caller should defer to record its duration. Safe to call on a nil
// receiver, in which case it returns a no-op.
func (m *Metrics) Observe(op string) func() {
	if m == nil {
		return func() {}
	}
	m.calls.WithLabelValues(op).Inc()
	start := time.Now()
	return func() {
		m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// ObserveError records a callback failure distinct from Observe's
// call-count bookkeeping — used by the dispatcher's path-resolution
// failures, which never reach a host call at all.
func (m *Metrics) ObserveError(op string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(op).Inc()
}

// Serve starts the Prometheus exposition endpoint on addr and blocks.
// The mount driver runs it in its own goroutine. A Logger records
// startup failures, since a dead metrics listener must never bring
// down the mount itself.
func Serve(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Warningf("metrics listener on %s stopped: %v", addr, err)
	}
}
