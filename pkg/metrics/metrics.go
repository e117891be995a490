// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcmtools.
//
// go-dcmtools is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for dcmtools
// operations. Counters live in a private registry and are written to a
// node_exporter textfile when the command finishes.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all dcmtools metrics
	Namespace = "dcm"

	// Label names
	LabelOperation = "operation"
	LabelStatus    = "status"
	LabelReason    = "reason"
	LabelKind      = "kind"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"
	StatusNoop    = "noop"

	// Operation names
	OpImport         = "import"
	OpExport         = "export"
	OpExportCert     = "export_cert"
	OpRename         = "rename"
	OpRemove         = "remove"
	OpAssign         = "assign"
	OpView           = "view"
	OpCreate         = "create"
	OpChangePassword = "change_password"
)

// ErrNoTextfile is returned by WriteTextfile when no path is given.
var ErrNoTextfile = errors.New("metrics: textfile path is empty")

// Recorder collects the counters of one dcmtools process. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	loaded     prometheus.Counter
	skipped    *prometheus.CounterVec
	changes    *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Total number of certificate store operations by type and status",
			},
			[]string{LabelOperation, LabelStatus},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of certificate store operations in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{LabelOperation},
		),
		loaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "certificates_loaded_total",
				Help:      "Certificates read from import sources",
			},
		),
		skipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "certificates_skipped_total",
				Help:      "Import candidates skipped by reason",
			},
			[]string{LabelReason},
		),
		changes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "changes_total",
				Help:      "Store changes reported after a commit by kind",
			},
			[]string{LabelKind},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordOperation counts one operation and observes its duration.
func (r *Recorder) RecordOperation(operation, status string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Track returns a func that records operation when called with its error.
//
//	done := rec.Track(metrics.OpImport)
//	defer func() { done(err) }()
func (r *Recorder) Track(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		r.RecordOperation(operation, StatusFor(err), time.Since(start))
	}
}

// RecordLoaded adds n loaded certificates.
func (r *Recorder) RecordLoaded(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.loaded.Add(float64(n))
}

// RecordSkipped counts one skipped candidate.
func (r *Recorder) RecordSkipped(reason string) {
	if r == nil {
		return
	}
	r.skipped.WithLabelValues(reason).Inc()
}

// RecordChange counts one reported change.
func (r *Recorder) RecordChange(kind string) {
	if r == nil {
		return
	}
	r.changes.WithLabelValues(kind).Inc()
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
// The file is written to a temp name and renamed so node_exporter never
// reads a partial file.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if path == "" {
		return ErrNoTextfile
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}

// StatusFor maps an operation error to a status label.
func StatusFor(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
