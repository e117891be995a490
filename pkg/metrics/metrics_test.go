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

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordOperation(t *testing.T) {
	rec := NewRecorder()

	rec.RecordOperation(OpImport, StatusSuccess, 500*time.Millisecond)
	rec.RecordOperation(OpImport, StatusSuccess, time.Second)
	rec.RecordOperation(OpRemove, StatusError, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(rec.operations))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.operations.WithLabelValues(OpImport, StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.operations.WithLabelValues(OpRemove, StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.duration))
}

func TestTrack(t *testing.T) {
	rec := NewRecorder()

	rec.Track(OpExport)(nil)
	rec.Track(OpExport)(errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.operations.WithLabelValues(OpExport, StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.operations.WithLabelValues(OpExport, StatusError)))
}

func TestCertificateCounters(t *testing.T) {
	rec := NewRecorder()

	rec.RecordLoaded(3)
	rec.RecordLoaded(0)
	rec.RecordSkipped("already_present")
	rec.RecordSkipped("already_present")
	rec.RecordSkipped("alias_in_use")
	rec.RecordChange("added")

	assert.Equal(t, float64(3), testutil.ToFloat64(rec.loaded))
	assert.Equal(t, float64(2), testutil.ToFloat64(rec.skipped.WithLabelValues("already_present")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.changes.WithLabelValues("added")))

	expected := `
# HELP dcm_certificates_skipped_total Import candidates skipped by reason
# TYPE dcm_certificates_skipped_total counter
dcm_certificates_skipped_total{reason="alias_in_use"} 1
dcm_certificates_skipped_total{reason="already_present"} 2
`
	err := testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "dcm_certificates_skipped_total")
	assert.NoError(t, err)
}

func TestNilRecorder(t *testing.T) {
	var rec *Recorder

	assert.NotPanics(t, func() {
		rec.RecordOperation(OpView, StatusSuccess, time.Second)
		rec.Track(OpView)(nil)
		rec.RecordLoaded(1)
		rec.RecordSkipped("x")
		rec.RecordChange("added")
	})
	assert.Nil(t, rec.Registry())
	assert.NoError(t, rec.WriteTextfile("/nonexistent/dir/file.prom"))
}

func TestWriteTextfile(t *testing.T) {
	rec := NewRecorder()
	rec.RecordOperation(OpCreate, StatusSuccess, time.Millisecond)

	path := filepath.Join(t.TempDir(), "dcm.prom")
	require.NoError(t, rec.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `dcm_operations_total{operation="create",status="success"} 1`)

	assert.ErrorIs(t, rec.WriteTextfile(""), ErrNoTextfile)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusFor(nil))
	assert.Equal(t, StatusError, StatusFor(errors.New("x")))
}
