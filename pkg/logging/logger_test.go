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

package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.name))
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "warn", Output: &buf})

	logger.Debugf("debug %d", 1)
	logger.Infof("info %d", 2)
	assert.Empty(t, buf.String())

	logger.Warnf("warn %d", 3)
	logger.Error(errors.New("boom"))
	assert.Contains(t, buf.String(), "warn 3")
	assert.Contains(t, buf.String(), "boom")
	assert.False(t, logger.IsDebug())
}

func TestDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Level: "debug", Output: &buf})

	logger.Debug("loading", "path", "/tmp/ca.pem")
	assert.True(t, logger.IsDebug())
	assert.Contains(t, buf.String(), "path=/tmp/ca.pem")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Format: "json", Output: &buf}).With("op_id", "abc")

	logger.Info("imported", "count", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "imported", record["msg"])
	assert.Equal(t, "abc", record["op_id"])
	assert.Equal(t, float64(2), record["count"])
}

func TestMaybeError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Options{Output: &buf})

	logger.MaybeError(nil)
	assert.Empty(t, buf.String())

	logger.MaybeError(errors.New("disk full"))
	assert.Contains(t, buf.String(), "disk full")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Errorf("dropped %s", "silently")
	assert.False(t, logger.IsDebug())
}
