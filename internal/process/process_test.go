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

package process

import (
	"bufio"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesBothStreams(t *testing.T) {
	res, err := Run(context.Background(), "sh", "-c", "echo one; echo two; echo oops >&2")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, []string{"one", "two"}, res.Stdout)
	assert.Equal(t, []string{"oops"}, res.Stderr)
}

func TestRun_NonZeroExit(t *testing.T) {
	res, err := Run(context.Background(), "sh", "-c", "echo failing >&2; exit 3")
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitStatus)
	assert.Equal(t, []string{"failing"}, res.Stderr)
}

func TestRun_LargeOutputDoesNotDeadlock(t *testing.T) {
	script := "i=0; while [ $i -lt 20000 ]; do echo line-$i; echo err-$i >&2; i=$((i+1)); done"
	res, err := Run(context.Background(), "sh", "-c", script)
	require.NoError(t, err)
	assert.Len(t, res.Stdout, 20000)
	assert.Len(t, res.Stderr, 20000)
	assert.True(t, strings.HasPrefix(res.Stdout[19999], "line-"))
}

func TestRun_OverlongLineDrainsOutput(t *testing.T) {
	// One line past the limit, then enough output to fill a pipe buffer.
	script := "head -c 1100000 /dev/zero | tr '\\0' x; echo; " +
		"i=0; while [ $i -lt 20000 ]; do echo after-$i; i=$((i+1)); done; echo done >&2"

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := Run(ctx, "sh", "-c", script)
	require.Error(t, err)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, res)
	assert.True(t, res.Success(), "the child ran to completion")
	assert.Equal(t, []string{"done"}, res.Stderr)
}

func TestReadLines_DiscardsRestAfterError(t *testing.T) {
	r := strings.NewReader(strings.Repeat("y", maxLineSize+1) + "\nnext\n")
	lines, err := readLines(r)
	assert.ErrorIs(t, err, bufio.ErrTooLong)
	assert.Empty(t, lines)
	assert.Zero(t, r.Len(), "reader is drained")
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = Run(context.Background(), "/nonexistent/binary")
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = Run(ctx, "sleep", "5")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
