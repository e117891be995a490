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

// Package process runs external commands and captures their output line
// by line.
package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// ErrEmptyCommand is returned when no command name is given.
var ErrEmptyCommand = errors.New("process: command name is empty")

// Result is the captured outcome of a command.
type Result struct {
	Stdout     []string
	Stderr     []string
	ExitStatus int
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitStatus == 0
}

// Run starts name with args and drains stdout and stderr concurrently
// before waiting, so a chatty child can't block on a full pipe. A non-zero
// exit is reported in Result, not as an error.
func Run(ctx context.Context, name string, args ...string) (*Result, error) {
	if name == "" {
		return nil, ErrEmptyCommand
	}
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", name, err)
	}

	result := &Result{}
	var g errgroup.Group
	g.Go(func() error {
		lines, err := readLines(stdout)
		result.Stdout = lines
		return err
	})
	g.Go(func() error {
		lines, err := readLines(stderr)
		result.Stderr = lines
		return err
	})
	drainErr := g.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return result, fmt.Errorf("process: wait %s: %w", name, err)
		}
		result.ExitStatus = exitErr.ExitCode()
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
	}
	if drainErr != nil {
		return result, fmt.Errorf("process: read output of %s: %w", name, drainErr)
	}
	return result, nil
}

// maxLineSize bounds one captured line.
const maxLineSize = 1024 * 1024

// readLines reads r to EOF. After a scan error the rest of r is discarded
// so the writer never blocks on a full pipe.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		_, _ = io.Copy(io.Discard, r)
		return lines, err
	}
	return lines, nil
}
