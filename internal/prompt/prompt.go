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

// Package prompt asks the operator for values a command needs but was
// not given on the command line.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	// ErrMissingValue is returned by non-interactive prompters when a
	// value has no default.
	ErrMissingValue = errors.New("prompt: value required but input is not interactive")
)

// Prompter collects answers from the operator.
type Prompter interface {
	// Ask returns the trimmed answer to question, possibly empty.
	Ask(question string) (string, error)

	// Password reads a secret without echo where possible.
	Password(question string) ([]byte, error)

	// Confirm asks a yes/no question. def is returned on a blank answer.
	Confirm(question string, def bool) (bool, error)
}

// Console prompts on a terminal or any reader/writer pair.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

// NewConsole creates a prompter reading from in and writing to out. When
// in is a terminal, passwords are read without echo.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.fd = int(f.Fd())
		c.isTerm = true
	}
	return c
}

// Ask implements Prompter.
func (c *Console) Ask(question string) (string, error) {
	fmt.Fprint(c.out, question)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Password implements Prompter.
func (c *Console) Password(question string) ([]byte, error) {
	if !c.isTerm {
		answer, err := c.Ask(question)
		if err != nil {
			return nil, err
		}
		return []byte(answer), nil
	}
	fmt.Fprint(c.out, question)
	secret, err := term.ReadPassword(c.fd)
	fmt.Fprintln(c.out)
	if err != nil {
		return nil, fmt.Errorf("prompt: read password: %w", err)
	}
	return secret, nil
}

// Confirm implements Prompter.
func (c *Console) Confirm(question string, def bool) (bool, error) {
	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}
	answer, err := c.Ask(fmt.Sprintf("%s %s ", question, hint))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "":
		return def, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// AssumeYes answers every confirmation with yes and never reads input.
// Questions without a default fail with ErrMissingValue.
type AssumeYes struct{}

// Ask implements Prompter.
func (AssumeYes) Ask(string) (string, error) { return "", ErrMissingValue }

// Password implements Prompter.
func (AssumeYes) Password(string) ([]byte, error) { return nil, ErrMissingValue }

// Confirm implements Prompter.
func (AssumeYes) Confirm(string, bool) (bool, error) { return true, nil }

var (
	_ Prompter = (*Console)(nil)
	_ Prompter = AssumeYes{}
)
