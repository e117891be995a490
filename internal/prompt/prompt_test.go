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

package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConsole(input string) (*Console, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return NewConsole(strings.NewReader(input), out), out
}

func TestConsole_Ask(t *testing.T) {
	c, out := newConsole("  answer  \nlast")

	got, err := c.Ask("Question? ")
	require.NoError(t, err)
	assert.Equal(t, "answer", got)
	assert.Equal(t, "Question? ", out.String())

	got, err = c.Ask("Again? ")
	require.NoError(t, err)
	assert.Equal(t, "last", got, "final line without newline is accepted")

	_, err = c.Ask("EOF? ")
	assert.Error(t, err)
}

func TestConsole_PasswordWithoutTerminal(t *testing.T) {
	c, _ := newConsole("s3cret\n")
	got, err := c.Password("Password: ")
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cret"), got)
}

func TestConsole_Confirm(t *testing.T) {
	tests := []struct {
		input string
		def   bool
		want  bool
	}{
		{"y\n", false, true},
		{"YES\n", false, true},
		{"n\n", true, false},
		{"whatever\n", true, false},
		{"\n", true, true},
		{"\n", false, false},
	}
	for _, tt := range tests {
		c, _ := newConsole(tt.input)
		got, err := c.Confirm("Proceed?", tt.def)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q default %v", tt.input, tt.def)
	}
}

func TestAssumeYes(t *testing.T) {
	var p Prompter = AssumeYes{}

	ok, err := p.Confirm("Proceed?", false)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.Ask("x")
	assert.ErrorIs(t, err, ErrMissingValue)
	_, err = p.Password("x")
	assert.ErrorIs(t, err, ErrMissingValue)
}
