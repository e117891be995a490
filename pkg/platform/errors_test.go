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

package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	assert.Equal(t, "CPFB003: Invalid password.", Describe(CodeInvalidPassword))
	assert.Equal(t, "CPF22F0: Unexpected errors occurred during processing.", Describe(CodeUnexpected))
	assert.Equal(t, "CPFBFFF", Describe("CPFBFFF"), "unknown codes are surfaced as-is")
}

func TestError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewError("commit", CodeStoreNotFound, cause)

	assert.Equal(t, "commit: CPFB002: Certificate store does not exist.: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("import: %w", err)
	assert.Equal(t, CodeStoreNotFound, CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(cause))

	assert.Equal(t, "export: XYZ", NewError("export", "XYZ", nil).Error())
}

func TestIsSystemStore(t *testing.T) {
	assert.True(t, IsSystemStore("system"))
	assert.True(t, IsSystemStore("*SYSTEM"))
	assert.True(t, IsSystemStore(" System "))
	assert.False(t, IsSystemStore("/tmp/store.jks"))
}
