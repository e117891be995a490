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

// Package correlation tags every dcmtools operation with an ID that is
// carried in the context and attached to log records.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

// OperationIDKey is the context key for the operation ID.
const OperationIDKey contextKey = "operation-id"

// LogField is the structured log attribute that carries the ID.
const LogField = "op_id"

// WithOperationID returns a copy of ctx carrying id.
func WithOperationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, OperationIDKey, id)
}

// OperationID returns the ID carried by ctx, or "".
func OperationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}

// NewID generates a new UUID v4 operation ID.
func NewID() string {
	return uuid.New().String()
}

// Ensure returns ctx and its operation ID, generating and attaching one
// when ctx has none.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := OperationID(ctx); id != "" {
		return ctx, id
	}
	id := NewID()
	return WithOperationID(ctx, id), id
}
