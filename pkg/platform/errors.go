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
)

// Diagnostic codes reported by the certificate store.
const (
	CodeMissingParameter = "CPFB001"
	CodeStoreNotFound    = "CPFB002"
	CodeInvalidPassword  = "CPFB003"
	CodeStoreNotAuth     = "CPFB004"
	CodeExportFileExists = "CPFB005"
	CodeGeneric          = "CPFB006"
	CodeFileNotAuth      = "CPFB007"
	CodeBadStoreFormat   = "CPFB008"
	CodeBadFileFormat    = "CPFB009"
	CodeOptionMissing    = "CPFB00A"
	CodeImportNotFound   = "CPFB010"
	CodeImportPassword   = "CPFB011"
	CodeDuplicateKey     = "CPFB012"
	CodeUnexpected       = "CPF22F0"
)

// messages is filled once at package initialization and only read after.
var messages = map[string]string{
	CodeMissingParameter: "One or more input parameters is NULL or missing.",
	CodeStoreNotFound:    "Certificate store does not exist.",
	CodeInvalidPassword:  "Invalid password.",
	CodeStoreNotAuth:     "User not authorized to certificate store.",
	CodeExportFileExists: "Export file already exists.",
	CodeGeneric:          "An error occurred.",
	CodeFileNotAuth:      "User not authorized to directory or file.",
	CodeBadStoreFormat:   "The format name for the certificate store is not valid.",
	CodeBadFileFormat:    "The format name for the export or import file is not valid.",
	CodeOptionMissing:    "Required option of the operating system is not installed.",
	CodeImportNotFound:   "Import file does not exist.",
	CodeImportPassword:   "Import file password is not valid.",
	CodeDuplicateKey:     "Duplicate key exists.",
	CodeUnexpected:       "Unexpected errors occurred during processing.",
}

// Describe resolves a diagnostic code to "CODE: text". Unknown codes are
// returned unchanged.
func Describe(code string) string {
	if text, ok := messages[code]; ok {
		return fmt.Sprintf("%s: %s", code, text)
	}
	return code
}

// Error is a failure reported by a store accessor.
type Error struct {
	// Op is the accessor operation that failed.
	Op string
	// Code is the platform diagnostic code, if any.
	Code string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	msg := e.Op
	if e.Code != "" {
		msg += ": " + Describe(e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an accessor error.
func NewError(op, code string, err error) *Error {
	return &Error{Op: op, Code: code, Err: err}
}

// CodeOf returns the diagnostic code carried by err, or "".
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
