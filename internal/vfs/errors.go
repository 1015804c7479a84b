package vfs

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. Codes are part of the wire contract:
// they travel verbatim in API responses and audit entries, so their
// spelling never changes.
type Code string

const (
	CodeInvalidPath   Code = "InvalidPath"
	CodeUnknownScheme Code = "UnknownScheme"
	CodeNotFound      Code = "NotFound"
	CodeAlreadyExists Code = "AlreadyExists"
	CodeAccessDenied  Code = "AccessDenied"
	CodeAuthRequired  Code = "AuthRequired"
	CodeStorageError  Code = "StorageError"
)

// Governance codes. These are fatal at boot; the codes above surface as
// recoverable, structured results.
const (
	CodeKernelFreezeFileMissing Code = "KernelFreezeFileMissing"
	CodeKernelNotFrozen         Code = "KernelNotFrozen"
	CodeHashChainBroken         Code = "HashChainBroken"
	CodeLedgerInitFailed        Code = "LedgerInitFailed"
)

// Error is a coded error carrying the failing operation and subject
// path when known. It supports errors.Is/errors.As through the chain.
type Error struct {
	Code Code
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch {
	case e.Op != "" && e.Path != "":
		msg = fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Code)
	case e.Op != "":
		msg = fmt.Sprintf("%s: %s", e.Op, e.Code)
	default:
		msg = string(e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so
// errors.Is(err, vfs.ErrNotFound) works across wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidPath   = &Error{Code: CodeInvalidPath}
	ErrUnknownScheme = &Error{Code: CodeUnknownScheme}
	ErrNotFound      = &Error{Code: CodeNotFound}
	ErrAlreadyExists = &Error{Code: CodeAlreadyExists}
	ErrAccessDenied  = &Error{Code: CodeAccessDenied}
	ErrAuthRequired  = &Error{Code: CodeAuthRequired}
	ErrStorageError  = &Error{Code: CodeStorageError}
)

// NewError builds a coded error for op on path.
func NewError(code Code, op, path string) *Error {
	return &Error{Code: code, Op: op, Path: path}
}

// WrapError builds a coded error wrapping an underlying cause.
func WrapError(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

// CodeOf extracts the taxonomy code from err. Errors produced outside
// the taxonomy (I/O failures that escaped wrapping) classify as
// StorageError rather than leaking raw causes to callers.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorageError
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
