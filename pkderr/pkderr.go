// Package pkderr centralises the error taxonomy every verification
// stage in this module raises: a small, closed set of Kind values with
// structured detail, wrapped with github.com/pkg/errors so stack
// context survives from der/certx/cms up through pa. Categories mirror
// original_source/services/pa-service/src/common/error_codes.h's
// code-ranges-by-category grouping (Parse/Validation/Service), without
// that header's numeric ranges or HTTP-status coupling — pkderr is
// core-internal; httpapi (§6.1) is the one place a Kind maps to an
// HTTP status.
package pkderr

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/oid"
)

// Kind is the closed set of failure categories the core raises.
type Kind string

const (
	Asn1Malformed        Kind = "Asn1Malformed"
	CertMalformed        Kind = "CertMalformed"
	CmsMalformed         Kind = "CmsMalformed"
	SignerCertMissing    Kind = "SignerCertMissing"
	UnsupportedAlgorithm Kind = "UnsupportedAlgorithm"
	SigInvalid           Kind = "SigInvalid"
	SodSignatureInvalid  Kind = "SodSignatureInvalid"
	SodMultipleSigners   Kind = "SodMultipleSigners"
	DgHashMismatch       Kind = "DgHashMismatch"
	ChainNoIssuer        Kind = "ChainNoIssuer"
	ChainTooDeep         Kind = "ChainTooDeep"
	CertExpired          Kind = "CertExpired"
	CertRevoked          Kind = "CertRevoked"
	RevocationStale      Kind = "RevocationStale"
	UnknownCriticalExt   Kind = "UnknownCriticalExt"
	Cancelled            Kind = "Cancelled"
)

// Category groups Kinds the way error_codes.h groups its exception
// classes, used only by httpapi's kind→status mapping — never by core
// control flow.
type Category string

const (
	CategoryParse      Category = "parse"
	CategoryValidation Category = "validation"
	CategoryService    Category = "service"
)

// Category reports which group k belongs to.
func (k Kind) Category() Category {
	switch k {
	case Asn1Malformed, CertMalformed, CmsMalformed:
		return CategoryParse
	case SignerCertMissing, UnsupportedAlgorithm, SigInvalid, SodSignatureInvalid,
		SodMultipleSigners, DgHashMismatch, ChainNoIssuer, ChainTooDeep, CertExpired,
		CertRevoked, RevocationStale, UnknownCriticalExt:
		return CategoryValidation
	default:
		return CategoryService
	}
}

// Error is a Kind plus structured, optional detail fields — a tagged
// union via one struct rather than one exception type per Kind, the
// idiomatic Go analogue of the source's per-kind exception classes.
type Error struct {
	Kind    Kind
	Message string

	Offset int                   // byte offset, for Asn1Malformed/CertMalformed/CmsMalformed
	OID    oid.ObjectIdentifier  // algorithm or extension OID, for UnsupportedAlgorithm/UnknownCriticalExt
	DG     int                   // data group number, for DgHashMismatch
	cause  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds a bare Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error wrapping cause, preserving cause's stack trace
// via github.com/pkg/errors.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.Wrap(cause, message)}
}

// WithOffset attaches a byte offset to a parse-category error.
func (e *Error) WithOffset(offset int) *Error {
	e.Offset = offset
	return e
}

// WithOID attaches an algorithm/extension OID to the error.
func (e *Error) WithOID(id oid.ObjectIdentifier) *Error {
	e.OID = id
	return e
}

// WithDG attaches a data-group number to the error.
func (e *Error) WithDG(dg int) *Error {
	e.DG = dg
	return e
}

// Is reports whether err is a *Error of the given kind, the idiomatic
// errors.Is hook.
func Is(err error, kind Kind) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Kind == kind
}
