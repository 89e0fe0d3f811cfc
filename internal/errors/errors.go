package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess     Code = 0
	CodeInternal    Code = 1
	CodeUsage       Code = 2
	CodeAuth        Code = 10
	CodeRateLimited Code = 11
	CodeUnavailable Code = 12
	CodeUnsupported Code = 13
	CodeStale       Code = 14
	CodeBlocked     Code = 16
	CodeNotFound    Code = 17
	CodeWallet      Code = 20
	CodeRejected    Code = 21
	CodeExecution   Code = 22
	CodeExpired     Code = 23
)

// Kind classifies domain failures so callers can branch without parsing messages.
type Kind string

const (
	KindNone                     Kind = ""
	KindNotFound                 Kind = "not_found"
	KindAddressLookupFailed      Kind = "address_lookup_failed"
	KindInvalidAddressFormat     Kind = "invalid_address_format"
	KindWalletNotConnected       Kind = "wallet_not_connected"
	KindUserRejectedSwitch       Kind = "user_rejected_switch"
	KindSwitchUnsupported        Kind = "switch_unsupported"
	KindChainMismatchAfterSwitch Kind = "chain_mismatch_after_switch"
	KindClientUnavailable        Kind = "client_unavailable"
	KindInsufficientBalance      Kind = "insufficient_balance"
	KindApprovalRejected         Kind = "approval_rejected"
	KindSigningRejected          Kind = "signing_rejected"
	KindSubmissionFailed         Kind = "submission_failed"
	KindQuoteExpired             Kind = "quote_expired"
	KindPriceMoved               Kind = "price_moved"
	KindSimulationFailed         Kind = "simulation_failed"
)

var kindCodes = map[Kind]Code{
	KindNotFound:                 CodeNotFound,
	KindAddressLookupFailed:      CodeUnavailable,
	KindInvalidAddressFormat:     CodeUsage,
	KindWalletNotConnected:       CodeWallet,
	KindUserRejectedSwitch:       CodeRejected,
	KindSwitchUnsupported:        CodeUnsupported,
	KindChainMismatchAfterSwitch: CodeWallet,
	KindClientUnavailable:        CodeUnavailable,
	KindInsufficientBalance:      CodeExecution,
	KindApprovalRejected:         CodeRejected,
	KindSigningRejected:          CodeRejected,
	KindSubmissionFailed:         CodeExecution,
	KindQuoteExpired:             CodeExpired,
	KindPriceMoved:               CodeExpired,
	KindSimulationFailed:         CodeExecution,
}

// Code returns the exit code a failure of this kind maps to.
func (k Kind) Code() Code {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return CodeInternal
}

// Retryable reports whether repeating the same operation can succeed without user changes.
func (k Kind) Retryable() bool {
	switch k {
	case KindChainMismatchAfterSwitch, KindClientUnavailable, KindAddressLookupFailed:
		return true
	default:
		return false
	}
}

// Error is a typed CLI error that carries a stable error code.
type Error struct {
	Code    Code
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func NewKind(kind Kind, message string) *Error {
	return &Error{Code: kind.Code(), Kind: kind, Message: message}
}

func WrapKind(kind Kind, message string, cause error) *Error {
	return &Error{Code: kind.Code(), Kind: kind, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// KindOf returns the first classified kind in the error chain.
func KindOf(err error) Kind {
	for err != nil {
		var target *Error
		if !errors.As(err, &target) {
			return KindNone
		}
		if target.Kind != KindNone {
			return target.Kind
		}
		err = target.Cause
	}
	return KindNone
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}
