package errcode

import "fmt"

// Err is the wire-level error carried back to API callers.
type Err struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Err) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

func NewErr(code int, msg string) *Err {
	return &Err{Code: code, Msg: msg}
}

// NewCustomErr wraps an ad-hoc message under the generic custom code.
func NewCustomErr(msg string) *Err {
	return NewErr(CodeCustom, msg)
}

const (
	CodeOK     = 200
	CodeCustom = 7000

	// client faults
	CodeBadParams       = 7001
	CodeNotFound        = 7002
	CodeExpired         = 7003
	CodeAmountMismatch  = 7004
	CodeBadSignature    = 7005
	CodeAlreadyClaimed  = 7006
	CodeRuleUnavailable = 7007

	// server faults
	CodeChainError   = 7100
	CodePersistError = 7101
	CodeInternal     = 7500
)

var (
	ErrBadParams       = NewErr(CodeBadParams, "invalid request params")
	ErrNotFound        = NewErr(CodeNotFound, "record not found")
	ErrExpired         = NewErr(CodeExpired, "claim challenge expired")
	ErrAmountMismatch  = NewErr(CodeAmountMismatch, "reward amount changed, request a new challenge")
	ErrBadSignature    = NewErr(CodeBadSignature, "signature invalid")
	ErrAlreadyClaimed  = NewErr(CodeAlreadyClaimed, "reward already claimed")
	ErrRuleUnavailable = NewErr(CodeRuleUnavailable, "reward rule unavailable")
	ErrChain           = NewErr(CodeChainError, "blockchain request failed, retry later")
	ErrPersist         = NewErr(CodePersistError, "settlement persistence failed")
	ErrInternal        = NewErr(CodeInternal, "internal error")
)

// IsClientFault reports whether the code identifies a caller mistake rather
// than a server-side failure.
func IsClientFault(code int) bool {
	return code >= CodeCustom && code < CodeChainError
}
