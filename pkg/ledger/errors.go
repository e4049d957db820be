package ledger

import "fmt"

// Code is a machine-readable failure reason.
type Code string

const (
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeNotFound          Code = "PRODUCT_NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeDuplicateProduct  Code = "DUPLICATE_PRODUCT"
	CodeAlreadyAuthorized Code = "ALREADY_AUTHORIZED"
	CodeNotAuthorized     Code = "NOT_AUTHORIZED"
	CodeCannotRevokeAdmin Code = "CANNOT_REVOKE_ADMIN"
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeInvalidTarget     Code = "INVALID_TARGET"
	CodeInvalidRole       Code = "INVALID_ROLE"
)

// LedgerError is a precondition failure. Every LedgerError aborts its
// operation without writing anything.
type LedgerError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *LedgerError) Error() string {
	return e.Message
}

// Is matches on the code. INVALID_TARGET and INVALID_ROLE also match
// ErrInvalidInput.
func (e *LedgerError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == CodeInvalidInput && (e.Code == CodeInvalidTarget || e.Code == CodeInvalidRole)
}

var (
	ErrUnauthorized      = &LedgerError{Code: CodeUnauthorized, Message: "caller is not authorized"}
	ErrNotFound          = &LedgerError{Code: CodeNotFound, Message: "product not found or inactive"}
	ErrInvalidTransition = &LedgerError{Code: CodeInvalidTransition, Message: "invalid stage transition"}
	ErrDuplicateProduct  = &LedgerError{Code: CodeDuplicateProduct, Message: "product already registered"}
	ErrAlreadyAuthorized = &LedgerError{Code: CodeAlreadyAuthorized, Message: "stakeholder already authorized"}
	ErrNotAuthorized     = &LedgerError{Code: CodeNotAuthorized, Message: "stakeholder is not authorized"}
	ErrCannotRevokeAdmin = &LedgerError{Code: CodeCannotRevokeAdmin, Message: "the admin cannot be revoked"}
	ErrInvalidInput      = &LedgerError{Code: CodeInvalidInput, Message: "invalid input"}
)

func newError(code Code, format string, args ...any) *LedgerError {
	return &LedgerError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports a rejected stage transition.
type TransitionError struct {
	Code    Code   `json:"code"`
	Handle  Handle `json:"handle"`
	From    Stage  `json:"from"`
	To      int    `json:"to"`
	Message string `json:"message"`
}

func (e *TransitionError) Error() string {
	return e.Message
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	t, ok := target.(*LedgerError)
	return ok && t.Code == CodeInvalidTransition
}

func newTransitionError(h Handle, from, to Stage) *TransitionError {
	var msg string
	if !to.Valid() {
		msg = fmt.Sprintf("stage %d is outside the stage range", int(to))
	} else {
		msg = fmt.Sprintf("transition from %s to %s is not allowed: stages only move forward", from, to)
	}
	return &TransitionError{
		Code:    CodeInvalidTransition,
		Handle:  h,
		From:    from,
		To:      int(to),
		Message: msg,
	}
}
