package campaign

import (
	"errors"
	"fmt"

	"github.com/roach88/launchpad/internal/amount"
)

// Code categorizes a rejected campaign operation.
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeNoBasicSetup       Code = "NO_BASIC_SETUP"
	CodeUnapprovedConfig   Code = "UNAPPROVED_CONFIG"
	CodeInvalidCurrency    Code = "INVALID_CURRENCY"
	CodeAlreadySubscribed  Code = "ALREADY_SUBSCRIBED"
	CodeAlreadyFinishedUp  Code = "ALREADY_CALLED_FINISH_UP"
	CodeAlreadyCreated     Code = "ALREADY_CREATED"
	CodeAlreadyClaimed     Code = "ALREADY_CLAIMED"
	CodeAlreadyExist       Code = "ALREADY_EXIST"
	CodeInvalidIndex       Code = "INVALID_INDEX"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeInvalidAddress     Code = "INVALID_ADDRESS"
	CodeInvalidArray       Code = "INVALID_ARRAY"
	CodeInvalidFee         Code = "INVALID_FEE"
	CodeInvalidRange       Code = "INVALID_RANGE"
	CodeCannotInitialize   Code = "CANNOT_INITIALIZE"
	CodeCannotConfigure    Code = "CANNOT_CONFIGURE"
	CodeCannotCreateLp     Code = "CANNOT_CREATE_LP"
	CodeCannotBuyToken     Code = "CANNOT_BUY_TOKEN"
	CodeCannotRefundExcess Code = "CANNOT_REFUND_EXCESS"
	CodeCannotReturnFund   Code = "CANNOT_RETURN_FUND"
	CodeNoRights           Code = "NO_RIGHTS"
	CodeIdoNotEndedYet     Code = "IDO_NOT_ENDED_YET"
	CodeSoftCapNotMet      Code = "SOFT_CAP_NOT_MET"
	CodeClaimFailed        Code = "CLAIM_FAILED"
	CodeWrongValue         Code = "WRONG_VALUE"
	CodeNotReady           Code = "NOT_READY"
	CodeNotEnabled         Code = "NOT_ENABLED"
	CodeNotWhitelisted     Code = "NOT_WHITELISTED"
	CodeValueExceeded      Code = "VALUE_EXCEEDED"
	CodeLpNotCreated       Code = "LP_NOT_CREATED"
	CodeAborted            Code = "ABORTED"
	CodeOverflow           Code = "OVERFLOW"
	CodeTransferFailed     Code = "TRANSFER_FAILED"
)

// Error is a rejected campaign operation. Rejections never leave partial
// state behind: every check runs before the first mutation.
type Error struct {
	Code Code

	// Op is the operation that was rejected, e.g. "subscribe".
	Op string

	// Message is a human-readable description.
	Message string
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, &campaign.Error{Code: campaign.CodeNotReady}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func reject(op string, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// arith converts an arithmetic failure into an OVERFLOW rejection.
func arith(op string, err error) *Error {
	return &Error{Code: CodeOverflow, Op: op, Message: err.Error()}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// err is nil or carries no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotReady reports a query made while the tally is pending.
func IsNotReady(err error) bool {
	return CodeOf(err) == CodeNotReady
}

// IsAborted reports an operation rejected because the campaign is
// cancelled.
func IsAborted(err error) bool {
	return CodeOf(err) == CodeAborted
}

// IsArithmetic reports whether err came from a checked amount operation.
func IsArithmetic(err error) bool {
	return errors.Is(err, amount.ErrOverflow) ||
		errors.Is(err, amount.ErrUnderflow) ||
		errors.Is(err, amount.ErrDivisionByZero) ||
		CodeOf(err) == CodeOverflow
}
