package utils

import "net/http"

// Error codes surfaced to clients. Handlers map these to HTTP statuses.
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeComboMismatch       = "COMBO_MISMATCH"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInsufficientPoints  = "INSUFFICIENT_POINTS"
	CodeNegativeBalance     = "NEGATIVE_BALANCE"
	CodeVoucherNotFound     = "VOUCHER_NOT_FOUND"
	CodeVoucherExpired      = "VOUCHER_EXPIRED"
	CodeVoucherInactive     = "VOUCHER_INACTIVE"
	CodeVoucherFullyUsed    = "VOUCHER_FULLY_USED"
	CodeVoucherRedeemed     = "VOUCHER_ALREADY_REDEEMED"
	CodeVoucherAssigned     = "VOUCHER_ALREADY_ASSIGNED"
	CodeVoucherRestricted   = "VOUCHER_RESTRICTED"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeOperationFailed     = "OPERATION_FAILED"
)

// AppError is a structured, user-facing error: a stable code, a summary,
// optional detail, and an actionable hint.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Action  string `json:"action,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func NewAppError(code, message, details, action string) *AppError {
	return &AppError{Code: code, Message: message, Details: details, Action: action}
}

// HTTPStatus maps an error code to the response status.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case CodeValidationError, CodeComboMismatch:
		return http.StatusBadRequest
	case CodeInsufficientBalance, CodeInsufficientPoints:
		return http.StatusPaymentRequired
	case CodeNotFound, CodeVoucherNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeVoucherExpired, CodeVoucherInactive, CodeVoucherFullyUsed,
		CodeVoucherRedeemed, CodeVoucherAssigned, CodeVoucherRestricted, CodeNegativeBalance:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// AsAppError unwraps err into an AppError, or wraps it as OPERATION_FAILED.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return &AppError{
		Code:    CodeOperationFailed,
		Message: "Something went wrong",
		Details: err.Error(),
		Action:  "Please try again or contact support",
	}
}
