// internal/apperror/apperror.go
package apperror

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller is expected to react.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindConflict       Kind = "conflict"
	KindNotFound       Kind = "not_found"
	KindInfrastructure Kind = "infrastructure"
)

const (
	CodeInvalidProduct    = "INVALID_PRODUCT"
	CodeInvalidCampaign   = "INVALID_CAMPAIGN"
	CodeInvalidPledge     = "INVALID_PLEDGE"
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeInvalidVendor     = "INVALID_VENDOR"
	CodeInvalidRadius     = "INVALID_RADIUS"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeLocationRequired  = "LOCATION_REQUIRED"

	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeCampaignNotActive = "CAMPAIGN_NOT_ACTIVE"
	CodeDeadlinePassed    = "DEADLINE_PASSED"
	CodeInvalidTransition = "INVALID_TRANSITION"

	CodeProductNotFound  = "PRODUCT_NOT_FOUND"
	CodeCampaignNotFound = "CAMPAIGN_NOT_FOUND"
	CodeVendorNotFound   = "VENDOR_NOT_FOUND"
	CodeOrderNotFound    = "ORDER_NOT_FOUND"

	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeLockTimeout      = "LOCK_TIMEOUT"
)

// Error is the structured error every service returns. Two errors are
// considered equal by errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, format string, args ...interface{}) *Error {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

func Conflict(code, format string, args ...interface{}) *Error {
	return New(KindConflict, code, fmt.Sprintf(format, args...))
}

func NotFound(code, format string, args ...interface{}) *Error {
	return New(KindNotFound, code, fmt.Sprintf(format, args...))
}

// Unavailable wraps a store or transport failure. The caller may retry.
func Unavailable(err error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    KindInfrastructure,
		Code:    CodeStoreUnavailable,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// Sentinels for errors.Is matching.
var (
	ErrInvalidProduct    = New(KindValidation, CodeInvalidProduct, "invalid product")
	ErrInvalidCampaign   = New(KindValidation, CodeInvalidCampaign, "invalid campaign")
	ErrInvalidPledge     = New(KindValidation, CodeInvalidPledge, "invalid pledge")
	ErrInvalidCoordinate = New(KindValidation, CodeInvalidCoordinate, "invalid coordinate")
	ErrInvalidVendor     = New(KindValidation, CodeInvalidVendor, "invalid vendor")
	ErrInvalidRadius     = New(KindValidation, CodeInvalidRadius, "invalid radius")
	ErrInvalidRequest    = New(KindValidation, CodeInvalidRequest, "invalid request")
	ErrLocationRequired  = New(KindValidation, CodeLocationRequired, "location is required")

	ErrInsufficientStock = New(KindConflict, CodeInsufficientStock, "insufficient stock")
	ErrCampaignNotActive = New(KindConflict, CodeCampaignNotActive, "campaign is not accepting pledges")
	ErrDeadlinePassed    = New(KindConflict, CodeDeadlinePassed, "campaign deadline has passed")
	ErrInvalidTransition = New(KindConflict, CodeInvalidTransition, "invalid campaign status transition")

	ErrProductNotFound  = New(KindNotFound, CodeProductNotFound, "product not found")
	ErrCampaignNotFound = New(KindNotFound, CodeCampaignNotFound, "campaign not found")
	ErrVendorNotFound   = New(KindNotFound, CodeVendorNotFound, "vendor not found")
	ErrOrderNotFound    = New(KindNotFound, CodeOrderNotFound, "order not found")

	ErrStoreUnavailable = New(KindInfrastructure, CodeStoreUnavailable, "store unavailable")
	ErrLockTimeout      = New(KindInfrastructure, CodeLockTimeout, "timed out waiting for aggregate lock")
)

// KindOf reports the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}
