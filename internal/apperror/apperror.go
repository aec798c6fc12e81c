// Package apperror defines the application error taxonomy and utilities to
// map validation failures into client-facing messages.
package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Kind classifies an application error for HTTP mapping and logging.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindProvider   Kind = "provider"
	KindStorage    Kind = "storage"
	KindForward    Kind = "forward"
)

// Error is a typed application error. UpstreamStatus is only set for
// provider and forward errors that observed an HTTP response.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the error kind to the response status code. Provider
// errors pass through the nearest upstream status when one was observed.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindProvider:
		if e.UpstreamStatus >= 400 && e.UpstreamStatus < 600 {
			return e.UpstreamStatus
		}
		return http.StatusBadGateway
	case KindForward:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Provider(status int, message string, err error) *Error {
	return &Error{Kind: KindProvider, Message: message, UpstreamStatus: status, Err: err}
}

func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

func Forward(status int, message string, err error) *Error {
	return &Error{Kind: KindForward, Message: message, UpstreamStatus: status, Err: err}
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == kind
}

// From extracts the application error from err, wrapping unknown errors
// so every failure maps to a status code.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindStorage, Message: "internal error", Err: err}
}

var (
	errRequired     = errors.New("is required")
	errPhoneFormat  = errors.New("must be an E.164 phone number, e.g. +15551234567")
	errInvalidTime  = errors.New("must be a valid RFC3339 timestamp")
	errInvalidEmail = errors.New("must be a valid email address")
	errOutOfRange   = errors.New("is out of the allowed range")
)

var customErrors = map[string]error{
	"required":  errRequired,
	"e164phone": errPhoneFormat,
	"datetime":  errInvalidTime,
	"email":     errInvalidEmail,
	"min":       errOutOfRange,
	"max":       errOutOfRange,
}

// CustomValidationError converts validator errors into a standardized
// per-field message list for 400 responses.
func CustomValidationError(err error) []map[string]string {
	errList := make([]map[string]string, 0)

	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		for _, e := range validationErr {
			errMsg := fmt.Sprintf("%s is invalid", e.Field())
			if v, ok := customErrors[e.Tag()]; ok {
				errMsg = v.Error()
			}
			errList = append(errList, map[string]string{e.Field(): errMsg})
		}
	}
	return errList
}
