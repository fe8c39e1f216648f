// Package apperr is the error taxonomy shared by the routine cache, its
// storage and remote adapters, and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	Network
	Authentication
	Unauthorized
	DataNotFound
	DataParsing
	Database
	Sync
	Validation
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case Authentication:
		return "authentication"
	case Unauthorized:
		return "unauthorized"
	case DataNotFound:
		return "data_not_found"
	case DataParsing:
		return "data_parsing"
	case Database:
		return "database"
	case Sync:
		return "sync"
	case Validation:
		return "validation"
	default:
		return "unknown"
	}
}

// FieldError is used to indicate an error with a specific input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
	Fields  []FieldError
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func NewValidation(message string, fields ...FieldError) *Error {
	return &Error{Kind: Validation, Message: message, Fields: fields}
}

// KindOf returns the Kind of the first *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Classify keeps an existing *Error as is and wraps anything else with kind.
func Classify(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Wrap(kind, op, err)
}
