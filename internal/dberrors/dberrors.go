// Package dberrors defines the closed error taxonomy shared by every
// component of the engine (row manager, columns, tables, indexes,
// expressions, sorter and merger).
package dberrors

import "fmt"

// Code is the closed set of failure categories the engine can report.
type Code string

const (
	InvalidName         Code = "InvalidName"
	NotFound            Code = "NotFound"
	AlreadyExists       Code = "AlreadyExists"
	NotRemovable        Code = "NotRemovable"
	OutOfRange          Code = "OutOfRange"
	TypeError           Code = "TypeError"
	MalformedExpression Code = "MalformedExpression"
	KeyDuplicate        Code = "KeyDuplicate"
	NoKeyColumn         Code = "NoKeyColumn"
	InvalidOperation    Code = "InvalidOperation"
	OutOfMemory         Code = "OutOfMemory"
)

// Error carries a Code, the operation that detected it and a human
// message. N/A results from operator domain errors are never represented
// by Error — those are values, per the propagation policy.
type Error struct {
	Code    Code
	Op      string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// New constructs an Error for op failing with code, formatting Message
// like fmt.Sprintf.
func New(code Code, op, format string, args ...interface{}) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err is an *Error with the given code, so callers can
// branch on the taxonomy without type-asserting.
func Is(err error, code Code) bool {
	e, ok := err.(*Error)
	return ok && e.Code == code
}
