// Package httperr carries machine-readable error kinds from stores and
// services to the HTTP boundary. Codes are stable SCREAMING_SNAKE strings.
package httperr

import "errors"

type BadRequestError struct {
	code string
	msg  string
}

func (e *BadRequestError) Error() string { return e.msg }
func (e *BadRequestError) Code() string  { return e.code }

func NewBadRequest(code string, msg string) error {
	return &BadRequestError{code: code, msg: msg}
}

func IsBadRequest(err error) bool {
	var e *BadRequestError
	ok := errors.As(err, &e)
	_ = e
	return ok
}

type NotFoundError struct {
	code string
	msg  string
}

func (e *NotFoundError) Error() string { return e.msg }
func (e *NotFoundError) Code() string  { return e.code }

func NewNotFound(code string, msg string) error {
	return &NotFoundError{code: code, msg: msg}
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	ok := errors.As(err, &e)
	_ = e
	return ok
}

type ConflictError struct {
	code string
	msg  string

	// References counts the records blocking a hard delete. Zero for
	// conflicts that are not reference-shaped (races, duplicates).
	References int
}

func (e *ConflictError) Error() string { return e.msg }
func (e *ConflictError) Code() string  { return e.code }

func NewConflict(code string, msg string) error {
	return &ConflictError{code: code, msg: msg}
}

func NewReferencedConflict(code string, msg string, references int) error {
	return &ConflictError{code: code, msg: msg, References: references}
}

func IsConflict(err error) bool {
	var e *ConflictError
	ok := errors.As(err, &e)
	_ = e
	return ok
}

func ConflictReferences(err error) (int, bool) {
	var e *ConflictError
	ok := errors.As(err, &e)
	if !ok {
		return 0, false
	}
	return e.References, true
}

type FailedPreconditionError struct {
	code string
	msg  string

	// Reasons lists the individual precondition codes that failed.
	Reasons []string
}

func (e *FailedPreconditionError) Error() string { return e.msg }
func (e *FailedPreconditionError) Code() string  { return e.code }

func NewFailedPrecondition(code string, msg string, reasons ...string) error {
	return &FailedPreconditionError{code: code, msg: msg, Reasons: reasons}
}

func IsFailedPrecondition(err error) bool {
	var e *FailedPreconditionError
	ok := errors.As(err, &e)
	_ = e
	return ok
}

func PreconditionReasons(err error) ([]string, bool) {
	var e *FailedPreconditionError
	ok := errors.As(err, &e)
	if !ok {
		return nil, false
	}
	return e.Reasons, true
}

// Code returns the stable code for any httperr kind, or "" for other errors.
func Code(err error) string {
	var br *BadRequestError
	if errors.As(err, &br) {
		return br.code
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.code
	}
	var cf *ConflictError
	if errors.As(err, &cf) {
		return cf.code
	}
	var fp *FailedPreconditionError
	if errors.As(err, &fp) {
		return fp.code
	}
	return ""
}
