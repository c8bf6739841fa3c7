package constants

import (
	"errors"
	"net/http"
)

// CodedError is an error that knows which HTTP status it maps to.
type CodedError struct {
	code int
	msg  string
}

func NewCodedError(code int, msg string) *CodedError {
	return &CodedError{code: code, msg: msg}
}

func (e *CodedError) Error() string {
	return e.msg
}

func (e *CodedError) Code() int {
	return e.code
}

var (
	ErrDBNotFound     = NewCodedError(http.StatusNotFound, "not found")
	ErrInvalidPayload = NewCodedError(http.StatusBadRequest, "invalid payload")
	ErrNotCached      = NewCodedError(http.StatusNotFound, "availability text has no cached extraction")

	// источник данных недоступен, пайплайн продолжает с остальными
	ErrSourceUnavailable = errors.New("source unavailable")

	ErrTransientService = errors.New("transient extraction service error")
	ErrFatalService     = errors.New("fatal extraction service error")

	// ошибки конфигурации прерывают весь батч до начала работы
	ErrMissingCredential = errors.New("missing extraction service credential")
	ErrNoUsableModel     = errors.New("no usable generative model")

	ErrMissingInputFile = errors.New("input file does not exist")
)
