package utils

import "errors"

// Business-rule errors are sentinels so handlers can map each one to a
// distinct HTTP status and callers can prompt accordingly (e.g. ask for a
// different article code on a duplicate).
var (
	ErrorRecordNotFound     = errors.New("record not found")
	ErrorInsufficientStock  = errors.New("insufficient stock")
	ErrorInvalidTransition  = errors.New("invalid state transition")
	ErrorValidation         = errors.New("validation failed")
	ErrorDuplicateCode      = errors.New("duplicate article code")
	ErrorStorageUnavailable = errors.New("storage unavailable")
)

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
