package services

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyPaid = errors.New("recurring expense is already paid for this period")
	ErrNotPaid     = errors.New("recurring expense is not marked as paid")
)

// StoreError reports a failed store call. The wrapped error keeps
// storage.ErrNotFound matchable with errors.Is.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
