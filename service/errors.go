package service

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"syscall"

	"google.golang.org/api/googleapi"
)

type errTmpIf interface{ Temporary() bool }
type errTmp struct{ error }

func (t errTmp) Temporary() bool    { return true }
func (t *errTmp) Unwrap() error     { return t.error }
func MakeTemporary(err error) error { return &errTmp{err} }

// Temporary inspects the error trace and returns whether the error is transient
func Temporary(err error) bool {
	var uerr *neturl.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	//First override some default syscall temporary statuses
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.EBUSY, syscall.ECANCELED, syscall.ECONNABORTED, syscall.ECONNRESET, syscall.ENOMEM, syscall.EPIPE:
			return true
		}
	}

	//first check explicitely marked error
	var tmp errTmpIf
	if errors.As(err, &tmp) {
		return tmp.Temporary()
	}
	var gapiError *googleapi.Error
	if errors.As(err, &gapiError) {
		return gapiError.Code == 429 || gapiError.Code == 500
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// MergeErrors, appending texts
// if priorityToErr is true, priority to the permanent error then to the temporary
// else, priority to no error, then to the temporary and finally to the permanent error.
func MergeErrors(priorityToError bool, err error, newErrs ...error) error {
	if len(newErrs) == 0 {
		return err
	}
	newErr := newErrs[0]

	if newErr == nil {
		if !priorityToError {
			return nil
		}
	} else if err == nil {
		err = newErr
	} else if priorityToError != Temporary(err) {
		err = fmt.Errorf("%w\n %v", err, newErr)
	} else {
		err = fmt.Errorf("%w\n %v", newErr, err)
	}
	return MergeErrors(priorityToError, err, newErrs[1:]...)
}

// ErrQuery is returned when the catalog query itself fails. It aborts the run.
type ErrQuery struct {
	Err error
}

func (e ErrQuery) Error() string {
	return fmt.Sprintf("catalog query failed: %v", e.Err)
}

func (e ErrQuery) Unwrap() error { return e.Err }

// ErrFetch is returned when a scene cannot be retrieved to local storage
type ErrFetch struct {
	Scene string
	Err   error
}

func (e ErrFetch) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Scene, e.Err)
}

func (e ErrFetch) Unwrap() error { return e.Err }

// ErrDecode is returned when a band file is corrupted or cannot be read
type ErrDecode struct {
	File string
	Err  error
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("decode %s: %v", e.File, e.Err)
}

func (e ErrDecode) Unwrap() error { return e.Err }

// ErrMissingBand is returned when no file of the scene matches the band pattern
type ErrMissingBand struct {
	Root    string
	Pattern string
}

func (e ErrMissingBand) Error() string {
	return fmt.Sprintf("no file matching *%s in %s", e.Pattern, e.Root)
}

// ErrEmptyResult is returned when an index array does not contain any valid pixel
type ErrEmptyResult struct {
	Pixels int
}

func (e ErrEmptyResult) Error() string {
	return fmt.Sprintf("no valid pixel (out of %d)", e.Pixels)
}

// IsMissingBand returns whether err is (or wraps) an ErrMissingBand
func IsMissingBand(err error) bool {
	return errors.As(err, &ErrMissingBand{})
}

// IsQuery returns whether err is (or wraps) an ErrQuery
func IsQuery(err error) bool {
	return errors.As(err, &ErrQuery{})
}
