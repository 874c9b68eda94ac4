// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/vinescroll/playman/internal/types"
)

// ClassifiedError carries an explicit classification decided by the layer
// that produced the error (e.g. a decoder reporting a media failure).
type ClassifiedError struct {
	Class types.ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	if e.Err == nil {
		return string(e.Class)
	}
	return e.Err.Error()
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Classified wraps err with an explicit error class.
func Classified(class types.ErrorClass, err error) error {
	return &ClassifiedError{Class: class, Err: err}
}

// Classify maps a load error onto the retry taxonomy. Unrecognized errors
// classify as unknown, which is retryable.
func Classify(err error) types.ErrorClass {
	if err == nil {
		return types.ErrClassUnknown
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}

	var re *RangeError
	if errors.As(err, &re) {
		return types.ErrClassServerConfig
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusNotFound || se.Code == http.StatusGone:
			return types.ErrClassNotFound
		case se.Code == http.StatusUnauthorized || se.Code == http.StatusForbidden:
			return types.ErrClassForbidden
		case se.Code == http.StatusRequestedRangeNotSatisfiable:
			return types.ErrClassServerConfig
		case se.Code >= 500:
			return types.ErrClassServerError
		default:
			return types.ErrClassUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.ErrClassTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return types.ErrClassTimeout
		}
		return types.ErrClassNetwork
	}

	return types.ErrClassUnknown
}
