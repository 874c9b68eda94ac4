// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vinescroll/playman/internal/types"
)

type fakeNetErr struct{ timeout bool }

func (e *fakeNetErr) Error() string   { return "net down" }
func (e *fakeNetErr) Timeout() bool   { return e.timeout }
func (e *fakeNetErr) Temporary() bool { return true }

var _ net.Error = (*fakeNetErr)(nil)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want types.ErrorClass
	}{
		{"nil", nil, types.ErrClassUnknown},
		{"status 404", &StatusError{Code: 404, URL: "u"}, types.ErrClassNotFound},
		{"status 410", &StatusError{Code: 410, URL: "u"}, types.ErrClassNotFound},
		{"status 401", &StatusError{Code: 401, URL: "u"}, types.ErrClassForbidden},
		{"status 403", &StatusError{Code: 403, URL: "u"}, types.ErrClassForbidden},
		{"status 416", &StatusError{Code: 416, URL: "u"}, types.ErrClassServerConfig},
		{"status 500", &StatusError{Code: 500, URL: "u"}, types.ErrClassServerError},
		{"status 503", &StatusError{Code: 503, URL: "u"}, types.ErrClassServerError},
		{"status 418", &StatusError{Code: 418, URL: "u"}, types.ErrClassUnknown},
		{"range error", &RangeError{URL: "u", Reason: "ignored"}, types.ErrClassServerConfig},
		{"wrapped range error", fmt.Errorf("open: %w", &RangeError{URL: "u"}), types.ErrClassServerConfig},
		{"deadline", context.DeadlineExceeded, types.ErrClassTimeout},
		{"net timeout", &fakeNetErr{timeout: true}, types.ErrClassTimeout},
		{"net failure", &fakeNetErr{}, types.ErrClassNetwork},
		{"explicit media", Classified(types.ErrClassMedia, errors.New("decoder choked")), types.ErrClassMedia},
		{"explicit format", Classified(types.ErrClassFormatError, errors.New("bad atom")), types.ErrClassFormatError},
		{"plain error", errors.New("mystery"), types.ErrClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	inner := errors.New("root cause")
	err := Classified(types.ErrClassMedia, inner)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "root cause")
}

func TestClassifyWrappedDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	assert.Equal(t, types.ErrClassTimeout, Classify(fmt.Errorf("load: %w", ctx.Err())))
}
