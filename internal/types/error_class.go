// SPDX-License-Identifier: MIT
package types

import (
	"encoding/json"
	"fmt"
)

// ErrorClass classifies a load failure for retry and fallback decisions.
type ErrorClass string

const (
	// ErrClassTimeout indicates the attempt exceeded its deadline.
	ErrClassTimeout ErrorClass = "timeout"

	// ErrClassNetwork indicates a transport-level connectivity failure.
	ErrClassNetwork ErrorClass = "network"

	// ErrClassNotFound indicates the media does not exist upstream.
	ErrClassNotFound ErrorClass = "not_found"

	// ErrClassForbidden indicates the media is structurally unavailable.
	ErrClassForbidden ErrorClass = "forbidden"

	// ErrClassServerError indicates an upstream 5xx-style failure.
	ErrClassServerError ErrorClass = "server_error"

	// ErrClassFormatError indicates the media bytes could not be parsed.
	ErrClassFormatError ErrorClass = "format_error"

	// ErrClassServerConfig indicates the origin rejects ranged reads or
	// returns mismatched byte ranges. Triggers the whole-file fallback.
	ErrClassServerConfig ErrorClass = "server_config_error"

	// ErrClassMedia indicates a decoder-level failure.
	ErrClassMedia ErrorClass = "media_error"

	// ErrClassUnknown is the catch-all classification.
	ErrClassUnknown ErrorClass = "unknown"
)

// String implements fmt.Stringer.
func (c ErrorClass) String() string {
	return string(c)
}

// IsValid checks whether the error class is one of the defined values.
func (c ErrorClass) IsValid() bool {
	switch c {
	case ErrClassTimeout, ErrClassNetwork, ErrClassNotFound, ErrClassForbidden,
		ErrClassServerError, ErrClassFormatError, ErrClassServerConfig,
		ErrClassMedia, ErrClassUnknown:
		return true
	default:
		return false
	}
}

// Retryable reports whether failures of this class are eligible for
// backoff retries. Structurally unavailable content and range
// misconfiguration are not: the former never resolves, the latter is
// handled by the whole-file fallback instead.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ErrClassNotFound, ErrClassForbidden, ErrClassServerConfig:
		return false
	default:
		return true
	}
}

// Fallback reports whether this class escalates to the whole-file
// prefetch strategy instead of a backoff retry.
func (c ErrorClass) Fallback() bool {
	return c == ErrClassServerConfig
}

// MarshalJSON implements json.Marshaler.
func (c ErrorClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *ErrorClass) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	class := ErrorClass(str)
	if !class.IsValid() {
		return fmt.Errorf("invalid error class: %q", str)
	}

	*c = class
	return nil
}

// AllErrorClasses returns all defined error classes.
func AllErrorClasses() []ErrorClass {
	return []ErrorClass{
		ErrClassTimeout,
		ErrClassNetwork,
		ErrClassNotFound,
		ErrClassForbidden,
		ErrClassServerError,
		ErrClassFormatError,
		ErrClassServerConfig,
		ErrClassMedia,
		ErrClassUnknown,
	}
}
