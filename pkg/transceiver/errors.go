// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"errors"
	"fmt"

	"github.com/unabiz/unashield/pkg/sigfox"
)

var (
	// ErrTimeout is returned when the module did not send the expected
	// number of end-of-response markers in time. Callers may retry.
	ErrTimeout = errors.New("timed out waiting for module response")

	// ErrMalformedResponse is returned when the markers arrived but the
	// response does not have the expected shape.
	ErrMalformedResponse = errors.New("malformed module response")

	// ErrDutyCycle is returned when a message is sent before the
	// development floor has elapsed since the previous one. No I/O is done.
	ErrDutyCycle = errors.New("duty cycle: too soon after the last message")

	// ErrNotSupported is matched by NotSupportedError.
	ErrNotSupported = errors.New("operation not supported")

	// ErrBusy is returned when a task is started while another is running.
	ErrBusy = errors.New("transceiver busy")

	// ErrCommandFailed is returned when a routine failed without a cause.
	ErrCommandFailed = errors.New("command failed")

	// ErrBeginFailed is returned when every Begin attempt failed.
	ErrBeginFailed = errors.New("module initialisation failed")

	ErrUnknownZone = sigfox.ErrUnknownZone
)

// ResponseError describes a command whose response was incomplete or
// unusable. Response holds whatever was received.
type ResponseError struct {
	Command  string
	Response string
	Markers  int
	Expected int
	Err      error
}

func (e *ResponseError) Error() string {
	if e.Response == "" {
		return fmt.Sprintf("%s: %v (no response, %d/%d markers)", e.Command, e.Err, e.Markers, e.Expected)
	}
	return fmt.Sprintf("%s: %v (response %q, %d/%d markers)", e.Command, e.Err, e.Response, e.Markers, e.Expected)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// NotSupportedError reports an operation the module family does not
// implement.
type NotSupportedError struct {
	Module    string
	Operation string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s: %s not supported", e.Module, e.Operation)
}

func (e *NotSupportedError) Is(target error) bool {
	return target == ErrNotSupported
}
