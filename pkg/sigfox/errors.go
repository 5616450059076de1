// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import "errors"

var (
	ErrInvalidHexDigit = errors.New("invalid hex digit")
	ErrOddLength       = errors.New("odd number of hex digits")
	ErrMessageLength   = errors.New("message length is not a whole number of fields")
	ErrUnknownZone     = errors.New("unknown radio configuration zone")
	ErrTextTooLong     = errors.New("text longer than 12 characters")
)
