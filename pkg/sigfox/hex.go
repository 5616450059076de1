// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Fixed is any value with a fixed in-memory width.
type Fixed interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 |
		~float32 | ~float64
}

// ToHex returns the lowercase hex encoding of v's little-endian bytes,
// two digits per byte. The result is always 2 × sizeof(v) characters.
func ToHex[T Fixed](v T) string {
	buf, err := binary.Append(nil, binary.LittleEndian, v)
	if err != nil {
		// Unreachable for fixed-width types.
		panic(fmt.Sprintf("sigfox: cannot encode %T: %v", v, err))
	}
	return hex.EncodeToString(buf)
}

// BytesToHex returns the lowercase hex encoding of data.
func BytesToHex(data []byte) string {
	return hex.EncodeToString(data)
}

// TextToHex encodes ASCII text as a payload, one byte per character.
func TextToHex(text string) (string, error) {
	if len(text) > MaxTextLength {
		return "", fmt.Errorf("%w: %d characters", ErrTextTooLong, len(text))
	}
	return hex.EncodeToString([]byte(text)), nil
}

// HexPolicy selects how a Codec treats characters outside 0-9A-Fa-f.
type HexPolicy int

const (
	// Strict rejects the whole input with ErrInvalidHexDigit.
	Strict HexPolicy = iota
	// Lenient logs the bad digit and decodes it as zero.
	Lenient
)

func (p HexPolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// Codec decodes hex digits under a HexPolicy.
type Codec struct {
	Policy HexPolicy
	Logger *slog.Logger
}

// Digit converts one hex character to 0..15.
func (c Codec) Digit(ch byte) (byte, error) {
	switch {
	case ch >= '0' && ch <= '9':
		return ch - '0', nil
	case ch >= 'a' && ch <= 'f':
		return ch - 'a' + 10, nil
	case ch >= 'A' && ch <= 'F':
		return ch - 'A' + 10, nil
	}
	if c.Policy == Lenient {
		if c.Logger != nil {
			c.Logger.Error("invalid hex digit", slog.String("char", string(rune(ch))), slog.Int("code", int(ch)))
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidHexDigit, ch)
}

// Decode converts pairs of hex digits back to bytes.
func (c Codec) Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: %d", ErrOddLength, len(s))
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := c.Digit(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := c.Digit(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

// HexToBytes decodes s with the strict policy.
func HexToBytes(s string) ([]byte, error) {
	return Codec{Policy: Strict}.Decode(s)
}

// IsHexDigit reports whether ch is in 0-9A-Fa-f.
func IsHexDigit(ch byte) bool {
	return ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}
