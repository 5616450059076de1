// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sigfox implements the SIGFOX payload formats: hex conversion of
// fixed-width values, the structured field message codec, payload
// validation, and the CBOR record log of transmitted messages.
package sigfox

// Message limits
const (
	MaxMessageBytes = 12                  // SIGFOX uplink payload limit
	MaxMessageHex   = MaxMessageBytes * 2 // hex characters
	MaxTextLength   = MaxMessageBytes     // SendString limit, one byte per character
)

// Field layout: 4 hex name word followed by 4 hex value word
const (
	NameHexLength  = 4
	ValueHexLength = 4
	FieldHexLength = NameHexLength + ValueHexLength

	// ValueScale is the fixed one-decimal-place scaling of numeric fields.
	ValueScale = 10
)

// Name encoding: three 5-bit codes packed into a 16-bit word, bit 0 unused
const (
	NameLength = 3

	codeTerminator  = 0
	codeFirstLetter = 1  // 'a'
	codeFirstDigit  = 27 // '0'
	codeLastDigit   = 31 // '4'
	codeBits        = 5
	codeMask        = 1<<codeBits - 1

	nameShift0 = 11
	nameShift1 = 6
	nameShift2 = 1
)
