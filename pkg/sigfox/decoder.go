// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Field is one decoded name/value pair of a structured message.
type Field struct {
	Name string `cbor:"0,keyasint"`
	Raw  int16  `cbor:"1,keyasint"`
}

// Value returns the numeric value with the ×10 scaling removed.
func (f Field) Value() float64 {
	return float64(f.Raw) / ValueScale
}

// Text reads the value word as an encoded string field.
func (f Field) Text() string {
	return DecodeName(uint16(f.Raw))
}

// DecodeName unpacks a name word. Decoding stops at the first terminator.
func DecodeName(word uint16) string {
	shifts := [NameLength]uint{nameShift0, nameShift1, nameShift2}
	var sb strings.Builder
	for _, shift := range shifts {
		ch, ok := DecodeLetter(uint8(word >> shift & codeMask))
		if !ok {
			break
		}
		sb.WriteByte(ch)
	}
	return sb.String()
}

// DecodeMessage splits a structured payload into its fields.
func DecodeMessage(payload string) ([]Field, error) {
	if len(payload)%FieldHexLength != 0 {
		return nil, fmt.Errorf("%w: %d hex digits", ErrMessageLength, len(payload))
	}
	data, err := HexToBytes(payload)
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(data)/4)
	for offset := 0; offset+4 <= len(data); offset += 4 {
		name := binary.LittleEndian.Uint16(data[offset:])
		value := binary.LittleEndian.Uint16(data[offset+2:])
		fields = append(fields, Field{
			Name: DecodeName(name),
			Raw:  int16(value),
		})
	}
	return fields, nil
}
