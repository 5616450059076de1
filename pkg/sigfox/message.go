// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import (
	"context"
	"strings"
)

// Sender transmits an encoded payload. Both transceiver drivers implement it.
type Sender interface {
	SendMessage(ctx context.Context, payload string) error
}

// Message builds a structured payload from named fields.
//
// Each field is a 3-character name followed by a 16-bit value, 4 bytes in
// total, so a SIGFOX message carries at most 3 fields. The builder does not
// enforce the 12-byte limit; use ValidatePayload before sending. A message
// that was sent successfully is frozen and ignores further fields.
type Message struct {
	encoded strings.Builder
	fields  int
	sent    bool
}

// NewMessage returns an empty message.
func NewMessage() *Message {
	return &Message{}
}

// AddIntField appends name and an already scaled value.
func (m *Message) AddIntField(name string, scaled int) *Message {
	if m.sent {
		return m
	}
	m.addName(name)
	m.encoded.WriteString(ToHex(int16(scaled)))
	m.fields++
	return m
}

// AddField appends name and value with one decimal place of scaling.
func (m *Message) AddField(name string, value int) *Message {
	return m.AddIntField(name, value*ValueScale)
}

// AddFloatField appends name and value × 10, truncated toward zero.
func (m *Message) AddFloatField(name string, value float64) *Message {
	return m.AddIntField(name, int(value*ValueScale))
}

// AddStringField appends name and a value of up to 3 characters encoded
// the same way as names.
func (m *Message) AddStringField(name, value string) *Message {
	if m.sent {
		return m
	}
	m.addName(name)
	m.addName(value)
	m.fields++
	return m
}

func (m *Message) addName(name string) {
	m.encoded.WriteString(ToHex(EncodeName(name)))
}

// Encoded returns the hex payload built so far.
func (m *Message) Encoded() string {
	return m.encoded.String()
}

// Len returns the payload size in bytes.
func (m *Message) Len() int {
	return m.encoded.Len() / 2
}

// Fields returns the number of fields added.
func (m *Message) Fields() int {
	return m.fields
}

// Sent reports whether the message has been transmitted.
func (m *Message) Sent() bool {
	return m.sent
}

// Send transmits the payload through s. The message is frozen once s
// reports success.
func (m *Message) Send(ctx context.Context, s Sender) error {
	if err := s.SendMessage(ctx, m.Encoded()); err != nil {
		return err
	}
	m.sent = true
	return nil
}

// EncodeName packs up to three characters into a 16-bit word.
//
// Codes occupy bits 15-11, 10-6 and 5-1 for characters 0, 1 and 2. Missing
// characters encode as the terminator code 0.
func EncodeName(name string) uint16 {
	var codes [NameLength]uint16
	for i := 0; i < NameLength && i < len(name); i++ {
		codes[i] = uint16(EncodeLetter(name[i]))
	}
	return codes[0]<<nameShift0 | codes[1]<<nameShift1 | codes[2]<<nameShift2
}

// EncodeLetter maps one character to its 5-bit code: a-z (either case) to
// 1-26 and '0'-'4' to 27-31. Everything else, including '5'-'9', is 0.
func EncodeLetter(ch byte) uint8 {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A' + codeFirstLetter
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + codeFirstLetter
	case ch >= '0' && ch <= '4':
		return ch - '0' + codeFirstDigit
	}
	return codeTerminator
}

// DecodeLetter is the inverse of EncodeLetter. Code 0 has no character.
func DecodeLetter(code uint8) (byte, bool) {
	switch {
	case code >= codeFirstLetter && code < codeFirstDigit:
		return 'a' + code - codeFirstLetter, true
	case code >= codeFirstDigit && code <= codeLastDigit:
		return '0' + code - codeFirstDigit, true
	}
	return 0, false
}
