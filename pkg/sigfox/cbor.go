// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one logged transmission. Records are stored as a sequence of
// CBOR maps with integer keys.
type Record struct {
	Time     time.Time `cbor:"0,keyasint"`
	Device   string    `cbor:"1,keyasint,omitempty"`
	Module   string    `cbor:"2,keyasint,omitempty"`
	Zone     Zone      `cbor:"3,keyasint,omitempty"`
	Payload  string    `cbor:"4,keyasint"`
	Fields   []Field   `cbor:"5,keyasint,omitempty"`
	Downlink string    `cbor:"6,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Time:    cbor.TimeRFC3339Nano,
		TimeTag: cbor.EncTagRequired,
		Sort:    cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(err)
	}
}

// NewRecord builds a record for payload, decoding its fields when the
// payload is a structured message.
func NewRecord(t time.Time, payload string) Record {
	r := Record{Time: t, Payload: payload}
	if fields, err := DecodeMessage(payload); err == nil && len(fields) > 0 {
		r.Fields = fields
	}
	return r
}

// EncodeRecord serializes one record.
func EncodeRecord(r Record) ([]byte, error) {
	data, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

// DecodeRecord parses one serialized record.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if len(data) == 0 {
		return r, fmt.Errorf("empty CBOR record")
	}
	if err := cbor.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}

// EncodeFields serializes decoded fields as a CBOR array.
func EncodeFields(fields []Field) ([]byte, error) {
	return encMode.Marshal(fields)
}

// AppendRecord writes r to the end of a record log.
func AppendRecord(w io.Writer, r Record) error {
	if err := encMode.NewEncoder(w).Encode(r); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// ReadRecords reads every record in a log.
func ReadRecords(rd io.Reader) ([]Record, error) {
	dec := cbor.NewDecoder(rd)
	var records []Record
	for {
		var r Record
		err := dec.Decode(&r)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("record %d: %w", len(records), err)
		}
		records = append(records, r)
	}
}
