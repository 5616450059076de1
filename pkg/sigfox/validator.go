// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import "fmt"

// AnomalyType represents different types of payload anomalies
type AnomalyType int

const (
	ANOMALY_ODD_LENGTH AnomalyType = iota
	ANOMALY_INVALID_HEX
	ANOMALY_TOO_LONG
	ANOMALY_UNENCODABLE_NAME
	ANOMALY_FIELD_LENGTH
)

func (a AnomalyType) String() string {
	switch a {
	case ANOMALY_ODD_LENGTH:
		return "ODD_LENGTH"
	case ANOMALY_INVALID_HEX:
		return "INVALID_HEX"
	case ANOMALY_TOO_LONG:
		return "TOO_LONG"
	case ANOMALY_UNENCODABLE_NAME:
		return "UNENCODABLE_NAME"
	case ANOMALY_FIELD_LENGTH:
		return "FIELD_LENGTH"
	default:
		return "UNKNOWN"
	}
}

// ValidationError represents a payload validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidatePayload checks a hex payload before transmission.
// Returns a slice of validation errors (empty if the payload is valid)
func ValidatePayload(payload string) []ValidationError {
	errors := []ValidationError{}

	if len(payload)%2 != 0 {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_ODD_LENGTH,
			Message: fmt.Sprintf("Payload has an odd number of hex digits (%d)", len(payload)),
			Details: map[string]interface{}{"length": len(payload)},
		})
	}

	for i := 0; i < len(payload); i++ {
		if !IsHexDigit(payload[i]) {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_INVALID_HEX,
				Message: fmt.Sprintf("Invalid hex digit %q at offset %d", payload[i], i),
				Details: map[string]interface{}{"offset": i, "char": string(payload[i])},
			})
			break
		}
	}

	if len(payload) > MaxMessageHex {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_TOO_LONG,
			Message: fmt.Sprintf("Payload too long: %d bytes (max %d)", len(payload)/2, MaxMessageBytes),
			Details: map[string]interface{}{"bytes": len(payload) / 2, "max": MaxMessageBytes},
		})
	}

	return errors
}

// ValidateFieldName checks that name survives encoding unchanged.
func ValidateFieldName(name string) []ValidationError {
	errors := []ValidationError{}

	if len(name) == 0 || len(name) > NameLength {
		errors = append(errors, ValidationError{
			Type:    ANOMALY_FIELD_LENGTH,
			Message: fmt.Sprintf("Field name %q must be 1 to %d characters", name, NameLength),
			Details: map[string]interface{}{"name": name, "length": len(name), "max": NameLength},
		})
	}

	for i := 0; i < len(name) && i < NameLength; i++ {
		if EncodeLetter(name[i]) == codeTerminator {
			errors = append(errors, ValidationError{
				Type:    ANOMALY_UNENCODABLE_NAME,
				Message: fmt.Sprintf("Field name %q: character %q cannot be encoded (a-z, 0-4 only)", name, name[i]),
				Details: map[string]interface{}{"name": name, "offset": i, "char": string(name[i])},
			})
		}
	}

	return errors
}
