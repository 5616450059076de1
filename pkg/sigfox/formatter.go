// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import (
	"fmt"
	"strings"
)

// FormatFields renders decoded fields as "ctr:123.0 tmp:30.1".
func FormatFields(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s:%.1f", f.Name, f.Value()))
	}
	return strings.Join(parts, " ")
}

// FormatBuffer renders a response with its markers put back at the
// recorded positions, e.g. "4f4b[>]" for one Radiocrafts chunk.
func FormatBuffer(response string, markers []int, marker byte) string {
	var sb strings.Builder
	last := 0
	for _, pos := range markers {
		if pos < last || pos > len(response) {
			continue
		}
		sb.WriteString(printable(response[last:pos]))
		sb.WriteString("[")
		sb.WriteString(printable(string(marker)))
		sb.WriteString("]")
		last = pos
	}
	sb.WriteString(printable(response[last:]))
	return sb.String()
}

// printable escapes control characters the modules put in responses.
func printable(s string) string {
	r := strings.NewReplacer("\r", `\r`, "\n", `\n`)
	return r.Replace(s)
}

// FormatRecord formats a logged transmission into a human-readable line
func FormatRecord(r Record) string {
	timestamp := r.Time.Format("2006-01-02 15:04:05")
	result := fmt.Sprintf("[%s] %s", timestamp, r.Payload)
	if r.Module != "" {
		result += fmt.Sprintf(" via %s", r.Module)
	}
	if r.Zone != 0 {
		result += fmt.Sprintf(" (%s)", r.Zone)
	}
	if r.Device != "" {
		result += fmt.Sprintf(" device=%s", r.Device)
	}
	if len(r.Fields) > 0 {
		result += "\n  " + FormatFields(r.Fields)
	}
	if r.Downlink != "" {
		result += fmt.Sprintf("\n  downlink: %s", r.Downlink)
	}
	return result
}
