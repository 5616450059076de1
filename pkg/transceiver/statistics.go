// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks command outcomes and traffic
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	Commands            uint64
	Successes           uint64
	Timeouts            uint64
	MalformedResponses  uint64
	TransportErrors     uint64
	DutyCycleRejections uint64
	Uplinks             uint64
	Downlinks           uint64
	BytesSent           uint64
	BytesReceived       uint64

	// Rates (calculated)
	CommandRate float64 // commands/min
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// RecordCommand counts one sendBuffer exchange and its outcome
func (s *Statistics) RecordCommand(sent, received int, err error) {
	s.Commands++
	s.BytesSent += uint64(sent)
	s.BytesReceived += uint64(received)

	switch {
	case err == nil:
		s.Successes++
	case errors.Is(err, ErrTimeout):
		s.Timeouts++
	default:
		s.TransportErrors++
	}
	s.LastUpdateTime = time.Now()
}

// RecordMalformed counts a response that could not be parsed
func (s *Statistics) RecordMalformed() {
	s.MalformedResponses++
	s.LastUpdateTime = time.Now()
}

// RecordDutyCycle counts a send refused by the duty cycle check
func (s *Statistics) RecordDutyCycle() {
	s.DutyCycleRejections++
	s.LastUpdateTime = time.Now()
}

// RecordUplink counts a transmitted message
func (s *Statistics) RecordUplink(downlink bool) {
	s.Uplinks++
	if downlink {
		s.Downlinks++
	}
	s.LastUpdateTime = time.Now()
}

// CalculateRates calculates the command rate
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Minutes()
	if elapsed > 0 {
		s.CommandRate = float64(s.Commands) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var successPercent, timeoutPercent float64
	if s.Commands > 0 {
		successPercent = float64(s.Successes) * 100.0 / float64(s.Commands)
		timeoutPercent = float64(s.Timeouts) * 100.0 / float64(s.Commands)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Commands:        %8d\n", s.Commands)
	result += fmt.Sprintf("Successful:      %8d (%.1f%%)\n", s.Successes, successPercent)

	if s.Timeouts > 0 {
		result += fmt.Sprintf("Timeouts:        %8d (%.1f%%)\n", s.Timeouts, timeoutPercent)
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Transport Errs:  %8d\n", s.TransportErrors)
	}
	if s.MalformedResponses > 0 {
		result += fmt.Sprintf("Malformed:       %8d\n", s.MalformedResponses)
	}
	if s.DutyCycleRejections > 0 {
		result += fmt.Sprintf("Duty Cycle Hold: %8d\n", s.DutyCycleRejections)
	}

	result += fmt.Sprintf("Uplinks:         %8d\n", s.Uplinks)
	if s.Downlinks > 0 {
		result += fmt.Sprintf("  With Downlink:  %7d\n", s.Downlinks)
	}
	result += fmt.Sprintf("Bytes Sent:      %8d\n", s.BytesSent)
	result += fmt.Sprintf("Bytes Received:  %8d\n", s.BytesReceived)
	result += fmt.Sprintf("Command Rate:    %8.1f cmds/min\n", s.CommandRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
