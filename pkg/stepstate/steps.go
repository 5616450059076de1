// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package stepstate runs step-based routines as resumable coroutines.
//
// A step-based routine is a function split into labelled steps. Each call
// starts with Begin, runs the code for the returned step, and leaves through
// Suspend, Yield, End or Fail. An external loop calls the routine again
// (starting at Begin) after the requested delay, and the routine resumes at
// the step it was suspended at. Routines call other routines the same way;
// the Manager keeps one frame per call in flight and collapses a child frame
// into its parent once the child reaches Success or Failure.
package stepstate

import "fmt"

// Step identifies a labelled step inside a step-based routine.
type Step uint8

// Protocol steps shared by the transceiver routines.
const (
	StepNone    Step = 0
	StepStart   Step = 1
	StepListen  Step = 2
	StepSend    Step = 3
	StepReceive Step = 4
	StepPower   Step = 5
	StepTimeout Step = 6
	StepEnd     Step = 7
)

// Terminal steps. A frame in either step has finished.
const (
	StepSuccess Step = 101
	StepFailure Step = 102
)

// Terminal reports whether s is Success or Failure.
func (s Step) Terminal() bool {
	return s == StepSuccess || s == StepFailure
}

// String returns the step name
func (s Step) String() string {
	switch s {
	case StepNone:
		return "NONE"
	case StepStart:
		return "START"
	case StepListen:
		return "LISTEN"
	case StepSend:
		return "SEND"
	case StepReceive:
		return "RECEIVE"
	case StepPower:
		return "POWER"
	case StepTimeout:
		return "TIMEOUT"
	case StepEnd:
		return "END"
	case StepSuccess:
		return "SUCCESS"
	case StepFailure:
		return "FAILURE"
	default:
		return fmt.Sprintf("STEP(%d)", uint8(s))
	}
}
