// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package stepstate

import (
	"log/slog"
	"time"
)

// frame is the saved state of one step-based routine invocation.
type frame struct {
	name    string
	current Step
	next    Step
	delay   time.Duration

	// Scratch slots, addressed by position. A routine must use the same
	// slot numbers on every step.
	ints   []int
	millis []uint64
	texts  []string

	// Value handed back by the most recently collapsed child.
	returned string
	err      error
}

// Manager owns the frame stack of one driver.
//
// Frames live in a slice: frames[0] is the root and frames[i+1] is the only
// child of frames[i]. Discarding a child truncates the slice, so there is no
// per-frame ownership to manage. Exactly one frame is active; between
// resumptions it is the root.
type Manager struct {
	frames []frame
	active int
	logger *slog.Logger
}

// New creates a Manager holding only the root frame.
// A nil logger discards the trace output.
func New(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	m := &Manager{logger: logger}
	m.Reset()
	return m
}

// Reset discards every frame and recreates the root.
func (m *Manager) Reset() {
	m.frames = append(m.frames[:0], frame{name: "root"})
	m.active = 0
}

// Begin enters the routine called name and returns the step to run.
//
// When the active frame has no child, or its child belongs to another
// routine, a fresh frame starting at first replaces it. Otherwise the
// existing child is resumed at its saved step.
func (m *Manager) Begin(name string, first Step) Step {
	if child := m.child(); child == nil || child.name != name {
		if child != nil {
			m.logger.Debug("discarding stale state", slog.String("function", child.name), slog.String("step", child.current.String()))
		}
		m.frames = append(m.frames[:m.active+1], frame{name: name, current: first})
		m.active++
		m.logger.Debug("new state", slog.String("function", name))
	} else {
		m.active++
		m.logger.Debug("resume state", slog.String("function", name), slog.String("step", child.current.String()))
	}
	return m.frames[m.active].current
}

// Suspend leaves the active routine and asks to be resumed at next after
// delay. If the routine is waiting on a child, it stays at its current step
// and moves to next only once the child succeeds.
//
// Returns false when the frame that becomes active has failed.
func (m *Manager) Suspend(next Step, delay time.Duration) bool {
	f := m.frame()
	m.logger.Debug("suspend state",
		slog.String("function", f.name),
		slog.String("step", f.current.String()),
		slog.String("next", next.String()),
		slog.Duration("delay", delay))
	if delay > f.delay {
		f.delay = delay
	}
	m.pop(next)
	m.transition()
	return m.frame().current != StepFailure
}

// Yield suspends the active routine so that it re-enters the same step.
func (m *Manager) Yield() bool {
	return m.Suspend(m.frame().current, 0)
}

// End finishes the active routine with Success or Failure and collapses it
// into its parent. A routine whose child already failed stays failed.
// Returns true only if the routine finished with Success.
func (m *Manager) End(success bool) bool {
	f := m.frame()
	if success && f.current != StepFailure {
		f.current = StepSuccess
	} else {
		f.current = StepFailure
	}
	ok := f.current == StepSuccess
	m.pop(StepNone)
	m.transition()
	return ok
}

// Return finishes the active routine with Success and hands result to the
// parent, which reads it with Returned.
func (m *Manager) Return(result string) bool {
	m.frame().returned = result
	return m.End(true)
}

// Fail finishes the active routine with Failure. The first non-nil cause
// recorded on the way up is kept and reported by Err at the root.
func (m *Manager) Fail(err error) bool {
	f := m.frame()
	if err != nil && f.err == nil {
		f.err = err
	}
	return m.End(false)
}

// Returned is the result of the last child that returned into the active
// frame.
func (m *Manager) Returned() string {
	return m.frame().returned
}

// Current returns the step of the active frame.
func (m *Manager) Current() Step {
	return m.frame().current
}

// Active returns the routine name of the active frame.
func (m *Manager) Active() string {
	return m.frame().name
}

// Depth returns the number of frames including the root.
func (m *Manager) Depth() int {
	return len(m.frames)
}

// Status returns the root step: StepSuccess or StepFailure once the
// top-level routine finished, StepNone before that.
func (m *Manager) Status() Step {
	return m.frames[0].current
}

// Done reports whether the top-level routine has finished.
func (m *Manager) Done() bool {
	return m.Status().Terminal()
}

// Result returns what the top-level routine returned.
func (m *Manager) Result() string {
	return m.frames[0].returned
}

// Err returns the failure cause recorded at the root.
func (m *Manager) Err() error {
	return m.frames[0].err
}

// TakeDelay returns the delay requested at the root and clears it.
func (m *Manager) TakeDelay() time.Duration {
	d := m.frames[0].delay
	m.frames[0].delay = 0
	return d
}

// SetInt saves an integer local of the active frame.
func (m *Manager) SetInt(slot int, v int) {
	f := m.frame()
	f.ints = grow(f.ints, slot)
	f.ints[slot] = v
}

// Int restores an integer local of the active frame.
func (m *Manager) Int(slot int) int {
	f := m.frame()
	if slot < len(f.ints) {
		return f.ints[slot]
	}
	return 0
}

// SetMillis saves a timestamp local of the active frame.
func (m *Manager) SetMillis(slot int, v uint64) {
	f := m.frame()
	f.millis = grow(f.millis, slot)
	f.millis[slot] = v
}

// Millis restores a timestamp local of the active frame.
func (m *Manager) Millis(slot int) uint64 {
	f := m.frame()
	if slot < len(f.millis) {
		return f.millis[slot]
	}
	return 0
}

// SetText saves a string local of the active frame.
func (m *Manager) SetText(slot int, v string) {
	f := m.frame()
	f.texts = grow(f.texts, slot)
	f.texts[slot] = v
}

// Text restores a string local of the active frame.
func (m *Manager) Text(slot int) string {
	f := m.frame()
	if slot < len(f.texts) {
		return f.texts[slot]
	}
	return ""
}

func (m *Manager) frame() *frame {
	return &m.frames[m.active]
}

func (m *Manager) child() *frame {
	if m.active+1 < len(m.frames) {
		return &m.frames[m.active+1]
	}
	return nil
}

// pop saves next into the active frame and makes its parent active.
func (m *Manager) pop(next Step) {
	f := m.frame()
	if next != StepNone && f.current != StepFailure && !f.current.Terminal() && m.child() == nil {
		f.current = next
		f.next = StepNone
	} else if next != StepNone {
		f.next = next
	}
	if m.active > 0 {
		m.active--
	}
}

// transition moves the child's delay up to the active frame and, if the
// child has finished, collapses it.
func (m *Manager) transition() bool {
	child := m.child()
	if child == nil {
		return false
	}
	parent := m.frame()
	if child.delay > parent.delay {
		parent.delay = child.delay
	}
	child.delay = 0
	if !child.current.Terminal() {
		return false
	}

	if child.current == StepFailure {
		m.logger.Debug("child has failed", slog.String("function", parent.name), slog.String("child", child.name))
		parent.current = StepFailure
		if parent.err == nil {
			parent.err = child.err
		}
	} else {
		m.logger.Debug("child has succeeded", slog.String("function", parent.name), slog.String("child", child.name))
		parent.returned = child.returned
		switch {
		case m.active == 0:
			parent.current = StepSuccess
		case parent.next != StepNone:
			parent.current = parent.next
			parent.next = StepNone
		}
	}
	m.frames = m.frames[:m.active+1]
	return true
}

func grow[T any](s []T, slot int) []T {
	for len(s) <= slot {
		var zero T
		s = append(s, zero)
	}
	return s
}
