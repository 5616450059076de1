// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/unabiz/unashield/pkg/stepstate"
)

// Task is one top-level step-based routine running on a driver.
//
// Poll runs the routine for one step once the delay it asked for has
// passed. Wait is the blocking form: it polls and sleeps on the driver's
// clock until the routine finishes.
type Task struct {
	name   string
	e      *engine
	run    func() bool
	parse  func(string) (string, error)
	wakeAt uint64

	done   bool
	result string
	err    error
}

// start makes run the driver's current task. parse, if set, post-processes
// a successful result.
func (e *engine) start(name string, run func() bool, parse func(string) (string, error)) (*Task, error) {
	if e.Busy() {
		return nil, fmt.Errorf("%w: %s in progress", ErrBusy, e.task.name)
	}
	e.state.Reset()
	t := &Task{
		name:   name,
		e:      e,
		run:    run,
		parse:  parse,
		wakeAt: e.clock.Millis(),
	}
	e.task = t
	e.logger.Debug("task started", slog.String("task", name))
	return t, nil
}

// execute starts a task and waits for it.
func (e *engine) execute(ctx context.Context, name string, run func() bool, parse func(string) (string, error)) (string, error) {
	t, err := e.start(name, run, parse)
	if err != nil {
		return "", err
	}
	return t.Wait(ctx)
}

// Name returns the routine name.
func (t *Task) Name() string {
	return t.name
}

// Poll runs one step if the task is due. It returns true once the task has
// finished.
func (t *Task) Poll() bool {
	if t.done {
		return true
	}
	if t.e.clock.Millis() < t.wakeAt {
		return false
	}

	st := t.e.state
	t.run()
	delay := st.TakeDelay()
	t.wakeAt = t.e.clock.Millis() + uint64(delay.Milliseconds())

	if st.Done() {
		t.finish(st)
	}
	return t.done
}

func (t *Task) finish(st *stepstate.Manager) {
	t.result = st.Result()
	if st.Status() == stepstate.StepFailure {
		t.err = st.Err()
		if t.err == nil {
			t.err = ErrCommandFailed
		}
	} else if t.parse != nil {
		t.result, t.err = t.parse(t.result)
	}
	t.done = true
	st.Reset()
	if t.err != nil {
		t.e.logger.Debug("task failed", slog.String("task", t.name), slog.Any("error", t.err))
	} else {
		t.e.logger.Debug("task finished", slog.String("task", t.name), slog.String("result", printable(t.result)))
	}
}

// WakeIn returns how long until the task wants to run again.
func (t *Task) WakeIn() time.Duration {
	if t.done {
		return 0
	}
	now := t.e.clock.Millis()
	if now >= t.wakeAt {
		return 0
	}
	return time.Duration(t.wakeAt-now) * time.Millisecond
}

// Done reports whether the task has finished.
func (t *Task) Done() bool {
	return t.done
}

// Result returns the routine's result and error once the task is done.
func (t *Task) Result() (string, error) {
	return t.result, t.err
}

// Wait drives the task to completion. If ctx ends first the task is
// aborted and the context error returned.
func (t *Task) Wait(ctx context.Context) (string, error) {
	for !t.Poll() {
		if err := t.e.clock.Sleep(ctx, t.WakeIn()); err != nil {
			t.Abort(err)
			return "", err
		}
	}
	return t.result, t.err
}

// Abort stops an unfinished task, closing the transport if a command was
// in flight.
func (t *Task) Abort(cause error) {
	if t.done {
		return
	}
	if t.e.state.Depth() > 1 {
		t.e.transport.Close()
	}
	t.e.state.Reset()
	t.done = true
	t.err = fmt.Errorf("%s aborted: %w", t.name, cause)
}
