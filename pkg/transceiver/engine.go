// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package transceiver drives SIGFOX transceiver modules over a byte
// transport.
//
// Every exchange with the module is a step-based routine run on the
// driver's stepstate.Manager. A Task owns one top-level routine: polling it
// runs a single step and schedules the next one, so an application loop can
// interleave module I/O with other work. The blocking methods (GetID,
// SendMessage, ...) run the same routines to completion with Task.Wait.
//
// A driver is not safe for concurrent use and owns its transport while a
// task is in flight.
package transceiver

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unabiz/unashield/pkg/sigfox"
	"github.com/unabiz/unashield/pkg/stepstate"
)

// family holds the wire parameters of a module family.
type family struct {
	name   string
	baud   int
	marker byte // end-of-response marker

	// Commands are hex strings converted to raw bytes on the wire, and
	// response bytes are hex-encoded into the response string.
	binary bool

	devInterval time.Duration
}

// sendBuffer frame slots
const (
	slotSendIndex = iota
	slotMarkerCount
	slotEchoLeft
	slotMarkerPos // first of maxMarkerPositions
)

const (
	slotResponse = iota
	slotWire
)

const slotSentTime = 0

// maxMarkerPositions bounds the marker history kept for the trace.
const maxMarkerPositions = 5

// engine is the part of a driver shared by both module families.
type engine struct {
	fam       family
	cfg       Config
	transport Transport
	clock     Clock
	logger    *slog.Logger
	codec     sigfox.Codec
	state     *stepstate.Manager
	stats     *Statistics
	task      *Task

	zone   sigfox.Zone
	device string

	sent     bool
	lastSend uint64
}

func newEngine(fam family, transport Transport, opts []Option) engine {
	cfg := newConfig(fam, opts)
	logger := cfg.Logger.With(slog.String("module", fam.name))
	return engine{
		fam:       fam,
		cfg:       cfg,
		transport: transport,
		clock:     cfg.Clock,
		logger:    logger,
		codec:     sigfox.Codec{Policy: cfg.HexPolicy, Logger: logger},
		state:     stepstate.New(logger),
		stats:     NewStatistics(),
		zone:      cfg.Zone,
		device:    cfg.Device,
	}
}

// Module returns the module family name.
func (e *engine) Module() string {
	return e.fam.name
}

// Zone returns the radio zone the driver transmits in.
func (e *engine) Zone() sigfox.Zone {
	return e.zone
}

// Device returns the device ID read by Begin, or the configured emulator
// device name before that.
func (e *engine) Device() string {
	return e.device
}

// Statistics returns the live command counters.
func (e *engine) Statistics() *Statistics {
	return e.stats
}

// SetLogger replaces the trace sink. A nil logger silences the trace.
func (e *engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e.logger = logger.With(slog.String("module", e.fam.name))
	e.codec.Logger = e.logger
}

// Busy reports whether a task is in flight.
func (e *engine) Busy() bool {
	return e.task != nil && !e.task.done
}

// sendBuffer sends command and collects the response until expected markers
// have been seen or timeout has passed since the last byte was written.
//
// Binary families take command as hex and return the response as hex; text
// families send and return ASCII. On success the response is returned to
// the caller's frame. On failure the cause is a *ResponseError carrying the
// partial response.
func (e *engine) sendBuffer(command string, timeout time.Duration, expected int) bool {
	st := e.state
	switch step := st.Begin("sendBuffer", stepstate.StepStart); step {
	case stepstate.StepStart:
		wire, err := e.toWire(command)
		if err != nil {
			return st.Fail(fmt.Errorf("%s: %w", printable(command), err))
		}
		e.logger.Debug("send buffer", slog.String("command", printable(command)), slog.Int("expected_markers", expected))
		st.SetText(slotWire, wire)
		st.SetText(slotResponse, "")
		st.SetInt(slotSendIndex, 0)
		st.SetInt(slotMarkerCount, 0)
		st.SetInt(slotEchoLeft, 0)
		if err := e.transport.Open(e.fam.baud); err != nil {
			e.stats.RecordCommand(0, 0, err)
			return st.Fail(fmt.Errorf("transport: %w", err))
		}
		return st.Suspend(stepstate.StepListen, e.cfg.StartDelay)

	case stepstate.StepListen:
		if err := e.transport.Listen(); err != nil {
			return e.abortBuffer(err)
		}
		return st.Suspend(stepstate.StepSend, 0)

	case stepstate.StepSend:
		wire := st.Text(slotWire)
		i := st.Int(slotSendIndex)
		if i < len(wire) {
			if err := e.transport.WriteByte(wire[i]); err != nil {
				return e.abortBuffer(err)
			}
			st.SetInt(slotSendIndex, i+1)
			return st.Suspend(stepstate.StepSend, e.cfg.SendDelay)
		}
		st.SetMillis(slotSentTime, e.clock.Millis())
		if e.cfg.Echo {
			st.SetInt(slotEchoLeft, len(wire))
		}
		return st.Suspend(stepstate.StepReceive, 0)

	case stepstate.StepReceive:
		sentTime := st.Millis(slotSentTime)
		for {
			if e.clock.Millis()-sentTime > uint64(timeout.Milliseconds()) {
				e.logger.Debug("<< (Timeout)", slog.Duration("timeout", timeout))
				return st.Suspend(stepstate.StepTimeout, 0)
			}
			if e.transport.Available() <= 0 {
				return st.Suspend(stepstate.StepReceive, e.cfg.ReceiveDelay)
			}
			b, ok := e.transport.TryReadByte()
			if !ok {
				return st.Suspend(stepstate.StepReceive, e.cfg.ReceiveDelay)
			}

			// The module repeats each command byte before it answers.
			if n := st.Int(slotEchoLeft); n > 0 {
				st.SetInt(slotEchoLeft, n-1)
				continue
			}

			if b == e.fam.marker {
				n := st.Int(slotMarkerCount)
				if n < maxMarkerPositions {
					st.SetInt(slotMarkerPos+n, len(st.Text(slotResponse)))
				}
				n++
				st.SetInt(slotMarkerCount, n)
				if n >= expected {
					return st.Suspend(stepstate.StepEnd, 0)
				}
				continue
			}
			st.SetText(slotResponse, st.Text(slotResponse)+e.fromWire(b))
		}

	case stepstate.StepEnd, stepstate.StepTimeout:
		if err := e.transport.Close(); err != nil {
			e.logger.Warn("failed to close transport", slog.Any("error", err))
		}
		response := st.Text(slotResponse)
		markers := st.Int(slotMarkerCount)
		positions := make([]int, 0, maxMarkerPositions)
		for i := 0; i < markers && i < maxMarkerPositions; i++ {
			positions = append(positions, st.Int(slotMarkerPos+i))
		}
		e.logger.Debug(">> "+printable(command))
		e.logger.Debug("<< "+sigfox.FormatBuffer(response, positions, e.fam.marker))

		received := len(response) + markers
		if e.fam.binary {
			received = len(response)/2 + markers
		}
		if markers < expected {
			if response == "" {
				e.logger.Error("no response", slog.String("command", printable(command)))
			} else {
				e.logger.Error("unknown response", slog.String("command", printable(command)), slog.String("response", printable(response)))
			}
			err := &ResponseError{
				Command:  printable(command),
				Response: response,
				Markers:  markers,
				Expected: expected,
				Err:      ErrTimeout,
			}
			e.stats.RecordCommand(len(st.Text(slotWire)), received, err)
			return st.Fail(err)
		}
		e.logger.Debug("response", slog.String("response", printable(response)))
		e.stats.RecordCommand(len(st.Text(slotWire)), received, nil)
		return st.Return(response)

	default:
		return st.Fail(fmt.Errorf("sendBuffer: unknown step %s", step))
	}
}

// abortBuffer closes the transport after an I/O error mid-exchange.
func (e *engine) abortBuffer(err error) bool {
	e.transport.Close()
	e.stats.RecordCommand(e.state.Int(slotSendIndex), 0, err)
	return e.state.Fail(fmt.Errorf("transport: %w", err))
}

// toWire converts a command to the bytes written to the module.
func (e *engine) toWire(command string) (string, error) {
	if !e.fam.binary {
		return command, nil
	}
	raw, err := e.codec.Decode(command)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// fromWire converts one received byte to response text.
func (e *engine) fromWire(b byte) string {
	if e.fam.binary {
		return sigfox.ToHex(b)
	}
	return string([]byte{b})
}

// IsReady reports whether the duty cycle allows a message now.
func (e *engine) IsReady() bool {
	return e.NextSendIn() == 0
}

// NextSendIn returns how long until the development interval has passed.
func (e *engine) NextSendIn() time.Duration {
	if !e.sent {
		return 0
	}
	elapsed := e.sinceLastSend()
	if elapsed > e.cfg.DevelopmentInterval {
		return 0
	}
	return e.cfg.DevelopmentInterval - elapsed + time.Millisecond
}

// RegulatoryWait returns how long until the 10 minute interval has passed.
func (e *engine) RegulatoryWait() time.Duration {
	if !e.sent {
		return 0
	}
	elapsed := e.sinceLastSend()
	if elapsed > e.cfg.RegulatoryInterval {
		return 0
	}
	return e.cfg.RegulatoryInterval - elapsed
}

func (e *engine) sinceLastSend() time.Duration {
	return time.Duration(e.clock.Millis()-e.lastSend) * time.Millisecond
}

// checkDutyCycle refuses a send inside the development interval and warns
// inside the regulatory interval.
func (e *engine) checkDutyCycle() error {
	if !e.sent {
		return nil
	}
	elapsed := e.sinceLastSend()
	if elapsed <= e.cfg.DevelopmentInterval {
		e.stats.RecordDutyCycle()
		e.logger.Warn("must wait before sending the next message",
			slog.Duration("interval", e.cfg.DevelopmentInterval),
			slog.Duration("elapsed", elapsed))
		return fmt.Errorf("%w: wait %s", ErrDutyCycle, e.cfg.DevelopmentInterval-elapsed)
	}
	if elapsed <= e.cfg.RegulatoryInterval {
		e.logger.Warn("should wait 10 minutes before sending the next message",
			slog.Duration("elapsed", elapsed))
	}
	return nil
}

func (e *engine) markSent(downlink bool) {
	e.sent = true
	e.lastSend = e.clock.Millis()
	e.stats.RecordUplink(downlink)
}

// checkPayload rejects payloads the module cannot parse. Length is not
// enforced.
func checkPayload(payload string) error {
	for _, v := range sigfox.ValidatePayload(payload) {
		if v.Type == sigfox.ANOMALY_ODD_LENGTH || v.Type == sigfox.ANOMALY_INVALID_HEX {
			return fmt.Errorf("invalid payload: %w", &v)
		}
	}
	return nil
}

// malformed records and wraps an unusable response.
func (e *engine) malformed(command, response string, reason string) error {
	e.stats.RecordMalformed()
	e.logger.Error("malformed response",
		slog.String("command", printable(command)),
		slog.String("response", printable(response)),
		slog.String("reason", reason))
	return &ResponseError{
		Command:  printable(command),
		Response: response,
		Markers:  1,
		Expected: 1,
		Err:      fmt.Errorf("%w: %s", ErrMalformedResponse, reason),
	}
}

func (e *engine) notSupported(operation string) error {
	e.logger.Error("not implemented", slog.String("operation", operation))
	return &NotSupportedError{Module: e.fam.name, Operation: operation}
}

func printable(s string) string {
	return strings.NewReplacer("\r", `\r`, "\n", `\n`).Replace(s)
}
