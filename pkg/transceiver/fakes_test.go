// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"encoding/hex"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// fakeClock only moves when something sleeps.
type fakeClock struct {
	now    uint64
	sleeps int
}

func (c *fakeClock) Millis() uint64 {
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps++
	c.now += uint64(d.Milliseconds())
	return nil
}

func (c *fakeClock) advance(d time.Duration) {
	c.now += uint64(d.Milliseconds())
}

// exchange is one scripted command and the module's reply to it.
type exchange struct {
	command string
	reply   string
}

// scriptedTransport plays a module: once the bytes written since the last
// match equal the next scripted command, the reply becomes readable.
type scriptedTransport struct {
	t       *testing.T
	script  []exchange
	pending []byte
	written []byte
	rx      []byte

	baud    int
	opens   int
	closes  int
	listens int

	// echo repeats every written byte back, as some modules do
	echo bool

	openErr  error
	writeErr error
}

func newScriptedTransport(t *testing.T, script ...exchange) *scriptedTransport {
	return &scriptedTransport{t: t, script: script}
}

func (s *scriptedTransport) Open(baud int) error {
	s.baud = baud
	s.opens++
	return s.openErr
}

func (s *scriptedTransport) Close() error {
	s.closes++
	return nil
}

func (s *scriptedTransport) Listen() error {
	s.listens++
	return nil
}

func (s *scriptedTransport) WriteByte(b byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.written = append(s.written, b)
	if s.echo {
		s.rx = append(s.rx, b)
	}
	s.pending = append(s.pending, b)
	if len(s.script) > 0 && string(s.pending) == s.script[0].command {
		s.rx = append(s.rx, s.script[0].reply...)
		s.script = s.script[1:]
		s.pending = s.pending[:0]
	}
	return nil
}

func (s *scriptedTransport) TryReadByte() (byte, bool) {
	if len(s.rx) == 0 {
		return 0, false
	}
	b := s.rx[0]
	s.rx = s.rx[1:]
	return b, true
}

func (s *scriptedTransport) Available() int {
	return len(s.rx)
}

// assertDrained fails the test if scripted exchanges were never sent.
func (s *scriptedTransport) assertDrained() {
	s.t.Helper()
	for _, x := range s.script {
		s.t.Errorf("command never sent: %q", x.command)
	}
}

// raw converts hex to the bytes a binary module sees on the wire.
func raw(t *testing.T, h string) string {
	t.Helper()
	b, err := hex.DecodeString(h)
	if err != nil {
		t.Fatalf("bad hex %q: %v", h, err)
	}
	return string(b)
}

// at frames a Wisol AT command.
func at(cmd string) string {
	return cmd + "\r"
}

// testLogger sends the command trace to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func testOptions(t *testing.T, clock Clock, extra ...Option) []Option {
	opts := []Option{
		WithClock(clock),
		WithLogger(testLogger(t)),
		WithBeginRetries(1, 0),
	}
	return append(opts, extra...)
}
