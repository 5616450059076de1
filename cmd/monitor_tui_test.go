// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/unabiz/unashield/pkg/sigfox"
)

func TestEventLog_SlogLines(t *testing.T) {
	events := &eventLog{max: 10}
	logger := slog.New(slog.NewTextHandler(events, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logger.Info("dropped")
	logger.Warn("duty cycle", "wait", "9m")
	logger.Error("unable to init module", "attempts", 5)

	if len(events.entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(events.entries))
	}
	warn, failure := events.entries[0], events.entries[1]
	if !strings.HasPrefix(warn.message, "level=WARN") || warn.isError {
		t.Errorf("unexpected warning entry %+v", warn)
	}
	if strings.Contains(warn.message, "time=") {
		t.Errorf("timestamp not stripped: %q", warn.message)
	}
	if !strings.HasPrefix(failure.message, "level=ERROR") || !failure.isError {
		t.Errorf("unexpected error entry %+v", failure)
	}
}

func TestEventLog_KeepsNewest(t *testing.T) {
	events := &eventLog{max: 3}
	for i := 1; i <= 5; i++ {
		events.add(fmt.Sprintf("event %d", i), false)
	}

	if len(events.entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(events.entries))
	}
	if events.entries[0].message != "event 3" || events.entries[2].message != "event 5" {
		t.Errorf("expected events 3 to 5, got %q .. %q", events.entries[0].message, events.entries[2].message)
	}
}

func TestUptimeMinutes_Capped(t *testing.T) {
	tests := []struct {
		uptime time.Duration
		want   int
		capped bool
	}{
		{90 * time.Second, 1, false},
		{3276 * time.Minute, 3276, false},
		{3277 * time.Minute, 3276, true},
		{60 * time.Hour, 3276, true},
	}
	for _, tt := range tests {
		got, capped := uptimeMinutes(tt.uptime)
		if got != tt.want || capped != tt.capped {
			t.Errorf("uptimeMinutes(%s) = %d, %t; want %d, %t", tt.uptime, got, capped, tt.want, tt.capped)
		}
	}
}

func TestHeartbeatFields_StayInRange(t *testing.T) {
	upt, _ := uptimeMinutes(60 * time.Hour)
	msg := sigfox.NewMessage().
		AddField("ctr", heartbeatCounter(3277)).
		AddField("upt", upt)

	fields, err := sigfox.DecodeMessage(msg.Encoded())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if fields[0].Raw != 0 {
		t.Errorf("ctr = %d, want the counter wrapped to 0", fields[0].Raw)
	}
	if fields[1].Raw != 32760 {
		t.Errorf("upt = %d, want 32760 (no sign wrap)", fields[1].Raw)
	}
}
