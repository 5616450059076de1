// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/unabiz/unashield/pkg/sigfox"
)

// ============================================================================
// Sending
// ============================================================================

func TestWisol_SendMessageAndGetResponse(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("ATS302=15"), "OK\r"},
		exchange{at("AT$SF=0102,1"), "OK\r\nRX=01 23 45 67 89 AB CD EF\r"},
	)
	w := NewWisol(port, testOptions(t, clock, WithZone(sigfox.RCZ1))...)

	downlink, err := w.SendMessageAndGetResponse(context.Background(), "0102")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if downlink != "0123456789ABCDEF" {
		t.Errorf("downlink = %q, want %q", downlink, "0123456789ABCDEF")
	}
	stats := w.Statistics()
	if stats.Uplinks != 1 || stats.Downlinks != 1 {
		t.Errorf("Uplinks/Downlinks = %d/%d, want 1/1", stats.Uplinks, stats.Downlinks)
	}
	port.assertDrained()
}

func TestWisol_DownlinkTimeout(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("ATS302=15"), "OK\r"},
		exchange{at("AT$SF=01,1"), "OK\r"},
	)
	w := NewWisol(port, testOptions(t, clock,
		WithZone(sigfox.RCZ1),
		WithTimeouts(0, 0, 500*time.Millisecond))...)

	_, err := w.SendMessageAndGetResponse(context.Background(), "01")
	var re *ResponseError
	if !errors.As(err, &re) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected a timeout ResponseError, got %v", err)
	}
	if re.Response != "OK" || re.Markers != 1 || re.Expected != 2 {
		t.Errorf("ResponseError = %+v, want response OK with 1/2 markers", re)
	}
	if w.Statistics().Uplinks != 0 {
		t.Error("failed send counted as an uplink")
	}
	if !w.IsReady() {
		t.Error("failed send started the duty cycle")
	}
}

func TestWisol_SendString(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("ATS302=15"), "OK\r"},
		exchange{at("AT$SF=68656c6c6f"), "OK\r"},
	)
	w := NewWisol(port, testOptions(t, clock, WithZone(sigfox.RCZ3))...)

	if err := w.SendString(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	port.assertDrained()
}

func TestWisol_SendsBuiltMessage(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("ATS302=15"), "OK\r"},
		exchange{at("AT$SF=241dce0460a32d01"), "OK\r"},
	)
	w := NewWisol(port, testOptions(t, clock, WithZone(sigfox.RCZ1))...)

	msg := sigfox.NewMessage().AddField("ctr", 123).AddFloatField("tmp", 30.1)
	if err := msg.Send(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !msg.Sent() {
		t.Error("message not marked sent")
	}
	port.assertDrained()
}

// ============================================================================
// Output power negotiation
// ============================================================================

func TestWisol_OutputPower(t *testing.T) {
	tests := []struct {
		name   string
		zone   sigfox.Zone
		script []exchange
	}{
		{
			name: "RCZ1 sets maximum power",
			zone: sigfox.RCZ1,
			script: []exchange{
				{at("ATS302=15"), "OK\r"},
				{at("AT$SF=01"), "OK\r"},
			},
		},
		{
			name: "RCZ4 with enough micro channels",
			zone: sigfox.RCZ4,
			script: []exchange{
				{at("AT$GI?"), "1,3\r"},
				{at("AT$SF=01"), "OK\r"},
			},
		},
		{
			name: "RCZ4 without a macro channel resets",
			zone: sigfox.RCZ4,
			script: []exchange{
				{at("AT$GI?"), "0,5\r"},
				{at("AT$RC"), "OK\r"},
				{at("AT$SF=01"), "OK\r"},
			},
		},
		{
			name: "RCZ2 with too few micro channels resets",
			zone: sigfox.RCZ2,
			script: []exchange{
				{at("AT$GI?"), "1,2\r"},
				{at("AT$RC"), "OK\r"},
				{at("AT$SF=01"), "OK\r"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{}
			port := newScriptedTransport(t, tt.script...)
			w := NewWisol(port, testOptions(t, clock, WithZone(tt.zone))...)

			if err := w.SendMessage(context.Background(), "01"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			port.assertDrained()
			want := ""
			for _, x := range tt.script {
				want += x.command
			}
			if string(port.written) != want {
				t.Errorf("written = %q, want %q", port.written, want)
			}
		})
	}
}

func TestWisol_OutputPowerMalformed(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t, exchange{at("AT$GI?"), "garbage\r"})
	w := NewWisol(port, testOptions(t, clock, WithZone(sigfox.RCZ4))...)

	err := w.SendMessage(context.Background(), "01")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
	if strings.Contains(string(port.written), "AT$SF") {
		t.Error("message sent after a malformed presend response")
	}
	if w.Statistics().MalformedResponses != 1 {
		t.Errorf("MalformedResponses = %d, want 1", w.Statistics().MalformedResponses)
	}
}

// ============================================================================
// Queries
// ============================================================================

func TestWisol_GetID(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("AT$I=10"), "002BEEF1\r"},
		exchange{at("AT$I=11"), "0123456789ABCDEF\r"},
	)
	w := NewWisol(port, testOptions(t, clock)...)

	id, pac, err := w.GetID(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "002BEEF1" || pac != "0123456789ABCDEF" {
		t.Errorf("GetID = %q, %q", id, pac)
	}
	if w.Device() != "002BEEF1" {
		t.Errorf("Device = %q, want the module ID", w.Device())
	}
}

func TestWisol_GetIDMalformed(t *testing.T) {
	tests := []struct {
		name   string
		script []exchange
	}{
		{"short ID", []exchange{
			{at("AT$I=10"), "2BEEF1\r"},
		}},
		{"ID not hex", []exchange{
			{at("AT$I=10"), "002BEEFZ\r"},
		}},
		{"short PAC", []exchange{
			{at("AT$I=10"), "002BEEF1\r"},
			{at("AT$I=11"), "0123\r"},
		}},
		{"long PAC", []exchange{
			{at("AT$I=10"), "002BEEF1\r"},
			{at("AT$I=11"), "0123456789ABCDEF01\r"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{}
			port := newScriptedTransport(t, tt.script...)
			w := NewWisol(port, testOptions(t, clock)...)

			_, _, err := w.GetID(context.Background())
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
			if w.Device() == "002BEEF1" {
				t.Error("device ID stored from a malformed reply")
			}
			if w.Statistics().MalformedResponses != 1 {
				t.Errorf("MalformedResponses = %d, want 1", w.Statistics().MalformedResponses)
			}
			port.assertDrained()
		})
	}
}

func TestWisol_Readings(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("AT$T?"), "301\r"},
		exchange{at("AT$V?"), "3300\r"},
		exchange{at("AT$T?"), "hot\r"},
	)
	w := NewWisol(port, testOptions(t, clock)...)
	ctx := context.Background()

	temp, err := w.GetTemperature(ctx)
	if err != nil || math.Abs(temp-30.1) > 1e-9 {
		t.Errorf("GetTemperature = %v, %v; want 30.1", temp, err)
	}
	volts, err := w.GetVoltage(ctx)
	if err != nil || math.Abs(volts-3.3) > 1e-9 {
		t.Errorf("GetVoltage = %v, %v; want 3.3", volts, err)
	}
	if _, err := w.GetTemperature(ctx); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestWisol_Ping(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("AT"), "OK\r"},
		exchange{at("AT"), "ERROR\r"},
	)
	w := NewWisol(port, testOptions(t, clock)...)
	ctx := context.Background()

	if err := w.Ping(ctx); err != nil {
		t.Errorf("first ping: %v", err)
	}
	if err := w.Ping(ctx); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("second ping: expected ErrMalformedResponse, got %v", err)
	}
}

func TestWisol_Frequency(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t)
	w := NewWisol(port, testOptions(t, clock, WithCountry("US"))...)
	ctx := context.Background()

	if w.Zone() != sigfox.RCZ2 {
		t.Errorf("zone for US = %s, want RCZ2", w.Zone())
	}
	if err := SetFrequencyForCountry(ctx, w, "JP"); err != nil {
		t.Fatalf("SetFrequencyForCountry: %v", err)
	}
	if zone, _ := w.GetFrequency(ctx); zone != sigfox.RCZ3 {
		t.Errorf("GetFrequency = %s, want RCZ3", zone)
	}
	if err := w.SetFrequency(ctx, sigfox.Zone(9)); !errors.Is(err, ErrUnknownZone) {
		t.Errorf("expected ErrUnknownZone, got %v", err)
	}
	if port.opens != 0 {
		t.Error("frequency selection should not talk to the module")
	}
}

func TestWisol_NotSupported(t *testing.T) {
	w := NewWisol(newScriptedTransport(t), testOptions(t, &fakeClock{})...)
	ctx := context.Background()

	_, err := w.GetHardware(ctx)
	if !errors.Is(err, ErrNotSupported) {
		t.Fatalf("expected ErrNotSupported, got %v", err)
	}
	var nse *NotSupportedError
	if !errors.As(err, &nse) || nse.Module != "wisol" || nse.Operation != "GetHardware" {
		t.Errorf("NotSupportedError = %+v", nse)
	}
	if err := w.SetPower(ctx, 14); !errors.Is(err, ErrNotSupported) {
		t.Errorf("SetPower: expected ErrNotSupported, got %v", err)
	}
}

// ============================================================================
// Begin
// ============================================================================

func TestWisol_BeginEmulator(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("ATS410=1"), "OK\r"},
		exchange{at("AT$I=10"), "002BEEF1\r"},
		exchange{at("AT$I=11"), "0123456789ABCDEF\r"},
	)
	w := NewWisol(port, testOptions(t, clock, WithEmulator(true), WithCountry("JP"))...)

	if err := w.Begin(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Zone() != sigfox.RCZ3 {
		t.Errorf("zone = %s, want RCZ3", w.Zone())
	}
	port.assertDrained()
}

func TestWisol_BeginRetries(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t,
		exchange{at("ATS410=0"), "ERR"},
		exchange{at("ATS410=0"), "OK\r"},
		exchange{at("AT$I=10"), "002BEEF1\r"},
		exchange{at("AT$I=11"), "0123456789ABCDEF\r"},
	)
	w := NewWisol(port, testOptions(t, clock,
		WithBeginRetries(3, 2*time.Second),
		WithTimeouts(100*time.Millisecond, 0, 0))...)

	if err := w.Begin(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if clock.now < 4000 {
		t.Errorf("clock = %dms, expected two 2s begin delays", clock.now)
	}
	port.assertDrained()
}

func TestWisol_BeginExhausted(t *testing.T) {
	clock := &fakeClock{}
	port := newScriptedTransport(t)
	w := NewWisol(port, testOptions(t, clock,
		WithBeginRetries(2, time.Second),
		WithTimeouts(100*time.Millisecond, 0, 0))...)

	err := w.Begin(context.Background())
	if !errors.Is(err, ErrBeginFailed) || !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrBeginFailed wrapping ErrTimeout, got %v", err)
	}
	if port.opens != 2 {
		t.Errorf("opens = %d, want one per attempt", port.opens)
	}
}

func TestBegin_ContextCanceledDuringDelay(t *testing.T) {
	ctrl := gomock.NewController(t)
	port := NewMockTransport(ctrl)
	clock := NewMockClock(ctrl)

	clock.EXPECT().Millis().Return(uint64(0)).AnyTimes()
	clock.EXPECT().Sleep(gomock.Any(), 2*time.Second).Return(context.Canceled)

	w := NewWisol(port, WithClock(clock), WithBeginRetries(5, 2*time.Second))
	if err := w.Begin(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

// ============================================================================
// Wire bytes
// ============================================================================

func TestWisol_PingWireSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	port := NewMockTransport(ctrl)
	clock := &fakeClock{}

	gomock.InOrder(
		port.EXPECT().Open(9600).Return(nil),
		port.EXPECT().Listen().Return(nil),
		port.EXPECT().WriteByte(byte('A')).Return(nil),
		port.EXPECT().WriteByte(byte('T')).Return(nil),
		port.EXPECT().WriteByte(byte('\r')).Return(nil),
		port.EXPECT().TryReadByte().Return(byte('O'), true),
		port.EXPECT().TryReadByte().Return(byte('K'), true),
		port.EXPECT().TryReadByte().Return(byte('\r'), true),
		port.EXPECT().Close().Return(nil),
	)
	port.EXPECT().Available().Return(1).AnyTimes()

	w := NewWisol(port, testOptions(t, clock)...)
	if err := w.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Statistics().BytesSent != 3 || w.Statistics().BytesReceived != 3 {
		t.Errorf("bytes sent/received = %d/%d, want 3/3",
			w.Statistics().BytesSent, w.Statistics().BytesReceived)
	}
}
