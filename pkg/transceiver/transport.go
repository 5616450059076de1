// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"time"
)

//go:generate go tool mockgen -source=transport.go -destination=mock_transport_test.go -package=transceiver

// Transport is the byte stream to the module.
//
// The driver opens the transport at the module's baud rate before every
// command and closes it afterwards. Reads never block: TryReadByte reports
// false when nothing has arrived yet.
type Transport interface {
	Open(baud int) error
	Close() error
	WriteByte(b byte) error
	TryReadByte() (byte, bool)
	Available() int
	// Listen selects this transport as the active receiver.
	Listen() error
}

// Clock is the driver's time source.
type Clock interface {
	// Millis returns a monotonic millisecond count.
	Millis() uint64
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is a Clock backed by the process monotonic clock.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a clock whose Millis counts from now.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) Millis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

func (c *SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
