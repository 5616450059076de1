// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

var errNotOpen = errors.New("transport not open")

// serialPollTimeout bounds how long Available waits for the next byte.
const serialPollTimeout = time.Millisecond

// SerialTransport talks to a module on a local serial port.
type SerialTransport struct {
	portName string
	baud     int // overrides the module baud when non-zero
	port     serial.Port
	buf      []byte
	scratch  [64]byte
}

// NewSerialTransport returns a transport for portName. The port is opened
// by the driver at the module baud rate.
func NewSerialTransport(portName string) *SerialTransport {
	return &SerialTransport{portName: portName}
}

// SetBaud fixes the line rate for a module whose UART was reconfigured.
// Zero restores the module family default.
func (s *SerialTransport) SetBaud(baud int) {
	s.baud = baud
}

// Open opens the port 8N1 at baud and discards stale input.
func (s *SerialTransport) Open(baud int) error {
	if s.baud > 0 {
		baud = s.baud
	}
	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(s.portName, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.portName, err)
	}
	if err := port.SetReadTimeout(serialPollTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout on %s: %w", s.portName, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return fmt.Errorf("failed to reset input on %s: %w", s.portName, err)
	}
	s.port = port
	s.buf = s.buf[:0]
	return nil
}

func (s *SerialTransport) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Listen is a no-op for a hardware UART, which always receives.
func (s *SerialTransport) Listen() error {
	if s.port == nil {
		return errNotOpen
	}
	return nil
}

func (s *SerialTransport) WriteByte(b byte) error {
	if s.port == nil {
		return errNotOpen
	}
	_, err := s.port.Write([]byte{b})
	return err
}

// Available returns the number of buffered bytes, polling the port once
// when the buffer is empty.
func (s *SerialTransport) Available() int {
	if len(s.buf) == 0 && s.port != nil {
		n, err := s.port.Read(s.scratch[:])
		if err == nil && n > 0 {
			s.buf = append(s.buf, s.scratch[:n]...)
		}
	}
	return len(s.buf)
}

func (s *SerialTransport) TryReadByte() (byte, bool) {
	if s.Available() == 0 {
		return 0, false
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b, true
}

// PortName returns the serial device path.
func (s *SerialTransport) PortName() string {
	return s.portName
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
