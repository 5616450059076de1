// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/unabiz/unashield/pkg/transceiver"
)

// connection is an opened transport and the driver on top of it.
type connection struct {
	radio transceiver.Transceiver
	info  string
	close func() error
}

func (c *connection) Close() error {
	return c.close()
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("SIGFOX_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	// Read password without echo
	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenTransport opens either a serial or WebSocket transport based on the
// configuration.
func OpenTransport(ctx context.Context, cfg *Config) (transceiver.Transport, string, func() error, error) {
	if cfg.URL != "" {
		password := ""
		if cfg.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", nil, err
			}
		}

		ws, err := transceiver.DialWebSocket(ctx, cfg.URL, transceiver.WebSocketOptions{
			Username:      cfg.Username,
			Password:      password,
			SkipSSLVerify: cfg.SkipSSLVerify,
		})
		if err != nil {
			return nil, "", nil, err
		}
		return ws, fmt.Sprintf("WebSocket: %s", cfg.URL), ws.Disconnect, nil
	}

	if cfg.Port != "" {
		port := transceiver.NewSerialTransport(cfg.Port)
		port.SetBaud(cfg.Baud)
		info := fmt.Sprintf("Serial: %s", cfg.Port)
		if cfg.Baud > 0 {
			info += fmt.Sprintf(" @ %d baud", cfg.Baud)
		}
		return port, info, port.Close, nil
	}

	ports, _ := transceiver.ListPorts()
	if len(ports) > 0 {
		return nil, "", nil, fmt.Errorf("either --port or --url must be specified (serial ports: %s)", strings.Join(ports, ", "))
	}
	return nil, "", nil, fmt.Errorf("either --port or --url must be specified")
}

// driverOptions maps the CLI configuration onto driver options.
func driverOptions(cfg *Config) []transceiver.Option {
	return []transceiver.Option{
		transceiver.WithLogger(logger),
		transceiver.WithCountry(cfg.Country),
		transceiver.WithEmulator(cfg.Emulator),
		transceiver.WithEcho(cfg.Echo),
	}
}

// OpenConnection opens the transport and creates the driver. The module is
// not initialised; callers run Begin when they need it.
func OpenConnection(ctx context.Context) (*connection, error) {
	transport, info, closeFn, err := OpenTransport(ctx, config)
	if err != nil {
		return nil, err
	}
	radio, err := transceiver.New(config.Module, transport, driverOptions(config)...)
	if err != nil {
		closeFn()
		return nil, err
	}
	return &connection{
		radio: radio,
		info:  fmt.Sprintf("%s (%s, %s)", info, radio.Module(), radio.Zone()),
		close: closeFn,
	}, nil
}

// openAndBegin opens the connection and initialises the module.
func openAndBegin(ctx context.Context) (*connection, error) {
	conn, err := OpenConnection(ctx)
	if err != nil {
		return nil, err
	}
	if err := conn.radio.Begin(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
