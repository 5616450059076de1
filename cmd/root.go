// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Loaded by the root pre-run hook
	config *Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "unashield",
	Short: "SIGFOX transceiver shield tool",
	Long: `unashield - A CLI tool for driving SIGFOX transceiver modules.

Sends sensor messages, reads module information and watches the duty cycle
of Wisol (AT command) and Radiocrafts (binary command) modules.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 9600]
  WebSocket: --url ws://host/path [--username user]

Settings may also come from SIGFOX_PORT, SIGFOX_URL, SIGFOX_BAUD,
SIGFOX_MODULE, SIGFOX_COUNTRY, SIGFOX_EMULATOR, SIGFOX_ECHO, LOG_LEVEL and
LOG_FORMAT.
Flags take precedence over the environment.

For WebSocket authentication, the password is read from the SIGFOX_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadRootConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()

	// Serial connection flags
	flags.StringP("port", "p", "", "Serial port device")
	flags.IntP("baud", "b", 0, "Baud rate override (serial only, default per module)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Module flags
	flags.StringP("module", "m", "wisol", "Transceiver module (wisol or radiocrafts)")
	flags.StringP("country", "c", "SG", "ISO country code selecting the radio zone")
	flags.Bool("emulator", false, "Use the SNEK emulator key instead of the SIGFOX network")
	flags.Bool("echo", false, "Discard the module's echo of each command byte")

	// Logging flags
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "text", "Log format (text or json)")
}

func loadRootConfig(cmd *cobra.Command, args []string) error {
	var err error
	config, err = LoadConfig(WithDefaults(), WithEnv(), WithFlags(cmd.Flags()))
	if err != nil {
		return err
	}
	logger, err = newLogger(os.Stderr, config.LogLevel, config.LogFormat)
	return err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
