// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/unabiz/unashield/pkg/transceiver"
)

// Config holds the CLI configuration
type Config struct {
	// Port is the serial device of the module (e.g. "/dev/ttyUSB0")
	Port string
	// Baud overrides the module's default line rate when non-zero
	Baud int
	// URL is a serial-to-WebSocket bridge (ws:// or wss://)
	URL string
	// Username enables HTTP Basic auth for the bridge
	Username string
	// SkipSSLVerify disables TLS certificate checks (wss:// only)
	SkipSSLVerify bool
	// Module is the transceiver family ("wisol" or "radiocrafts")
	Module string
	// Country is the ISO 3166 code that selects the radio zone
	Country string
	// Emulator switches the module to the SNEK emulator key
	Emulator bool
	// Echo drops the module's echo of each command
	Echo bool
	// LogLevel is one of debug, info, warn, error
	LogLevel string
	// LogFormat is text or json
	LogFormat string
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := transceiver.New(c.Module, nil); err != nil {
		return err
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.Module = transceiver.ModuleWisol
		c.Country = "SG"
		c.LogLevel = "warn"
		c.LogFormat = "text"
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if port := os.Getenv("SIGFOX_PORT"); port != "" {
			c.Port = port
		}

		if url := os.Getenv("SIGFOX_URL"); url != "" {
			c.URL = url
		}

		if baud := os.Getenv("SIGFOX_BAUD"); baud != "" {
			b, err := strconv.Atoi(baud)
			if err != nil {
				return fmt.Errorf("SIGFOX_BAUD: %w", err)
			}
			c.Baud = b
		}

		if module := os.Getenv("SIGFOX_MODULE"); module != "" {
			c.Module = module
		}

		if country := os.Getenv("SIGFOX_COUNTRY"); country != "" {
			c.Country = country
		}

		if emulator := os.Getenv("SIGFOX_EMULATOR"); emulator != "" {
			e, err := strconv.ParseBool(emulator)
			if err != nil {
				return fmt.Errorf("SIGFOX_EMULATOR: %w", err)
			}
			c.Emulator = e
		}

		if echo := os.Getenv("SIGFOX_ECHO"); echo != "" {
			e, err := strconv.ParseBool(echo)
			if err != nil {
				return fmt.Errorf("SIGFOX_ECHO: %w", err)
			}
			c.Echo = e
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if format := os.Getenv("LOG_FORMAT"); format != "" {
			c.LogFormat = format
		}

		return nil
	}
}

// WithFlags loads configuration from flags set on the command line
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			value := f.Value.String()
			switch f.Name {
			case "port":
				c.Port = value
			case "baud":
				c.Baud, err = strconv.Atoi(value)
			case "url":
				c.URL = value
			case "username":
				c.Username = value
			case "no-ssl-verify":
				c.SkipSSLVerify = value == "true"
			case "module":
				c.Module = value
			case "country":
				c.Country = value
			case "emulator":
				c.Emulator = value == "true"
			case "echo":
				c.Echo = value == "true"
			case "log-level":
				c.LogLevel = value
			case "log-format":
				c.LogFormat = value
			}
		})
		return err
	}
}
