// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"log/slog"
	"time"

	"github.com/unabiz/unashield/pkg/sigfox"
)

// Protocol timing defaults
const (
	DefaultCommandTimeout  = 3 * time.Second
	DefaultUplinkTimeout   = 30 * time.Second
	DefaultDownlinkTimeout = 60 * time.Second

	// RegulatoryInterval is the minimum spacing between messages required
	// to stay within the 1% duty cycle. Sending sooner only logs a warning.
	RegulatoryInterval = 10 * time.Minute

	DefaultBeginRetries = 5
	DefaultBeginDelay   = 2 * time.Second

	delayAfterStart   = 200 * time.Millisecond
	delayAfterSend    = 10 * time.Millisecond
	delayAfterReceive = 10 * time.Millisecond
)

// Config holds the driver configuration.
type Config struct {
	// Logger receives the command trace (optional)
	Logger *slog.Logger

	// Clock is the time source; defaults to the system clock
	Clock Clock

	// Country selects the radio zone when Zone is not set
	Country string

	// Zone overrides the zone derived from Country
	Zone sigfox.Zone

	// Emulator sends to a SNEK emulator instead of the SIGFOX network
	Emulator bool

	// Device is the emulator device name, replaced by the module ID after Begin
	Device string

	// Echo discards one received byte per command byte written, for
	// modules that repeat their input
	Echo bool

	CommandTimeout  time.Duration
	UplinkTimeout   time.Duration
	DownlinkTimeout time.Duration

	// DevelopmentInterval is the hard minimum between messages. Zero
	// selects the module family default.
	DevelopmentInterval time.Duration

	// RegulatoryInterval is the soft minimum between messages
	RegulatoryInterval time.Duration

	// HexPolicy decides how invalid digits in hex commands are handled
	HexPolicy sigfox.HexPolicy

	BeginRetries int
	BeginDelay   time.Duration

	// Delays between protocol steps
	StartDelay   time.Duration
	SendDelay    time.Duration
	ReceiveDelay time.Duration
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Country:            "SG",
		CommandTimeout:     DefaultCommandTimeout,
		UplinkTimeout:      DefaultUplinkTimeout,
		DownlinkTimeout:    DefaultDownlinkTimeout,
		RegulatoryInterval: RegulatoryInterval,
		HexPolicy:          sigfox.Lenient,
		BeginRetries:       DefaultBeginRetries,
		BeginDelay:         DefaultBeginDelay,
		StartDelay:         delayAfterStart,
		SendDelay:          delayAfterSend,
		ReceiveDelay:       delayAfterReceive,
	}
}

func newConfig(fam family, opts []Option) Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = NewSystemClock()
	}
	if cfg.DevelopmentInterval == 0 {
		cfg.DevelopmentInterval = fam.devInterval
	}
	if !cfg.Zone.Valid() {
		cfg.Zone = sigfox.ZoneForCountry(cfg.Country)
	}
	if cfg.BeginRetries < 1 {
		cfg.BeginRetries = 1
	}
	return cfg
}

// Option is a functional option for configuring a driver.
type Option func(*Config)

// WithLogger sets the logger for the command trace.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithClock replaces the system clock, typically with a simulated one.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithCountry sets the ISO country code used to pick the radio zone.
//
// Example:
//
//	radio := transceiver.NewWisol(port, transceiver.WithCountry("JP"))
func WithCountry(country string) Option {
	return func(c *Config) {
		c.Country = country
	}
}

// WithZone selects the radio zone directly.
func WithZone(zone sigfox.Zone) Option {
	return func(c *Config) {
		c.Zone = zone
	}
}

// WithEmulator configures Begin to switch the module to emulator mode.
func WithEmulator(enabled bool) Option {
	return func(c *Config) {
		c.Emulator = enabled
	}
}

// WithEcho makes the driver drop the echo of each command.
func WithEcho(enabled bool) Option {
	return func(c *Config) {
		c.Echo = enabled
	}
}

// WithDevice sets the emulator device name.
func WithDevice(device string) Option {
	return func(c *Config) {
		c.Device = device
	}
}

// WithTimeouts sets the command, uplink and downlink response timeouts.
// Zero values keep the defaults.
func WithTimeouts(command, uplink, downlink time.Duration) Option {
	return func(c *Config) {
		if command > 0 {
			c.CommandTimeout = command
		}
		if uplink > 0 {
			c.UplinkTimeout = uplink
		}
		if downlink > 0 {
			c.DownlinkTimeout = downlink
		}
	}
}

// WithDutyCycle sets the hard development interval and the soft
// regulatory interval between messages.
func WithDutyCycle(development, regulatory time.Duration) Option {
	return func(c *Config) {
		c.DevelopmentInterval = development
		c.RegulatoryInterval = regulatory
	}
}

// WithHexPolicy selects strict or lenient hex decoding of commands.
func WithHexPolicy(policy sigfox.HexPolicy) Option {
	return func(c *Config) {
		c.HexPolicy = policy
	}
}

// WithBeginRetries sets how often Begin retries and how long it waits for
// the module before each attempt.
func WithBeginRetries(retries int, delay time.Duration) Option {
	return func(c *Config) {
		c.BeginRetries = retries
		c.BeginDelay = delay
	}
}

// WithStepDelays sets the waits after opening the port, after each
// transmitted byte and after each empty receive poll.
func WithStepDelays(start, send, receive time.Duration) Option {
	return func(c *Config) {
		c.StartDelay = start
		c.SendDelay = send
		c.ReceiveDelay = receive
	}
}
