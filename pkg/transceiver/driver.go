// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unabiz/unashield/pkg/sigfox"
)

// Transceiver is the operation set shared by every module family.
// Operations a family cannot perform return a *NotSupportedError.
type Transceiver interface {
	Begin(ctx context.Context) error

	SendMessage(ctx context.Context, payload string) error
	SendMessageAndGetResponse(ctx context.Context, payload string) (string, error)
	SendString(ctx context.Context, text string) error
	SendMessageTask(payload string) (*Task, error)
	SendMessageAndGetResponseTask(payload string) (*Task, error)
	IsReady() bool
	NextSendIn() time.Duration
	RegulatoryWait() time.Duration

	GetID(ctx context.Context) (id, pac string, err error)
	GetTemperature(ctx context.Context) (float64, error)
	GetVoltage(ctx context.Context) (float64, error)
	GetHardware(ctx context.Context) (string, error)
	GetFirmware(ctx context.Context) (string, error)
	GetParameter(ctx context.Context, address byte) (string, error)

	GetFrequency(ctx context.Context) (sigfox.Zone, error)
	SetFrequency(ctx context.Context, zone sigfox.Zone) error
	GetPower(ctx context.Context) (int, error)
	SetPower(ctx context.Context, power int) error
	EnableEmulator(ctx context.Context) error
	DisableEmulator(ctx context.Context) error
	GetEmulator(ctx context.Context) (bool, error)
	WriteSettings(ctx context.Context) error
	Reboot(ctx context.Context) error
	Ping(ctx context.Context) error

	Module() string
	Zone() sigfox.Zone
	Device() string
	Statistics() *Statistics
	SetLogger(logger *slog.Logger)
	Busy() bool
}

var (
	_ Transceiver = (*Wisol)(nil)
	_ Transceiver = (*Radiocrafts)(nil)
)

// Module family names accepted by New
const (
	ModuleWisol       = "wisol"
	ModuleRadiocrafts = "radiocrafts"
)

// Modules lists the supported module families.
func Modules() []string {
	return []string{ModuleWisol, ModuleRadiocrafts}
}

// New returns a driver for the named module family.
func New(module string, t Transport, opts ...Option) (Transceiver, error) {
	switch strings.ToLower(strings.TrimSpace(module)) {
	case ModuleWisol:
		return NewWisol(t, opts...), nil
	case ModuleRadiocrafts, "rc", "rc1692hp":
		return NewRadiocrafts(t, opts...), nil
	default:
		return nil, fmt.Errorf("unknown module %q (want %s)", module, strings.Join(Modules(), " or "))
	}
}

// begin runs the initialisation sequence, retrying it up to BeginRetries
// times with BeginDelay between attempts.
func begin(ctx context.Context, e *engine, t Transceiver) error {
	e.sent = false
	e.lastSend = 0

	var lastErr error
	for attempt := 1; attempt <= e.cfg.BeginRetries; attempt++ {
		if err := e.clock.Sleep(ctx, e.cfg.BeginDelay); err != nil {
			return err
		}
		e.logger.Debug("begin", slog.Int("attempt", attempt), slog.String("zone", e.cfg.Zone.String()))

		lastErr = beginOnce(ctx, e, t)
		if lastErr == nil {
			e.logger.Info("module ready",
				slog.String("device", e.device),
				slog.String("zone", e.zone.String()),
				slog.Bool("emulator", e.cfg.Emulator))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		e.logger.Warn("begin attempt failed", slog.Int("attempt", attempt), slog.Any("error", lastErr))
	}
	e.logger.Error("unable to init module", slog.Int("attempts", e.cfg.BeginRetries), slog.Any("error", lastErr))
	return fmt.Errorf("%w after %d attempts: %w", ErrBeginFailed, e.cfg.BeginRetries, lastErr)
}

func beginOnce(ctx context.Context, e *engine, t Transceiver) error {
	var err error
	if e.cfg.Emulator {
		err = t.EnableEmulator(ctx)
	} else {
		err = t.DisableEmulator(ctx)
	}
	if err != nil {
		return fmt.Errorf("emulator: %w", err)
	}

	if _, _, err := t.GetID(ctx); err != nil {
		return fmt.Errorf("get ID: %w", err)
	}
	if err := t.SetFrequency(ctx, e.cfg.Zone); err != nil {
		return fmt.Errorf("set frequency: %w", err)
	}

	zone, err := t.GetFrequency(ctx)
	switch {
	case errors.Is(err, ErrNotSupported):
	case err != nil:
		return fmt.Errorf("get frequency: %w", err)
	case zone != e.cfg.Zone:
		e.logger.Warn("module zone differs from the requested zone",
			slog.String("requested", e.cfg.Zone.String()),
			slog.String("module", zone.String()))
	}
	return nil
}

// SetFrequencyForCountry sets the zone used in the given ISO country.
func SetFrequencyForCountry(ctx context.Context, t Transceiver, country string) error {
	return t.SetFrequency(ctx, sigfox.ZoneForCountry(country))
}
