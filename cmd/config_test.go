// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SIGFOX_PORT", "SIGFOX_URL", "SIGFOX_BAUD", "SIGFOX_MODULE",
		"SIGFOX_COUNTRY", "SIGFOX_EMULATOR", "SIGFOX_ECHO", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func testFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringP("port", "p", "", "")
	fs.IntP("baud", "b", 0, "")
	fs.StringP("module", "m", "wisol", "")
	fs.StringP("country", "c", "SG", "")
	fs.Bool("emulator", false, "")
	fs.String("log-level", "warn", "")
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(WithDefaults(), WithEnv())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Module != "wisol" || cfg.Country != "SG" {
		t.Errorf("expected wisol/SG, got %s/%s", cfg.Module, cfg.Country)
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "text" {
		t.Errorf("expected warn/text logging, got %s/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Port != "" || cfg.URL != "" || cfg.Baud != 0 || cfg.Emulator {
		t.Errorf("expected no connection settings, got %+v", cfg)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIGFOX_PORT", "/dev/ttyUSB0")
	t.Setenv("SIGFOX_BAUD", "9600")
	t.Setenv("SIGFOX_MODULE", "radiocrafts")
	t.Setenv("SIGFOX_COUNTRY", "JP")
	t.Setenv("SIGFOX_EMULATOR", "true")
	t.Setenv("SIGFOX_ECHO", "1")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadConfig(WithDefaults(), WithEnv())
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != "/dev/ttyUSB0" || cfg.Baud != 9600 {
		t.Errorf("expected /dev/ttyUSB0 @ 9600, got %s @ %d", cfg.Port, cfg.Baud)
	}
	if cfg.Module != "radiocrafts" || cfg.Country != "JP" || !cfg.Emulator {
		t.Errorf("unexpected module settings %+v", cfg)
	}
	if !cfg.Echo {
		t.Error("expected echo from SIGFOX_ECHO")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected json log format, got %s", cfg.LogFormat)
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("SIGFOX_PORT", "/dev/ttyUSB0")
	t.Setenv("SIGFOX_COUNTRY", "JP")

	fs := testFlagSet(t, "--port", "/dev/ttyS1", "-b", "19200", "--emulator")
	cfg, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Port != "/dev/ttyS1" {
		t.Errorf("flag should win over env, got port %s", cfg.Port)
	}
	if cfg.Baud != 19200 || !cfg.Emulator {
		t.Errorf("expected baud 19200 with emulator, got %d/%t", cfg.Baud, cfg.Emulator)
	}
	// Flags left at their defaults do not mask the environment
	if cfg.Country != "JP" {
		t.Errorf("unset flag overrode env: country %s", cfg.Country)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown module", map[string]string{"SIGFOX_MODULE": "td1208"}, "td1208"},
		{"bad baud", map[string]string{"SIGFOX_BAUD": "fast"}, "SIGFOX_BAUD"},
		{"bad emulator", map[string]string{"SIGFOX_EMULATOR": "maybe"}, "SIGFOX_EMULATOR"},
		{"bad echo", map[string]string{"SIGFOX_ECHO": "sometimes"}, "SIGFOX_ECHO"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "log level"},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(WithDefaults(), WithEnv())
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "info", "json")
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown", "device", "002BEEF0")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug record below the level was written: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"device":"002BEEF0"`) {
		t.Errorf("expected a JSON record, got %s", out)
	}

	if _, err := newLogger(&buf, "verbose", "text"); err == nil {
		t.Error("expected an error for an unknown level")
	}
}
