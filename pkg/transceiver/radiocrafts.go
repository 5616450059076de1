// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/unabiz/unashield/pkg/sigfox"
	"github.com/unabiz/unashield/pkg/stepstate"
)

// Radiocrafts commands, as hex
const (
	rcEnterCommand   = "00"
	rcGetID          = "39" // '9'
	rcGetTemperature = "55" // 'U'
	rcGetVoltage     = "56" // 'V'
	rcEnterConfig    = "4d" // 'M' + address + value
	rcExitConfig     = "ff"
	rcReadMemory     = "59" // 'Y' + address
)

// Radiocrafts configuration memory addresses
const (
	AddrFrequencyDomain byte = 0x00 // RCZ - 1
	AddrRFPower         byte = 0x01
	AddrPublicKey       byte = 0x28 // 1 = emulator key
)

// Radiocrafts response scaling
const (
	rcTemperatureOffset = 128
	rcVoltageStep       = 0.030

	rcIDLength  = 8  // hex, LSB first
	rcPACLength = 16 // hex, MSB first
)

var radiocraftsFamily = family{
	name:        "radiocrafts",
	baud:        19200,
	marker:      '>',
	binary:      true,
	devInterval: 5 * time.Second,
}

// Radiocrafts drives a Radiocrafts RC1692HP module with its binary command
// set.
type Radiocrafts struct {
	engine
}

// NewRadiocrafts returns a driver for a Radiocrafts module on t.
func NewRadiocrafts(t Transport, opts ...Option) *Radiocrafts {
	return &Radiocrafts{engine: newEngine(radiocraftsFamily, t, opts)}
}

func (r *Radiocrafts) command(ctx context.Context, name, cmd string) (string, error) {
	return r.execute(ctx, name, func() bool {
		return r.sendBuffer(cmd, r.cfg.CommandTimeout, 1)
	}, nil)
}

// sendPayload sends a length-prefixed payload once the duty cycle allows.
func (r *Radiocrafts) sendPayload(message string) bool {
	st := r.state
	switch step := st.Begin("sendPayload", stepstate.StepStart); step {
	case stepstate.StepStart:
		r.logger.Info("sending message", slog.String("device", r.device), slog.String("message", message))
		if err := r.checkDutyCycle(); err != nil {
			return st.Fail(err)
		}
		return st.Suspend(stepstate.StepSend, 0)

	case stepstate.StepSend:
		if !r.sendBuffer(message, r.cfg.UplinkTimeout, 1) {
			return st.End(false)
		}
		return st.Suspend(stepstate.StepEnd, 0)

	case stepstate.StepEnd:
		r.markSent(false)
		return st.Return(st.Returned())

	default:
		return st.Fail(fmt.Errorf("sendPayload: unknown step %s", step))
	}
}

// SendMessageTask starts sending payload, a hex string of up to 12 bytes.
// The module expects the byte count first.
func (r *Radiocrafts) SendMessageTask(payload string) (*Task, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	message := sigfox.ToHex(uint8(len(payload)/2)) + payload
	return r.start("sendMessage", func() bool {
		return r.sendPayload(message)
	}, nil)
}

// SendMessage sends payload and waits for the module prompt.
func (r *Radiocrafts) SendMessage(ctx context.Context, payload string) error {
	t, err := r.SendMessageTask(payload)
	if err != nil {
		return err
	}
	_, err = t.Wait(ctx)
	return err
}

// SendString sends up to 12 ASCII characters.
func (r *Radiocrafts) SendString(ctx context.Context, text string) error {
	payload, err := sigfox.TextToHex(text)
	if err != nil {
		return err
	}
	return r.SendMessage(ctx, payload)
}

// Begin sets the emulator mode, reads the ID and configures the zone,
// retrying the whole sequence on failure.
func (r *Radiocrafts) Begin(ctx context.Context) error {
	return begin(ctx, &r.engine, r)
}

// writeConfig sets one configuration byte. Config mode is always exited,
// even when the write fails.
func (r *Radiocrafts) writeConfig(ctx context.Context, address, value byte) error {
	cmd := rcEnterConfig + sigfox.ToHex(address) + sigfox.ToHex(value)
	_, err := r.command(ctx, "writeConfig", cmd)
	if _, exitErr := r.command(ctx, "exitConfig", rcExitConfig); exitErr != nil && err == nil {
		err = exitErr
	}
	return err
}

// firstByte decodes the first response byte.
func (r *Radiocrafts) firstByte(cmd, response string) (byte, error) {
	if len(response) < 2 {
		return 0, r.malformed(cmd, response, "expected at least one byte")
	}
	raw, err := sigfox.HexToBytes(response[:2])
	if err != nil {
		return 0, r.malformed(cmd, response, err.Error())
	}
	return raw[0], nil
}

// GetID reads the 12-byte identity: 4 bytes ID (LSB first) and 8 bytes PAC.
func (r *Radiocrafts) GetID(ctx context.Context) (id, pac string, err error) {
	data, err := r.command(ctx, "getID", rcGetID)
	if err != nil {
		return "", "", err
	}
	id, pac, err = parseRadiocraftsID(data)
	if err != nil {
		return "", "", r.malformed(rcGetID, data, err.Error())
	}
	r.device = id
	r.logger.Debug("getID", slog.String("id", id), slog.String("pac", pac))
	return id, pac, nil
}

func parseRadiocraftsID(data string) (id, pac string, err error) {
	if len(data) != rcIDLength+rcPACLength {
		return "", "", fmt.Errorf("expected %d hex digits, got %d", rcIDLength+rcPACLength, len(data))
	}
	var sb strings.Builder
	for i := rcIDLength - 2; i >= 0; i -= 2 {
		sb.WriteString(data[i : i+2])
	}
	return strings.ToUpper(sb.String()), strings.ToUpper(data[rcIDLength:]), nil
}

// GetTemperature returns the module temperature in °C.
func (r *Radiocrafts) GetTemperature(ctx context.Context) (float64, error) {
	data, err := r.command(ctx, "getTemperature", rcGetTemperature)
	if err != nil {
		return 0, err
	}
	b, err := r.firstByte(rcGetTemperature, data)
	if err != nil {
		return 0, err
	}
	return float64(int(b) - rcTemperatureOffset), nil
}

// GetVoltage returns the supply voltage in volts.
func (r *Radiocrafts) GetVoltage(ctx context.Context) (float64, error) {
	data, err := r.command(ctx, "getVoltage", rcGetVoltage)
	if err != nil {
		return 0, err
	}
	b, err := r.firstByte(rcGetVoltage, data)
	if err != nil {
		return 0, err
	}
	return float64(b) * rcVoltageStep, nil
}

// GetParameter reads configuration memory at address and returns the
// response as hex.
func (r *Radiocrafts) GetParameter(ctx context.Context, address byte) (string, error) {
	value, err := r.command(ctx, "getParameter", rcReadMemory+sigfox.ToHex(address))
	if err != nil {
		return "", err
	}
	r.logger.Debug("getParameter", slog.String("address", sigfox.ToHex(address)), slog.String("value", value))
	return value, nil
}

func (r *Radiocrafts) readByte(ctx context.Context, address byte) (byte, error) {
	value, err := r.GetParameter(ctx, address)
	if err != nil {
		return 0, err
	}
	return r.firstByte(rcReadMemory+sigfox.ToHex(address), value)
}

// GetPower returns the RF power setting.
func (r *Radiocrafts) GetPower(ctx context.Context) (int, error) {
	b, err := r.readByte(ctx, AddrRFPower)
	return int(b), err
}

// GetEmulator reports whether the module uses the emulator key.
func (r *Radiocrafts) GetEmulator(ctx context.Context) (bool, error) {
	b, err := r.readByte(ctx, AddrPublicKey)
	return b != 0, err
}

// GetFrequency reads the zone from the module.
func (r *Radiocrafts) GetFrequency(ctx context.Context) (sigfox.Zone, error) {
	b, err := r.readByte(ctx, AddrFrequencyDomain)
	if err != nil {
		return sigfox.ZoneUnknown, err
	}
	zone := sigfox.Zone(b + 1)
	if !zone.Valid() {
		return sigfox.ZoneUnknown, r.malformed(rcReadMemory+sigfox.ToHex(AddrFrequencyDomain), sigfox.ToHex(b), "unknown frequency domain")
	}
	return zone, nil
}

// SetFrequency writes the zone to the module.
func (r *Radiocrafts) SetFrequency(ctx context.Context, zone sigfox.Zone) error {
	if !zone.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	if err := r.writeConfig(ctx, AddrFrequencyDomain, uint8(zone)-1); err != nil {
		return err
	}
	r.zone = zone
	return nil
}

// EnableEmulator switches the module to the public emulator key.
func (r *Radiocrafts) EnableEmulator(ctx context.Context) error {
	r.logger.Warn("SNEK emulation mode will NOT work with a SIGFOX network")
	return r.writeConfig(ctx, AddrPublicKey, 1)
}

// DisableEmulator switches the module to its unique SIGFOX key.
func (r *Radiocrafts) DisableEmulator(ctx context.Context) error {
	return r.writeConfig(ctx, AddrPublicKey, 0)
}

// Ping enters command mode and waits for the prompt.
func (r *Radiocrafts) Ping(ctx context.Context) error {
	_, err := r.command(ctx, "ping", rcEnterCommand)
	return err
}

func (r *Radiocrafts) SendMessageAndGetResponse(ctx context.Context, payload string) (string, error) {
	return "", r.notSupported("SendMessageAndGetResponse")
}

func (r *Radiocrafts) SendMessageAndGetResponseTask(payload string) (*Task, error) {
	return nil, r.notSupported("SendMessageAndGetResponse")
}

func (r *Radiocrafts) Reboot(ctx context.Context) error {
	return r.notSupported("Reboot")
}

func (r *Radiocrafts) SetPower(ctx context.Context, power int) error {
	return r.notSupported("SetPower")
}

func (r *Radiocrafts) GetHardware(ctx context.Context) (string, error) {
	return "", r.notSupported("GetHardware")
}

func (r *Radiocrafts) GetFirmware(ctx context.Context) (string, error) {
	return "", r.notSupported("GetFirmware")
}

func (r *Radiocrafts) WriteSettings(ctx context.Context) error {
	return r.notSupported("WriteSettings")
}
