// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transceiver

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/unabiz/unashield/pkg/sigfox"
	"github.com/unabiz/unashield/pkg/stepstate"
)

// Wisol AT commands
const (
	cmdEnd                 = "\r"
	cmdPing                = "AT"
	cmdOutputPowerMax      = "ATS302=15" // RCZ1, RCZ3: maximum output power
	cmdPresend             = "AT$GI?"    // RCZ2, RCZ4: returns X,Y
	cmdPresend2            = "AT$RC"     // RCZ2, RCZ4: needed if X=0 or Y<3
	cmdSendMessage         = "AT$SF="
	cmdSendMessageResponse = ",1" // request a downlink
	cmdGetID               = "AT$I=10"
	cmdGetPAC              = "AT$I=11"
	cmdGetTemperature      = "AT$T?"
	cmdGetVoltage          = "AT$V?"
	cmdReset               = "AT$P=0"
	cmdEmulatorDisable     = "ATS410=0"
	cmdEmulatorEnable      = "ATS410=1"

	downlinkPrefix = "OK\nRX="

	wisolIDLength  = 8  // hex
	wisolPACLength = 16 // hex
)

var wisolFamily = family{
	name:        "wisol",
	baud:        9600,
	marker:      '\r',
	devInterval: 2 * time.Second,
}

// Wisol drives a Wisol WSSFM10R module with AT commands.
type Wisol struct {
	engine
}

// NewWisol returns a driver for a Wisol module on t.
func NewWisol(t Transport, opts ...Option) *Wisol {
	return &Wisol{engine: newEngine(wisolFamily, t, opts)}
}

// sendCommand runs one AT command and returns its single-line response.
func (w *Wisol) sendCommand(cmd string) bool {
	return w.sendBuffer(cmd+cmdEnd, w.cfg.CommandTimeout, 1)
}

func (w *Wisol) command(ctx context.Context, name, cmd string) (string, error) {
	return w.execute(ctx, name, func() bool { return w.sendCommand(cmd) }, trimResponse)
}

func trimResponse(response string) (string, error) {
	return strings.TrimSpace(response), nil
}

// setOutputPower prepares the module's output power for the zone before a
// message is sent.
func (w *Wisol) setOutputPower() bool {
	st := w.state
	switch step := st.Begin("setOutputPower", stepstate.StepStart); step {
	case stepstate.StepStart:
		switch w.zone {
		case sigfox.RCZ1, sigfox.RCZ3:
			if !w.sendCommand(cmdOutputPowerMax) {
				return st.End(false)
			}
			return st.Suspend(stepstate.StepEnd, 0)
		case sigfox.RCZ2, sigfox.RCZ4:
			if !w.sendCommand(cmdPresend) {
				return st.End(false)
			}
			return st.Suspend(stepstate.StepPower, 0)
		default:
			w.logger.Error("unknown zone", slog.Int("zone", int(w.zone)))
			return st.Fail(fmt.Errorf("%w: %d", ErrUnknownZone, w.zone))
		}

	case stepstate.StepPower:
		// Response is "X,Y".
		data := strings.TrimSpace(st.Returned())
		if len(data) < 3 || data[1] != ',' {
			return st.Fail(w.malformed(cmdPresend, data, "expected X,Y"))
		}
		x := int(data[0]) - '0'
		y := int(data[2]) - '0'
		w.logger.Debug("presend", slog.Int("x", x), slog.Int("y", y))
		if x != 0 && y >= 3 {
			return st.End(true)
		}
		return st.Suspend(stepstate.StepSend, 0)

	case stepstate.StepSend:
		if !w.sendCommand(cmdPresend2) {
			return st.End(false)
		}
		return st.Suspend(stepstate.StepEnd, 0)

	case stepstate.StepEnd:
		return st.End(true)

	default:
		return st.Fail(fmt.Errorf("setOutputPower: unknown step %s", step))
	}
}

// sendMessageCommand sends a complete AT$SF command once the duty cycle
// and output power allow it.
func (w *Wisol) sendMessageCommand(command string, expected int, timeout time.Duration) bool {
	st := w.state
	switch step := st.Begin("sendMessageCommand", stepstate.StepStart); step {
	case stepstate.StepStart:
		w.logger.Info("sending message",
			slog.String("device", w.device),
			slog.String("command", printable(command)),
			slog.Int("expected_markers", expected))
		if err := w.checkDutyCycle(); err != nil {
			return st.Fail(err)
		}
		return st.Suspend(stepstate.StepPower, 0)

	case stepstate.StepPower:
		if !w.setOutputPower() {
			return st.End(false)
		}
		return st.Suspend(stepstate.StepSend, 0)

	case stepstate.StepSend:
		if !w.sendBuffer(command, timeout, expected) {
			return st.End(false)
		}
		return st.Suspend(stepstate.StepEnd, 0)

	case stepstate.StepEnd:
		w.markSent(expected > 1)
		return st.Return(st.Returned())

	default:
		return st.Fail(fmt.Errorf("sendMessageCommand: unknown step %s", step))
	}
}

// SendMessageTask starts sending payload, a hex string of up to 12 bytes.
func (w *Wisol) SendMessageTask(payload string) (*Task, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	command := cmdSendMessage + payload + cmdEnd
	return w.start("sendMessage", func() bool {
		// "OK\r"
		return w.sendMessageCommand(command, 1, w.cfg.UplinkTimeout)
	}, trimResponse)
}

// SendMessageAndGetResponseTask starts sending payload with a downlink
// request. The task result is the downlink payload as hex.
func (w *Wisol) SendMessageAndGetResponseTask(payload string) (*Task, error) {
	if err := checkPayload(payload); err != nil {
		return nil, err
	}
	command := cmdSendMessage + payload + cmdSendMessageResponse + cmdEnd
	return w.start("sendMessageAndGetResponse", func() bool {
		// "OK\r\nRX=01 23 45 67 89 AB CD EF\r"
		return w.sendMessageCommand(command, 2, w.cfg.DownlinkTimeout)
	}, func(response string) (string, error) {
		return w.extractDownlink(command, response)
	})
}

// extractDownlink strips the "OK\nRX=" prefix and the spaces between bytes.
func (w *Wisol) extractDownlink(command, response string) (string, error) {
	downlink := strings.ReplaceAll(response, downlinkPrefix, "")
	downlink = strings.ReplaceAll(downlink, " ", "")
	downlink = strings.TrimSpace(downlink)
	if len(sigfox.ValidatePayload(downlink)) > 0 {
		return downlink, w.malformed(command, response, "downlink is not hex")
	}
	return downlink, nil
}

// SendMessage sends payload and waits for the module to confirm.
func (w *Wisol) SendMessage(ctx context.Context, payload string) error {
	t, err := w.SendMessageTask(payload)
	if err != nil {
		return err
	}
	_, err = t.Wait(ctx)
	return err
}

// SendMessageAndGetResponse sends payload and waits up to the downlink
// timeout for the network's reply.
func (w *Wisol) SendMessageAndGetResponse(ctx context.Context, payload string) (string, error) {
	t, err := w.SendMessageAndGetResponseTask(payload)
	if err != nil {
		return "", err
	}
	return t.Wait(ctx)
}

// SendString sends up to 12 ASCII characters.
func (w *Wisol) SendString(ctx context.Context, text string) error {
	payload, err := sigfox.TextToHex(text)
	if err != nil {
		return err
	}
	return w.SendMessage(ctx, payload)
}

// Begin sets the emulator mode, reads the ID and configures the zone,
// retrying the whole sequence on failure.
func (w *Wisol) Begin(ctx context.Context) error {
	return begin(ctx, &w.engine, w)
}

// GetID reads the device ID and PAC.
func (w *Wisol) GetID(ctx context.Context) (id, pac string, err error) {
	if id, err = w.command(ctx, "getID", cmdGetID); err != nil {
		return "", "", err
	}
	if !isHexOfLength(id, wisolIDLength) {
		return "", "", w.malformed(cmdGetID, id, fmt.Sprintf("expected %d hex digits", wisolIDLength))
	}
	if pac, err = w.command(ctx, "getPAC", cmdGetPAC); err != nil {
		return "", "", err
	}
	if !isHexOfLength(pac, wisolPACLength) {
		return "", "", w.malformed(cmdGetPAC, pac, fmt.Sprintf("expected %d hex digits", wisolPACLength))
	}
	w.device = id
	w.logger.Debug("getID", slog.String("id", id), slog.String("pac", pac))
	return id, pac, nil
}

func isHexOfLength(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !sigfox.IsHexDigit(s[i]) {
			return false
		}
	}
	return true
}

// GetTemperature returns the module temperature in °C.
func (w *Wisol) GetTemperature(ctx context.Context) (float64, error) {
	data, err := w.command(ctx, "getTemperature", cmdGetTemperature)
	if err != nil {
		return 0, err
	}
	tenths, err := strconv.Atoi(data)
	if err != nil {
		return 0, w.malformed(cmdGetTemperature, data, "not an integer")
	}
	return float64(tenths) / 10.0, nil
}

// GetVoltage returns the supply voltage in volts.
func (w *Wisol) GetVoltage(ctx context.Context) (float64, error) {
	data, err := w.command(ctx, "getVoltage", cmdGetVoltage)
	if err != nil {
		return 0, err
	}
	millivolts, err := strconv.ParseFloat(data, 64)
	if err != nil {
		return 0, w.malformed(cmdGetVoltage, data, "not a number")
	}
	return millivolts / 1000.0, nil
}

// GetFrequency returns the zone selected with SetFrequency. The module
// keeps no readable frequency setting.
func (w *Wisol) GetFrequency(ctx context.Context) (sigfox.Zone, error) {
	return w.zone, nil
}

// SetFrequency selects the zone used for output power negotiation.
func (w *Wisol) SetFrequency(ctx context.Context, zone sigfox.Zone) error {
	if !zone.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownZone, zone)
	}
	w.logger.Debug("setFrequency", slog.String("zone", zone.String()), slog.Uint64("hz", uint64(zone.Frequency())))
	w.zone = zone
	return nil
}

// EnableEmulator routes messages to a SNEK emulator.
func (w *Wisol) EnableEmulator(ctx context.Context) error {
	w.logger.Warn("SNEK emulation mode will NOT work with a SIGFOX network")
	_, err := w.command(ctx, "enableEmulator", cmdEmulatorEnable)
	return err
}

// DisableEmulator routes messages to the SIGFOX network.
func (w *Wisol) DisableEmulator(ctx context.Context) error {
	_, err := w.command(ctx, "disableEmulator", cmdEmulatorDisable)
	return err
}

// Reboot performs a software reset.
func (w *Wisol) Reboot(ctx context.Context) error {
	_, err := w.command(ctx, "reboot", cmdReset)
	return err
}

// Ping checks that the module answers "OK".
func (w *Wisol) Ping(ctx context.Context) error {
	data, err := w.command(ctx, "ping", cmdPing)
	if err != nil {
		return err
	}
	if data != "OK" {
		return w.malformed(cmdPing, data, "expected OK")
	}
	return nil
}

func (w *Wisol) GetEmulator(ctx context.Context) (bool, error) {
	return false, w.notSupported("GetEmulator")
}

func (w *Wisol) GetParameter(ctx context.Context, address byte) (string, error) {
	return "", w.notSupported("GetParameter")
}

func (w *Wisol) GetPower(ctx context.Context) (int, error) {
	return 0, w.notSupported("GetPower")
}

func (w *Wisol) SetPower(ctx context.Context, power int) error {
	return w.notSupported("SetPower")
}

func (w *Wisol) GetHardware(ctx context.Context) (string, error) {
	return "", w.notSupported("GetHardware")
}

func (w *Wisol) GetFirmware(ctx context.Context) (string, error) {
	return "", w.notSupported("GetFirmware")
}

func (w *Wisol) WriteSettings(ctx context.Context) error {
	return w.notSupported("WriteSettings")
}
