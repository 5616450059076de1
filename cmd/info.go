// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/transceiver"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show module identity and readings",
	Long: `Initialise the module and print its SIGFOX ID and PAC, temperature,
supply voltage and radio zone. Readings the module does not support are
shown as "n/a".`,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	conn, err := openAndBegin(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	radio := conn.radio

	fmt.Printf("Connection: %s\n\n", conn.info)

	id, pac, err := radio.GetID(ctx)
	if err != nil {
		return fmt.Errorf("get ID: %w", err)
	}
	fmt.Printf("SIGFOX ID:   %s\n", id)
	fmt.Printf("PAC:         %s\n", pac)

	temp, err := radio.GetTemperature(ctx)
	printReading("Temperature", fmt.Sprintf("%.1f °C", temp), err)

	volts, err := radio.GetVoltage(ctx)
	printReading("Voltage", fmt.Sprintf("%.3f V", volts), err)

	zone, err := radio.GetFrequency(ctx)
	printReading("Zone", fmt.Sprintf("%s (%.3f MHz)", zone, float64(zone.Frequency())/1e6), err)

	power, err := radio.GetPower(ctx)
	printReading("RF Power", fmt.Sprintf("%d", power), err)

	emulator, err := radio.GetEmulator(ctx)
	printReading("Emulator", fmt.Sprintf("%t", emulator), err)

	hw, err := radio.GetHardware(ctx)
	printReading("Hardware", hw, err)

	fw, err := radio.GetFirmware(ctx)
	printReading("Firmware", fw, err)

	fmt.Printf("\n%s", radio.Statistics())
	return nil
}

func printReading(label, value string, err error) {
	switch {
	case errors.Is(err, transceiver.ErrNotSupported):
		value = "n/a"
	case err != nil:
		value = fmt.Sprintf("error: %v", err)
	}
	fmt.Printf("%-12s %s\n", label+":", value)
}
