// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/transceiver"
)

var emulatorCmd = &cobra.Command{
	Use:       "emulator on|off",
	Short:     "Switch the module between the SNEK emulator and the SIGFOX network",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"on", "off"},
	RunE:      runEmulator,
}

func init() {
	rootCmd.AddCommand(emulatorCmd)
}

func runEmulator(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	conn, err := OpenConnection(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	radio := conn.radio

	if args[0] == "on" {
		err = radio.EnableEmulator(ctx)
	} else {
		err = radio.DisableEmulator(ctx)
	}
	if err != nil {
		return err
	}

	on, err := radio.GetEmulator(ctx)
	switch {
	case errors.Is(err, transceiver.ErrNotSupported):
		fmt.Printf("Emulator %s (module cannot report the setting)\n", args[0])
	case err != nil:
		return err
	default:
		fmt.Printf("Emulator enabled: %t\n", on)
	}
	return nil
}
