// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/sigfox"
)

var historyLast int

var historyCmd = &cobra.Command{
	Use:               "history <file>",
	Short:             "Print a CBOR record log written by send --record",
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLast, "last", "n", 0, "Only show the last N records")
}

func runHistory(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := sigfox.ReadRecords(f)
	if historyLast > 0 && len(records) > historyLast {
		records = records[len(records)-historyLast:]
	}
	for _, r := range records {
		fmt.Println(sigfox.FormatRecord(r))
	}
	if err != nil {
		// Records before a truncated tail are still shown.
		return fmt.Errorf("%s: %w", args[0], err)
	}
	fmt.Printf("\n%d records\n", len(records))
	return nil
}
