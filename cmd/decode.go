// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/sigfox"
)

var decodeCBOR bool

var decodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a structured message offline",
	Long: `Decode a message built from name/value fields, as received from the
SIGFOX backend. No module is needed.

Example:
  unashield decode 241dce0460a32d01
    ctr = 123.0
    tmp = 30.1`,
	Args:              cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().BoolVar(&decodeCBOR, "cbor", false, "Print the decoded fields as CBOR hex")
}

func runDecode(cmd *cobra.Command, args []string) error {
	payload := args[0]
	for _, e := range sigfox.ValidatePayload(payload) {
		fmt.Printf("  [%s] %s\n", e.Type, e.Message)
	}

	fields, err := sigfox.DecodeMessage(payload)
	if err != nil {
		return err
	}

	if decodeCBOR {
		data, err := sigfox.EncodeFields(fields)
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(data))
		return nil
	}

	for _, f := range fields {
		fmt.Printf("  %-3s = %.1f", f.Name, f.Value())
		if text := f.Text(); text != "" {
			fmt.Printf("  (as text: %q)", text)
		}
		fmt.Println()
	}
	return nil
}
