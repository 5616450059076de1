// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/transceiver"
)

var (
	pingCount   int
	pingTimeout int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the connection by pinging the module",
	Long: `Send the module's no-op command and wait for its answer.

Exit codes:
  0 - Module answered every ping
  1 - Module did not answer (timeout or bad response)
  2 - Connection error

Useful for testing connectivity to a module or a WebSocket bridge.`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "n", 1, "Number of pings")
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 10, "Overall timeout in seconds")
}

func runPing(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, time.Duration(pingTimeout)*time.Second)
	defer cancel()

	conn, err := OpenConnection(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("unashield - Ping\n")
	fmt.Printf("Connection: %s\n\n", conn.info)

	failed := 0
	for i := 1; i <= pingCount; i++ {
		start := time.Now()
		err := conn.radio.Ping(ctx)
		switch {
		case err == nil:
			fmt.Printf("ping %d: OK (%s)\n", i, time.Since(start).Round(time.Millisecond))
		case errors.Is(err, transceiver.ErrTimeout),
			errors.Is(err, transceiver.ErrMalformedResponse),
			errors.Is(err, context.DeadlineExceeded):
			failed++
			fmt.Printf("ping %d: FAILED: %v\n", i, err)
		default:
			conn.Close()
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
	}

	conn.Close()
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "FAILED: %d of %d pings unanswered\n", failed, pingCount)
		os.Exit(1)
	}
	fmt.Printf("SUCCESS: %d pings answered\n", pingCount)
	return nil
}
