// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/transceiver"
)

var (
	monitorInterval    time.Duration
	monitorNoHeartbeat bool
	monitorDownlink    bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI sending periodic heartbeats",
	Long: `Initialise the module and open an interactive monitor.

The monitor sends a heartbeat message (ctr = counter, upt = minutes up) every
--interval, shows the duty cycle countdown, command statistics and the
driver's warnings, and accepts hex payloads typed at the prompt.

Keys:
  enter       send the typed payload
  ctrl+s      send a heartbeat now
  esc/ctrl+c  quit`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", transceiver.RegulatoryInterval, "Heartbeat interval")
	monitorCmd.Flags().BoolVar(&monitorNoHeartbeat, "no-heartbeat", false, "Only send payloads typed at the prompt")
	monitorCmd.Flags().BoolVar(&monitorDownlink, "downlink", false, "Request a downlink with each heartbeat (Wisol only)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fmt.Printf("Initialising module...\n")
	conn, err := openAndBegin(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The driver trace would tear the alternate screen, so warnings and
	// errors are routed into the event log instead.
	events := &eventLog{max: 200}
	conn.radio.SetLogger(slog.New(slog.NewTextHandler(events, &slog.HandlerOptions{Level: slog.LevelWarn})))

	m := initialMonitorModel(conn, events, monitorOptions{
		interval:  monitorInterval,
		heartbeat: !monitorNoHeartbeat,
		downlink:  monitorDownlink,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	if fm, ok := final.(monitorModel); ok {
		fm.abortTask()
	}
	fmt.Print(conn.radio.Statistics())
	return nil
}
