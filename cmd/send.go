// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/unabiz/unashield/pkg/sigfox"
)

var (
	sendFields   []string
	sendPayload  string
	sendText     string
	sendDownlink bool
	sendRecord   string
	sendForce    bool
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one SIGFOX message",
	Long: `Initialise the module and send one message.

The message is built from --field name=value pairs, given as a raw hex
--payload, or as ASCII --text of up to 12 characters. Field values are
integers, decimals (sent with one decimal place), or @abc for a 3 letter
string.

Examples:
  unashield send -p /dev/ttyUSB0 --field ctr=123 --field tmp=30.1
  unashield send -p /dev/ttyUSB0 --payload 0102030405
  unashield send -p /dev/ttyUSB0 --text hello --record sent.cbor`,
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringArrayVarP(&sendFields, "field", "f", nil, "Field as name=value (repeatable)")
	sendCmd.Flags().StringVar(&sendPayload, "payload", "", "Raw payload as hex")
	sendCmd.Flags().StringVar(&sendText, "text", "", "ASCII text payload")
	sendCmd.Flags().BoolVar(&sendDownlink, "downlink", false, "Request and wait for a downlink (Wisol only)")
	sendCmd.Flags().StringVar(&sendRecord, "record", "", "Append a CBOR record of the message to this file")
	sendCmd.Flags().BoolVar(&sendForce, "force", false, "Send even if the payload fails validation")
	sendCmd.MarkFlagsMutuallyExclusive("field", "payload", "text")
	sendCmd.MarkFlagsOneRequired("field", "payload", "text")
}

// commandContext returns a context canceled by Ctrl+C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// parseField adds one name=value argument to msg.
func parseField(msg *sigfox.Message, arg string) error {
	name, value, ok := strings.Cut(arg, "=")
	if !ok || name == "" || value == "" {
		return fmt.Errorf("field %q: expected name=value", arg)
	}
	if errs := sigfox.ValidateFieldName(name); len(errs) > 0 {
		return fmt.Errorf("field %q: %w", arg, &errs[0])
	}

	switch {
	case strings.HasPrefix(value, "@"):
		text := value[1:]
		if errs := sigfox.ValidateFieldName(text); len(errs) > 0 {
			return fmt.Errorf("field %q: %w", arg, &errs[0])
		}
		msg.AddStringField(name, text)
	case strings.ContainsAny(value, ".eE"):
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("field %q: %w", arg, err)
		}
		msg.AddFloatField(name, f)
	default:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %q: %w", arg, err)
		}
		msg.AddField(name, n)
	}
	return nil
}

// buildPayload turns the send flags into a hex payload.
func buildPayload(fields []string, payload, text string) (string, error) {
	switch {
	case len(fields) > 0:
		msg := sigfox.NewMessage()
		for _, arg := range fields {
			if err := parseField(msg, arg); err != nil {
				return "", err
			}
		}
		return msg.Encoded(), nil
	case text != "":
		return sigfox.TextToHex(text)
	default:
		return strings.ToLower(payload), nil
	}
}

// checkPayload reports validation anomalies. Only a forced send may go out
// with anomalies.
func checkPayload(payload string, force bool) error {
	errs := sigfox.ValidatePayload(payload)
	if len(errs) == 0 {
		return nil
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  [%s] %s\n", e.Type, e.Message)
	}
	if force {
		fmt.Fprintf(os.Stderr, "Sending anyway (--force)\n")
		return nil
	}
	return errors.New("payload failed validation (use --force to send anyway)")
}

func runSend(cmd *cobra.Command, args []string) error {
	payload, err := buildPayload(sendFields, sendPayload, sendText)
	if err != nil {
		return err
	}
	if err := checkPayload(payload, sendForce); err != nil {
		return err
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	conn, err := openAndBegin(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	radio := conn.radio

	fmt.Printf("Connection: %s\n", conn.info)
	fmt.Printf("Device: %s\n", radio.Device())
	fmt.Printf("Payload: %s\n", payload)
	if fields, err := sigfox.DecodeMessage(payload); err == nil && len(sendFields) > 0 {
		fmt.Printf("Fields: %s\n", sigfox.FormatFields(fields))
	}

	record := sigfox.NewRecord(time.Now(), payload)
	record.Device = radio.Device()
	record.Module = radio.Module()
	record.Zone = radio.Zone()

	start := time.Now()
	if sendDownlink {
		fmt.Printf("Sending and waiting for downlink...\n")
		downlink, err := radio.SendMessageAndGetResponse(ctx, payload)
		if err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
		record.Downlink = downlink
		fmt.Printf("Downlink: %s\n", downlink)
	} else {
		fmt.Printf("Sending...\n")
		if err := radio.SendMessage(ctx, payload); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}
	}
	fmt.Printf("SUCCESS: sent in %s\n", time.Since(start).Round(time.Millisecond))

	if sendRecord != "" {
		if err := appendRecordFile(sendRecord, record); err != nil {
			return err
		}
		fmt.Printf("Recorded to %s\n", sendRecord)
	}
	return nil
}

func appendRecordFile(path string, r sigfox.Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open record log: %w", err)
	}
	if err := sigfox.AppendRecord(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
