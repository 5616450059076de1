// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// unashield - SIGFOX transceiver shield tool
//
// A CLI tool for driving Wisol and Radiocrafts SIGFOX modules over a serial
// port or a WebSocket bridge.

package main

import (
	"os"

	"github.com/unabiz/unashield/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
