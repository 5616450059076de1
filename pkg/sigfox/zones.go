// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sigfox

import (
	"fmt"
	"strconv"
	"strings"
)

// Zone is a SIGFOX radio configuration zone (RCZ).
type Zone uint8

const (
	ZoneUnknown Zone = 0
	RCZ1        Zone = 1 // Europe, Middle East
	RCZ2        Zone = 2 // US, Mexico
	RCZ3        Zone = 3 // Japan
	RCZ4        Zone = 4 // rest of the world
)

// uplink frequency per zone, Hz
var zoneFrequency = map[Zone]uint32{
	RCZ1: 868130000,
	RCZ2: 902200000,
	RCZ3: 923200000,
	RCZ4: 920800000,
}

// Frequency returns the uplink frequency of z in Hz, or 0 if unknown.
func (z Zone) Frequency() uint32 {
	return zoneFrequency[z]
}

// Valid reports whether z is one of RCZ1-RCZ4.
func (z Zone) Valid() bool {
	return z >= RCZ1 && z <= RCZ4
}

func (z Zone) String() string {
	if !z.Valid() {
		return fmt.Sprintf("RCZ?(%d)", uint8(z))
	}
	return fmt.Sprintf("RCZ%d", uint8(z))
}

// ParseZone accepts "3", "rcz3" or "RCZ3".
func ParseZone(s string) (Zone, error) {
	digits := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "RCZ")
	n, err := strconv.Atoi(digits)
	if err != nil || !Zone(n).Valid() {
		return ZoneUnknown, fmt.Errorf("%w: %q", ErrUnknownZone, s)
	}
	return Zone(n), nil
}

// countries whose zone differs from RCZ4
var countryZone = map[string]Zone{
	"JP": RCZ3,
	"US": RCZ2,
	"MX": RCZ2,

	// ETSI
	"FR": RCZ1, "OM": RCZ1, "SA": RCZ1,
	"DE": RCZ1, "GB": RCZ1, "IE": RCZ1, "ES": RCZ1, "PT": RCZ1, "IT": RCZ1,
	"NL": RCZ1, "BE": RCZ1, "LU": RCZ1, "AT": RCZ1, "CH": RCZ1, "DK": RCZ1,
	"SE": RCZ1, "NO": RCZ1, "FI": RCZ1, "PL": RCZ1, "CZ": RCZ1, "AE": RCZ1,
	"ZA": RCZ1,
}

// ZoneForCountry maps an ISO 3166 alpha-2 country code to its zone.
// Countries not listed run on RCZ4.
func ZoneForCountry(code string) Zone {
	if z, ok := countryZone[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return z
	}
	return RCZ4
}
