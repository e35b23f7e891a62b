// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20

import "time"

// Resolution selects how many bits of the temperature register the device
// fills in during a conversion. Higher resolutions take longer to convert:
// 9bits:94ms, 10bits:188ms, 11bits:375ms, 12bits:750ms, datasheet p.8.
//
// The value of each constant is its configuration register encoding; the
// lower 5 bits of the register are don't-care and read back as 1.
type Resolution byte

const (
	Bits9  Resolution = 0x1f
	Bits10 Resolution = 0x3f
	Bits11 Resolution = 0x5f
	Bits12 Resolution = 0x7f
)

func (r Resolution) String() string {
	switch r {
	case Bits9:
		return "9bits"
	case Bits10:
		return "10bits"
	case Bits11:
		return "11bits"
	case Bits12:
		return "12bits"
	default:
		return "unknown"
	}
}

// MaxMeasurementTime returns the worst-case conversion time at this
// resolution. A conversion started at this resolution is guaranteed to have
// finished after this long.
func (r Resolution) MaxMeasurementTime() time.Duration {
	switch r {
	case Bits9:
		return 94 * time.Millisecond
	case Bits10:
		return 188 * time.Millisecond
	case Bits11:
		return 375 * time.Millisecond
	default:
		return 750 * time.Millisecond
	}
}

// DelayForMeasurementTime sleeps for the worst-case conversion time at this
// resolution.
func (r Resolution) DelayForMeasurementTime() {
	sleep(r.MaxMeasurementTime())
}

// configRegister returns the configuration register encoding.
func (r Resolution) configRegister() byte {
	return byte(r)
}

// resolutionFromConfig decodes a configuration register byte. It reports
// false for a byte the device cannot legitimately hold so that the caller
// can classify it as corruption instead of defaulting.
func resolutionFromConfig(config byte) (Resolution, bool) {
	switch r := Resolution(config); r {
	case Bits9, Bits10, Bits11, Bits12:
		return r, true
	default:
		return 0, false
	}
}
