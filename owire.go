// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owire defines the bit-level transport contract for 1-wire bus
// masters and the shared protocol helpers built on top of it.
//
// It complements periph.io/x/conn/v3/onewire, which models a bus as whole
// reset+write+read transactions. Some device protocols cannot be expressed
// that way: the DS18B20 EEPROM recall, for example, signals completion one
// read slot at a time, so the master must expose single-bit reads.
package owire

import (
	"time"

	"periph.io/x/conn/v3/onewire"
)

// ReadSlotDuration is the nominal duration of one 1-wire read slot. It is
// used to convert wall-clock deadlines into bounded read-slot counts when a
// device signals completion on the data line.
const ReadSlotDuration = 70 * time.Microsecond

// ROM commands understood by every 1-wire device.
const (
	cmdMatchROM = 0x55
	cmdSkipROM  = 0xcc
)

// Bus is a bit-level 1-wire bus master.
//
// The 1-wire protocol has no framing: a command sequence runs from Reset
// through its last data byte or bit, and interleaving two sequences corrupts
// the command stream for every device on the bus. Implementations serialize
// individual primitives, but callers must serialize whole sequences; the
// helpers in this package and the device drivers built on them each issue
// one sequence per call.
type Bus interface {
	// Reset sends a reset pulse and waits for a presence pulse. It fails
	// with ErrNoPresence if no device responds.
	Reset() error
	// WriteByte writes one byte, least significant bit first.
	WriteByte(b byte) error
	// ReadBytes generates len(buf) bytes worth of read slots and fills buf
	// with the result.
	ReadBytes(buf []byte) error
	// ReadBit generates a single read slot and returns the sampled level.
	ReadBit() (bool, error)
	// String returns a description of the bus master.
	String() string
}

// MatchAddress addresses exactly one device: a Match ROM command followed by
// the device's 64-bit address, family code first.
func MatchAddress(b Bus, addr onewire.Address) error {
	if err := b.WriteByte(cmdMatchROM); err != nil {
		return err
	}
	for i := uint(0); i < 8; i++ {
		if err := b.WriteByte(byte(addr >> (8 * i))); err != nil {
			return err
		}
	}
	return nil
}

// SkipAddress addresses every device on the bus at once.
func SkipAddress(b Bus) error {
	return b.WriteByte(cmdSkipROM)
}

// SendCommand resets the bus, addresses either the given device or, when
// addr is nil, all devices, and writes the command byte. Further data
// transfer for the command is up to the caller.
func SendCommand(b Bus, cmd byte, addr *onewire.Address) error {
	if err := b.Reset(); err != nil {
		return err
	}
	if addr != nil {
		if err := MatchAddress(b, *addr); err != nil {
			return err
		}
	} else {
		if err := SkipAddress(b); err != nil {
			return err
		}
	}
	return b.WriteByte(cmd)
}

// Error is a 1-wire protocol error.
//
// It implements onewire.BusError to mark failures of devices on the bus, as
// opposed to faults in the bus master itself.
type Error string

func (e Error) Error() string  { return string(e) }
func (e Error) BusError() bool { return true }

const (
	// ErrNoPresence is returned by Reset when no device answers the reset
	// pulse with a presence pulse.
	ErrNoPresence Error = "owire: no device present on the bus"
	// ErrFamilyCode is returned when an address carries a family code for a
	// different device type than the driver expects.
	ErrFamilyCode Error = "owire: family code mismatch"
	// ErrCRC is returned when a CRC-gated read fails its check, or when a
	// CRC-clean payload decodes to values the device cannot produce. Callers
	// should retry the whole read and trust none of the data.
	ErrCRC Error = "owire: invalid crc"
	// ErrTimeout is returned when a device does not signal completion of an
	// operation within its documented worst-case time.
	ErrTimeout Error = "owire: timeout waiting for device"
)

var _ onewire.BusError = Error("")
