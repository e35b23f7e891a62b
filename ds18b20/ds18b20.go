// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ds18b20 controls a Dallas Semi / Maxim DS18B20 temperature sensor
// over a bit-level 1-wire bus.
//
// The driver holds no bus handle: every operation takes the owire.Bus it
// should run on and issues exactly one command sequence on it. Operations on
// the same bus must not be interleaved, see the owire.Bus documentation.
//
// # Datasheet
//
// https://www.analog.com/media/en/technical-documentation/data-sheets/DS18B20.pdf
package ds18b20

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/onewire"
	"periph.io/x/conn/v3/physic"

	"github.com/GermanBionicSystems/owire"
)

// FamilyCode is the 1-wire family code shared by all DS18B20 devices, found
// in the least significant byte of their address.
const FamilyCode = 0x28

// Function commands, datasheet p.11.
const (
	cmdConvertTemp     = 0x44
	cmdWriteScratchpad = 0x4e
	cmdCopyScratchpad  = 0x48
	cmdReadScratchpad  = 0xbe
	cmdRecallEEPROM    = 0xb8
)

// eepromWriteTime is the guaranteed maximum EEPROM write time. Copy
// scratchpad has no completion signal, so SaveToEEPROM always waits this
// long.
const eepromWriteTime = 10 * time.Millisecond

// SensorData is everything a scratchpad read yields. It is produced fresh on
// every read and never cached.
type SensorData struct {
	// Temperature of the last conversion. The power-on value, before any
	// conversion has run, is 85°C.
	Temperature physic.Temperature
	// Resolution currently configured in the device.
	Resolution Resolution
	// AlarmTempHigh puts the device in an alarm state when the last recorded
	// temperature, in °C, exceeds it.
	AlarmTempHigh int8
	// AlarmTempLow puts the device in an alarm state when the last recorded
	// temperature, in °C, falls below it.
	AlarmTempLow int8
}

// Dev is a handle to one DS18B20 on a 1-wire bus, identified by its 64-bit
// address.
//
// A Dev carries no mutable state and is safe to share between goroutines as
// long as operations on the same bus are serialized.
type Dev struct {
	addr onewire.Address
}

// New returns a handle for the device with the given address.
//
// It only validates that the address carries the DS18B20 family code and
// fails with owire.ErrFamilyCode otherwise; no bus I/O takes place.
func New(addr onewire.Address) (*Dev, error) {
	if byte(addr) != FamilyCode {
		return nil, fmt.Errorf("ds18b20: address %#016x: %w", uint64(addr), owire.ErrFamilyCode)
	}
	return &Dev{addr: addr}, nil
}

// Address returns the device's 64-bit 1-wire address.
func (d *Dev) Address() onewire.Address {
	return d.addr
}

func (d *Dev) String() string {
	return fmt.Sprintf("DS18B20{%#016x}", uint64(d.addr))
}

// StartTempMeasurement starts a temperature conversion on this device only
// and returns without waiting for it.
//
// The conversion takes up to the MaxMeasurementTime of the currently
// configured resolution, which this call does not know; the caller must wait
// at least that long before reading the result.
func (d *Dev) StartTempMeasurement(b owire.Bus) error {
	return owire.SendCommand(b, cmdConvertTemp, &d.addr)
}

// ReadData reads the scratchpad and decodes it.
func (d *Dev) ReadData(b owire.Bus) (SensorData, error) {
	return readData(b, d.addr)
}

// SetConfig writes the alarm thresholds and the resolution to the
// scratchpad.
//
// Only the volatile scratchpad is updated; use SaveToEEPROM to persist the
// configuration across power cycles.
func (d *Dev) SetConfig(b owire.Bus, alarmTempLow, alarmTempHigh int8, res Resolution) error {
	if err := owire.SendCommand(b, cmdWriteScratchpad, &d.addr); err != nil {
		return err
	}
	// The device expects all three bytes, high threshold first.
	if err := b.WriteByte(byte(alarmTempHigh)); err != nil {
		return err
	}
	if err := b.WriteByte(byte(alarmTempLow)); err != nil {
		return err
	}
	return b.WriteByte(res.configRegister())
}

// SaveToEEPROM copies this device's scratchpad configuration to its EEPROM.
// It returns after the guaranteed maximum write time of 10ms, using
// time.Sleep.
func (d *Dev) SaveToEEPROM(b owire.Bus) error {
	return saveToEEPROM(b, &d.addr)
}

// RecallFromEEPROM reloads this device's configuration from its EEPROM into
// the scratchpad. It returns as soon as the device signals completion and
// fails with owire.ErrTimeout after 10ms worth of read slots.
func (d *Dev) RecallFromEEPROM(b owire.Bus) error {
	return recallFromEEPROM(b, &d.addr)
}

// Measure runs a full conversion on this device and returns the result.
//
// It first reads the scratchpad to learn the configured resolution, starts a
// conversion, sleeps for that resolution's worst-case conversion time and
// reads the result back. Use StartTempMeasurement and ReadData directly to
// schedule the wait some other way.
func (d *Dev) Measure(b owire.Bus) (SensorData, error) {
	before, err := readData(b, d.addr)
	if err != nil {
		return SensorData{}, err
	}
	if err := d.StartTempMeasurement(b); err != nil {
		return SensorData{}, err
	}
	before.Resolution.DelayForMeasurementTime()
	return readData(b, d.addr)
}

// StartSimultaneousTempMeasurement starts a temperature conversion on every
// device on the bus at once and returns without waiting.
//
// There is no per-device result; the caller must wait each device's
// conversion time before reading it.
func StartSimultaneousTempMeasurement(b owire.Bus) error {
	if err := b.Reset(); err != nil {
		return err
	}
	if err := owire.SkipAddress(b); err != nil {
		return err
	}
	return b.WriteByte(cmdConvertTemp)
}

// ConvertAll starts a conversion on every device on the bus and sleeps for
// the worst-case conversion time of the given resolution, which must be the
// highest resolution configured on any device on the bus.
func ConvertAll(b owire.Bus, maxRes Resolution) error {
	if err := StartSimultaneousTempMeasurement(b); err != nil {
		return err
	}
	maxRes.DelayForMeasurementTime()
	return nil
}

// SimultaneousSaveToEEPROM copies the scratchpad configuration to EEPROM on
// every device on the bus at once.
func SimultaneousSaveToEEPROM(b owire.Bus) error {
	return saveToEEPROM(b, nil)
}

// SimultaneousRecallFromEEPROM reloads the EEPROM configuration into the
// scratchpad on every device on the bus at once.
func SimultaneousRecallFromEEPROM(b owire.Bus) error {
	return recallFromEEPROM(b, nil)
}

// ReadScratchpad reads the addressed device's 9 byte scratchpad.
//
// The trailing CRC is checked against the first 8 bytes and a mismatch fails
// with owire.ErrCRC; the raw bytes are never returned on a failed check.
func ReadScratchpad(b owire.Bus, addr onewire.Address) ([9]byte, error) {
	var spad [9]byte
	if err := owire.SendCommand(b, cmdReadScratchpad, &addr); err != nil {
		return spad, err
	}
	if err := b.ReadBytes(spad[:]); err != nil {
		return spad, err
	}
	if !onewire.CheckCRC(spad[:]) {
		return spad, owire.ErrCRC
	}
	return spad, nil
}

// readData is the shared scratchpad read and decode path.
func readData(b owire.Bus, addr onewire.Address) (SensorData, error) {
	spad, err := ReadScratchpad(b, addr)
	if err != nil {
		return SensorData{}, err
	}
	return decode(spad)
}

// decode interprets a CRC-clean scratchpad image.
func decode(spad [9]byte) (SensorData, error) {
	res, ok := resolutionFromConfig(spad[4])
	if !ok {
		// A CRC-clean scratchpad with an impossible configuration register
		// is corruption all the same.
		return SensorData{}, owire.ErrCRC
	}

	// spad[1] is the MSB and spad[0] the LSB of the raw temperature, a
	// two's complement value, datasheet p.4.
	raw := int16(uint16(spad[0]) | uint16(spad[1])<<8)
	var div physic.Temperature
	switch res {
	case Bits12:
		div = 16
	case Bits11:
		div = 8
	case Bits10:
		div = 4
	default:
		div = 2
	}

	return SensorData{
		Temperature:   physic.Temperature(raw)*physic.Kelvin/div + physic.ZeroCelsius,
		Resolution:    res,
		AlarmTempHigh: int8(spad[2]),
		AlarmTempLow:  int8(spad[3]),
	}, nil
}

// saveToEEPROM copies the scratchpad configuration to EEPROM, addressed to
// one device or, with a nil addr, to all of them.
func saveToEEPROM(b owire.Bus, addr *onewire.Address) error {
	if err := owire.SendCommand(b, cmdCopyScratchpad, addr); err != nil {
		return err
	}
	// The copy has no completion signal on the bus, wait it out.
	sleep(eepromWriteTime)
	return nil
}

// recallFromEEPROM reloads the EEPROM configuration into the scratchpad,
// addressed to one device or, with a nil addr, to all of them.
//
// The device holds the line low while the recall is in progress and answers
// read slots high once done, so polling finishes early instead of always
// waiting the worst case. The poll is bounded at 10ms worth of read slots.
func recallFromEEPROM(b owire.Bus, addr *onewire.Address) error {
	if err := owire.SendCommand(b, cmdRecallEEPROM, addr); err != nil {
		return err
	}
	maxRetries := int(10*time.Millisecond/owire.ReadSlotDuration) + 1
	for i := 0; i < maxRetries; i++ {
		bit, err := b.ReadBit()
		if err != nil {
			return err
		}
		if bit {
			return nil
		}
	}
	return owire.ErrTimeout
}

var sleep = time.Sleep
