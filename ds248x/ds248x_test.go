// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds248x

import (
	"errors"
	"strings"
	"testing"
	"time"

	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/GermanBionicSystems/owire"
)

// initOps is the I²C traffic of a successful DS2483 initialization with
// DefaultOpts.
func initOps(addr uint16) []i2ctest.IO {
	return []i2ctest.IO{
		// Device reset.
		{Addr: addr, W: []byte{0xf0}},
		// Status register check.
		{Addr: addr, W: []byte{0xe1, 0xf0}, R: []byte{0x18}},
		// Configuration register write, bottom nibble read back.
		{Addr: addr, W: []byte{0xd2, 0xe1}, R: []byte{0x01}},
		// Port configuration register probe, this is a ds2483.
		{Addr: addr, W: []byte{0xe1, 0xb4}},
		// Port timing adjustment for DefaultOpts.
		{Addr: addr, W: []byte{0xc3, 0x06, 0x26, 0x46, 0x66, 0x86}},
	}
}

func TestNew_badAddress(t *testing.T) {
	bus := i2ctest.Playback{}
	if d, err := New(&bus, 0x42, &DefaultOpts); d != nil || err == nil {
		t.Fatal("0x42 is not a ds248x address")
	}
}

func TestNew(t *testing.T) {
	bus := i2ctest.Playback{Ops: initOps(0x18)}
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()
	d, err := New(&bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); !strings.HasPrefix(s, "DS2483{") {
		t.Fatal(s)
	}
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBusPrimitives(t *testing.T) {
	ops := append(initOps(0x18), []i2ctest.IO{
		// Reset: 1-wire reset, then an idle status with a presence pulse.
		{Addr: 0x18, W: []byte{0xb4}},
		{Addr: 0x18, R: []byte{0x0a}},
		// WriteByte(0xcc).
		{Addr: 0x18, W: []byte{0xa5, 0xcc}},
		{Addr: 0x18, R: []byte{0x0a}},
		// ReadBytes of 2 bytes: read, wait, fetch from the read data
		// register, twice.
		{Addr: 0x18, W: []byte{0x96}},
		{Addr: 0x18, R: []byte{0x0a}},
		{Addr: 0x18, W: []byte{0xe1, 0xe1}, R: []byte{0x5a}},
		{Addr: 0x18, W: []byte{0x96}},
		{Addr: 0x18, R: []byte{0x0a}},
		{Addr: 0x18, W: []byte{0xe1, 0xe1}, R: []byte{0xa5}},
		// ReadBit: single-bit read slot, the SBR status bit is set.
		{Addr: 0x18, W: []byte{0x87, 0x80}},
		{Addr: 0x18, R: []byte{0x2a}},
	}...)
	bus := i2ctest.Playback{Ops: ops}
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()
	d, err := New(&bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteByte(0xcc); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	if err := d.ReadBytes(buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x5a || buf[1] != 0xa5 {
		t.Fatalf("read %#v", buf)
	}
	bit, err := d.ReadBit()
	if err != nil {
		t.Fatal(err)
	}
	if !bit {
		t.Fatal("expected a high bit")
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReset_noPresence(t *testing.T) {
	ops := append(initOps(0x18), []i2ctest.IO{
		// Reset completes but no device answers: no PPD bit in the status.
		{Addr: 0x18, W: []byte{0xb4}},
		{Addr: 0x18, R: []byte{0x08}},
	}...)
	bus := i2ctest.Playback{Ops: ops}
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()
	d, err := New(&bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Reset(); !errors.Is(err, owire.ErrNoPresence) {
		t.Fatalf("expected no presence, got %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestReset_shortedBus(t *testing.T) {
	ops := append(initOps(0x18), []i2ctest.IO{
		// The short detect status bit is set.
		{Addr: 0x18, W: []byte{0xb4}},
		{Addr: 0x18, R: []byte{0x0e}},
	}...)
	bus := i2ctest.Playback{Ops: ops}
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()
	d, err := New(&bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	err = d.Reset()
	if err == nil {
		t.Fatal("expected a short error")
	}
	var shorted interface{ IsShorted() bool }
	if !errors.As(err, &shorted) || !shorted.IsShorted() {
		t.Fatalf("expected a shorted bus error, got %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestChannelSelect_singleChannel(t *testing.T) {
	bus := i2ctest.Playback{Ops: initOps(0x18)}
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()
	d, err := New(&bus, 0x18, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	// A ds2483 only has channel 0.
	if err := d.ChannelSelect(0); err != nil {
		t.Fatal(err)
	}
	if err := d.ChannelSelect(3); err == nil {
		t.Fatal("a ds2483 has no channel 3")
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}
