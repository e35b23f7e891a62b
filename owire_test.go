// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package owire_test

import (
	"errors"
	"fmt"
	"testing"

	"periph.io/x/conn/v3/onewire"

	"github.com/GermanBionicSystems/owire"
	"github.com/GermanBionicSystems/owire/owiretest"
)

var testAddr onewire.Address = 0x740000070e41ac28

func TestSendCommand_addressed(t *testing.T) {
	// Match ROM, the address family code first, then the command.
	bus := owiretest.Playback{
		Ops: []owiretest.IO{
			{W: []byte{0x55, 0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74, 0x44}},
		},
	}
	if err := owire.SendCommand(&bus, 0x44, &testAddr); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSendCommand_broadcast(t *testing.T) {
	bus := owiretest.Playback{
		Ops: []owiretest.IO{
			{W: []byte{0xcc, 0x44}},
		},
	}
	if err := owire.SendCommand(&bus, 0x44, nil); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestSendCommand_noPresence(t *testing.T) {
	// No operations recorded: the reset fails and nothing else is sent.
	bus := owiretest.Playback{DontPanic: true}
	if err := owire.SendCommand(&bus, 0x44, &testAddr); err == nil {
		t.Fatal("expected reset to fail")
	}
}

func TestMatchAddress(t *testing.T) {
	bus := owiretest.Playback{
		Ops: []owiretest.IO{
			{W: []byte{0x55, 0x28, 0xac, 0x41, 0x0e, 0x07, 0x00, 0x00, 0x74}},
		},
	}
	if err := bus.Reset(); err != nil {
		t.Fatal(err)
	}
	if err := owire.MatchAddress(&bus, testAddr); err != nil {
		t.Fatal(err)
	}
	if err := bus.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestError(t *testing.T) {
	if !errors.Is(owire.ErrCRC, owire.ErrCRC) {
		t.Fatal("errors.Is on the error value itself")
	}
	wrapped := fmt.Errorf("ds18b20: address 0x10: %w", owire.ErrFamilyCode)
	if !errors.Is(wrapped, owire.ErrFamilyCode) {
		t.Fatal("errors.Is through wrapping")
	}
	if errors.Is(wrapped, owire.ErrCRC) {
		t.Fatal("distinct error values must not match")
	}
	var busErr onewire.BusError = owire.ErrTimeout
	if !busErr.BusError() {
		t.Fatal("protocol errors are bus errors")
	}
}
