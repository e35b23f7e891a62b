// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package owiretest is meant to be used to test drivers over a fake bit-level
// 1-wire bus.
package owiretest

import (
	"fmt"
	"sync"

	"github.com/GermanBionicSystems/owire"
)

// IO registers one 1-wire command sequence: the bytes expected to be written
// after the reset pulse, the bytes to return to ReadBytes and the levels to
// return to successive ReadBit calls.
//
// Once Bits is exhausted, further ReadBit calls return low, which is how a
// device that is still busy answers a read slot.
type IO struct {
	W    []byte
	R    []byte
	Bits []bool
}

// Playback implements owire.Bus and plays back a recorded sequence of bus
// transactions.
//
// Every Reset consumes the next operation in Ops. A mismatched write, a read
// past the recorded data or a leftover operation at Close is a test failure:
// it panics unless DontPanic is set, in which case an error is returned.
type Playback struct {
	sync.Mutex
	Ops       []IO
	DontPanic bool
	BitReads  int // number of ReadBit calls served so far

	count     int // operations consumed
	w, r, bit int // cursors inside the current operation
}

func (p *Playback) String() string {
	return "playback"
}

// Close verifies that all the expected operations were completely consumed.
func (p *Playback) Close() error {
	p.Lock()
	defer p.Unlock()
	if p.count < len(p.Ops) {
		return errorf(p.DontPanic, "owiretest: expected %d more operations", len(p.Ops)-p.count)
	}
	if err := p.pendingLocked(); err != nil {
		return err
	}
	return nil
}

// Reset implements owire.Bus.
func (p *Playback) Reset() error {
	p.Lock()
	defer p.Unlock()
	if err := p.pendingLocked(); err != nil {
		return err
	}
	if p.count >= len(p.Ops) {
		return errorf(p.DontPanic, "owiretest: unexpected reset")
	}
	p.count++
	p.w, p.r, p.bit = 0, 0, 0
	return nil
}

// WriteByte implements owire.Bus.
func (p *Playback) WriteByte(b byte) error {
	p.Lock()
	defer p.Unlock()
	if p.count == 0 || p.count > len(p.Ops) {
		return errorf(p.DontPanic, "owiretest: write without a reset")
	}
	op := p.Ops[p.count-1]
	if p.w >= len(op.W) {
		return errorf(p.DontPanic, "owiretest: unexpected write of %#02x", b)
	}
	if op.W[p.w] != b {
		return errorf(p.DontPanic, "owiretest: expected write of %#02x, got %#02x", op.W[p.w], b)
	}
	p.w++
	return nil
}

// ReadBytes implements owire.Bus.
func (p *Playback) ReadBytes(buf []byte) error {
	p.Lock()
	defer p.Unlock()
	if p.count == 0 || p.count > len(p.Ops) {
		return errorf(p.DontPanic, "owiretest: read without a reset")
	}
	op := p.Ops[p.count-1]
	if p.r+len(buf) > len(op.R) {
		return errorf(p.DontPanic, "owiretest: reading %d bytes but only %d recorded", len(buf), len(op.R)-p.r)
	}
	copy(buf, op.R[p.r:])
	p.r += len(buf)
	return nil
}

// ReadBit implements owire.Bus.
func (p *Playback) ReadBit() (bool, error) {
	p.Lock()
	defer p.Unlock()
	if p.count == 0 || p.count > len(p.Ops) {
		return false, errorf(p.DontPanic, "owiretest: bit read without a reset")
	}
	p.BitReads++
	op := p.Ops[p.count-1]
	if p.bit >= len(op.Bits) {
		// The simulated device is still busy.
		return false, nil
	}
	bit := op.Bits[p.bit]
	p.bit++
	return bit, nil
}

// pendingLocked returns an error if the current operation was not fully
// consumed.
func (p *Playback) pendingLocked() error {
	if p.count == 0 {
		return nil
	}
	op := p.Ops[p.count-1]
	if p.w != len(op.W) {
		return errorf(p.DontPanic, "owiretest: expected %d more writes", len(op.W)-p.w)
	}
	if p.r != len(op.R) {
		return errorf(p.DontPanic, "owiretest: expected %d more byte reads", len(op.R)-p.r)
	}
	if p.bit < len(op.Bits) {
		return errorf(p.DontPanic, "owiretest: expected %d more bit reads", len(op.Bits)-p.bit)
	}
	return nil
}

// Record implements owire.Bus and records every transaction driven through
// the underlying bus. The recorded operations can be turned into IO
// literals to feed a Playback.
type Record struct {
	sync.Mutex
	Bus owire.Bus
	Ops []IO
}

func (r *Record) String() string {
	return "record"
}

// Reset implements owire.Bus.
func (r *Record) Reset() error {
	r.Lock()
	defer r.Unlock()
	if err := r.Bus.Reset(); err != nil {
		return err
	}
	r.Ops = append(r.Ops, IO{})
	return nil
}

// WriteByte implements owire.Bus.
func (r *Record) WriteByte(b byte) error {
	r.Lock()
	defer r.Unlock()
	if err := r.Bus.WriteByte(b); err != nil {
		return err
	}
	io := r.current()
	io.W = append(io.W, b)
	return nil
}

// ReadBytes implements owire.Bus.
func (r *Record) ReadBytes(buf []byte) error {
	r.Lock()
	defer r.Unlock()
	if err := r.Bus.ReadBytes(buf); err != nil {
		return err
	}
	io := r.current()
	io.R = append(io.R, buf...)
	return nil
}

// ReadBit implements owire.Bus.
func (r *Record) ReadBit() (bool, error) {
	r.Lock()
	defer r.Unlock()
	bit, err := r.Bus.ReadBit()
	if err != nil {
		return false, err
	}
	io := r.current()
	io.Bits = append(io.Bits, bit)
	return bit, nil
}

func (r *Record) current() *IO {
	if len(r.Ops) == 0 {
		// Transaction driven without a reset; record it anyway.
		r.Ops = append(r.Ops, IO{})
	}
	return &r.Ops[len(r.Ops)-1]
}

func errorf(dontPanic bool, format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	if !dontPanic {
		panic(err)
	}
	return err
}

var _ owire.Bus = &Playback{}
var _ owire.Bus = &Record{}
