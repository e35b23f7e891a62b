// Copyright 2026 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package ds18b20_test

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/onewire"
	"periph.io/x/host/v3"

	"github.com/GermanBionicSystems/owire/ds18b20"
	"github.com/GermanBionicSystems/owire/ds248x"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}

	// Use i2creg I²C bus registry to find the first available I²C bus, which
	// has a DS2483 1-wire bridge on it.
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()

	ow, err := ds248x.New(b, 0x18, &ds248x.DefaultOpts)
	if err != nil {
		log.Fatalf("failed to initialize DS2483: %v", err)
	}

	// The address comes from the bus enumeration of the application, or from
	// the device's label.
	d, err := ds18b20.New(0x740000070e41ac28)
	if err != nil {
		log.Fatal(err)
	}

	data, err := d.Measure(ow)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%8s (%s)\n", data.Temperature, data.Resolution)
}

func Example_simultaneous() {
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatalf("failed to open I²C: %v", err)
	}
	defer b.Close()
	ow, err := ds248x.New(b, 0x18, &ds248x.DefaultOpts)
	if err != nil {
		log.Fatalf("failed to initialize DS2483: %v", err)
	}

	devs := make([]*ds18b20.Dev, 0, 2)
	for _, addr := range []onewire.Address{0x740000070e41ac28, 0x1c0000070e5a1b28} {
		d, err := ds18b20.New(addr)
		if err != nil {
			log.Fatal(err)
		}
		devs = append(devs, d)
	}

	// One conversion for the whole bus, then read each device.
	if err := ds18b20.ConvertAll(ow, ds18b20.Bits12); err != nil {
		log.Fatal(err)
	}
	for _, d := range devs {
		data, err := d.ReadData(ow)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s: %s\n", d, data.Temperature)
	}
}
