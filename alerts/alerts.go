// moose-detector - detect moose and other warm wildlife in thermal video
//  Copyright (C) 2026, Mooseworks
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package alerts drives a GPIO alert line from detection events, for
// external hardware such as a siren or strobe.
package alerts

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"

	"github.com/mooseworks/moose-detector/aggregate"
)

type Config struct {
	// Pin is the GPIO pin name, eg "GPIO17". Empty disables alerts.
	Pin string `yaml:"pin"`

	// Classes lists the detection labels which raise the pin.
	// Empty means every label does.
	Classes []string `yaml:"classes"`
}

func DefaultConfig() Config {
	return Config{
		Pin:     "GPIO17",
		Classes: []string{"moose"},
	}
}

// New looks up the configured GPIO pin and returns an Alerter with the
// pin driven low. host.Init must have been called first.
func New(conf Config) (*Alerter, error) {
	pin := gpioreg.ByName(conf.Pin)
	if pin == nil {
		return nil, fmt.Errorf("alert pin %q not found", conf.Pin)
	}
	return NewWithPin(conf, pin)
}

// NewWithPin is New with the pin supplied by the caller.
func NewWithPin(conf Config, pin gpio.PinIO) (*Alerter, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to set alert pin low: %v", err)
	}
	return &Alerter{
		conf:   conf,
		pin:    pin,
		active: make(map[string]bool),
	}, nil
}

// Alerter holds the alert pin high while at least one detection of an
// alert class is active. It plugs in as a detection event listener.
type Alerter struct {
	conf Config
	pin  gpio.PinIO

	mu     sync.Mutex
	active map[string]bool
}

func (a *Alerter) DetectionStarted(e aggregate.Event) {
	if !a.matches(e.Label) {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active[e.ID] = true
	if len(a.active) == 1 {
		log.Printf("alert on: %s", e.Label)
		if err := a.pin.Out(gpio.High); err != nil {
			log.Printf("failed to raise alert pin: %v", err)
		}
	}
}

func (a *Alerter) DetectionEnded(e aggregate.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active[e.ID] {
		return
	}
	delete(a.active, e.ID)
	if len(a.active) == 0 {
		log.Print("alert off")
		if err := a.pin.Out(gpio.Low); err != nil {
			log.Printf("failed to lower alert pin: %v", err)
		}
	}
}

// Active reports whether the alert line is currently raised.
func (a *Alerter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.active) > 0
}

// Close lowers the alert pin.
func (a *Alerter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = make(map[string]bool)
	return a.pin.Out(gpio.Low)
}

func (a *Alerter) matches(label string) bool {
	if len(a.conf.Classes) == 0 {
		return true
	}
	for _, c := range a.conf.Classes {
		if strings.EqualFold(c, label) {
			return true
		}
	}
	return false
}
