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

package inference

import (
	"errors"
	"fmt"
	"log"
)

// Preference selects which backend to run.
type Preference string

const (
	PreferAuto        Preference = "auto"
	PreferCPU         Preference = "cpu"
	PreferAccelerator Preference = "accelerator"
)

func (p Preference) Valid() bool {
	switch p {
	case PreferAuto, PreferCPU, PreferAccelerator:
		return true
	}
	return false
}

// Selection is the backend choice made once at startup. Fallback is
// non-nil when a CPU backend is held in reserve for fatal accelerator
// errors; Degraded records that the accelerator was wanted but
// unavailable.
type Selection struct {
	Primary  Backend
	Fallback Backend
	Degraded bool
}

// Select picks the inference backend per the configured preference.
// Accelerator init failure degrades to the CPU backend instead of
// failing: the pipeline must keep detecting even without the
// accelerator.
func Select(pref Preference, conf *ModelConfig, dev Device, compiledModel string) (Selection, error) {
	if !pref.Valid() {
		return Selection{}, fmt.Errorf("unknown backend preference %q", pref)
	}

	cpu, err := NewCPUBackend(conf)
	if err != nil {
		return Selection{}, err
	}
	if pref == PreferCPU {
		return Selection{Primary: cpu}, nil
	}

	accel, err := NewAcceleratorBackend(dev, conf, compiledModel)
	if err != nil {
		if !errors.Is(err, ErrAcceleratorInit) {
			return Selection{}, err
		}
		log.Printf("%v; falling back to CPU backend", err)
		return Selection{Primary: cpu, Degraded: true}, nil
	}

	return Selection{Primary: accel, Fallback: cpu}, nil
}
