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
	"fmt"
	"math"

	"github.com/mooseworks/moose-detector/preprocess"
)

// Device is the narrow capability the accelerator runtime exposes.
// Concrete implementations wrap the vendor SDK and are linked in on
// accelerator builds. The device handle is a singleton resource owned
// exclusively by the accelerator backend.
type Device interface {
	// Present reports whether the accelerator hardware is attached.
	Present() bool

	// LoadModel loads a model compiled for this accelerator.
	LoadModel(path string) error

	// Infer runs the loaded model and returns raw output rows of
	// [xMin, yMin, xMax, yMax, score, classIndex], with coordinates
	// normalised to [0,1].
	Infer(input []float32) ([]float32, error)

	Close() error
}

const deviceOutputRow = 6

// NewAcceleratorBackend validates the accelerator and loads the
// compiled model. Fails with ErrAcceleratorInit when the device is
// missing or the model can't be loaded, so the caller can fall back to
// the CPU backend instead of aborting.
func NewAcceleratorBackend(dev Device, conf *ModelConfig, compiledModel string) (*AcceleratorBackend, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if dev == nil {
		return nil, fmt.Errorf("%w: no accelerator runtime linked", ErrAcceleratorInit)
	}
	if !dev.Present() {
		return nil, fmt.Errorf("%w: device not present", ErrAcceleratorInit)
	}
	if err := dev.LoadModel(compiledModel); err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", ErrAcceleratorInit, compiledModel, err)
	}
	return &AcceleratorBackend{dev: dev, conf: conf}, nil
}

// AcceleratorBackend offloads detection to the hardware accelerator.
type AcceleratorBackend struct {
	dev  Device
	conf *ModelConfig
}

func (b *AcceleratorBackend) Name() string { return "accelerator" }

func (b *AcceleratorBackend) Close() error {
	return b.dev.Close()
}

func (b *AcceleratorBackend) Detect(t *preprocess.Tensor) ([]Detection, error) {
	out, err := b.dev.Infer(t.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAcceleratorFailed, err)
	}
	if len(out)%deviceOutputRow != 0 {
		return nil, fmt.Errorf("%w: output length %d not a multiple of %d",
			ErrAcceleratorFailed, len(out), deviceOutputRow)
	}

	dets := make([]Detection, 0, len(out)/deviceOutputRow)
	for i := 0; i < len(out); i += deviceOutputRow {
		d, ok := b.decode(out[i:i+deviceOutputRow], t)
		if ok {
			dets = append(dets, d)
		}
	}
	return dets, nil
}

// decode maps one raw output row into source frame pixel coordinates.
// Rows with out-of-range class indices or empty boxes are discarded.
func (b *AcceleratorBackend) decode(row []float32, t *preprocess.Tensor) (Detection, bool) {
	classIdx := int(row[5])
	if classIdx < 0 || classIdx >= len(b.conf.Classes) {
		return Detection{}, false
	}

	xMin := clamp01(float64(row[0]))
	yMin := clamp01(float64(row[1]))
	xMax := clamp01(float64(row[2]))
	yMax := clamp01(float64(row[3]))
	if xMax <= xMin || yMax <= yMin {
		return Detection{}, false
	}

	score := float64(row[4])
	if score <= 0 {
		return Detection{}, false
	}
	if score > 1 {
		score = 1
	}

	w := float64(t.FrameWidth)
	h := float64(t.FrameHeight)
	return Detection{
		X:        int(math.Round(xMin * w)),
		Y:        int(math.Round(yMin * h)),
		Width:    int(math.Round((xMax - xMin) * w)),
		Height:   int(math.Round((yMax - yMin) * h)),
		Label:    b.conf.Classes[classIdx],
		Score:    score,
		FrameSeq: t.FrameSeq,
	}, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
