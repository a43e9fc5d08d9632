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

// Package inference runs the detection model over preprocessed
// tensors, on the CPU or offloaded to a hardware accelerator.
package inference

import (
	"errors"

	"github.com/mooseworks/moose-detector/preprocess"
)

var (
	// ErrAcceleratorInit indicates the accelerator is absent or the
	// compiled model could not be loaded. Triggers fallback to the
	// CPU backend rather than aborting the pipeline.
	ErrAcceleratorInit = errors.New("accelerator initialisation failed")

	// ErrAcceleratorFailed indicates a runtime accelerator fault.
	// Repeated occurrences are fatal to the accelerator backend.
	ErrAcceleratorFailed = errors.New("accelerator failure")

	// ErrInferenceTimeout indicates detection exceeded the configured
	// latency budget. The frame is dropped, never retried.
	ErrInferenceTimeout = errors.New("inference timed out")
)

// Detection is one detected object, in source-frame pixel coordinates.
type Detection struct {
	X      int
	Y      int
	Width  int
	Height int

	Label    string
	Score    float64 // confidence in [0,1]
	FrameSeq uint64
}

// Backend is a concrete inference execution strategy. Implementations
// return detections ordered by descending score.
type Backend interface {
	Detect(t *preprocess.Tensor) ([]Detection, error)
	Name() string
	Close() error
}
