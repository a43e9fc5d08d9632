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

// Package preprocess converts raw thermal frames into the tensor
// layout and numeric range a detection model expects.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"time"

	"golang.org/x/image/draw"

	"github.com/mooseworks/moose-detector/frames"
)

// ErrMalformedFrame indicates a frame whose geometry or pixel format
// doesn't match the configured camera profile. Such frames are dropped
// rather than silently corrupted.
var ErrMalformedFrame = errors.New("malformed frame")

// Spec describes the model's input requirements plus the calibrated
// sensor bounds used for min-max normalisation.
type Spec struct {
	Width    int
	Height   int
	Channels int

	// CalMin/CalMax are the calibrated raw sensor counts mapped to
	// 0.0 and 1.0. Values outside the range are clamped.
	CalMin uint16
	CalMax uint16
}

func (s Spec) Validate() error {
	if s.Width < 1 || s.Height < 1 {
		return fmt.Errorf("model input %dx%d is invalid", s.Width, s.Height)
	}
	if s.Channels != 1 && s.Channels != 3 {
		return fmt.Errorf("model channels must be 1 or 3, got %d", s.Channels)
	}
	if s.CalMax <= s.CalMin {
		return fmt.Errorf("calibration range %d..%d is empty", s.CalMin, s.CalMax)
	}
	return nil
}

// Tensor is the normalised model input derived from exactly one frame.
// It keeps the source frame's sequence number, timestamp and geometry
// for traceability but no reference to its pixel buffer.
type Tensor struct {
	FrameSeq    uint64
	Timestamp   time.Time
	FrameWidth  int
	FrameHeight int

	Width    int
	Height   int
	Channels int
	Data     []float32 // HWC layout, values in [0,1]
}

// Transform resizes and normalises a frame into a model input tensor.
// Deterministic: the same frame always yields an identical tensor.
func Transform(f *frames.Frame, spec Spec) (*Tensor, error) {
	if f.Width < 1 || f.Height < 1 || len(f.Pix) != f.Width*f.Height {
		return nil, fmt.Errorf("%w: %dx%d with %d pixels", ErrMalformedFrame, f.Width, f.Height, len(f.Pix))
	}
	if f.Format != frames.FormatRaw16 {
		return nil, fmt.Errorf("%w: unexpected pixel format %s", ErrMalformedFrame, f.Format)
	}

	scaled := scaleRaw(f, spec.Width, spec.Height)

	t := &Tensor{
		FrameSeq:    f.Seq,
		Timestamp:   f.Timestamp,
		FrameWidth:  f.Width,
		FrameHeight: f.Height,
		Width:       spec.Width,
		Height:      spec.Height,
		Channels:    spec.Channels,
		Data:        make([]float32, spec.Width*spec.Height*spec.Channels),
	}

	scale := float32(spec.CalMax - spec.CalMin)
	for i, raw := range scaled {
		v := raw
		if v < spec.CalMin {
			v = spec.CalMin
		} else if v > spec.CalMax {
			v = spec.CalMax
		}
		norm := float32(v-spec.CalMin) / scale
		for c := 0; c < spec.Channels; c++ {
			t.Data[i*spec.Channels+c] = norm
		}
	}
	return t, nil
}

// scaleRaw resizes the raw 16-bit image to the model input size,
// returning one value per pixel in row-major order.
func scaleRaw(f *frames.Frame, width, height int) []uint16 {
	if f.Width == width && f.Height == height {
		return f.Pix
	}

	src := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for i, v := range f.Pix {
		src.Pix[i*2] = uint8(v >> 8)
		src.Pix[i*2+1] = uint8(v)
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := make([]uint16, width*height)
	for i := range out {
		out[i] = uint16(dst.Pix[i*2])<<8 | uint16(dst.Pix[i*2+1])
	}
	return out
}
