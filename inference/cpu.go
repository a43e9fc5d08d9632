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
	"sort"

	"github.com/mooseworks/moose-detector/preprocess"
)

// NewCPUBackend returns the built-in CPU runtime. It extracts warm
// blobs from the normalised tensor by thresholding and connected
// component labelling. Deterministic and always available; used as the
// fallback when the accelerator is not.
func NewCPUBackend(conf *ModelConfig) (*CPUBackend, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &CPUBackend{
		conf:    conf,
		label:   conf.Classes[conf.Hotspot.Class],
		thresh:  float32(conf.Hotspot.Threshold),
		minArea: conf.Hotspot.MinArea,
		visited: make([]bool, conf.Width*conf.Height),
		stack:   make([]int, 0, conf.Width*conf.Height),
	}, nil
}

// CPUBackend runs hotspot detection on the CPU. Not safe for
// concurrent use; wrap with WithTimeout, whose runner goroutine
// serialises calls.
type CPUBackend struct {
	conf    *ModelConfig
	label   string
	thresh  float32
	minArea int
	visited []bool
	stack   []int
}

func (b *CPUBackend) Name() string { return "cpu" }

func (b *CPUBackend) Close() error { return nil }

func (b *CPUBackend) Detect(t *preprocess.Tensor) ([]Detection, error) {
	if t.Width != b.conf.Width || t.Height != b.conf.Height || t.Channels != b.conf.Channels {
		return nil, fmt.Errorf("tensor %dx%dx%d does not match model input %dx%dx%d",
			t.Width, t.Height, t.Channels, b.conf.Width, b.conf.Height, b.conf.Channels)
	}

	for i := range b.visited {
		b.visited[i] = false
	}

	var dets []Detection
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := y*t.Width + x
			if b.visited[i] || b.at(t, i) < b.thresh {
				continue
			}
			if d, ok := b.grow(t, x, y); ok {
				dets = append(dets, d)
			}
		}
	}

	sort.Slice(dets, func(i, j int) bool {
		if dets[i].Score != dets[j].Score {
			return dets[i].Score > dets[j].Score
		}
		if dets[i].Y != dets[j].Y {
			return dets[i].Y < dets[j].Y
		}
		return dets[i].X < dets[j].X
	})
	return dets, nil
}

func (b *CPUBackend) at(t *preprocess.Tensor, i int) float32 {
	return t.Data[i*t.Channels]
}

// grow flood-fills the blob containing (x, y) and turns it into a
// detection if it is big enough. Scan order makes this deterministic.
func (b *CPUBackend) grow(t *preprocess.Tensor, x, y int) (Detection, bool) {
	minX, minY := x, y
	maxX, maxY := x, y
	area := 0
	var sum float64

	b.stack = b.stack[:0]
	start := y*t.Width + x
	b.visited[start] = true
	b.stack = append(b.stack, start)

	for len(b.stack) > 0 {
		i := b.stack[len(b.stack)-1]
		b.stack = b.stack[:len(b.stack)-1]

		px, py := i%t.Width, i/t.Width
		area++
		sum += float64(b.at(t, i))
		if px < minX {
			minX = px
		}
		if px > maxX {
			maxX = px
		}
		if py < minY {
			minY = py
		}
		if py > maxY {
			maxY = py
		}

		for _, n := range [4]int{i - t.Width, i + t.Width, i - 1, i + 1} {
			if n < 0 || n >= t.Width*t.Height || b.visited[n] {
				continue
			}
			// Skip row wraps on horizontal neighbours.
			if (n == i-1 && px == 0) || (n == i+1 && px == t.Width-1) {
				continue
			}
			if b.at(t, n) >= b.thresh {
				b.visited[n] = true
				b.stack = append(b.stack, n)
			}
		}
	}

	if area < b.minArea {
		return Detection{}, false
	}

	// Map back into source frame pixel coordinates.
	sx := float64(t.FrameWidth) / float64(t.Width)
	sy := float64(t.FrameHeight) / float64(t.Height)
	return Detection{
		X:        int(math.Round(float64(minX) * sx)),
		Y:        int(math.Round(float64(minY) * sy)),
		Width:    int(math.Round(float64(maxX-minX+1) * sx)),
		Height:   int(math.Round(float64(maxY-minY+1) * sy)),
		Label:    b.label,
		Score:    sum / float64(area),
		FrameSeq: t.FrameSeq,
	}, true
}
