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

package frames

import "time"

// PixelFormat identifies the layout of a frame's pixel buffer.
type PixelFormat int

const (
	// FormatRaw16 is 16-bit raw thermal sensor counts, one value per pixel.
	FormatRaw16 PixelFormat = iota
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRaw16:
		return "raw16"
	}
	return "unknown"
}

// Frame is a single captured thermal image. Frames are never mutated
// after creation; ownership transfers with the frame as it moves
// through the pipeline.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Format    PixelFormat
	Pix       []uint16
}

// NewFrame allocates a frame with an owned pixel buffer.
func NewFrame(seq uint64, ts time.Time, width, height int) *Frame {
	return &Frame{
		Seq:       seq,
		Timestamp: ts,
		Width:     width,
		Height:    height,
		Format:    FormatRaw16,
		Pix:       make([]uint16, width*height),
	}
}
