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

package camera

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mooseworks/moose-detector/frames"
)

// OpenRawFile opens a raw thermal frame file for playback, so recorded
// footage can be run through the detection pipeline without a camera.
// The file holds consecutive frames of width*height 16-bit big-endian
// pixel values. A zero fps plays back as fast as frames can be read.
func OpenRawFile(filename string, width, height, fps int) (*RawFileSource, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	var interval time.Duration
	if fps > 0 {
		interval = time.Second / time.Duration(fps)
	}
	return &RawFileSource{
		f:        f,
		r:        bufio.NewReader(f),
		width:    width,
		height:   height,
		interval: interval,
		raw:      make([]byte, width*height*2),
	}, nil
}

// RawFileSource plays back raw thermal frames from a file at a
// configured cadence. NextFrame returns io.EOF when the file is
// exhausted.
type RawFileSource struct {
	f        *os.File
	r        *bufio.Reader
	width    int
	height   int
	interval time.Duration
	seq      uint64
	lastRead time.Time
	raw      []byte
}

func (s *RawFileSource) NextFrame(timeout time.Duration) (*frames.Frame, error) {
	if s.interval > 0 && !s.lastRead.IsZero() {
		time.Sleep(time.Until(s.lastRead.Add(s.interval)))
	}

	if _, err := io.ReadFull(s.r, s.raw); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, &DeviceError{err}
	}
	s.lastRead = time.Now()

	s.seq++
	f := frames.NewFrame(s.seq, s.lastRead, s.width, s.height)
	for i := range f.Pix {
		f.Pix[i] = binary.BigEndian.Uint16(s.raw[i*2:])
	}
	return f, nil
}

func (s *RawFileSource) Close() error {
	return s.f.Close()
}
