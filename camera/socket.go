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
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mooseworks/moose-detector/frames"
)

// SocketConfig describes the unixpacket socket the camera adapter
// daemon writes raw frames to, one packet per frame, 16-bit big-endian
// pixel values.
type SocketConfig struct {
	Path   string
	Width  int
	Height int
}

// OpenSocket listens on the frame socket and waits for the camera
// adapter to connect. Only a single adapter connection is accepted.
func OpenSocket(conf SocketConfig) (*SocketSource, error) {
	os.Remove(conf.Path)
	listener, err := net.Listen("unixpacket", conf.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	conn, err := listener.Accept()
	listener.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	return &SocketSource{
		conn:   conn,
		width:  conf.Width,
		height: conf.Height,
		raw:    make([]byte, conf.Width*conf.Height*2),
	}, nil
}

// SocketSource reads raw thermal frames from the camera adapter's
// unixpacket socket.
type SocketSource struct {
	conn   net.Conn
	width  int
	height int
	seq    uint64
	raw    []byte
}

func (s *SocketSource) NextFrame(timeout time.Duration) (*frames.Frame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, &DeviceError{err}
	}
	n, err := s.conn.Read(s.raw)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, ErrTimeout
		}
		return nil, &DeviceError{err}
	}
	if n != len(s.raw) {
		return nil, &DeviceError{fmt.Errorf("short frame: %d of %d bytes", n, len(s.raw))}
	}

	s.seq++
	f := frames.NewFrame(s.seq, time.Now(), s.width, s.height)
	for i := range f.Pix {
		f.Pix[i] = binary.BigEndian.Uint16(s.raw[i*2:])
	}
	return f, nil
}

func (s *SocketSource) Close() error {
	return s.conn.Close()
}
