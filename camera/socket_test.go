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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSocketSource(width, height int) (*SocketSource, net.Conn) {
	adapter, detector := net.Pipe()
	source := &SocketSource{
		conn:   detector,
		width:  width,
		height: height,
		raw:    make([]byte, width*height*2),
	}
	return source, adapter
}

func writeRawFrame(t *testing.T, conn net.Conn, pix []uint16) {
	raw := make([]byte, len(pix)*2)
	for i, v := range pix {
		binary.BigEndian.PutUint16(raw[i*2:], v)
	}
	_, err := conn.Write(raw)
	require.NoError(t, err)
}

func TestSocketFrameDecode(t *testing.T) {
	source, adapter := newTestSocketSource(2, 2)
	defer source.Close()

	go writeRawFrame(t, adapter, []uint16{2800, 2900, 3000, 3100})

	f, err := source.NextFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, []uint16{2800, 2900, 3000, 3100}, f.Pix)
}

func TestSocketSequenceIncreases(t *testing.T) {
	source, adapter := newTestSocketSource(2, 2)
	defer source.Close()

	go func() {
		writeRawFrame(t, adapter, []uint16{1, 2, 3, 4})
		writeRawFrame(t, adapter, []uint16{5, 6, 7, 8})
	}()

	f1, err := source.NextFrame(time.Second)
	require.NoError(t, err)
	f2, err := source.NextFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f1.Seq)
	assert.Equal(t, uint64(2), f2.Seq)
}

func TestSocketReadTimeout(t *testing.T) {
	source, adapter := newTestSocketSource(2, 2)
	defer source.Close()
	defer adapter.Close()

	_, err := source.NextFrame(20 * time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestSocketShortFrame(t *testing.T) {
	source, adapter := newTestSocketSource(4, 4)
	defer source.Close()

	go func() {
		adapter.Write([]byte{0x0b, 0x54}) // 1 pixel of 16
	}()

	_, err := source.NextFrame(time.Second)
	var devErr *DeviceError
	assert.ErrorAs(t, err, &devErr)
}

func TestSocketClosedByAdapter(t *testing.T) {
	source, adapter := newTestSocketSource(2, 2)
	defer source.Close()

	adapter.Close()

	_, err := source.NextFrame(time.Second)
	var devErr *DeviceError
	assert.ErrorAs(t, err, &devErr)
}
