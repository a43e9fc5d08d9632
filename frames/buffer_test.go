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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeFrame(seq uint64) *Frame {
	return NewFrame(seq, time.Now(), 4, 4)
}

func TestPushPopOrdering(t *testing.T) {
	buf := NewBuffer(4)
	for seq := uint64(1); seq <= 3; seq++ {
		assert.True(t, buf.Push(makeFrame(seq)))
	}
	assert.Equal(t, 3, buf.Len())

	for seq := uint64(1); seq <= 3; seq++ {
		f := buf.Pop(time.Second)
		require.NotNil(t, f)
		assert.Equal(t, seq, f.Seq)
	}
	assert.Equal(t, 0, buf.Len())
}

func TestOverflowDropsOldest(t *testing.T) {
	buf := NewBuffer(3)
	assert.True(t, buf.Push(makeFrame(1)))
	assert.True(t, buf.Push(makeFrame(2)))
	assert.True(t, buf.Push(makeFrame(3)))

	// Buffer full: pushing drops frame 1, keeps the new frame.
	assert.False(t, buf.Push(makeFrame(4)))
	assert.False(t, buf.Push(makeFrame(5)))

	assert.Equal(t, uint64(2), buf.Dropped())
	assert.Equal(t, 3, buf.Len())

	f := buf.Pop(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, uint64(3), f.Seq)
	f = buf.Pop(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, uint64(4), f.Seq)
	f = buf.Pop(time.Second)
	require.NotNil(t, f)
	assert.Equal(t, uint64(5), f.Seq)
}

func TestNeverExceedsCapacity(t *testing.T) {
	buf := NewBuffer(2)
	for seq := uint64(1); seq <= 100; seq++ {
		buf.Push(makeFrame(seq))
		assert.LessOrEqual(t, buf.Len(), buf.Cap())
	}
	assert.Equal(t, uint64(98), buf.Dropped())
}

func TestPopTimeout(t *testing.T) {
	buf := NewBuffer(2)
	start := time.Now()
	assert.Nil(t, buf.Pop(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestPopWakesOnPush(t *testing.T) {
	buf := NewBuffer(2)
	done := make(chan *Frame)
	go func() {
		done <- buf.Pop(2 * time.Second)
	}()
	time.Sleep(10 * time.Millisecond)
	buf.Push(makeFrame(7))

	select {
	case f := <-done:
		require.NotNil(t, f)
		assert.Equal(t, uint64(7), f.Seq)
	case <-time.After(time.Second):
		t.Fatal("pop never woke up")
	}
}

func TestConcurrentProducerConsumer(t *testing.T) {
	buf := NewBuffer(4)
	const total = 500

	go func() {
		for seq := uint64(1); seq <= total; seq++ {
			buf.Push(makeFrame(seq))
		}
	}()

	var lastSeq uint64
	received := 0
	for {
		f := buf.Pop(100 * time.Millisecond)
		if f == nil {
			break
		}
		received++
		// Sequence numbers must increase even when frames are dropped.
		assert.Greater(t, f.Seq, lastSeq)
		lastSeq = f.Seq
	}
	assert.Equal(t, uint64(total), lastSeq)
	assert.Equal(t, uint64(total), uint64(received)+buf.Dropped())
}
