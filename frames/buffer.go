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
	"sync"
	"sync/atomic"
	"time"
)

// NewBuffer returns a bounded frame buffer with the given capacity.
// Capacity should be kept small (a handful of frames) so stale frames
// are dropped rather than queued when inference falls behind capture.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		frames: make([]*Frame, capacity),
		signal: make(chan struct{}, 1),
	}
}

// Buffer is a bounded ring of frames connecting the capture goroutine
// to the inference workers. When full, Push discards the oldest frame
// in favour of the new one: for live detection a fresh frame is always
// worth more than a stale one.
type Buffer struct {
	mu      sync.Mutex
	frames  []*Frame
	head    int
	count   int
	dropped atomic.Uint64
	signal  chan struct{}
}

// Push adds a frame to the buffer. If the buffer is full the oldest
// frame is dropped to make room and Push returns false. Push never
// blocks beyond the internal critical section.
func (b *Buffer) Push(f *Frame) bool {
	b.mu.Lock()
	ok := true
	if b.count == len(b.frames) {
		b.frames[b.head] = nil
		b.head = b.next(b.head)
		b.count--
		b.dropped.Add(1)
		ok = false
	}
	b.frames[(b.head+b.count)%len(b.frames)] = f
	b.count++
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
	return ok
}

// Pop removes and returns the oldest buffered frame, blocking for up
// to timeout if the buffer is empty. Returns nil on timeout.
func (b *Buffer) Pop(timeout time.Duration) *Frame {
	deadline := time.Now().Add(timeout)
	for {
		b.mu.Lock()
		if b.count > 0 {
			f := b.frames[b.head]
			b.frames[b.head] = nil
			b.head = b.next(b.head)
			b.count--
			b.mu.Unlock()
			return f
		}
		b.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-b.signal:
			timer.Stop()
		case <-timer.C:
			return nil
		}
	}
}

// Len returns the number of frames currently buffered.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return len(b.frames)
}

// Dropped returns the number of frames discarded due to overflow since
// the buffer was created.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Buffer) next(i int) int {
	return (i + 1) % len(b.frames)
}
