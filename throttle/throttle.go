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

// Package throttle rate limits detection event delivery. This is
// desirable because repeated detections of the same stationary animal
// carry no new information and can flood downstream consumers. It can
// happen when a moose beds down in view of the camera.
package throttle

import (
	"log"
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/mooseworks/moose-detector/aggregate"
)

type Config struct {
	ApplyThrottling bool          `yaml:"apply-throttling"`
	MaxBurst        int64         `yaml:"max-burst"`
	RefillInterval  time.Duration `yaml:"refill-interval"`
}

func DefaultConfig() Config {
	return Config{
		ApplyThrottling: true,
		MaxBurst:        5,
		RefillInterval:  10 * time.Minute,
	}
}

// NewListener wraps a detection listener so that at most MaxBurst
// events pass in a burst, refilling at one event per RefillInterval.
func NewListener(conf Config, wrapped aggregate.Listener) *ThrottledListener {
	return NewListenerWithClock(conf, wrapped, new(realClock))
}

func NewListenerWithClock(conf Config, wrapped aggregate.Listener, clock ratelimit.Clock) *ThrottledListener {
	// The token bucket tracks the number of *events* which may
	// still be delivered.
	rate := 1.0 / conf.RefillInterval.Seconds()
	return &ThrottledListener{
		conf:       conf,
		wrapped:    wrapped,
		bucket:     ratelimit.NewBucketWithRateAndClock(rate, conf.MaxBurst, clock),
		suppressed: make(map[string]bool),
	}
}

// ThrottledListener suppresses event starts when the bucket is empty.
// The matching end of a suppressed event is swallowed too, so the
// wrapped listener always sees balanced start/end pairs.
type ThrottledListener struct {
	conf    Config
	wrapped aggregate.Listener
	bucket  *ratelimit.Bucket

	mu          sync.Mutex
	suppressed  map[string]bool
	suppedCount uint64
}

func (t *ThrottledListener) DetectionStarted(e aggregate.Event) {
	if t.conf.ApplyThrottling && t.bucket.TakeAvailable(1) == 0 {
		t.mu.Lock()
		t.suppressed[e.ID] = true
		t.suppedCount++
		t.mu.Unlock()
		log.Printf("detection event suppressed due to throttling: %s", e.Label)
		return
	}
	t.wrapped.DetectionStarted(e)
}

func (t *ThrottledListener) DetectionEnded(e aggregate.Event) {
	t.mu.Lock()
	if t.suppressed[e.ID] {
		delete(t.suppressed, e.ID)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	t.wrapped.DetectionEnded(e)
}

// Suppressed returns the number of events swallowed so far.
func (t *ThrottledListener) Suppressed() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suppedCount
}

// realClock implements ratelimit.Clock in terms of standard time functions.
type realClock struct{}

// Now implements Clock.Now by calling time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// Sleep implements Clock.Sleep by calling time.Sleep.
func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
