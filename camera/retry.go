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
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mooseworks/moose-detector/frames"
)

// RetryConfig bounds camera reconnection. After MaxAttempts
// consecutive failures NextFrame surfaces ErrDeviceLost.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"max-attempts"`
	InitialDelay time.Duration `yaml:"initial-delay"`
	MaxDelay     time.Duration `yaml:"max-delay"`
}

// DefaultRetryConfig returns the retry settings used when none are
// configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
	}
}

// NewRetrySource wraps an Opener so device errors trigger a bounded
// number of reopen attempts with exponential backoff before escalating
// to ErrDeviceLost. It also re-stamps frame sequence numbers so they
// keep strictly increasing across reconnects.
func NewRetrySource(open Opener, conf RetryConfig) *RetrySource {
	return &RetrySource{
		open:  open,
		conf:  conf,
		sleep: time.Sleep,
	}
}

// RetrySource is a FrameSource that survives transient camera faults.
// Not safe for concurrent use; the capture goroutine is its only
// caller.
type RetrySource struct {
	open  Opener
	conf  RetryConfig
	src   FrameSource
	seq   uint64
	sleep func(time.Duration)
}

func (r *RetrySource) NextFrame(timeout time.Duration) (*frames.Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= r.conf.MaxAttempts; attempt++ {
		if attempt > 0 {
			r.backoff(attempt - 1)
		}

		if r.src == nil {
			src, err := r.open()
			if err != nil {
				lastErr = err
				continue
			}
			log.Print("camera connected")
			r.src = src
		}

		f, err := r.src.NextFrame(timeout)
		if err == nil {
			r.seq++
			f.Seq = r.seq
			return f, nil
		}
		if errors.Is(err, ErrTimeout) {
			return nil, err
		}

		// Device fault: drop the connection and reopen.
		var devErr *DeviceError
		if !errors.As(err, &devErr) {
			return nil, err
		}
		lastErr = err
		r.src.Close()
		r.src = nil
	}

	return nil, fmt.Errorf("%w: %d reconnect attempts failed, last error: %v",
		ErrDeviceLost, r.conf.MaxAttempts, lastErr)
}

func (r *RetrySource) Close() error {
	if r.src == nil {
		return nil
	}
	err := r.src.Close()
	r.src = nil
	return err
}

func (r *RetrySource) backoff(attempt int) {
	delay := r.conf.InitialDelay << uint(attempt)
	if delay > r.conf.MaxDelay || delay <= 0 {
		delay = r.conf.MaxDelay
	}
	log.Printf("camera error, retrying in %s (attempt %d/%d)", delay, attempt+1, r.conf.MaxAttempts)
	r.sleep(delay)
}
