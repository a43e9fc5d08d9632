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

package loglimiter

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// New returns a new LogLimiter with the configured minimum log interval.
func New(interval time.Duration) *LogLimiter {
	return &LogLimiter{
		interval: interval,
		nowFunc:  time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

// LogLimiter suppresses a log message if the same message was emitted
// within the configured interval. Distinct messages are tracked
// separately so a chatty error cannot mask a different one. Safe for
// use from multiple goroutines.
type LogLimiter struct {
	interval time.Duration
	nowFunc  func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func (limiter *LogLimiter) Printf(format string, v ...interface{}) {
	limiter.Print(fmt.Sprintf(format, v...))
}

func (limiter *LogLimiter) Print(s string) {
	now := limiter.nowFunc()

	limiter.mu.Lock()
	prev, seen := limiter.lastSeen[s]
	if seen && now.Sub(prev) < limiter.interval {
		limiter.mu.Unlock()
		return
	}
	limiter.lastSeen[s] = now
	limiter.mu.Unlock()

	log.Print(s)
}
