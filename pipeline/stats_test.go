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

package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencySummaryEmpty(t *testing.T) {
	w := newLatencyWindow(16)
	assert.Equal(t, LatencySummary{}, w.Summary())
}

func TestLatencyPercentiles(t *testing.T) {
	w := newLatencyWindow(200)
	for i := 1; i <= 100; i++ {
		w.Add(time.Duration(i) * time.Millisecond)
	}

	s := w.Summary()
	assert.Equal(t, 100, s.Count)
	assert.InDelta(t, 50.5, s.Mean, 0.001)
	assert.InDelta(t, 50.0, s.P50, 0.001)
	assert.InDelta(t, 95.0, s.P95, 0.001)
	assert.InDelta(t, 99.0, s.P99, 0.001)
}

func TestLatencyWindowBounded(t *testing.T) {
	w := newLatencyWindow(10)

	// 50 slow samples pushed out by 10 fast ones.
	for i := 0; i < 50; i++ {
		w.Add(time.Second)
	}
	for i := 0; i < 10; i++ {
		w.Add(time.Millisecond)
	}

	s := w.Summary()
	assert.Equal(t, 10, s.Count)
	assert.InDelta(t, 1.0, s.P99, 0.001)
}

func TestDropRate(t *testing.T) {
	assert.Equal(t, 0.0, Status{}.DropRate())
	assert.Equal(t, 0.25, Status{FramesCaptured: 100, FramesDropped: 25}.DropRate())
}
