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

package aggregate

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mooseworks/moose-detector/inference"
)

// recordingListener remembers the frame sequence at which each event
// started and ended.
type recordingListener struct {
	started []Event
	ended   []Event
}

func (l *recordingListener) DetectionStarted(ev Event) {
	l.started = append(l.started, ev)
}

func (l *recordingListener) DetectionEnded(ev Event) {
	l.ended = append(l.ended, ev)
}

func testConfig() Config {
	return Config{
		ConfidenceThresh: 0.5,
		IoUThresh:        0.45,
		TriggerFrames:    3,
		ReleaseFrames:    2,
	}
}

func det(label string, score float64, seq uint64) inference.Detection {
	return inference.Detection{
		X: 10, Y: 10, Width: 20, Height: 20,
		Label: label, Score: score, FrameSeq: seq,
	}
}

// feed runs frames 1..n through the aggregator, providing a moose
// detection on frames where qualifies returns true.
func feed(agg *Aggregator, n int, qualifies func(frame int) bool) {
	base := time.Unix(1700000000, 0)
	for i := 1; i <= n; i++ {
		var dets []inference.Detection
		if qualifies(i) {
			dets = append(dets, det("moose", 0.8, uint64(i)))
		}
		agg.Process(uint64(i), base.Add(time.Duration(i)*time.Second), dets)
	}
}

func TestPromotionAfterTriggerFrames(t *testing.T) {
	// Qualifying detection on frames 3-9 with K=3, M=2: the event
	// must start at frame 5 and clear after frame 11.
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	feed(agg, 12, func(frame int) bool { return frame >= 3 && frame <= 9 })

	require.Len(t, listener.started, 1)
	require.Len(t, listener.ended, 1)
	assert.Equal(t, "moose", listener.started[0].Label)
	assert.Equal(t, uint64(11), listener.ended[0].LastSeq)
	// The event carries the best detection's originating frame.
	assert.GreaterOrEqual(t, listener.started[0].FirstSeq, uint64(3))
	assert.LessOrEqual(t, listener.started[0].FirstSeq, uint64(5))
}

func TestSingleFrameNoiseSuppressed(t *testing.T) {
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	feed(agg, 10, func(frame int) bool { return frame == 4 })

	assert.Empty(t, listener.started)
	assert.Empty(t, listener.ended)
}

func TestBrokenStreakResetsTrigger(t *testing.T) {
	// Two qualifying frames, a gap, then two more: never reaches
	// K=3 consecutive, so nothing is emitted.
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	feed(agg, 10, func(frame int) bool { return frame == 2 || frame == 3 || frame == 5 || frame == 6 })

	assert.Empty(t, listener.started)
}

func TestBriefDropoutDoesNotEndTracking(t *testing.T) {
	// One missing frame (below M=2) must not end the event.
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	feed(agg, 12, func(frame int) bool { return frame != 6 && frame <= 10 })

	require.Len(t, listener.started, 1)
	require.Len(t, listener.ended, 1)
	assert.Equal(t, uint64(12), listener.ended[0].LastSeq)
}

func TestBelowThresholdNeverQualifies(t *testing.T) {
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	base := time.Now()
	for i := 1; i <= 10; i++ {
		agg.Process(uint64(i), base, []inference.Detection{det("moose", 0.3, uint64(i))})
	}
	assert.Empty(t, listener.started)
}

func TestClassesTrackedIndependently(t *testing.T) {
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	base := time.Now()
	for i := 1; i <= 6; i++ {
		dets := []inference.Detection{det("moose", 0.8, uint64(i))}
		if i <= 3 {
			dets = append(dets, inference.Detection{
				X: 100, Y: 100, Width: 20, Height: 20,
				Label: "person", Score: 0.9, FrameSeq: uint64(i),
			})
		}
		agg.Process(uint64(i), base, dets)
	}

	require.Len(t, listener.started, 2)
	labels := []string{listener.started[0].Label, listener.started[1].Label}
	assert.Contains(t, labels, "moose")
	assert.Contains(t, labels, "person")

	// person absent from frame 4, gone after M=2 frames.
	require.Len(t, listener.ended, 1)
	assert.Equal(t, "person", listener.ended[0].Label)
	assert.Equal(t, uint64(5), listener.ended[0].LastSeq)
}

func TestEventCarriesBestDetection(t *testing.T) {
	listener := new(recordingListener)
	agg := New(testConfig(), listener)

	base := time.Now()
	scores := []float64{0.6, 0.92, 0.7}
	for i, score := range scores {
		seq := uint64(i + 1)
		agg.Process(seq, base, []inference.Detection{det("moose", score, seq)})
	}

	require.Len(t, listener.started, 1)
	assert.Equal(t, 0.92, listener.started[0].Score)
	assert.Equal(t, uint64(2), listener.started[0].FirstSeq)
}

func TestActive(t *testing.T) {
	agg := New(testConfig(), nil)
	assert.False(t, agg.Active())

	feed(agg, 5, func(int) bool { return true })
	assert.True(t, agg.Active())
}

// TestDebounceProperty feeds a random qualifying/non-qualifying stream
// and checks the K/M promises against a naive reference.
func TestDebounceProperty(t *testing.T) {
	conf := testConfig()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		listener := new(recordingListener)
		agg := New(conf, listener)

		const n = 200
		qualifying := make([]bool, n+1)
		for i := 1; i <= n; i++ {
			qualifying[i] = rng.Float64() < 0.5
		}
		feed(agg, n, func(frame int) bool { return qualifying[frame] })

		// Reference: count promotions with simple counters.
		var expectStarts int
		tracking := false
		streak, gap := 0, 0
		for i := 1; i <= n; i++ {
			if qualifying[i] {
				streak++
				gap = 0
				if !tracking && streak >= conf.TriggerFrames {
					tracking = true
					expectStarts++
				}
			} else {
				streak = 0
				if tracking {
					gap++
					if gap >= conf.ReleaseFrames {
						tracking = false
						gap = 0
					}
				}
			}
		}

		assert.Len(t, listener.started, expectStarts, "run %d", run)
		expectEnds := expectStarts
		if tracking {
			expectEnds--
		}
		assert.Len(t, listener.ended, expectEnds, "run %d", run)
	}
}

func TestLastSeqMonotonic(t *testing.T) {
	agg := New(testConfig(), nil)
	feed(agg, 20, func(int) bool { return false })
	assert.Equal(t, uint64(20), agg.LastSeq())
}
