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
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencySummary describes the recent inference latency distribution,
// in milliseconds.
type LatencySummary struct {
	Count int
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
}

// latencyWindow keeps a bounded window of the most recent inference
// latencies.
type latencyWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

func newLatencyWindow(size int) *latencyWindow {
	if size < 1 {
		size = 1
	}
	return &latencyWindow{samples: make([]float64, size)}
}

func (w *latencyWindow) Add(d time.Duration) {
	w.mu.Lock()
	w.samples[w.next] = float64(d) / float64(time.Millisecond)
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

func (w *latencyWindow) Summary() LatencySummary {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	sorted := make([]float64, n)
	copy(sorted, w.samples[:n])
	w.mu.Unlock()

	if n == 0 {
		return LatencySummary{}
	}
	sort.Float64s(sorted)
	return LatencySummary{
		Count: n,
		Mean:  stat.Mean(sorted, nil),
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
}

// FrameStats describes one processed frame, for the metrics log.
type FrameStats struct {
	FrameSeq     uint64
	Timestamp    time.Time
	PreprocessMS float64
	InferenceMS  float64
	Objects      int
	EventActive  bool
}

// Status is a snapshot of pipeline health and counters.
type Status struct {
	State   State
	Backend string
	Err     string

	FramesCaptured    uint64
	FramesDropped     uint64
	MalformedFrames   uint64
	InferenceTimeouts uint64
	InferenceErrors   uint64
	EventsEmitted     uint64

	Latency LatencySummary
}

// DropRate returns dropped/captured, 0 when nothing was captured.
func (s Status) DropRate() float64 {
	if s.FramesCaptured == 0 {
		return 0
	}
	return float64(s.FramesDropped) / float64(s.FramesCaptured)
}
