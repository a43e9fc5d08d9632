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

// Package aggregate turns raw per-frame detections into stable
// detection events: confidence thresholding, non-maximum suppression
// and temporal debouncing so a single noisy frame never raises an
// alert.
package aggregate

import (
	"fmt"
	"sync"
	"time"

	"github.com/mooseworks/moose-detector/inference"
)

// Config holds the aggregation parameters.
type Config struct {
	// ConfidenceThresh drops detections scoring below it.
	ConfidenceThresh float64 `yaml:"confidence-threshold"`

	// IoUThresh is the overlap above which same-class boxes are
	// merged by non-maximum suppression.
	IoUThresh float64 `yaml:"iou-threshold"`

	// TriggerFrames is the number of consecutive qualifying frames
	// before a class is promoted to tracking and an event emitted.
	TriggerFrames int `yaml:"trigger-frames"`

	// ReleaseFrames is the number of consecutive frames without the
	// class before tracking ends.
	ReleaseFrames int `yaml:"release-frames"`
}

func DefaultConfig() Config {
	return Config{
		ConfidenceThresh: 0.5,
		IoUThresh:        0.45,
		TriggerFrames:    3,
		ReleaseFrames:    9,
	}
}

func (conf Config) Validate() error {
	if conf.ConfidenceThresh < 0 || conf.ConfidenceThresh > 1 {
		return fmt.Errorf("confidence threshold %.2f must be in [0,1]", conf.ConfidenceThresh)
	}
	if conf.IoUThresh <= 0 || conf.IoUThresh > 1 {
		return fmt.Errorf("iou threshold %.2f must be in (0,1]", conf.IoUThresh)
	}
	if conf.TriggerFrames < 1 {
		return fmt.Errorf("trigger frames %d must be positive", conf.TriggerFrames)
	}
	if conf.ReleaseFrames < 1 {
		return fmt.Errorf("release frames %d must be positive", conf.ReleaseFrames)
	}
	return nil
}

// New returns an aggregator which reports stable detections to the
// listener.
func New(conf Config, listener Listener) *Aggregator {
	if listener == nil {
		listener = new(nullListener)
	}
	return &Aggregator{
		conf:     conf,
		listener: listener,
		tracks:   make(map[string]*classTrack),
	}
}

type trackState int

const (
	stateIdle trackState = iota
	stateTracking
)

type classTrack struct {
	state      trackState
	qualifying int
	missing    int
	best       inference.Detection
	event      Event
}

// Aggregator debounces detections per class. Safe for concurrent use,
// though frame ordering is only guaranteed with a single inference
// worker.
type Aggregator struct {
	conf     Config
	listener Listener

	mu      sync.Mutex
	tracks  map[string]*classTrack
	lastSeq uint64
}

// Process consumes one frame's raw detections and returns any events
// that started on this frame. Listener callbacks for started and ended
// events fire before Process returns.
func (a *Aggregator) Process(seq uint64, ts time.Time, dets []inference.Detection) []Event {
	kept := scoreFilter(dets, a.conf.ConfidenceThresh)
	kept = nms(kept, a.conf.IoUThresh)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastSeq = seq

	present := make(map[string]inference.Detection, len(kept))
	for _, d := range kept {
		// NMS output is score-ordered per class; keep the best box.
		if _, ok := present[d.Label]; !ok {
			present[d.Label] = d
		}
	}

	var started []Event
	for label, d := range present {
		track := a.tracks[label]
		if track == nil {
			track = &classTrack{}
			a.tracks[label] = track
		}
		track.qualifying++
		track.missing = 0
		if track.qualifying == 1 || d.Score > track.best.Score {
			track.best = d
		}

		if track.state == stateIdle && track.qualifying >= a.conf.TriggerFrames {
			track.state = stateTracking
			track.event = newEvent(ts, track.best)
			started = append(started, track.event)
			a.listener.DetectionStarted(track.event)
		}
	}

	for label, track := range a.tracks {
		if _, ok := present[label]; ok {
			continue
		}
		track.qualifying = 0
		if track.state == stateIdle {
			delete(a.tracks, label)
			continue
		}
		track.missing++
		if track.missing >= a.conf.ReleaseFrames {
			track.event.LastSeq = seq
			a.listener.DetectionEnded(track.event)
			delete(a.tracks, label)
		}
	}

	return started
}

// Active reports whether any class is currently being tracked.
func (a *Aggregator) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, track := range a.tracks {
		if track.state == stateTracking {
			return true
		}
	}
	return false
}

// LastSeq returns the sequence number of the most recently processed
// frame.
func (a *Aggregator) LastSeq() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSeq
}

func scoreFilter(dets []inference.Detection, thresh float64) []inference.Detection {
	out := make([]inference.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Score >= thresh {
			out = append(out, d)
		}
	}
	return out
}
