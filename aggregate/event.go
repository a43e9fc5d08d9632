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
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mooseworks/moose-detector/inference"
)

// Event is a time-stabilised detection: one class that has persisted
// across enough consecutive frames to be trusted.
type Event struct {
	ID        string
	Timestamp time.Time
	Label     string

	// Bounding region of the best-scoring detection in the streak,
	// in source frame pixel coordinates.
	X      int
	Y      int
	Width  int
	Height int

	Score    float64
	FirstSeq uint64
	LastSeq  uint64
}

func (ev Event) String() string {
	return fmt.Sprintf("%s (%.0f%%) at %d,%d %dx%d",
		ev.Label, ev.Score*100, ev.X, ev.Y, ev.Width, ev.Height)
}

func newEvent(ts time.Time, best inference.Detection) Event {
	return Event{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Label:     best.Label,
		X:         best.X,
		Y:         best.Y,
		Width:     best.Width,
		Height:    best.Height,
		Score:     best.Score,
		FirstSeq:  best.FrameSeq,
		LastSeq:   best.FrameSeq,
	}
}

// Listener receives stable detection events. DetectionStarted fires
// when a class is promoted to tracking, DetectionEnded when it has
// been absent long enough to demote.
type Listener interface {
	DetectionStarted(ev Event)
	DetectionEnded(ev Event)
}

type nullListener struct{}

func (*nullListener) DetectionStarted(Event) {}
func (*nullListener) DetectionEnded(Event)   {}

// MultiListener fans events out to several listeners in order.
type MultiListener []Listener

func (m MultiListener) DetectionStarted(ev Event) {
	for _, l := range m {
		l.DetectionStarted(ev)
	}
}

func (m MultiListener) DetectionEnded(ev Event) {
	for _, l := range m {
		l.DetectionEnded(ev)
	}
}
