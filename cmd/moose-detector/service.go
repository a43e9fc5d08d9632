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

package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/mooseworks/moose-detector/aggregate"
	"github.com/mooseworks/moose-detector/eventstore"
	"github.com/mooseworks/moose-detector/pipeline"
)

const (
	dbusName = "org.mooseworks.moosedetector"
	dbusPath = "/org/mooseworks/moosedetector"
)

type service struct {
	conn  *dbus.Conn
	pipe  *pipeline.Controller
	store *eventstore.Store
}

// startService exposes the pipeline over d-bus and emits a signal for
// each detection start and end. The pipeline is attached afterwards
// since the service must exist before the pipeline's listeners do.
func startService(store *eventstore.Store) (*service, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, errors.New("name already taken")
	}

	s := &service{
		conn:  conn,
		store: store,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")

	return s, nil
}

func (s *service) attach(pipe *pipeline.Controller) {
	s.pipe = pipe
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// Status returns the pipeline state and the active backend.
func (s *service) Status() (string, string, string, *dbus.Error) {
	if s.pipe == nil {
		return pipeline.Stopped.String(), "", "", nil
	}
	status := s.pipe.Health()
	return status.State.String(), status.Backend, status.Err, nil
}

// Counters returns the pipeline counters: frames captured, frames
// dropped, malformed frames, inference timeouts, inference errors and
// events emitted.
func (s *service) Counters() (uint64, uint64, uint64, uint64, uint64, uint64, *dbus.Error) {
	if s.pipe == nil {
		return 0, 0, 0, 0, 0, 0, nil
	}
	st := s.pipe.Health()
	return st.FramesCaptured, st.FramesDropped, st.MalformedFrames,
		st.InferenceTimeouts, st.InferenceErrors, st.EventsEmitted, nil
}

// Latency returns the rolling inference latency summary in
// milliseconds: sample count, mean, p50, p95 and p99.
func (s *service) Latency() (int32, float64, float64, float64, float64, *dbus.Error) {
	if s.pipe == nil {
		return 0, 0, 0, 0, 0, nil
	}
	lat := s.pipe.Health().Latency
	return int32(lat.Count), lat.Mean, lat.P50, lat.P95, lat.P99, nil
}

// RecentDetections returns the most recent stored detections as
// "id label score" rows, newest first.
func (s *service) RecentDetections(limit int32) ([]string, *dbus.Error) {
	if s.store == nil {
		return nil, nil
	}
	records, err := s.store.Recent(int(limit))
	if err != nil {
		return nil, &dbus.Error{
			Name: dbusName + ".RecentDetections",
			Body: []interface{}{err.Error()},
		}
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, fmt.Sprintf("%s %s %.2f", r.ID, r.Label, r.Score))
	}
	return out, nil
}

// DetectionStarted emits a d-bus signal for a new stable detection.
func (s *service) DetectionStarted(e aggregate.Event) {
	err := s.conn.Emit(dbusPath, dbusName+".DetectionStarted",
		e.ID, e.Label, e.Score, int32(e.X), int32(e.Y), int32(e.Width), int32(e.Height))
	if err != nil {
		log.Printf("failed to emit detection signal: %v", err)
	}
}

// DetectionEnded emits a d-bus signal when a detection ends.
func (s *service) DetectionEnded(e aggregate.Event) {
	err := s.conn.Emit(dbusPath, dbusName+".DetectionEnded", e.ID, e.Label)
	if err != nil {
		log.Printf("failed to emit detection signal: %v", err)
	}
}
