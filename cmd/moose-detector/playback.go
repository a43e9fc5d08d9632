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
	"log"

	"github.com/mooseworks/moose-detector/aggregate"
	"github.com/mooseworks/moose-detector/camera"
	"github.com/mooseworks/moose-detector/inference"
	"github.com/mooseworks/moose-detector/pipeline"
)

// runPlayback pushes a recorded raw thermal file through the full
// pipeline and reports what would have been detected. Useful for
// tuning model and aggregator settings against known footage.
func runPlayback(filename string, conf *Config, modelConf *inference.ModelConfig, backend inference.Backend) error {
	log.Printf("playback of %s", filename)

	source, err := camera.OpenRawFile(filename, conf.FrameWidth, conf.FrameHeight, conf.FrameRate)
	if err != nil {
		return err
	}

	printer := new(printingListener)
	agg := aggregate.New(conf.Aggregator, printer)

	pipe := pipeline.New(conf.Pipeline, source, backend, nil, modelConf.PreprocessSpec(), agg)
	if err := pipe.Start(); err != nil {
		return err
	}
	pipe.Wait()
	pipe.Stop()

	status := pipe.Health()
	log.Printf("frames: %d, malformed: %d, detections: %d, inference mean: %.1fms p95: %.1fms",
		status.FramesCaptured, status.MalformedFrames, printer.started,
		status.Latency.Mean, status.Latency.P95)
	if status.State == pipeline.StoppedOnError {
		log.Printf("playback ended with error: %s", status.Err)
	}
	return nil
}

type printingListener struct {
	started int
}

func (p *printingListener) DetectionStarted(e aggregate.Event) {
	p.started++
	log.Printf("detection started: %s", e)
}

func (p *printingListener) DetectionEnded(e aggregate.Event) {
	log.Printf("detection ended: %s (frames %d to %d)", e.Label, e.FirstSeq, e.LastSeq)
}
