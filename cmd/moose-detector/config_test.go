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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mooseworks/moose-detector/aggregate"
	"github.com/mooseworks/moose-detector/alerts"
	"github.com/mooseworks/moose-detector/camera"
	"github.com/mooseworks/moose-detector/inference"
	"github.com/mooseworks/moose-detector/metrics"
	"github.com/mooseworks/moose-detector/pipeline"
	"github.com/mooseworks/moose-detector/throttle"
)

func TestAllDefaults(t *testing.T) {
	conf, err := ParseConfig([]byte(""))
	require.NoError(t, err)

	assert.Equal(t, Config{
		DeviceName:       "moose-detector",
		FrameInput:       "/var/run/thermal-frames",
		FrameWidth:       160,
		FrameHeight:      120,
		FrameRate:        9,
		ModelConfig:      "/etc/moose-detector/model.json",
		Backend:          inference.PreferAuto,
		InferenceTimeout: 500 * time.Millisecond,
		EventDB:          "/var/lib/moose-detector/detections.db",
		Retry:            camera.DefaultRetryConfig(),
		Pipeline:         pipeline.DefaultConfig(),
		Aggregator:       aggregate.DefaultConfig(),
		Throttler:        throttle.DefaultConfig(),
		Alerts:           alerts.Config{},
		Metrics: MetricsConfig{
			Enabled: false,
			Config:  metrics.DefaultConfig(),
		},
	}, *conf)
}

func TestAllSet(t *testing.T) {
	// All config set at non-default values.
	config := []byte(`
device-name: "ridge-cam-2"
frame-input: "/run/seek-frames"
frame-width: 320
frame-height: 240
frame-rate: 25
model-config: "/etc/moose-detector/yolo.json"
compiled-model: "/etc/moose-detector/yolo.hef"
backend: "accelerator"
inference-timeout: 250ms
event-db: "/data/detections.db"
retry:
  max-attempts: 10
  initial-delay: 1s
  max-delay: 30s
pipeline:
  buffer-capacity: 8
  workers: 2
  read-timeout: 5s
  accelerator-failure-limit: 5
aggregator:
  confidence-threshold: 0.7
  iou-threshold: 0.4
  trigger-frames: 5
  release-frames: 9
throttler:
  apply-throttling: false
  max-burst: 10
  refill-interval: 1m
alerts:
  pin: "GPIO22"
  classes:
    - moose
    - bear
metrics:
  enabled: true
  file: "/data/metrics.csv"
  fps-window: 10
  terminal-interval: 50
`)

	conf, err := ParseConfig(config)
	require.NoError(t, err)

	assert.Equal(t, Config{
		DeviceName:       "ridge-cam-2",
		FrameInput:       "/run/seek-frames",
		FrameWidth:       320,
		FrameHeight:      240,
		FrameRate:        25,
		ModelConfig:      "/etc/moose-detector/yolo.json",
		CompiledModel:    "/etc/moose-detector/yolo.hef",
		Backend:          inference.PreferAccelerator,
		InferenceTimeout: 250 * time.Millisecond,
		EventDB:          "/data/detections.db",
		Retry: camera.RetryConfig{
			MaxAttempts:  10,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
		},
		Pipeline: pipeline.Config{
			BufferCapacity:          8,
			Workers:                 2,
			ReadTimeout:             5 * time.Second,
			AcceleratorFailureLimit: 5,
		},
		Aggregator: aggregate.Config{
			ConfidenceThresh: 0.7,
			IoUThresh:        0.4,
			TriggerFrames:    5,
			ReleaseFrames:    9,
		},
		Throttler: throttle.Config{
			ApplyThrottling: false,
			MaxBurst:        10,
			RefillInterval:  time.Minute,
		},
		Alerts: alerts.Config{
			Pin:     "GPIO22",
			Classes: []string{"moose", "bear"},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Config: metrics.Config{
				File:             "/data/metrics.csv",
				FPSWindow:        10,
				TerminalInterval: 50,
			},
		},
	}, *conf)
}

func TestInvalidBackendRejected(t *testing.T) {
	_, err := ParseConfig([]byte(`backend: "gpu"`))
	assert.EqualError(t, err, `unknown backend preference "gpu"`)
}

func TestMissingFrameInputRejected(t *testing.T) {
	_, err := ParseConfig([]byte(`frame-input: ""`))
	assert.EqualError(t, err, "frame-input missing")
}

func TestBadFrameSizeRejected(t *testing.T) {
	_, err := ParseConfig([]byte(`frame-width: 0`))
	assert.Error(t, err)
}

func TestBadAggregatorRejected(t *testing.T) {
	_, err := ParseConfig([]byte("aggregator:\n  trigger-frames: 0"))
	assert.Error(t, err)
}
