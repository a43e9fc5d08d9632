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
	"io/ioutil"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/mooseworks/moose-detector/aggregate"
	"github.com/mooseworks/moose-detector/alerts"
	"github.com/mooseworks/moose-detector/camera"
	"github.com/mooseworks/moose-detector/inference"
	"github.com/mooseworks/moose-detector/metrics"
	"github.com/mooseworks/moose-detector/pipeline"
	"github.com/mooseworks/moose-detector/throttle"
)

type Config struct {
	DeviceName       string               `yaml:"device-name"`
	FrameInput       string               `yaml:"frame-input"`
	FrameWidth       int                  `yaml:"frame-width"`
	FrameHeight      int                  `yaml:"frame-height"`
	FrameRate        int                  `yaml:"frame-rate"`
	ModelConfig      string               `yaml:"model-config"`
	CompiledModel    string               `yaml:"compiled-model"`
	Backend          inference.Preference `yaml:"backend"`
	InferenceTimeout time.Duration        `yaml:"inference-timeout"`
	EventDB          string               `yaml:"event-db"`
	Retry            camera.RetryConfig   `yaml:"retry"`
	Pipeline         pipeline.Config      `yaml:"pipeline"`
	Aggregator       aggregate.Config     `yaml:"aggregator"`
	Throttler        throttle.Config      `yaml:"throttler"`
	Alerts           alerts.Config        `yaml:"alerts"`
	Metrics          MetricsConfig        `yaml:"metrics"`
}

type MetricsConfig struct {
	Enabled        bool `yaml:"enabled"`
	metrics.Config `yaml:",inline"`
}

func (conf *Config) Validate() error {
	if conf.FrameInput == "" {
		return errors.New("frame-input missing")
	}
	if conf.FrameWidth < 1 || conf.FrameHeight < 1 {
		return fmt.Errorf("invalid frame size %dx%d", conf.FrameWidth, conf.FrameHeight)
	}
	if conf.ModelConfig == "" {
		return errors.New("model-config missing")
	}
	if !conf.Backend.Valid() {
		return fmt.Errorf("unknown backend preference %q", conf.Backend)
	}
	if conf.InferenceTimeout <= 0 {
		return errors.New("inference-timeout must be positive")
	}
	if err := conf.Aggregator.Validate(); err != nil {
		return err
	}
	return nil
}

var defaultConfig = Config{
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
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
