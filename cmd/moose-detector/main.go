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
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"
	"periph.io/x/periph/host"

	"github.com/mooseworks/moose-detector/aggregate"
	"github.com/mooseworks/moose-detector/alerts"
	"github.com/mooseworks/moose-detector/camera"
	"github.com/mooseworks/moose-detector/eventstore"
	"github.com/mooseworks/moose-detector/inference"
	"github.com/mooseworks/moose-detector/metrics"
	"github.com/mooseworks/moose-detector/pipeline"
	"github.com/mooseworks/moose-detector/throttle"
)

const (
	statsInterval    = 5 * time.Second
	watchdogInterval = 30 * time.Second
)

var version = "<not set>"

type Args struct {
	ConfigFile   string `arg:"-c,--config" help:"path to configuration file"`
	PlaybackFile string `arg:"-f,--testfile" help:"run a raw thermal file through and report the detections"`
	Timestamps   bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	Verbose      bool   `arg:"-v,--verbose" help:"make logging more verbose"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/moose-detector.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()

	if !args.Timestamps {
		log.SetFlags(0) // Removes default timestamp flag
	}

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}
	logConfig(conf)

	modelConf, err := inference.LoadModelConfig(conf.ModelConfig)
	if err != nil {
		return err
	}

	selection, err := inference.Select(conf.Backend, modelConf, openAccelerator(), conf.CompiledModel)
	if err != nil {
		return err
	}
	primary := inference.WithTimeout(selection.Primary, conf.InferenceTimeout)
	var fallback inference.Backend
	if selection.Fallback != nil {
		fallback = inference.WithTimeout(selection.Fallback, conf.InferenceTimeout)
	}

	if args.PlaybackFile != "" {
		return runPlayback(args.PlaybackFile, conf, modelConf, primary)
	}

	log.Println("host initialisation")
	if _, err := host.Init(); err != nil {
		return err
	}

	log.Println("opening detection store")
	store, err := eventstore.Open(conf.EventDB)
	if err != nil {
		return err
	}
	defer store.Close()

	log.Println("starting d-bus service")
	svc, err := startService(store)
	if err != nil {
		return err
	}

	listeners := aggregate.MultiListener{svc, store}
	if conf.Alerts.Pin != "" {
		alerter, err := alerts.New(conf.Alerts)
		if err != nil {
			return err
		}
		defer alerter.Close()
		listeners = append(listeners, alerter)
	}

	agg := aggregate.New(conf.Aggregator, throttle.NewListener(conf.Throttler, listeners))

	log.Print("connecting to thermal camera")
	source := camera.NewRetrySource(func() (camera.FrameSource, error) {
		return camera.OpenSocket(camera.SocketConfig{
			Path:   conf.FrameInput,
			Width:  conf.FrameWidth,
			Height: conf.FrameHeight,
		})
	}, conf.Retry)

	pipeConf := conf.Pipeline
	pipeConf.StartDegraded = selection.Degraded
	pipe := pipeline.New(pipeConf, source, primary, fallback, modelConf.PreprocessSpec(), agg)
	svc.attach(pipe)

	if conf.Metrics.Enabled {
		logger, err := metrics.NewLogger(conf.Metrics.Config)
		if err != nil {
			return err
		}
		defer logger.Close()
		pipe.Observe(logger.Record)
	}

	if err := pipe.Start(); err != nil {
		return err
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		pipe.Wait()
		close(done)
	}()

	daemon.SdNotify(false, "READY=1")
	statsTick := time.NewTicker(statsInterval)
	defer statsTick.Stop()
	watchdogTick := time.NewTicker(watchdogInterval)
	defer watchdogTick.Stop()

	var lastStatus pipeline.Status
	for {
		select {
		case sig := <-sigs:
			log.Printf("received %v, stopping", sig)
			pipe.Stop()
			return nil
		case <-done:
			pipe.Stop()
			status := pipe.Health()
			if status.State == pipeline.StoppedOnError {
				return fmt.Errorf("pipeline stopped: %s", status.Err)
			}
			return nil
		case <-watchdogTick.C:
			if pipe.Health().State != pipeline.StoppedOnError {
				daemon.SdNotify(false, "WATCHDOG=1")
			}
		case <-statsTick.C:
			status := pipe.Health()
			if args.Verbose || status.FramesDropped != lastStatus.FramesDropped {
				logStats(status)
			}
			lastStatus = status
		}
	}
}

func logStats(st pipeline.Status) {
	log.Printf("state: %s, captured: %d, dropped: %d (%.1f%%), events: %d, inference p95: %.1fms",
		st.State, st.FramesCaptured, st.FramesDropped, st.DropRate()*100,
		st.EventsEmitted, st.Latency.P95)
}

// openAccelerator returns the inference accelerator device, or nil
// when no accelerator runtime is linked into this build. With a nil
// device backend selection falls through to the CPU backend.
func openAccelerator() inference.Device {
	return nil
}

func logConfig(conf *Config) {
	log.Printf("device name: %s", conf.DeviceName)
	log.Printf("frame input: %s (%dx%d @ %dfps)",
		conf.FrameInput, conf.FrameWidth, conf.FrameHeight, conf.FrameRate)
	log.Printf("model config: %s", conf.ModelConfig)
	log.Printf("backend preference: %s", conf.Backend)
	log.Printf("inference timeout: %s", conf.InferenceTimeout)
	log.Printf("event db: %s", conf.EventDB)
	log.Printf("aggregator: %+v", conf.Aggregator)
	log.Printf("throttler: %+v", conf.Throttler)
	if conf.Alerts.Pin != "" {
		log.Printf("alert pin: %s (classes: %v)", conf.Alerts.Pin, conf.Alerts.Classes)
	}
	if conf.Metrics.Enabled {
		log.Printf("metrics file: %s", conf.Metrics.File)
	}
}
