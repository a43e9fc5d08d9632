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

// Package pipeline owns the capture and inference goroutines and the
// pipeline's lifecycle, health state and counters.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mooseworks/moose-detector/aggregate"
	"github.com/mooseworks/moose-detector/camera"
	"github.com/mooseworks/moose-detector/frames"
	"github.com/mooseworks/moose-detector/inference"
	"github.com/mooseworks/moose-detector/loglimiter"
	"github.com/mooseworks/moose-detector/preprocess"
)

const (
	popTimeout     = 500 * time.Millisecond
	latencyWindowN = 256
	minLogInterval = time.Minute
)

// Config tunes the pipeline.
type Config struct {
	// BufferCapacity is the frame ring buffer size. Small values
	// bound latency: stale frames are dropped, not queued.
	BufferCapacity int `yaml:"buffer-capacity"`

	// Workers is the number of inference goroutines. Default 1;
	// more only makes sense with more than one inference device.
	Workers int `yaml:"workers"`

	// ReadTimeout bounds each camera read.
	ReadTimeout time.Duration `yaml:"read-timeout"`

	// AcceleratorFailureLimit is the number of consecutive
	// accelerator faults tolerated before falling back to the CPU
	// backend.
	AcceleratorFailureLimit int `yaml:"accelerator-failure-limit"`

	// StartDegraded marks the pipeline Degraded from the outset,
	// used when backend selection already fell back to the CPU.
	StartDegraded bool `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		BufferCapacity:          4,
		Workers:                 1,
		ReadTimeout:             2 * time.Second,
		AcceleratorFailureLimit: 3,
	}
}

// New assembles a pipeline controller. The fallback backend may be
// nil when no accelerator is in play.
func New(conf Config, source camera.FrameSource, primary, fallback inference.Backend,
	spec preprocess.Spec, agg *aggregate.Aggregator) *Controller {
	if conf.BufferCapacity < 1 {
		conf.BufferCapacity = DefaultConfig().BufferCapacity
	}
	if conf.Workers < 1 {
		conf.Workers = 1
	}
	if conf.ReadTimeout <= 0 {
		conf.ReadTimeout = DefaultConfig().ReadTimeout
	}
	if conf.AcceleratorFailureLimit < 1 {
		conf.AcceleratorFailureLimit = DefaultConfig().AcceleratorFailureLimit
	}
	return &Controller{
		conf:     conf,
		source:   source,
		backend:  primary,
		fallback: fallback,
		spec:     spec,
		agg:      agg,
		latency:  newLatencyWindow(latencyWindowN),
		log:      loglimiter.New(minLogInterval),
	}
}

// Controller runs one capture goroutine and N inference workers,
// connected by the bounded frame buffer. All lifecycle state lives
// here.
type Controller struct {
	conf   Config
	source camera.FrameSource
	spec   preprocess.Spec
	agg    *aggregate.Aggregator

	mu            sync.Mutex
	backend       inference.Backend
	fallback      inference.Backend
	accelFailures int

	buf      *frames.Buffer
	state    atomic.Int32
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
	runErr   atomic.Value // string

	captured          atomic.Uint64
	malformed         atomic.Uint64
	inferenceTimeouts atomic.Uint64
	inferenceErrors   atomic.Uint64
	eventsEmitted     atomic.Uint64

	latency  *latencyWindow
	log      *loglimiter.LogLimiter
	onState  func(State)
	observer func(FrameStats)
}

// OnStateChange registers a callback fired on every state transition.
// Must be called before Start.
func (c *Controller) OnStateChange(fn func(State)) {
	c.onState = fn
}

// Observe registers a per-frame stats callback, eg the metrics logger.
// Must be called before Start. The callback runs on worker goroutines.
func (c *Controller) Observe(fn func(FrameStats)) {
	c.observer = fn
}

// Start launches the pipeline goroutines.
func (c *Controller) Start() error {
	if !c.state.CompareAndSwap(int32(Stopped), int32(Starting)) {
		return fmt.Errorf("pipeline is %s, not stopped", State(c.state.Load()))
	}
	c.notify(Starting)

	c.stop = make(chan struct{})
	c.stopOnce = sync.Once{}
	c.buf = frames.NewBuffer(c.conf.BufferCapacity)

	c.wg.Add(1 + c.conf.Workers)
	go c.captureLoop()
	for i := 0; i < c.conf.Workers; i++ {
		go c.workerLoop()
	}

	if c.conf.StartDegraded {
		c.setState(Degraded)
	} else {
		c.setState(Running)
	}
	log.Printf("pipeline started: backend %s, %d workers, buffer %d",
		c.backendName(), c.conf.Workers, c.conf.BufferCapacity)
	return nil
}

// Stop halts the pipeline and joins all goroutines. In-flight frames
// are discarded. Safe to call more than once.
func (c *Controller) Stop() {
	c.signalStop()
	c.wg.Wait()

	c.mu.Lock()
	backend := c.backend
	fallback := c.fallback
	c.mu.Unlock()
	if backend != nil {
		backend.Close()
	}
	if fallback != nil && fallback != backend {
		fallback.Close()
	}
	c.source.Close()

	if State(c.state.Load()) != StoppedOnError {
		c.setState(Stopped)
	}
	log.Print("pipeline stopped")
}

// Wait blocks until the pipeline halts on its own, eg on a fatal
// device error or when a playback source is exhausted.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Health returns the pipeline state and counters.
func (c *Controller) Health() Status {
	var errStr string
	if v := c.runErr.Load(); v != nil {
		errStr = v.(string)
	}
	var dropped uint64
	if c.buf != nil {
		dropped = c.buf.Dropped()
	}
	return Status{
		State:             State(c.state.Load()),
		Backend:           c.backendName(),
		Err:               errStr,
		FramesCaptured:    c.captured.Load(),
		FramesDropped:     dropped,
		MalformedFrames:   c.malformed.Load(),
		InferenceTimeouts: c.inferenceTimeouts.Load(),
		InferenceErrors:   c.inferenceErrors.Load(),
		EventsEmitted:     c.eventsEmitted.Load(),
		Latency:           c.latency.Summary(),
	}
}

func (c *Controller) captureLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		f, err := c.source.NextFrame(c.conf.ReadTimeout)
		switch {
		case err == nil:
			c.captured.Add(1)
			c.buf.Push(f)
		case errors.Is(err, camera.ErrTimeout):
			// No frame yet; normal during camera startup.
		case errors.Is(err, io.EOF):
			log.Print("frame source exhausted")
			c.drainAndStop()
			return
		default:
			// DeviceLost or an unrecoverable source error.
			c.fail(err)
			return
		}
	}
}

func (c *Controller) workerLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		f := c.buf.Pop(popTimeout)
		if f == nil {
			continue
		}
		c.processFrame(f)
	}
}

// processFrame runs one frame through preprocess, inference and
// aggregation. Per-frame errors drop the frame and are counted; they
// never stop the pipeline.
func (c *Controller) processFrame(f *frames.Frame) {
	preStart := time.Now()
	tensor, err := preprocess.Transform(f, c.spec)
	if err != nil {
		c.malformed.Add(1)
		c.log.Printf("dropping frame: %v", err)
		return
	}
	preMS := float64(time.Since(preStart)) / float64(time.Millisecond)

	infStart := time.Now()
	dets, err := c.currentBackend().Detect(tensor)
	infDur := time.Since(infStart)
	if err != nil {
		c.handleDetectError(err)
		return
	}
	c.latency.Add(infDur)
	c.resetAccelFailures()

	started := c.agg.Process(f.Seq, f.Timestamp, dets)
	if len(started) > 0 {
		c.eventsEmitted.Add(uint64(len(started)))
	}

	if c.observer != nil {
		c.observer(FrameStats{
			FrameSeq:     f.Seq,
			Timestamp:    f.Timestamp,
			PreprocessMS: preMS,
			InferenceMS:  float64(infDur) / float64(time.Millisecond),
			Objects:      len(dets),
			EventActive:  c.agg.Active(),
		})
	}
}

func (c *Controller) handleDetectError(err error) {
	switch {
	case errors.Is(err, inference.ErrInferenceTimeout):
		c.inferenceTimeouts.Add(1)
		c.log.Printf("inference timeout, frame dropped")
	case errors.Is(err, inference.ErrAcceleratorFailed):
		c.inferenceErrors.Add(1)
		c.log.Printf("accelerator error: %v", err)
		c.noteAccelFailure(err)
	case errors.Is(err, inference.ErrBackendClosed):
		// Shutdown race; the stop channel ends the loop.
	default:
		c.inferenceErrors.Add(1)
		c.log.Printf("inference error: %v", err)
	}
}

// noteAccelFailure counts consecutive accelerator faults and downgrades
// to the CPU fallback when they exceed the limit. Without a fallback
// the pipeline stops on error.
func (c *Controller) noteAccelFailure(cause error) {
	c.mu.Lock()
	c.accelFailures++
	if c.accelFailures < c.conf.AcceleratorFailureLimit {
		c.mu.Unlock()
		return
	}

	failed := c.backend
	if c.fallback != nil && c.fallback != c.backend {
		c.backend = c.fallback
		c.fallback = nil
		c.accelFailures = 0
		c.mu.Unlock()

		failed.Close()
		log.Printf("accelerator failed %d times, downgrading to CPU backend", c.conf.AcceleratorFailureLimit)
		c.setState(Degraded)
		return
	}
	c.mu.Unlock()
	c.fail(fmt.Errorf("inference backend failed with no fallback: %w", cause))
}

func (c *Controller) resetAccelFailures() {
	c.mu.Lock()
	c.accelFailures = 0
	c.mu.Unlock()
}

func (c *Controller) currentBackend() inference.Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.backend
}

func (c *Controller) backendName() string {
	b := c.currentBackend()
	if b == nil {
		return ""
	}
	return b.Name()
}

// fail records a fatal error and halts the pipeline goroutines. The
// transition to StoppedOnError is observable via Health and the state
// callback; the pipeline never hangs silently.
func (c *Controller) fail(err error) {
	log.Printf("pipeline fatal error: %v", err)
	c.runErr.Store(err.Error())
	c.setState(StoppedOnError)
	c.signalStop()
}

// drainAndStop lets the workers finish the buffered frames before
// halting. Used when a playback source runs out of frames.
func (c *Controller) drainAndStop() {
	for c.buf.Len() > 0 {
		select {
		case <-c.stop:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	c.setState(Stopped)
	c.signalStop()
}

func (c *Controller) signalStop() {
	c.stopOnce.Do(func() {
		if c.stop != nil {
			close(c.stop)
		}
	})
}

func (c *Controller) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.notify(s)
	}
}

func (c *Controller) notify(s State) {
	if c.onState != nil {
		c.onState(s)
	}
}
