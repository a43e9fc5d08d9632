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

package inference

import (
	"errors"
	"time"

	"github.com/mooseworks/moose-detector/preprocess"
)

// ErrBackendClosed is returned by Detect after Close.
var ErrBackendClosed = errors.New("inference backend closed")

// WithTimeout wraps a backend with the shared latency-budget contract:
// a Detect call that exceeds the budget fails with ErrInferenceTimeout
// and its late result is discarded. A single runner goroutine owns the
// wrapped backend, which also serialises access to the accelerator
// device handle.
func WithTimeout(b Backend, budget time.Duration) Backend {
	tb := &timeoutBackend{
		backend: b,
		budget:  budget,
		jobs:    make(chan detectJob),
		stop:    make(chan struct{}),
	}
	go tb.run()
	return tb
}

type detectJob struct {
	tensor *preprocess.Tensor
	result chan detectResult
}

type detectResult struct {
	dets []Detection
	err  error
}

type timeoutBackend struct {
	backend Backend
	budget  time.Duration
	jobs    chan detectJob
	stop    chan struct{}
}

func (tb *timeoutBackend) Name() string { return tb.backend.Name() }

func (tb *timeoutBackend) Detect(t *preprocess.Tensor) ([]Detection, error) {
	job := detectJob{
		tensor: t,
		result: make(chan detectResult, 1), // buffered so a late result never blocks the runner
	}

	timer := time.NewTimer(tb.budget)
	defer timer.Stop()

	// The budget covers waiting for the runner too: if the previous
	// frame is still being processed, this frame is already stale.
	select {
	case tb.jobs <- job:
	case <-timer.C:
		return nil, ErrInferenceTimeout
	case <-tb.stop:
		return nil, ErrBackendClosed
	}

	select {
	case res := <-job.result:
		return res.dets, res.err
	case <-timer.C:
		return nil, ErrInferenceTimeout
	case <-tb.stop:
		return nil, ErrBackendClosed
	}
}

func (tb *timeoutBackend) Close() error {
	select {
	case <-tb.stop:
		return nil
	default:
	}
	close(tb.stop)
	return nil
}

func (tb *timeoutBackend) run() {
	for {
		select {
		case job := <-tb.jobs:
			dets, err := tb.backend.Detect(job.tensor)
			job.result <- detectResult{dets, err}
		case <-tb.stop:
			tb.backend.Close()
			return
		}
	}
}
