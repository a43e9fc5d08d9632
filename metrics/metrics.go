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

// Package metrics records per-frame timing and detection counts to a
// CSV file for later analysis of on-device performance.
package metrics

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mooseworks/moose-detector/pipeline"
)

type Config struct {
	// File is the base CSV path. A timestamp is inserted before the
	// extension so each run gets its own file, eg
	// "logs/metrics.csv" becomes "logs/metrics_20260826_143022.csv".
	File string `yaml:"file"`

	// FPSWindow is the number of frame intervals averaged when
	// computing the frame rate column.
	FPSWindow int `yaml:"fps-window"`

	// TerminalInterval logs a one line summary every N frames.
	// Zero disables terminal output.
	TerminalInterval int `yaml:"terminal-interval"`
}

func DefaultConfig() Config {
	return Config{
		File:             "/var/log/moose-detector/metrics.csv",
		FPSWindow:        30,
		TerminalInterval: 100,
	}
}

var header = []string{
	"timestamp", "frame_number", "preprocess_ms", "inference_ms",
	"fps", "objects_detected", "event_active",
}

// NewLogger opens a timestamped CSV file and writes the header row.
func NewLogger(conf Config) (*Logger, error) {
	if conf.FPSWindow < 1 {
		conf.FPSWindow = DefaultConfig().FPSWindow
	}

	path := timestampedPath(conf.File, time.Now())
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, err
	}

	log.Printf("logging metrics to %s", path)
	return &Logger{
		conf:      conf,
		path:      path,
		file:      f,
		w:         w,
		intervals: make([]float64, 0, conf.FPSWindow),
	}, nil
}

// Logger appends one CSV row per processed frame. Safe for use from
// multiple goroutines.
type Logger struct {
	conf Config
	path string

	mu            sync.Mutex
	file          *os.File
	w             *csv.Writer
	frames        uint64
	lastTimestamp time.Time
	intervals     []float64
	sinceTerminal int
}

// Path returns the timestamped file actually being written.
func (l *Logger) Path() string {
	return l.path
}

// Record writes the stats for one frame. Shaped to plug straight into
// the pipeline's frame observer.
func (l *Logger) Record(fs pipeline.FrameStats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return
	}

	l.frames++
	fps := l.updateFPS(fs.Timestamp)

	l.w.Write([]string{
		strconv.FormatFloat(float64(fs.Timestamp.UnixNano())/1e9, 'f', 3, 64),
		strconv.FormatUint(l.frames, 10),
		strconv.FormatFloat(fs.PreprocessMS, 'f', 1, 64),
		strconv.FormatFloat(fs.InferenceMS, 'f', 1, 64),
		strconv.FormatFloat(fps, 'f', 1, 64),
		strconv.Itoa(fs.Objects),
		strconv.FormatBool(fs.EventActive),
	})
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		log.Printf("metrics write failed, disabling: %v", err)
		l.w = nil
		return
	}

	l.sinceTerminal++
	if l.conf.TerminalInterval > 0 && l.sinceTerminal >= l.conf.TerminalInterval {
		l.sinceTerminal = 0
		status := "clear"
		if fs.EventActive {
			status = "DETECTION"
		}
		log.Printf("[frame %d] fps: %.1f, inference: %.1fms, objects: %d, %s",
			l.frames, fps, fs.InferenceMS, fs.Objects, status)
	}
}

// updateFPS averages the recent frame intervals. Must hold mu.
func (l *Logger) updateFPS(ts time.Time) float64 {
	if !l.lastTimestamp.IsZero() {
		if interval := ts.Sub(l.lastTimestamp).Seconds(); interval > 0 {
			if len(l.intervals) == l.conf.FPSWindow {
				l.intervals = append(l.intervals[1:], interval)
			} else {
				l.intervals = append(l.intervals, interval)
			}
		}
	}
	l.lastTimestamp = ts

	if len(l.intervals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range l.intervals {
		sum += v
	}
	return float64(len(l.intervals)) / sum
}

// Close flushes and closes the CSV file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	if l.w != nil {
		l.w.Flush()
	}
	err := l.file.Close()
	l.file = nil
	l.w = nil
	return err
}

func timestampedPath(base string, now time.Time) string {
	dir := filepath.Dir(base)
	name := filepath.Base(base)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, now.Format("20060102_150405"), ext))
}
