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

// Package camera provides frame sources for the detection pipeline.
// The camera SDK itself lives in a separate adapter process; this
// package only knows how to receive its frames.
package camera

import (
	"errors"
	"fmt"
	"time"

	"github.com/mooseworks/moose-detector/frames"
)

var (
	// ErrTimeout indicates no frame arrived within the read timeout.
	ErrTimeout = errors.New("timed out waiting for frame")

	// ErrDeviceUnavailable indicates the camera could not be opened.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrDeviceLost indicates the camera failed and bounded reconnect
	// attempts were exhausted. Fatal to the pipeline.
	ErrDeviceLost = errors.New("camera device lost")
)

// DeviceError wraps a camera fault that may be recoverable by
// reopening the source.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("camera device error: %v", e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// FrameSource produces timestamped frames at the camera's native
// cadence. Implementations allocate a new frame per successful call;
// the caller takes ownership of returned frames.
type FrameSource interface {
	// NextFrame blocks until a frame is available or the timeout
	// expires. Returns ErrTimeout on expiry and *DeviceError when the
	// camera fails in a way that requires reopening.
	NextFrame(timeout time.Duration) (*frames.Frame, error)

	Close() error
}

// Opener opens a fresh connection to the camera. Used by RetrySource
// to reconnect after device errors.
type Opener func() (FrameSource, error)
