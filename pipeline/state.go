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

package pipeline

// State is the pipeline lifecycle, mutated only by the Controller.
type State int32

const (
	Stopped State = iota
	Starting
	Running

	// Degraded means detections continue but a capability was lost,
	// eg the accelerator failed and inference moved to the CPU.
	Degraded

	// StoppedOnError means a fatal fault with no viable fallback.
	StoppedOnError
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Degraded:
		return "degraded"
	case StoppedOnError:
		return "stopped-on-error"
	}
	return "unknown"
}
