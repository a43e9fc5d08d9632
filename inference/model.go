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
	"encoding/json"
	"fmt"
	"os"

	"github.com/mooseworks/moose-detector/preprocess"
)

// ModelConfig is saved as a JSON file alongside the model weights. It
// describes the model's input geometry, class labels and the thermal
// calibration the model was trained against.
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "hotspot", "yolov8"
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	Channels     int      `json:"channels"`
	Classes      []string `json:"classes"`

	// Calibrated raw sensor counts mapped to the model's 0.0 and 1.0.
	CalMin uint16 `json:"calMin"`
	CalMax uint16 `json:"calMax"`

	Hotspot HotspotConfig `json:"hotspot"`
}

// HotspotConfig parameterises the built-in CPU hotspot runtime.
type HotspotConfig struct {
	// Threshold is the normalised intensity above which a pixel is
	// considered part of a warm body.
	Threshold float64 `json:"threshold"`

	// MinArea is the minimum blob size, in model input pixels, for a
	// blob to become a detection.
	MinArea int `json:"minArea"`

	// Class indexes Classes for the label given to hotspot blobs.
	Class int `json:"class"`
}

// LoadModelConfig reads and validates a model config file.
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	conf := &ModelConfig{}
	if err := json.Unmarshal(b, conf); err != nil {
		return nil, fmt.Errorf("parsing %s: %v", filename, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %v", filename, err)
	}
	return conf, nil
}

func (m *ModelConfig) Validate() error {
	if err := m.PreprocessSpec().Validate(); err != nil {
		return err
	}
	if len(m.Classes) == 0 {
		return fmt.Errorf("model has no classes")
	}
	if m.Hotspot.Class < 0 || m.Hotspot.Class >= len(m.Classes) {
		return fmt.Errorf("hotspot class %d out of range", m.Hotspot.Class)
	}
	if m.Hotspot.Threshold <= 0 || m.Hotspot.Threshold >= 1 {
		return fmt.Errorf("hotspot threshold %.2f must be in (0,1)", m.Hotspot.Threshold)
	}
	if m.Hotspot.MinArea < 1 {
		return fmt.Errorf("hotspot min area %d must be positive", m.Hotspot.MinArea)
	}
	return nil
}

// PreprocessSpec derives the preprocessing requirements the model's
// inputs impose.
func (m *ModelConfig) PreprocessSpec() preprocess.Spec {
	return preprocess.Spec{
		Width:    m.Width,
		Height:   m.Height,
		Channels: m.Channels,
		CalMin:   m.CalMin,
		CalMax:   m.CalMax,
	}
}
