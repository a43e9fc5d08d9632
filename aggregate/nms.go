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

package aggregate

import (
	"sort"

	"github.com/mooseworks/moose-detector/inference"
)

// nms applies greedy per-class non-maximum suppression: the
// highest-confidence box wins and same-class boxes overlapping it
// beyond iouThresh are suppressed.
func nms(dets []inference.Detection, iouThresh float64) []inference.Detection {
	if len(dets) < 2 {
		return dets
	}

	sorted := make([]inference.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	kept := make([]inference.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Label == d.Label && iou(k, d) > iouThresh {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// iou computes intersection-over-union of two boxes.
func iou(a, b inference.Detection) float64 {
	ix := overlap(a.X, a.Width, b.X, b.Width)
	iy := overlap(a.Y, a.Height, b.Y, b.Height)
	inter := float64(ix) * float64(iy)
	if inter <= 0 {
		return 0
	}
	union := float64(a.Width)*float64(a.Height) + float64(b.Width)*float64(b.Height) - inter
	return inter / union
}

func overlap(a1, aLen, b1, bLen int) int {
	lo := a1
	if b1 > lo {
		lo = b1
	}
	hi := a1 + aLen
	if b1+bLen < hi {
		hi = b1 + bLen
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}
