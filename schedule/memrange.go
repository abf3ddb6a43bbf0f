/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package schedule

import "fmt"

// memRange is a half-open byte interval [Begin, End).
type memRange struct {
	Begin uint64
	End   uint64
}

func (r memRange) Size() uint64 { return r.End - r.Begin }

func (r memRange) String() string { return fmt.Sprintf("[%d - %d)", r.Begin, r.End) }

// rangesOverlap reports whether the two ranges intersect.
func rangesOverlap(a, b memRange) bool {
	return a.Begin < b.End && b.Begin < a.End
}

// rangeOverlapsAny reports whether r intersects any range in the list.
func rangeOverlapsAny(r memRange, list []memRange) bool {
	for _, check := range list {
		if rangesOverlap(r, check) {
			return true
		}
	}
	return false
}

// subtractRange removes sub from every overlapping range in the list,
// reusing the list's backing array. Each overlapped range yields 0, 1 or 2
// pieces: fully covered ranges vanish, clipped ranges shrink, and split
// ranges leave both sides. Piece order is not significant.
func subtractRange(sub memRange, ranges []memRange) []memRange {
	out := ranges[:0]
	var splitOff []memRange
	for _, r := range ranges {
		if !rangesOverlap(sub, r) {
			out = append(out, r)
			continue
		}
		switch {
		case sub.Begin <= r.Begin && sub.End >= r.End:
			// Fully covered: drop.
		case sub.Begin <= r.Begin:
			// Clips the low side.
			r.Begin = sub.End
			out = append(out, r)
		case sub.End >= r.End:
			// Clips the high side.
			r.End = sub.Begin
			out = append(out, r)
		default:
			// Splits the range.
			splitOff = append(splitOff, memRange{Begin: r.Begin, End: sub.Begin})
			r.Begin = sub.End
			out = append(out, r)
		}
	}
	return append(out, splitOff...)
}
