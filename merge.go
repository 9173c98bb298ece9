// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle

// MergeClose fuses events whose end lies within minGap samples of the end of
// the event before it. The gap is measured end to end against the predecessor
// as already fused. A fused event takes its predecessor's start and keeps its
// own end, so the result has as many entries as the input and spans that
// overlap. Use Distinct to count separate spindles.
func MergeClose(events []Event, minGap int) []Event {
	merged := make([]Event, len(events))
	copy(merged, events)

	for k := 1; k < len(merged); k++ {
		if merged[k].End-merged[k-1].End <= minGap {
			merged[k].Start = merged[k-1].Start
		}
	}
	return merged
}

// Distinct collapses repeated and overlapping events into one span each.
// Events that only touch stay separate, so two adjacent events of the
// segmenter still count as two spindles. Input must be sorted by start.
func Distinct(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if last := len(out) - 1; last >= 0 && e.Start <= out[last].End {
			out[last].End = max(out[last].End, e.End)
			continue
		}
		out = append(out, e)
	}
	return out
}
