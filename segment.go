// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle

import "fmt"

// SegmentConvention selects how an event already running at the first sample
// is attributed.
type SegmentConvention int

const (
	// ConventionA starts the leading event at sample 0 and leaves every other
	// start where the off-to-on step puts it.
	ConventionA SegmentConvention = iota
	// ConventionB is ConventionA, except that when the mask begins on, the
	// start of the second event is moved one sample earlier. With a single
	// off sample after the leading run the second event then touches the
	// first. Sliding RMS leaves its leading margin off, so detections built
	// on it never start on.
	ConventionB
)

func (c SegmentConvention) String() string {
	switch c {
	case ConventionA:
		return "A"
	case ConventionB:
		return "B"
	}
	return fmt.Sprintf("SegmentConvention(%d)", int(c))
}

// Segment splits a binary mask into ordered, non-overlapping events of
// consecutive ones. An all-zero mask yields an empty, non-nil slice. An empty
// mask or one holding anything but 0 and 1 yields ErrMalformedMask.
func Segment(mask []uint8, convention SegmentConvention) ([]Event, error) {
	n := len(mask)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformedMask)
	}
	for i, v := range mask {
		if v > 1 {
			return nil, fmt.Errorf("%w: value %d at sample %d", ErrMalformedMask, v, i)
		}
	}

	var begins, ends []int
	if mask[0] == 1 {
		begins = append(begins, 0)
	}
	for i := 0; i < n-1; i++ {
		switch {
		case mask[i] == 0 && mask[i+1] == 1:
			begins = append(begins, i+1)
		case mask[i] == 1 && mask[i+1] == 0:
			ends = append(ends, i)
		}
	}
	if mask[n-1] == 1 {
		ends = append(ends, n-1)
	}

	if convention == ConventionB && mask[0] == 1 && len(begins) > 1 {
		begins[1]--
	}

	events := make([]Event, len(begins))
	for k := range begins {
		events[k] = Event{Start: begins[k], End: ends[k]}
	}
	return events, nil
}

// Threshold marks every sample of the valid feature range that lies strictly
// above threshold.
func Threshold(f Feature, threshold float64) []uint8 {
	mask := make([]uint8, len(f.Values))
	for i := f.From; i < f.To; i++ {
		if f.Values[i] > threshold {
			mask[i] = 1
		}
	}
	return mask
}
