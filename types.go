// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package spindle detects sleep spindles, short 11-16 Hz bursts, in
// full-night EEG recordings using several published detection methods.
//
// Every method runs the same pipeline: a zero-phase bandpass filter, a
// windowed amplitude or energy feature, a threshold calibrated on non-REM
// baseline epochs, run-length segmentation of the thresholded mask, duration
// acceptance and, for the wavelet method, fusion of events that are too close.
// Each method keeps its own numeric conventions as data, see LookupMethod.
package spindle

import "fmt"

// TimeSeries is a sampled signal. Stages only ever read Samples.
type TimeSeries struct {
	Samples    []float64 // Signal samples in physical units
	SampleRate float64   // Sampling rate in Hz
}

// Len returns the number of samples.
func (ts TimeSeries) Len() int {
	return len(ts.Samples)
}

// Event is a detected span of inclusive sample indices.
type Event struct {
	Start int // First sample of the event
	End   int // Last sample of the event, Start <= End
}

func (e Event) String() string {
	return fmt.Sprintf("[%d,%d]", e.Start, e.End)
}

// BaselineSegment is a contiguous range of inclusive sample indices known to
// be a baseline (non-REM) epoch.
type BaselineSegment struct {
	Start int // First sample of the segment
	End   int // Last sample of the segment
}

// Len returns the number of samples in the segment.
func (s BaselineSegment) Len() int {
	return s.End - s.Start + 1
}

// DetectionVector is a binary mask aligned with the input series: element i is
// 1 iff sample i lies inside an accepted event.
type DetectionVector []uint8

// Count returns the number of marked samples.
func (v DetectionVector) Count() int {
	n := 0
	for _, b := range v {
		if b != 0 {
			n++
		}
	}
	return n
}
