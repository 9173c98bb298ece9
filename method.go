// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle

import (
	"fmt"
	"sort"
	"strings"
)

// Method is the complete configuration of one published detection method.
type Method struct {
	Name          string            // Method name, e.g. "martin"
	Filter        FilterSpec        // Bandpass applied before feature extraction
	Feature       FeatureSpec       // Feature curve that is thresholded
	Threshold     ThresholdPolicy   // Baseline threshold policy
	Duration      DurationRule      // Accepted event durations
	Segmenter     SegmentConvention // Attribution of an event running at sample 0
	Merge         bool              // Fuse events that end close together
	MinGapSamples int               // End-to-end distance at or below which events fuse
}

// Validate checks the parts of the method that do not depend on the sampling
// rate. Filter and feature parameters are checked when they are applied.
func (m Method) Validate() error {
	switch {
	case m.Filter == nil:
		return fmt.Errorf("%w: method %q has no filter", ErrInvalidConfig, m.Name)
	case m.Feature == nil:
		return fmt.Errorf("%w: method %q has no feature", ErrInvalidConfig, m.Name)
	case m.Threshold == nil:
		return fmt.Errorf("%w: method %q has no threshold policy", ErrInvalidConfig, m.Name)
	case m.Duration.MinSec < 0 || m.Duration.MaxSec < m.Duration.MinSec:
		return fmt.Errorf("%w: method %q duration bounds %g-%gs", ErrInvalidConfig, m.Name, m.Duration.MinSec, m.Duration.MaxSec)
	case m.Merge && m.MinGapSamples < 0:
		return fmt.Errorf("%w: method %q minimum gap %d samples", ErrInvalidConfig, m.Name, m.MinGapSamples)
	}
	return nil
}

func (m Method) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s; %s; %s; %s duration %g-%gs", m.Name, m.Filter, m.Feature, m.Threshold,
		m.Duration.Convention, m.Duration.MinSec, m.Duration.MaxSec)
	if m.Merge {
		fmt.Fprintf(&b, "; merge within %d samples", m.MinGapSamples)
	}
	return b.String()
}

var methods = map[string]Method{
	// Martin et al. (2013): 95th percentile of 0.25 s RMS over NREM.
	"martin": {
		Name:      "martin",
		Filter:    WindowedFIR{Order: 500, LowHz: 11, HighHz: 15},
		Feature:   FixedRMS{WindowSec: 0.25},
		Threshold: PercentileOfRMS{Percentile: 95},
		Duration:  DurationRule{MinSec: 0.5, MaxSec: 3, Convention: InclusiveCount},
		Segmenter: ConventionA,
	},
	// Mölle et al. (2002): 200 ms sliding RMS above 1.5 SD of the 12-15 Hz signal.
	"moelle": {
		Name: "moelle",
		Filter: EquirippleFIR{
			StopLowHz:    11,
			PassLowHz:    12,
			PassHighHz:   15,
			StopHighHz:   16,
			StopAttenDB:  40,
			PassRippleDB: 0.5,
		},
		Feature:   SlidingRMS{WindowSec: 0.2, HopSec: 0.05},
		Threshold: StdMultiplier{K: 1.5},
		Duration:  DurationRule{MinSec: 0.5, MaxSec: 3, Convention: IntervalCount},
		Segmenter: ConventionB,
	},
	// Wamsley et al. (2012): 4.5 x mean Morlet energy at 13.5 Hz.
	"wamsley": {
		Name:   "wamsley",
		Filter: WindowedFIR{Order: 500, LowHz: 10, HighHz: 16},
		Feature: WaveletEnergy{
			CenterHz:        13.5,
			Bandwidth:       1,
			CenterFrequency: 1.5,
			SmoothingSec:    0.1,
		},
		Threshold:     MeanEnergyMultiplier{K: 4.5},
		Duration:      DurationRule{MinSec: 0.3, MaxSec: 3, Convention: IntervalCount, StrictLower: true},
		Segmenter:     ConventionA,
		Merge:         true,
		MinGapSamples: 10,
	},
}

// MethodNames returns the names of the built-in methods in sorted order.
func MethodNames() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupMethod returns the built-in method with the given name.
func LookupMethod(name string) (Method, error) {
	m, ok := methods[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Method{}, fmt.Errorf("%w: unknown method %q (known: %s)", ErrInvalidConfig, name, strings.Join(MethodNames(), ", "))
	}
	return m, nil
}
