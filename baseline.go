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
	"errors"
	"fmt"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// BaselineSelector picks the baseline segments of a series of n samples.
type BaselineSelector interface {
	Segments(n int) ([]BaselineSegment, error)
}

// SegmentSelector is an explicit, chronologically ordered list of disjoint
// baseline segments.
type SegmentSelector []BaselineSegment

// Segments validates the list against a series of n samples and returns a copy.
func (s SegmentSelector) Segments(n int) ([]BaselineSegment, error) {
	for i, seg := range s {
		if seg.Start < 0 || seg.End < seg.Start || seg.End >= n {
			return nil, fmt.Errorf("%w: baseline segment %d [%d,%d] outside [0,%d)", ErrInvalidConfig, i, seg.Start, seg.End, n)
		}
		if i > 0 && seg.Start <= s[i-1].End {
			return nil, fmt.Errorf("%w: baseline segment %d [%d,%d] overlaps or precedes segment %d", ErrInvalidConfig, i, seg.Start, seg.End, i-1)
		}
	}
	return slices.Clone([]BaselineSegment(s)), nil
}

// StageSelector is a per-sample stage label stream. Every maximal run of N2,
// N3 or N4 samples is one baseline segment.
type StageSelector []Stage

// Segments returns the baseline runs. The label stream must have n entries.
func (s StageSelector) Segments(n int) ([]BaselineSegment, error) {
	if len(s) != n {
		return nil, fmt.Errorf("%w: %d stage labels for %d samples", ErrInvalidConfig, len(s), n)
	}

	var segments []BaselineSegment
	start := -1
	for i, stage := range s {
		switch {
		case stage.IsBaseline() && start < 0:
			start = i
		case !stage.IsBaseline() && start >= 0:
			segments = append(segments, BaselineSegment{Start: start, End: i - 1})
			start = -1
		}
	}
	if start >= 0 {
		segments = append(segments, BaselineSegment{Start: start, End: n - 1})
	}
	return segments, nil
}

// BaselineData is the baseline material a threshold is computed from, in
// chronological segment order.
type BaselineData struct {
	Feature          []float64 // Valid feature values of the usable segments
	Amplitude        []float64 // Filtered signal of the usable segments
	Segments         int       // Segments that contributed
	ExcludedSegments int       // Segments too short to filter
	ExcludedSamples  int       // Raw samples in excluded segments
}

// CollectBaseline filters and featurizes every baseline segment of x on its
// own. Segments too short for the filter are left out and counted, never
// zero-filled. Segments are processed by up to workers goroutines; the result
// keeps their chronological order.
func CollectBaseline(x []float64, fs float64, segments []BaselineSegment, fir *FIR, feature FeatureSpec, workers int) (BaselineData, error) {
	type part struct {
		feature   []float64
		amplitude []float64
		excluded  bool
	}
	parts := make([]part, len(segments))

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, seg := range segments {
		g.Go(func() error {
			filtered, err := fir.Apply(x[seg.Start : seg.End+1])
			if errors.Is(err, ErrInsufficientDataForFilter) {
				parts[i].excluded = true
				return nil
			} else if err != nil {
				return fmt.Errorf("error filtering baseline segment [%d,%d]: %w", seg.Start, seg.End, err)
			}

			f, err := ExtractFeature(filtered, fs, feature)
			if err != nil {
				return fmt.Errorf("error extracting baseline feature [%d,%d]: %w", seg.Start, seg.End, err)
			}
			parts[i] = part{feature: f.Valid(), amplitude: filtered}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BaselineData{}, err
	}

	var data BaselineData
	for i, p := range parts {
		if p.excluded {
			data.ExcludedSegments++
			data.ExcludedSamples += segments[i].Len()
			continue
		}
		data.Segments++
		data.Feature = append(data.Feature, p.feature...)
		data.Amplitude = append(data.Amplitude, p.amplitude...)
	}
	return data, nil
}

// ThresholdPolicy reduces baseline data to a detection threshold. It is one of
// PercentileOfRMS, StdMultiplier or MeanEnergyMultiplier.
type ThresholdPolicy interface {
	threshold(data BaselineData) (float64, error)
	fmt.Stringer
}

// EstimateThreshold computes the threshold of policy over data. It returns
// ErrEmptyBaseline if no baseline samples are available.
func EstimateThreshold(data BaselineData, policy ThresholdPolicy) (float64, error) {
	if policy == nil {
		return 0, fmt.Errorf("%w: no threshold policy", ErrInvalidConfig)
	}
	return policy.threshold(data)
}

// PercentileOfRMS takes the baseline feature value of 1-indexed rank
// ceil(Percentile/100*N)+1 in ascending order. The rank is one past the
// exact percentile rank and is clamped to N.
type PercentileOfRMS struct {
	Percentile float64 // Percentile in [0, 100]
}

func (p PercentileOfRMS) String() string {
	return fmt.Sprintf("percentile %g of baseline RMS", p.Percentile)
}

func (p PercentileOfRMS) threshold(data BaselineData) (float64, error) {
	if p.Percentile < 0 || p.Percentile > 100 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidConfig, p)
	}
	n := len(data.Feature)
	if n == 0 {
		return 0, fmt.Errorf("%w: no baseline feature values", ErrEmptyBaseline)
	}

	sorted := slices.Clone(data.Feature)
	slices.Sort(sorted)

	rank := int(math.Ceil(p.Percentile/100*float64(n))) + 1
	rank = min(max(rank, 1), n)
	return sorted[rank-1], nil
}

// StdMultiplier is K times the standard deviation of the filtered baseline
// amplitude, not of the feature curve.
type StdMultiplier struct {
	K float64 // Multiplier
}

func (s StdMultiplier) String() string {
	return fmt.Sprintf("%g x SD of baseline amplitude", s.K)
}

func (s StdMultiplier) threshold(data BaselineData) (float64, error) {
	if len(data.Amplitude) < 2 {
		return 0, fmt.Errorf("%w: %d baseline samples, need at least 2", ErrEmptyBaseline, len(data.Amplitude))
	}
	return s.K * stat.StdDev(data.Amplitude, nil), nil
}

// MeanEnergyMultiplier is K times the mean of the baseline feature curve.
type MeanEnergyMultiplier struct {
	K float64 // Multiplier
}

func (m MeanEnergyMultiplier) String() string {
	return fmt.Sprintf("%g x mean baseline energy", m.K)
}

func (m MeanEnergyMultiplier) threshold(data BaselineData) (float64, error) {
	if len(data.Feature) == 0 {
		return 0, fmt.Errorf("%w: no baseline feature values", ErrEmptyBaseline)
	}
	return m.K * stat.Mean(data.Feature, nil), nil
}
