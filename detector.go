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
	"log/slog"
	"runtime"
	"sync"
)

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for diagnostics. The default discards.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithWorkers bounds the number of baseline segments processed concurrently.
// Values below 1 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Detector) {
		d.workers = n
	}
}

// Detector runs one method over full-night recordings.
type Detector struct {
	method  Method
	logger  *slog.Logger
	workers int

	mu      sync.Mutex
	designs map[float64]*FIR // Filter designs by sampling rate
}

// NewDetector returns a detector for the method.
func NewDetector(m Method, opts ...Option) (*Detector, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		method:  m,
		logger:  slog.New(slog.DiscardHandler),
		designs: make(map[float64]*FIR),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.workers < 1 {
		d.workers = runtime.GOMAXPROCS(0)
	}
	return d, nil
}

// Method returns the detector's method.
func (d *Detector) Method() Method {
	return d.method
}

// Result is the outcome of one detection run.
type Result struct {
	Vector           DetectionVector // Detected samples, same length as the input
	Events           []Event         // Distinct detected spindles
	Threshold        float64         // Threshold applied to the feature curve
	Candidates       int             // Events before duration filtering
	BaselineSamples  int             // Filtered baseline samples used
	BaselineSegments int             // Baseline segments used
	ExcludedSegments int             // Baseline segments too short to filter
	ExcludedSamples  int             // Raw samples in excluded segments
}

// Detect calibrates the threshold on the baseline segments chosen by sel and
// detects spindles over the whole recording.
func (d *Detector) Detect(ts TimeSeries, sel BaselineSelector) (*Result, error) {
	threshold, baseline, err := d.Threshold(ts, sel)
	if err != nil {
		return nil, err
	}

	res, err := d.DetectAbove(ts, threshold)
	if err != nil {
		return nil, err
	}
	res.BaselineSamples = len(baseline.Amplitude)
	res.BaselineSegments = baseline.Segments
	res.ExcludedSegments = baseline.ExcludedSegments
	res.ExcludedSamples = baseline.ExcludedSamples
	return res, nil
}

// Threshold computes the detection threshold from the baseline segments of ts
// chosen by sel.
func (d *Detector) Threshold(ts TimeSeries, sel BaselineSelector) (float64, BaselineData, error) {
	if sel == nil {
		return 0, BaselineData{}, fmt.Errorf("%w: no baseline selector", ErrInvalidConfig)
	}

	fir, err := d.filter(ts.SampleRate)
	if err != nil {
		return 0, BaselineData{}, err
	}

	segments, err := sel.Segments(ts.Len())
	if err != nil {
		return 0, BaselineData{}, fmt.Errorf("error selecting baseline: %w", err)
	}

	baseline, err := CollectBaseline(ts.Samples, ts.SampleRate, segments, fir, d.method.Feature, d.workers)
	if err != nil {
		return 0, BaselineData{}, err
	}
	if baseline.ExcludedSegments > 0 {
		d.logger.Warn("excluded baseline segments too short to filter",
			"method", d.method.Name,
			"segments", baseline.ExcludedSegments,
			"samples", baseline.ExcludedSamples,
			"min_samples", fir.MinSamples())
	}

	threshold, err := EstimateThreshold(baseline, d.method.Threshold)
	if err != nil {
		return 0, baseline, fmt.Errorf("error estimating threshold: %w", err)
	}

	d.logger.Debug("estimated threshold",
		"method", d.method.Name,
		"policy", d.method.Threshold.String(),
		"threshold", threshold,
		"segments", baseline.Segments,
		"samples", len(baseline.Amplitude))

	return threshold, baseline, nil
}

// DetectAbove detects spindles over the whole recording with a given
// threshold. Baseline fields of the result are left zero.
func (d *Detector) DetectAbove(ts TimeSeries, threshold float64) (*Result, error) {
	fir, err := d.filter(ts.SampleRate)
	if err != nil {
		return nil, err
	}

	filtered, err := fir.Apply(ts.Samples)
	if err != nil {
		return nil, fmt.Errorf("error filtering recording: %w", err)
	}

	feature, err := ExtractFeature(filtered, ts.SampleRate, d.method.Feature)
	if err != nil {
		return nil, fmt.Errorf("error extracting feature: %w", err)
	}

	candidates, err := Segment(Threshold(feature, threshold), d.method.Segmenter)
	if err != nil {
		return nil, fmt.Errorf("error segmenting mask: %w", err)
	}

	accepted := FilterByDuration(candidates, d.method.Duration, ts.SampleRate)
	if d.method.Merge {
		accepted = MergeClose(accepted, d.method.MinGapSamples)
	}

	res := &Result{
		Vector:     BuildVector(accepted, ts.Len()),
		Events:     Distinct(accepted),
		Threshold:  threshold,
		Candidates: len(candidates),
	}

	d.logger.Debug("detected spindles",
		"method", d.method.Name,
		"candidates", len(candidates),
		"accepted", len(accepted),
		"spindles", len(res.Events))

	return res, nil
}

// filter returns the filter design for fs, designing it on first use.
func (d *Detector) filter(fs float64) (*FIR, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fir, ok := d.designs[fs]; ok {
		return fir, nil
	}

	fir, err := DesignFilter(d.method.Filter, fs)
	if err != nil {
		return nil, fmt.Errorf("error designing filter: %w", err)
	}
	if !fir.Converged {
		d.logger.Warn("equiripple design did not converge", "method", d.method.Name, "filter", d.method.Filter.String(), "sample_rate", fs)
	}
	d.logger.Debug("designed filter", "method", d.method.Name, "filter", d.method.Filter.String(), "order", fir.Order(), "sample_rate", fs)

	d.designs[fs] = fir
	return fir, nil
}
