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
	"math"

	"github.com/OpenPSG/spindle/wavelet"
	"gonum.org/v1/gonum/floats"
)

// FeatureSpec describes how a filtered signal becomes a per-sample feature
// curve. It is one of FixedRMS, SlidingRMS or WaveletEnergy.
type FeatureSpec interface {
	extract(x []float64, fs float64) (Feature, error)
	fmt.Stringer
}

// Feature is a per-sample feature curve. Only Values[From:To] carry a value;
// samples outside that range are zero and never exceed a threshold.
type Feature struct {
	Values []float64 // One value per input sample
	From   int       // First valid sample
	To     int       // One past the last valid sample
}

// Valid returns the samples that carry a value.
func (f Feature) Valid() []float64 {
	return f.Values[f.From:f.To]
}

// ExtractFeature computes the feature curve of a filtered signal.
func ExtractFeature(x []float64, fs float64, spec FeatureSpec) (Feature, error) {
	if spec == nil {
		return Feature{}, fmt.Errorf("%w: no feature", ErrInvalidConfig)
	}
	if fs <= 0 {
		return Feature{}, fmt.Errorf("%w: sample rate %g", ErrInvalidConfig, fs)
	}
	return spec.extract(x, fs)
}

// FixedRMS partitions the signal into consecutive windows and broadcasts each
// window's RMS to its samples. A final partial window no longer than half a
// window reuses the previous window's RMS.
type FixedRMS struct {
	WindowSec float64 // Window length in seconds
}

func (r FixedRMS) String() string {
	return fmt.Sprintf("fixed-window RMS %gs", r.WindowSec)
}

func (r FixedRMS) extract(x []float64, fs float64) (Feature, error) {
	w := int(math.Round(r.WindowSec * fs))
	if w < 1 {
		return Feature{}, fmt.Errorf("%w: %s at %g Hz", ErrInvalidConfig, r, fs)
	}

	n := len(x)
	values := make([]float64, n)
	full := n / w

	prev := 0.0
	for k := 0; k < full; k++ {
		prev = rms(x[k*w : (k+1)*w])
		fill(values[k*w:(k+1)*w], prev)
	}

	if rest := n - full*w; rest > 0 {
		v := prev
		if full == 0 || rest > int(math.Round(float64(w)/2)) {
			v = rms(x[full*w:])
		}
		fill(values[full*w:], v)
	}

	return Feature{Values: values, From: 0, To: n}, nil
}

// SlidingRMS computes RMS over windows centred every hop samples and holds
// each value until the next centre. Centres whose window would leave the
// signal are not enumerated.
type SlidingRMS struct {
	WindowSec float64 // Window length in seconds
	HopSec    float64 // Distance between window centres, less than half a window
}

func (r SlidingRMS) String() string {
	return fmt.Sprintf("sliding RMS %gs every %gs", r.WindowSec, r.HopSec)
}

func (r SlidingRMS) extract(x []float64, fs float64) (Feature, error) {
	w := int(math.Round(r.WindowSec * fs))
	hop := int(math.Round(r.HopSec * fs))
	if w < 2 || hop < 1 || 2*hop >= w {
		return Feature{}, fmt.Errorf("%w: %s at %g Hz", ErrInvalidConfig, r, fs)
	}

	n := len(x)
	half := w / 2
	values := make([]float64, n)
	if n < w {
		return Feature{Values: values}, nil
	}

	lastCenter := n - w + half
	for c := half; c <= lastCenter; c += hop {
		fill(values[c:min(c+hop, lastCenter+1)], rms(x[c-half:c-half+w]))
	}

	return Feature{Values: values, From: half, To: lastCenter + 1}, nil
}

// WaveletEnergy takes the complex wavelet coefficients at the scale matching
// CenterHz, squares them, keeps the squared real part of that square, and
// smooths the result with a centred moving average.
type WaveletEnergy struct {
	CenterHz        float64             // Target spindle frequency
	Bandwidth       float64             // Morlet bandwidth parameter Fb
	CenterFrequency float64             // Morlet centre frequency parameter Fc
	SmoothingSec    float64             // Moving average length in seconds
	Transformer     wavelet.Transformer // Optional, Morlet{Bandwidth, CenterFrequency} if nil
}

func (e WaveletEnergy) String() string {
	return fmt.Sprintf("wavelet energy at %g Hz (cmor%g-%g), %gs smoothing",
		e.CenterHz, e.Bandwidth, e.CenterFrequency, e.SmoothingSec)
}

func (e WaveletEnergy) extract(x []float64, fs float64) (Feature, error) {
	l := int(math.Round(e.SmoothingSec * fs))
	if e.CenterHz <= 0 || e.CenterHz >= fs/2 || e.CenterFrequency <= 0 || l < 1 {
		return Feature{}, fmt.Errorf("%w: %s at %g Hz", ErrInvalidConfig, e, fs)
	}

	tr := e.Transformer
	if tr == nil {
		tr = wavelet.Morlet{Bandwidth: e.Bandwidth, CenterFrequency: e.CenterFrequency}
	}

	coefs, err := tr.Transform(x, wavelet.ScaleForFrequency(e.CenterFrequency, fs, e.CenterHz))
	if err != nil {
		return Feature{}, fmt.Errorf("error computing wavelet transform: %w", err)
	}
	if len(coefs) != len(x) {
		return Feature{}, fmt.Errorf("wavelet transform returned %d coefficients for %d samples", len(coefs), len(x))
	}

	energy := make([]float64, len(coefs))
	for i, c := range coefs {
		re := real(c * c)
		energy[i] = re * re
	}

	return Feature{Values: movingAverage(energy, l), From: 0, To: len(x)}, nil
}

// movingAverage convolves x with a length-l boxcar of height 1/l and keeps the
// central part, so out[i] averages x[i+l/2-l+1 .. i+l/2] with zeros outside.
func movingAverage(x []float64, l int) []float64 {
	n := len(x)
	prefix := make([]float64, n+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}

	out := make([]float64, n)
	for i := range out {
		hi := min(i+l/2, n-1)
		lo := max(i+l/2-l+1, 0)
		if hi >= lo {
			out[i] = (prefix[hi+1] - prefix[lo]) / float64(l)
		}
	}
	return out
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

func fill(dst []float64, v float64) {
	for i := range dst {
		dst[i] = v
	}
}
