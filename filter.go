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
	"math/cmplx"

	"github.com/OpenPSG/spindle/wavelet"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// FilterSpec describes a linear-phase FIR bandpass filter. It is either a
// WindowedFIR or an EquirippleFIR.
type FilterSpec interface {
	design(fs float64) (*FIR, error)
	fmt.Stringer
}

// WindowedFIR is a fixed-order bandpass designed by the window method with a
// rectangular window.
type WindowedFIR struct {
	Order  int     // Filter order, taps = Order+1
	LowHz  float64 // Lower cutoff
	HighHz float64 // Upper cutoff
}

func (w WindowedFIR) String() string {
	return fmt.Sprintf("windowed FIR order %d, %g-%g Hz", w.Order, w.LowHz, w.HighHz)
}

func (w WindowedFIR) design(fs float64) (*FIR, error) {
	nyquist := fs / 2
	if w.Order < 1 || w.LowHz <= 0 || w.HighHz <= w.LowHz || w.HighHz >= nyquist {
		return nil, fmt.Errorf("%w: %s at %g Hz", ErrInvalidConfig, w, fs)
	}

	w1, w2 := w.LowHz/nyquist, w.HighHz/nyquist
	win := window.Rectangular(w.Order + 1)
	mid := float64(w.Order) / 2

	taps := make([]float64, w.Order+1)
	for n := range taps {
		t := float64(n) - mid
		h := w2 - w1
		if t != 0 {
			h = (math.Sin(math.Pi*w2*t) - math.Sin(math.Pi*w1*t)) / (math.Pi * t)
		}
		taps[n] = h * win[n]
	}

	// Unit gain at the centre of the passband.
	center := (w1 + w2) / 4
	floats.Scale(1/cmplx.Abs(frequencyResponse(taps, center)), taps)

	return &FIR{Taps: taps, Converged: true}, nil
}

// EquirippleFIR is a minimax (Parks-McClellan) bandpass whose order is derived
// from the band edges, the stopband attenuation and the passband ripple.
type EquirippleFIR struct {
	StopLowHz    float64 // Upper edge of the lower stopband
	PassLowHz    float64 // Lower edge of the passband
	PassHighHz   float64 // Upper edge of the passband
	StopHighHz   float64 // Lower edge of the upper stopband
	StopAttenDB  float64 // Stopband attenuation in dB
	PassRippleDB float64 // Peak-to-peak passband ripple in dB
}

func (e EquirippleFIR) String() string {
	return fmt.Sprintf("equiripple FIR %g/%g-%g/%g Hz, %g dB stop, %g dB ripple",
		e.StopLowHz, e.PassLowHz, e.PassHighHz, e.StopHighHz, e.StopAttenDB, e.PassRippleDB)
}

func (e EquirippleFIR) design(fs float64) (*FIR, error) {
	if !(0 < e.StopLowHz && e.StopLowHz < e.PassLowHz && e.PassLowHz < e.PassHighHz &&
		e.PassHighHz < e.StopHighHz && e.StopHighHz < fs/2) || e.StopAttenDB <= 0 || e.PassRippleDB <= 0 {
		return nil, fmt.Errorf("%w: %s at %g Hz", ErrInvalidConfig, e, fs)
	}

	ripple := math.Pow(10, e.PassRippleDB/20)
	devPass := (ripple - 1) / (ripple + 1)
	devStop := math.Pow(10, -e.StopAttenDB/20)

	order := equirippleOrder([]float64{
		(e.PassLowHz - e.StopLowHz) / fs,
		(e.StopHighHz - e.PassHighHz) / fs,
	}, devPass, devStop)
	if order%2 == 1 {
		order++ // Type I: odd length, even order
	}

	maxDev := math.Max(devPass, devStop)
	taps, converged := remez(order+1,
		[]float64{0, e.StopLowHz / fs, e.PassLowHz / fs, e.PassHighHz / fs, e.StopHighHz / fs, 0.5},
		[]float64{0, 1, 0},
		[]float64{maxDev / devStop, maxDev / devPass, maxDev / devStop})

	return &FIR{Taps: taps, Converged: converged}, nil
}

// FIR is a designed linear-phase FIR filter.
type FIR struct {
	Taps      []float64 // Impulse response
	Converged bool      // False if an equiripple design hit the iteration limit
}

// DesignFilter designs the filter described by spec for sampling rate fs.
func DesignFilter(spec FilterSpec, fs float64) (*FIR, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: no filter", ErrInvalidConfig)
	}
	if fs <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidConfig, fs)
	}
	return spec.design(fs)
}

// Order returns the filter order.
func (f *FIR) Order() int {
	return len(f.Taps) - 1
}

// MinSamples returns the smallest input length Apply accepts.
func (f *FIR) MinSamples() int {
	return 3*f.Order() + 1
}

// Response returns the single-pass magnitude response at freqHz.
func (f *FIR) Response(freqHz, fs float64) float64 {
	return cmplx.Abs(frequencyResponse(f.Taps, freqHz/fs))
}

// Apply filters x forward and then time-reversed so the result has no phase
// delay. Both ends are extended by an odd reflection of 3 x order samples and
// each pass starts from the steady state of its first sample. Inputs of
// 3 x order samples or fewer yield ErrInsufficientDataForFilter.
func (f *FIR) Apply(x []float64) ([]float64, error) {
	edge := 3 * f.Order()
	n := len(x)
	if n <= edge {
		return nil, fmt.Errorf("%w: %d samples, need more than %d", ErrInsufficientDataForFilter, n, edge)
	}

	ext := make([]float64, n+2*edge)
	for i := 0; i < edge; i++ {
		ext[i] = 2*x[0] - x[edge-i]
		ext[edge+n+i] = 2*x[n-1] - x[n-2-i]
	}
	copy(ext[edge:], x)

	zi := f.initialState()
	y := f.forward(ext, zi)
	floats.Reverse(y)
	y = f.forward(y, zi)
	floats.Reverse(y)

	out := make([]float64, n)
	copy(out, y[edge:edge+n])
	return out, nil
}

// ApplyFilter designs spec for fs and applies it to x with zero phase.
func ApplyFilter(x []float64, fs float64, spec FilterSpec) ([]float64, error) {
	fir, err := DesignFilter(spec, fs)
	if err != nil {
		return nil, err
	}
	return fir.Apply(x)
}

// initialState is the filter state, per unit input, of a filter that has seen
// a constant input forever: zi[k] = sum(taps[k+1:]).
func (f *FIR) initialState() []float64 {
	order := f.Order()
	zi := make([]float64, order)
	acc := 0.0
	for k := order - 1; k >= 0; k-- {
		acc += f.Taps[k+1]
		zi[k] = acc
	}
	return zi
}

// Filters with at least this many taps are applied by FFT convolution.
const fftMinTaps = 64

// forward runs the filter over x with initial state zi scaled by x[0].
func (f *FIR) forward(x, zi []float64) []float64 {
	order := f.Order()

	var y []float64
	if len(f.Taps) >= fftMinTaps {
		y = convolveFFT(x, f.Taps)
	} else {
		y = convolveDirect(x, f.Taps)
	}

	x0 := x[0]
	for i := 0; i < order && i < len(y); i++ {
		y[i] += zi[i] * x0
	}
	return y
}

// convolveDirect returns the first len(x) samples of the convolution of x
// and b.
func convolveDirect(x, b []float64) []float64 {
	y := make([]float64, len(x))
	for i := range x {
		acc := 0.0
		for k := 0; k < len(b) && k <= i; k++ {
			acc += b[k] * x[i-k]
		}
		y[i] = acc
	}
	return y
}

// convolveFFT is convolveDirect computed by FFT overlap-add.
func convolveFFT(x, b []float64) []float64 {
	h := make([]complex128, len(b))
	for i, v := range b {
		h[i] = complex(v, 0)
	}

	full := wavelet.Convolve(x, h)
	y := make([]float64, len(x))
	for i := range y {
		y[i] = real(full[i])
	}
	return y
}

// frequencyResponse evaluates sum(taps[n] e^{-j2πfn}) at f cycles per sample.
func frequencyResponse(taps []float64, f float64) complex128 {
	var h complex128
	for n, b := range taps {
		h += complex(b, 0) * cmplx.Exp(complex(0, -2*math.Pi*f*float64(n)))
	}
	return h
}
