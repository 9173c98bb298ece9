// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package wavelet computes continuous wavelet transform coefficients of a real
// signal at a single scale.
package wavelet

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// ErrInvalidScale is returned for a non-positive scale or wavelet parameter.
var ErrInvalidScale = errors.New("invalid wavelet scale")

// Support is the half-width of the effective support of the mother wavelet.
const Support = 8.0

const minBlockSize = 4096

// Transformer computes CWT coefficients at one scale. The result has the same
// length as x and coefficient b is centred on sample b.
type Transformer interface {
	Transform(x []float64, scale float64) ([]complex128, error)
}

// Morlet is the complex Morlet wavelet
//
//	psi(t) = (pi*Fb)^(-1/2) * exp(2*pi*i*Fc*t) * exp(-t^2/Fb)
//
// with bandwidth Fb and centre frequency Fc.
type Morlet struct {
	Bandwidth       float64 // Fb
	CenterFrequency float64 // Fc, cycles per unit time
}

// ScaleForFrequency returns the scale at which a wavelet with the given centre
// frequency responds to targetHz at sampling rate fs.
func ScaleForFrequency(centerFrequency, fs, targetHz float64) float64 {
	return centerFrequency * fs / targetHz
}

// Kernel samples the wavelet dilated by scale at integer offsets
// -K..K, K = ceil(Support*scale), normalised by 1/sqrt(scale).
func (m Morlet) Kernel(scale float64) []complex128 {
	half := int(math.Ceil(Support * scale))
	norm := 1 / (math.Sqrt(math.Pi*m.Bandwidth) * math.Sqrt(scale))

	kernel := make([]complex128, 2*half+1)
	for k := -half; k <= half; k++ {
		t := float64(k) / scale
		envelope := norm * math.Exp(-t*t/m.Bandwidth)
		kernel[k+half] = complex(envelope, 0) * cmplx.Exp(complex(0, 2*math.Pi*m.CenterFrequency*t))
	}
	return kernel
}

// Transform returns coef[b] = sum_k x[b+k] * conj(kernel[k]), with x taken as
// zero outside the signal.
func (m Morlet) Transform(x []float64, scale float64) ([]complex128, error) {
	if scale <= 0 || m.Bandwidth <= 0 || m.CenterFrequency <= 0 {
		return nil, fmt.Errorf("%w: scale %g, bandwidth %g, centre frequency %g",
			ErrInvalidScale, scale, m.Bandwidth, m.CenterFrequency)
	}
	if len(x) == 0 {
		return []complex128{}, nil
	}

	kernel := m.Kernel(scale)
	half := (len(kernel) - 1) / 2

	// Correlation with the kernel is convolution with its conjugate reversal.
	h := make([]complex128, len(kernel))
	for j := range h {
		h[j] = cmplx.Conj(kernel[len(kernel)-1-j])
	}

	full := Convolve(x, h)
	out := make([]complex128, len(x))
	copy(out, full[half:half+len(x)])
	return out, nil
}

// Convolve returns the full linear convolution of x and h, len(x)+len(h)-1
// samples, by FFT overlap-add.
func Convolve(x []float64, h []complex128) []complex128 {
	m := len(h)
	size := minBlockSize
	for size < 4*m {
		size <<= 1
	}
	step := size - m + 1

	padded := make([]complex128, size)
	copy(padded, h)
	kernel := fft.FFT(padded)

	out := make([]complex128, len(x)+m-1)
	block := make([]complex128, size)
	for p := 0; p < len(x); p += step {
		end := min(p+step, len(x))
		clear(block)
		for i := p; i < end; i++ {
			block[i-p] = complex(x[i], 0)
		}

		spectrum := fft.FFT(block)
		for i := range spectrum {
			spectrum[i] *= kernel[i]
		}
		y := fft.IFFT(spectrum)

		for i := 0; i < end-p+m-1; i++ {
			out[p+i] += y[i]
		}
	}
	return out
}
