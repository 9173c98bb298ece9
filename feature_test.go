// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle_test

import (
	"testing"

	"github.com/OpenPSG/spindle"
	"github.com/OpenPSG/spindle/wavelet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedRMS(t *testing.T) {
	rms := spindle.FixedRMS{WindowSec: 1}

	// A short remainder reuses the previous window.
	f, err := spindle.ExtractFeature([]float64{1, -1, 1, -1, 2, -2, 2, -2, 3}, 4, rms)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2, 2}, f.Values)
	assert.Equal(t, 0, f.From)
	assert.Equal(t, 9, f.To)

	// A long remainder gets its own value.
	f, err = spindle.ExtractFeature([]float64{1, -1, 1, -1, 2, -2, 2, -2, 3, -3, 3}, 4, rms)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3}, f.Values)

	// So does a signal shorter than one window.
	f, err = spindle.ExtractFeature([]float64{4, -4}, 4, rms)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 4}, f.Values)

	_, err = spindle.ExtractFeature([]float64{1}, 4, spindle.FixedRMS{WindowSec: 0.1})
	assert.ErrorIs(t, err, spindle.ErrInvalidConfig)
}

func TestSlidingRMS(t *testing.T) {
	rms := spindle.SlidingRMS{WindowSec: 0.6, HopSec: 0.2}

	x := []float64{3, -3, 3, -3, 3, -3, 3, -3, 3, -3, 3, -3}
	f, err := spindle.ExtractFeature(x, 10, rms)
	require.NoError(t, err)

	assert.Equal(t, 3, f.From)
	assert.Equal(t, 10, f.To)
	assert.Equal(t, []float64{0, 0, 0, 3, 3, 3, 3, 3, 3, 3, 0, 0}, f.Values)
	assert.Len(t, f.Valid(), 7)
}

func TestSlidingRMSHoldsValues(t *testing.T) {
	rms := spindle.SlidingRMS{WindowSec: 0.6, HopSec: 0.2}

	x := make([]float64, 12)
	for i := range x {
		x[i] = float64(i)
	}
	f, err := spindle.ExtractFeature(x, 10, rms)
	require.NoError(t, err)

	for _, c := range []int{3, 5, 7} {
		assert.Equal(t, f.Values[c], f.Values[c+1], "value at centre %d is held", c)
		assert.Less(t, f.Values[c], f.Values[c+2])
	}
}

func TestSlidingRMSShortSignal(t *testing.T) {
	f, err := spindle.ExtractFeature([]float64{1, 2, 3}, 10, spindle.SlidingRMS{WindowSec: 0.6, HopSec: 0.2})
	require.NoError(t, err)
	assert.Len(t, f.Values, 3)
	assert.Empty(t, f.Valid())
}

func TestSlidingRMSRejectsLargeHop(t *testing.T) {
	_, err := spindle.ExtractFeature(make([]float64, 100), 10, spindle.SlidingRMS{WindowSec: 0.2, HopSec: 0.1})
	assert.ErrorIs(t, err, spindle.ErrInvalidConfig)
}

type constantTransformer struct {
	coef  complex128
	scale float64
}

func (c *constantTransformer) Transform(x []float64, scale float64) ([]complex128, error) {
	c.scale = scale
	out := make([]complex128, len(x))
	for i := range out {
		out[i] = c.coef
	}
	return out, nil
}

var _ wavelet.Transformer = (*constantTransformer)(nil)

func TestWaveletEnergy(t *testing.T) {
	tr := &constantTransformer{coef: complex(2, 0)}
	energy := spindle.WaveletEnergy{
		CenterHz:        2,
		Bandwidth:       1,
		CenterFrequency: 1.5,
		SmoothingSec:    0.5,
		Transformer:     tr,
	}

	f, err := spindle.ExtractFeature(make([]float64, 10), 10, energy)
	require.NoError(t, err)

	assert.InDelta(t, 7.5, tr.scale, 1e-12)
	assert.Equal(t, 0, f.From)
	assert.Equal(t, 10, f.To)

	// Re(c²)² = 16, smoothed over 5 samples with zeros past the edges.
	want := []float64{9.6, 12.8, 16, 16, 16, 16, 16, 16, 12.8, 9.6}
	assert.InDeltaSlice(t, want, f.Values, 1e-12)
}

func TestWaveletEnergyUsesSquaredRealPart(t *testing.T) {
	// (1+i)² = 2i has no real part.
	tr := &constantTransformer{coef: complex(1, 1)}
	energy := spindle.WaveletEnergy{CenterHz: 2, Bandwidth: 1, CenterFrequency: 1.5, SmoothingSec: 0.1, Transformer: tr}

	f, err := spindle.ExtractFeature(make([]float64, 4), 10, energy)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0}, f.Values)
}

func TestWaveletEnergyMorlet(t *testing.T) {
	const fs = 100.0

	energy := spindle.WaveletEnergy{CenterHz: 13.5, Bandwidth: 1, CenterFrequency: 1.5, SmoothingSec: 0.1}

	inBand, err := spindle.ExtractFeature(sine(1000, 13.5, fs, 10), fs, energy)
	require.NoError(t, err)
	outOfBand, err := spindle.ExtractFeature(sine(1000, 4, fs, 10), fs, energy)
	require.NoError(t, err)

	mean := func(v []float64) float64 {
		s := 0.0
		for _, x := range v[300:700] {
			s += x
		}
		return s / 400
	}
	assert.Greater(t, mean(inBand.Values), 100*mean(outOfBand.Values))
}
