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
	"math"
)

const (
	remezGridDensity   = 16
	remezMaxIterations = 40
)

// equirippleOrder estimates the minimax filter order for the given transition
// widths (in cycles per sample) with Herrmann's formula, taking the narrowest
// transition.
func equirippleOrder(transitions []float64, devPass, devStop float64) int {
	d1 := math.Log10(devPass)
	d2 := math.Log10(devStop)

	d := (-4.278e-01 - 5.941e-01*d1 - 2.660e-03*d1*d1) +
		(-4.761e-01+7.114e-02*d1+5.309e-03*d1*d1)*d2
	fk := 11.01217 + 0.51244*(d1-d2)

	l := 0.0
	for _, df := range transitions {
		df = math.Abs(df)
		l = math.Max(l, d/df-fk*df+1)
	}
	return int(math.Ceil(l)) - 1
}

// remezState holds the working arrays of the Remez exchange.
type remezState struct {
	grid    []float64 // Dense frequency grid, cycles per sample
	desired []float64 // Desired response on the grid
	weight  []float64 // Error weight on the grid
	ext     []int     // Extremal grid indices, r+1 of them
	ad      []float64 // Barycentric weights
	x       []float64 // cos(2π grid[ext])
	y       []float64 // Interpolated response at the extremals
	err     []float64 // Weighted error on the grid
}

// remez designs an odd-length, even-symmetric (type I) FIR filter with the
// Parks-McClellan algorithm. bands holds edge pairs in cycles per sample. The
// second return value is false if the exchange did not converge within the
// iteration limit; the taps are still returned.
func remez(numtaps int, bands, desired, weight []float64) ([]float64, bool) {
	r := numtaps/2 + 1
	delf := 0.5 / float64(remezGridDensity*r)

	s := &remezState{}
	for b := range desired {
		lowf, highf := bands[2*b], bands[2*b+1]
		k := max(int((highf-lowf)/delf+0.5), 1)
		for i := 0; i < k; i++ {
			s.grid = append(s.grid, lowf)
			s.desired = append(s.desired, desired[b])
			s.weight = append(s.weight, weight[b])
			lowf += delf
		}
		s.grid[len(s.grid)-1] = highf
	}

	gridsize := len(s.grid)
	s.ext = make([]int, r+1)
	for i := range s.ext {
		s.ext[i] = i * (gridsize - 1) / r
	}
	s.ad = make([]float64, r+1)
	s.x = make([]float64, r+1)
	s.y = make([]float64, r+1)
	s.err = make([]float64, gridsize)

	converged := false
	for iter := 0; iter < remezMaxIterations; iter++ {
		s.calcParms()
		s.calcError()
		if !s.search() {
			break
		}
		if s.isDone() {
			converged = true
			break
		}
	}
	s.calcParms()

	amp := make([]float64, numtaps/2+1)
	for i := range amp {
		amp[i] = s.computeA(float64(i) / float64(numtaps))
	}
	return freqSample(numtaps, amp), converged
}

func (s *remezState) calcParms() {
	r := len(s.ext) - 1
	for i := 0; i <= r; i++ {
		s.x[i] = math.Cos(2 * math.Pi * s.grid[s.ext[i]])
	}

	// Interleaving the product keeps it in range for long filters.
	ld := (r-1)/15 + 1
	for i := 0; i <= r; i++ {
		denom := 1.0
		xi := s.x[i]
		for j := 0; j < ld; j++ {
			for k := j; k <= r; k += ld {
				if k != i {
					denom *= 2.0 * (xi - s.x[k])
				}
			}
		}
		if math.Abs(denom) < 0.00001 {
			denom = 0.00001
		}
		s.ad[i] = 1.0 / denom
	}

	numer, denom := 0.0, 0.0
	sign := 1.0
	for i := 0; i <= r; i++ {
		numer += s.ad[i] * s.desired[s.ext[i]]
		denom += sign * s.ad[i] / s.weight[s.ext[i]]
		sign = -sign
	}
	delta := numer / denom

	sign = 1.0
	for i := 0; i <= r; i++ {
		s.y[i] = s.desired[s.ext[i]] - sign*delta/s.weight[s.ext[i]]
		sign = -sign
	}
}

// computeA evaluates the amplitude response at freq by barycentric Lagrange
// interpolation through the extremals.
func (s *remezState) computeA(freq float64) float64 {
	numer, denom := 0.0, 0.0
	xc := math.Cos(2 * math.Pi * freq)
	for i := range s.x {
		c := xc - s.x[i]
		if math.Abs(c) < 1.0e-7 {
			return s.y[i]
		}
		c = s.ad[i] / c
		denom += c
		numer += c * s.y[i]
	}
	return numer / denom
}

func (s *remezState) calcError() {
	for i, f := range s.grid {
		s.err[i] = s.weight[i] * (s.desired[i] - s.computeA(f))
	}
}

// search moves the extremals to the local maxima of the error. It reports
// false if fewer than r+1 extrema were found.
func (s *remezState) search() bool {
	e := s.err
	last := len(e) - 1
	found := make([]int, 0, len(e))

	if (e[0] > 0 && e[0] > e[1]) || (e[0] < 0 && e[0] < e[1]) {
		found = append(found, 0)
	}
	for i := 1; i < last; i++ {
		if (e[i] >= e[i-1] && e[i] > e[i+1] && e[i] > 0) ||
			(e[i] <= e[i-1] && e[i] < e[i+1] && e[i] < 0) {
			found = append(found, i)
		}
	}
	if (e[last] > 0 && e[last] > e[last-1]) || (e[last] < 0 && e[last] < e[last-1]) {
		found = append(found, last)
	}

	want := len(s.ext)
	for extra := len(found) - want; extra > 0; extra-- {
		up := e[found[0]] > 0
		l := 0
		alternating := true
		for j := 1; j < len(found); j++ {
			if math.Abs(e[found[j]]) < math.Abs(e[found[l]]) {
				l = j
			}
			if up && e[found[j]] < 0 {
				up = false
			} else if !up && e[found[j]] > 0 {
				up = true
			} else {
				alternating = false
				break
			}
		}
		if alternating && extra == 1 {
			if math.Abs(e[found[len(found)-1]]) < math.Abs(e[found[0]]) {
				l = len(found) - 1
			} else {
				l = 0
			}
		}
		found = append(found[:l], found[l+1:]...)
	}

	if len(found) < want {
		return false
	}
	copy(s.ext, found)
	return true
}

func (s *remezState) isDone() bool {
	lo := math.Abs(s.err[s.ext[0]])
	hi := lo
	for _, i := range s.ext {
		v := math.Abs(s.err[i])
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return (hi-lo)/hi < 0.0001
}

// freqSample converts amplitude samples at k/n cycles per sample into the
// impulse response of an odd-length symmetric filter.
func freqSample(n int, amp []float64) []float64 {
	m := (n - 1) / 2
	h := make([]float64, n)
	for i := range h {
		x := 2 * math.Pi * float64(i-m) / float64(n)
		val := amp[0]
		for k := 1; k <= m; k++ {
			val += 2.0 * amp[k] * math.Cos(x*float64(k))
		}
		h[i] = val / float64(n)
	}
	return h
}
