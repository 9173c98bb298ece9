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
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSegment(t *testing.T) {
	tests := []struct {
		name       string
		mask       []uint8
		convention spindle.SegmentConvention
		want       []spindle.Event
	}{
		{
			name: "interior runs",
			mask: []uint8{0, 0, 1, 1, 1, 0, 0, 1, 0},
			want: []spindle.Event{{Start: 2, End: 4}, {Start: 7, End: 7}},
		},
		{
			name: "all zero",
			mask: []uint8{0, 0, 0, 0},
			want: []spindle.Event{},
		},
		{
			name: "all one",
			mask: []uint8{1, 1, 1, 1, 1},
			want: []spindle.Event{{Start: 0, End: 4}},
		},
		{
			name: "single sample",
			mask: []uint8{1},
			want: []spindle.Event{{Start: 0, End: 0}},
		},
		{
			name: "runs touching both ends",
			mask: []uint8{1, 1, 0, 1, 0, 0, 1, 1},
			want: []spindle.Event{{Start: 0, End: 1}, {Start: 3, End: 3}, {Start: 6, End: 7}},
		},
		{
			name:       "leading run moves second start",
			mask:       []uint8{1, 1, 0, 0, 1, 1, 0, 1},
			convention: spindle.ConventionB,
			want:       []spindle.Event{{Start: 0, End: 1}, {Start: 3, End: 5}, {Start: 7, End: 7}},
		},
		{
			name:       "no leading run",
			mask:       []uint8{0, 1, 1, 0, 1},
			convention: spindle.ConventionB,
			want:       []spindle.Event{{Start: 1, End: 2}, {Start: 4, End: 4}},
		},
		{
			name:       "single leading run",
			mask:       []uint8{1, 1, 1, 0},
			convention: spindle.ConventionB,
			want:       []spindle.Event{{Start: 0, End: 2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := spindle.Segment(tt.mask, tt.convention)
			require.NoError(t, err)
			require.NotNil(t, events)

			if diff := cmp.Diff(tt.want, events); diff != "" {
				t.Errorf("Segment() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSegmentMalformedMask(t *testing.T) {
	_, err := spindle.Segment(nil, spindle.ConventionA)
	assert.ErrorIs(t, err, spindle.ErrMalformedMask)

	_, err = spindle.Segment([]uint8{0, 1, 2}, spindle.ConventionA)
	assert.ErrorIs(t, err, spindle.ErrMalformedMask)
}

func TestSegmentRoundTrip(t *testing.T) {
	masks := [][]uint8{
		{0, 1, 1, 0, 0, 1, 1, 1, 0, 1},
		{1, 0, 1, 0, 1, 0, 1},
		{1, 1, 1, 1},
		{0, 0, 0},
	}

	for _, mask := range masks {
		events, err := spindle.Segment(mask, spindle.ConventionA)
		require.NoError(t, err)

		v := spindle.BuildVector(events, len(mask))
		assert.Equal(t, spindle.DetectionVector(mask), v)

		for i := 1; i < len(events); i++ {
			assert.Greater(t, events[i].Start, events[i-1].End+1, "events must be separated by an off sample")
		}
	}
}

func TestThreshold(t *testing.T) {
	f := spindle.Feature{
		Values: []float64{9, 9, 1, 5, 6, 5, 9, 9},
		From:   2,
		To:     6,
	}

	mask := spindle.Threshold(f, 5)
	assert.Equal(t, []uint8{0, 0, 0, 0, 1, 0, 0, 0}, mask)
}
