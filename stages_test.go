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
	"strings"
	"testing"

	"github.com/OpenPSG/spindle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStage(t *testing.T) {
	tests := map[string]spindle.Stage{
		"W":    spindle.Wake,
		"wake": spindle.Wake,
		"0":    spindle.Wake,
		"R":    spindle.REM,
		"5":    spindle.REM,
		"S1":   spindle.N1,
		"N2":   spindle.N2,
		" 3 ":  spindle.N3,
		"s4":   spindle.N4,
	}

	for label, want := range tests {
		got, err := spindle.ParseStage(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}

	_, err := spindle.ParseStage("MT")
	assert.Error(t, err)
}

func TestStageIsBaseline(t *testing.T) {
	assert.False(t, spindle.Wake.IsBaseline())
	assert.False(t, spindle.REM.IsBaseline())
	assert.False(t, spindle.N1.IsBaseline())
	assert.True(t, spindle.N2.IsBaseline())
	assert.True(t, spindle.N3.IsBaseline())
	assert.True(t, spindle.N4.IsBaseline())

	assert.Equal(t, "N2", spindle.N2.String())
	assert.Equal(t, "Stage(9)", spindle.Stage(9).String())
}

func TestReadHypnogram(t *testing.T) {
	r := strings.NewReader("# scored by hand\nW\n\nN1\nN2\nS3\nR\n")

	stages, err := spindle.ReadHypnogram(r)
	require.NoError(t, err)
	assert.Equal(t, []spindle.Stage{spindle.Wake, spindle.N1, spindle.N2, spindle.N3, spindle.REM}, stages)

	_, err = spindle.ReadHypnogram(strings.NewReader("W\nN2\n?\n"))
	assert.ErrorContains(t, err, "line 3")
}

func TestExpandEpochs(t *testing.T) {
	labels, err := spindle.ExpandEpochs([]spindle.Stage{spindle.N2, spindle.REM}, 3, 8)
	require.NoError(t, err)
	assert.Equal(t, []spindle.Stage{
		spindle.N2, spindle.N2, spindle.N2,
		spindle.REM, spindle.REM, spindle.REM,
		spindle.Wake, spindle.Wake,
	}, labels)

	_, err = spindle.ExpandEpochs(nil, 0, 8)
	assert.ErrorIs(t, err, spindle.ErrInvalidConfig)
}
