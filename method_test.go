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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodNames(t *testing.T) {
	assert.Equal(t, []string{"martin", "moelle", "wamsley"}, spindle.MethodNames())
}

func TestLookupMethod(t *testing.T) {
	m, err := spindle.LookupMethod(" Martin ")
	require.NoError(t, err)
	assert.Equal(t, "martin", m.Name)
	assert.Equal(t, spindle.InclusiveCount, m.Duration.Convention)
	assert.False(t, m.Merge)
	require.NoError(t, m.Validate())

	m, err = spindle.LookupMethod("wamsley")
	require.NoError(t, err)
	assert.True(t, m.Merge)
	assert.True(t, m.Duration.StrictLower)
	assert.Contains(t, m.String(), "merge within 10 samples")

	m, err = spindle.LookupMethod("moelle")
	require.NoError(t, err)
	assert.Equal(t, spindle.ConventionB, m.Segmenter)
	assert.Equal(t, spindle.StdMultiplier{K: 1.5}, m.Threshold)

	_, err = spindle.LookupMethod("ferrarelli")
	assert.ErrorIs(t, err, spindle.ErrInvalidConfig)
}

func TestMethodValidate(t *testing.T) {
	m, err := spindle.LookupMethod("martin")
	require.NoError(t, err)

	broken := m
	broken.Filter = nil
	assert.ErrorIs(t, broken.Validate(), spindle.ErrInvalidConfig)

	broken = m
	broken.Duration.MaxSec = 0.1
	assert.ErrorIs(t, broken.Validate(), spindle.ErrInvalidConfig)

	broken = m
	broken.Merge = true
	broken.MinGapSamples = -1
	assert.ErrorIs(t, broken.Validate(), spindle.ErrInvalidConfig)

	_, err = spindle.NewDetector(spindle.Method{Name: "empty"})
	assert.ErrorIs(t, err, spindle.ErrInvalidConfig)
}
