// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"errors"
	"math"
	"testing"

	"github.com/OpenPSG/spindle/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, eegHeader(100, "EEG C3-A2", "EOG Left"))
	require.NoError(t, err)

	// 5 seconds of a 13 Hz tone on the EEG channel, a ramp on the EOG channel.
	eeg := make([]float64, 500)
	eog := make([]float64, 500)
	for i := range eeg {
		eeg[i] = 50 * math.Sin(2*math.Pi*13*float64(i)/100)
		eog[i] = float64(i) / 10
	}
	require.NoError(t, ew.WriteSignals([][]float64{eeg, eog}))
	require.NoError(t, ew.Close())

	er, err := edf.Open(f)
	require.NoError(t, err)

	hdr := er.Header()
	assert.Equal(t, "Patient X", hdr.PatientID)
	assert.Equal(t, "Night 1", hdr.RecordingID)
	assert.Equal(t, 5, hdr.DataRecords)
	assert.Equal(t, 2, hdr.SignalCount)
	assert.Equal(t, 22, hdr.StartTime.Hour())
	assert.Equal(t, "uV", hdr.Signals[0].PhysicalDimension)

	idx, err := er.SignalIndex("eeg c3-a2")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	idx, err = er.SignalIndex("EOG Left")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = er.SignalIndex("EMG Chin")
	assert.True(t, errors.Is(err, edf.ErrSignalNotFound))

	fs, err := er.SampleRate(0)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, fs, 1e-9)

	samples, err := er.ReadAll(0)
	require.NoError(t, err)
	require.Len(t, samples, 500)
	for i := range eeg {
		assert.InDelta(t, eeg[i], samples[i], 0.02)
	}

	samples, err = er.ReadAll(1)
	require.NoError(t, err)
	assert.InDelta(t, 49.9, samples[499], 0.02)
}

func TestReaderSignalOutOfRange(t *testing.T) {
	f := createFile(t)

	ew, err := edf.Create(f, eegHeader(10, "EEG C3-A2"))
	require.NoError(t, err)
	require.NoError(t, ew.Close())

	er, err := edf.Open(f)
	require.NoError(t, err)

	_, err = er.Signal(1)
	assert.Error(t, err)
	_, err = er.SampleRate(-1)
	assert.Error(t, err)

	samples, err := er.ReadAll(0)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
