// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"bytes"
	"flag"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/spindle/edf"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fs = 100

func writeRecording(t *testing.T, dir string) string {
	t.Helper()

	rng := rand.New(rand.NewPCG(3, 4))
	eeg := make([]float64, 120*fs)
	for i := range eeg {
		eeg[i] = 2 * rng.NormFloat64()
	}
	for _, start := range []int{7000, 9500} {
		for i := 0; i < fs; i++ {
			env := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/fs)
			eeg[start+i] += 6 * env * math.Sin(2*math.Pi*13*float64(i)/fs)
		}
	}

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "Patient X",
		RecordingID:        "Night 1",
		StartTime:          time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
	}
	for _, label := range []string{"EOG Left", "EEG C3-A2"} {
		hdr.Signals = append(hdr.Signals, edf.Signal{
			Label:             label,
			TransducerType:    "AgAgCl electrode",
			PhysicalDimension: "uV",
			PhysicalMin:       -500,
			PhysicalMax:       500,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  fs,
		})
	}

	path := filepath.Join(dir, "night.edf")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	ew, err := edf.Create(f, hdr)
	require.NoError(t, err)
	require.NoError(t, ew.WriteSignals([][]float64{make([]float64, len(eeg)), eeg}))
	require.NoError(t, ew.Close())

	return path
}

func setFlags(t *testing.T, values map[string]string) {
	t.Helper()

	for name, value := range values {
		require.NoError(t, flag.Set(name, value))
	}
	t.Cleanup(func() {
		for name := range values {
			_ = flag.Set(name, flag.Lookup(name).DefValue)
		}
	})
}

func TestRun(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()

	hypnogram := filepath.Join(dir, "night.txt")
	require.NoError(t, os.WriteFile(hypnogram, []byte("N2\nS2\nW\nREM\n"), 0o644))

	out := filepath.Join(dir, "result.edf")
	setFlags(t, map[string]string{
		"edf":       writeRecording(t, dir),
		"channel":   "eeg c3-a2",
		"hypnogram": hypnogram,
		"method":    "martin",
		"out":       out,
	})

	var buf bytes.Buffer
	require.NoError(t, run(slog.New(slog.DiscardHandler), &buf))

	summary := buf.String()
	assert.True(t, strings.HasPrefix(summary, "martin: "), summary)
	assert.Contains(t, summary, "6,000 samples in 1 segments")
	assert.Contains(t, summary, "spindles")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	er, err := edf.Open(f)
	require.NoError(t, err)

	hdr := er.Header()
	require.Len(t, hdr.Signals, 2)
	assert.Equal(t, "EEG C3-A2", hdr.Signals[0].Label)
	assert.Equal(t, "Spindles", hdr.Signals[1].Label)

	idx, err := er.SignalIndex("Spindles")
	require.NoError(t, err)
	mask, err := er.ReadAll(idx)
	require.NoError(t, err)
	require.Len(t, mask, 120*fs)

	detected := 0
	for _, v := range mask {
		assert.True(t, v == 0 || v == 1, "mask value %g", v)
		if v == 1 {
			detected++
		}
	}
	assert.Positive(t, detected)
}

func TestRunWithConfig(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()

	hypnogram := filepath.Join(dir, "night.txt")
	require.NoError(t, os.WriteFile(hypnogram, []byte("N2\nN2\nN3\nW\n"), 0o644))

	cfgPath := filepath.Join(dir, "wamsley.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"method": "wamsley", "k": 5}`), 0o644))

	setFlags(t, map[string]string{
		"edf":       writeRecording(t, dir),
		"channel":   "EEG C3-A2",
		"hypnogram": hypnogram,
		"config":    cfgPath,
	})

	var buf bytes.Buffer
	require.NoError(t, run(slog.New(slog.DiscardHandler), &buf))
	assert.Contains(t, buf.String(), "5 x mean baseline energy")
}

func TestRunUnknownChannel(t *testing.T) {
	dir := t.TempDir()

	hypnogram := filepath.Join(dir, "night.txt")
	require.NoError(t, os.WriteFile(hypnogram, []byte("N2\n"), 0o644))

	setFlags(t, map[string]string{
		"edf":       writeRecording(t, dir),
		"channel":   "EEG O1-A2",
		"hypnogram": hypnogram,
	})

	err := run(slog.New(slog.DiscardHandler), &bytes.Buffer{})
	assert.ErrorIs(t, err, edf.ErrSignalNotFound)
}
