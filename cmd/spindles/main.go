// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package main implements the spindles CLI, which detects sleep spindles in
// one EEG channel of an EDF recording.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"github.com/OpenPSG/spindle"
	"github.com/OpenPSG/spindle/config"
	"github.com/OpenPSG/spindle/edf"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	edfPath       = flag.String("edf", "", "EDF/EDF+ recording to analyse")
	channel       = flag.String("channel", "", "Label of the EEG channel (default: first signal)")
	hypnogramPath = flag.String("hypnogram", "", "Hypnogram with one stage label per epoch")
	epochSec      = flag.Float64("epoch", 30, "Hypnogram epoch length in seconds")
	methodName    = flag.String("method", "martin", "Detection method ("+strings.Join(spindle.MethodNames(), ", ")+")")
	configPath    = flag.String("config", "", "JSON file overriding method parameters")
	outPath       = flag.String("out", "", "Write the EEG channel and the detection mask to this EDF file")
	workers       = flag.Int("workers", 0, "Baseline segments filtered concurrently (default: GOMAXPROCS)")
	verbose       = flag.Bool("verbose", false, "Enable verbose logging")
)

func main() {
	flag.Parse()

	if *edfPath == "" || *hypnogramPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -edf <file> -hypnogram <file> [flags]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	if err := run(logger, os.Stdout); err != nil {
		logger.Error("Detection failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, out io.Writer) error {
	method, err := resolveMethod()
	if err != nil {
		return err
	}

	hdr, eeg, err := loadChannel(*edfPath, *channel)
	if err != nil {
		return err
	}
	logger.Info("loaded recording",
		"file", *edfPath,
		"channel", hdr.Signals[0].Label,
		"samples", humanize.Comma(int64(eeg.Len())),
		"sample_rate", eeg.SampleRate)

	labels, err := loadHypnogram(*hypnogramPath, *epochSec, eeg)
	if err != nil {
		return err
	}

	detector, err := spindle.NewDetector(method, spindle.WithLogger(logger), spindle.WithWorkers(*workers))
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := detector.Detect(eeg, spindle.StageSelector(labels))
	if err != nil {
		return err
	}
	logger.Debug("detection finished", "duration_ms", time.Since(start).Milliseconds())

	printSummary(out, method, eeg, res)

	if *outPath != "" {
		if err := writeResult(*outPath, method.Name, hdr, eeg, res.Vector); err != nil {
			return err
		}
		logger.Info("wrote result", "file", *outPath)
	}
	return nil
}

func resolveMethod() (spindle.Method, error) {
	if *configPath == "" {
		return spindle.LookupMethod(*methodName)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return spindle.Method{}, err
	}
	return cfg.Resolve()
}

// loadChannel reads one signal of an EDF file. The returned header describes
// only that signal.
func loadChannel(path, label string) (edf.Header, spindle.TimeSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return edf.Header{}, spindle.TimeSeries{}, fmt.Errorf("error opening recording: %w", err)
	}
	defer f.Close()

	er, err := edf.Open(f)
	if err != nil {
		return edf.Header{}, spindle.TimeSeries{}, fmt.Errorf("error reading recording header: %w", err)
	}

	idx := 0
	if label != "" {
		if idx, err = er.SignalIndex(label); err != nil {
			return edf.Header{}, spindle.TimeSeries{}, err
		}
	}

	fs, err := er.SampleRate(idx)
	if err != nil {
		return edf.Header{}, spindle.TimeSeries{}, err
	}
	samples, err := er.ReadAll(idx)
	if err != nil {
		return edf.Header{}, spindle.TimeSeries{}, fmt.Errorf("error reading signal: %w", err)
	}

	hdr := er.Header()
	hdr.Signals = []edf.Signal{hdr.Signals[idx]}
	hdr.SignalCount = 1
	return hdr, spindle.TimeSeries{Samples: samples, SampleRate: fs}, nil
}

func loadHypnogram(path string, epochSec float64, eeg spindle.TimeSeries) ([]spindle.Stage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening hypnogram: %w", err)
	}
	defer f.Close()

	epochs, err := spindle.ReadHypnogram(f)
	if err != nil {
		return nil, err
	}
	return spindle.ExpandEpochs(epochs, int(math.Round(epochSec*eeg.SampleRate)), eeg.Len())
}

func printSummary(w io.Writer, method spindle.Method, eeg spindle.TimeSeries, res *spindle.Result) {
	title := color.New(color.FgBlue, color.Bold)
	label := color.New(color.FgHiBlack)
	value := color.New(color.FgGreen)

	minutes := float64(eeg.Len()) / eeg.SampleRate / 60
	density := 0.0
	if minutes > 0 {
		density = float64(len(res.Events)) / minutes
	}

	title.Fprintf(w, "%s\n", method)
	row := func(name, v string) {
		label.Fprintf(w, "  %-20s", name)
		value.Fprintf(w, "%s\n", v)
	}
	row("threshold", fmt.Sprintf("%.4g", res.Threshold))
	row("baseline", fmt.Sprintf("%s samples in %d segments", humanize.Comma(int64(res.BaselineSamples)), res.BaselineSegments))
	if res.ExcludedSegments > 0 {
		color.New(color.FgYellow).Fprintf(w, "  %-20s%s samples in %d segments too short to filter\n",
			"excluded", humanize.Comma(int64(res.ExcludedSamples)), res.ExcludedSegments)
	}
	row("candidates", humanize.Comma(int64(res.Candidates)))
	row("spindles", humanize.Comma(int64(len(res.Events))))
	row("density", fmt.Sprintf("%.2f per minute", density))
	row("detected samples", humanize.Comma(int64(res.Vector.Count())))
}

// writeResult writes the EEG channel and the detection mask as a two-signal
// EDF file with the recording's record layout.
func writeResult(path, methodName string, hdr edf.Header, eeg spindle.TimeSeries, vector spindle.DetectionVector) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error creating result file: %w", err)
	}
	defer f.Close()

	eegSignal := hdr.Signals[0]
	mask := edf.Signal{
		Label:             "Spindles",
		TransducerType:    "Detector " + methodName,
		PhysicalDimension: "bool",
		PhysicalMin:       0,
		PhysicalMax:       1,
		DigitalMin:        0,
		DigitalMax:        1,
		SamplesPerRecord:  eegSignal.SamplesPerRecord,
	}
	hdr.Signals = []edf.Signal{eegSignal, mask}

	ew, err := edf.Create(f, hdr)
	if err != nil {
		return err
	}

	marks := make([]float64, len(vector))
	for i, b := range vector {
		marks[i] = float64(b)
	}
	if err := ew.WriteSignals([][]float64{eeg.Samples, marks}); err != nil {
		return err
	}
	return ew.Close()
}
