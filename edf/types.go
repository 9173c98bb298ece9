// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes the EDF/EDF+ recordings that carry full-night
// polysomnography signals.
package edf

import (
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

const (
	fixedHeaderBytes  = 256
	signalHeaderBytes = 256
	sampleBytes       = 2
	maxRecordBytes    = 61440
)

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record in seconds
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG C3-A2)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SampleRate returns the sampling rate of the signal in Hz for records of the
// given duration.
func (s Signal) SampleRate(recordDuration time.Duration) float64 {
	if recordDuration <= 0 {
		return 0
	}
	return float64(s.SamplesPerRecord) / recordDuration.Seconds()
}

// recordBytes is the size of one data record across all signals.
func (h *Header) recordBytes() int {
	total := 0
	for _, sig := range h.Signals {
		total += sig.SamplesPerRecord * sampleBytes
	}
	return total
}
