// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrSignalNotFound is returned when no signal carries the requested label.
var ErrSignalNotFound = errors.New("signal not found")

// signalField is one column of the per-signal header block. Every column is
// stored for all signals before the next column starts.
type signalField struct {
	width int
	set   func(s *Signal, v string)
}

var signalFields = []signalField{
	{16, func(s *Signal, v string) { s.Label = v }},
	{80, func(s *Signal, v string) { s.TransducerType = v }},
	{8, func(s *Signal, v string) { s.PhysicalDimension = v }},
	{8, func(s *Signal, v string) { s.PhysicalMin = parseFloat(v) }},
	{8, func(s *Signal, v string) { s.PhysicalMax = parseFloat(v) }},
	{8, func(s *Signal, v string) { s.DigitalMin = parseInt(v) }},
	{8, func(s *Signal, v string) { s.DigitalMax = parseInt(v) }},
	{80, func(s *Signal, v string) { s.Prefiltering = v }},
	{8, func(s *Signal, v string) { s.SamplesPerRecord = parseInt(v) }},
	{32, func(s *Signal, v string) { s.Reserved = v }},
}

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}
	reader := bufio.NewReader(r)

	b := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	hdr, err := parseFixedHeader(b)
	if err != nil {
		return nil, err
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)
	for _, field := range signalFields {
		buf := make([]byte, field.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, buf); err != nil {
				return nil, fmt.Errorf("error reading signal headers: %w", err)
			}
			field.set(&hdr.Signals[i], strings.TrimSpace(string(buf)))
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

func parseFixedHeader(b []byte) (*Header, error) {
	hdr := &Header{}
	hdr.Version = Version(strings.TrimSpace(string(b[0:8])))
	hdr.PatientID = strings.TrimSpace(string(b[8:88]))
	hdr.RecordingID = strings.TrimSpace(string(b[88:168]))

	startDate, err := time.Parse("02.01.06", strings.TrimSpace(string(b[168:176])))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", strings.TrimSpace(string(b[176:184])))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = strconv.Atoi(strings.TrimSpace(string(b[184:192]))); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = strconv.Atoi(strings.TrimSpace(string(b[236:244]))); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	hdr.DataRecordDuration, err = time.ParseDuration(fmt.Sprintf("%ss", strings.TrimSpace(string(b[244:252]))))
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	if hdr.SignalCount, err = strconv.Atoi(strings.TrimSpace(string(b[252:256]))); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	return hdr, nil
}

// Header returns a copy of the parsed file header.
func (er *Reader) Header() Header {
	hdr := *er.hdr
	hdr.Signals = append([]Signal(nil), er.hdr.Signals...)
	return hdr
}

// SignalIndex returns the index of the first signal with the given label.
// Labels are compared case-insensitively after trimming.
func (er *Reader) SignalIndex(label string) (int, error) {
	want := strings.TrimSpace(label)
	for i, sig := range er.hdr.Signals {
		if strings.EqualFold(sig.Label, want) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrSignalNotFound, label)
}

// SampleRate returns the sampling rate of the signal at the given index in Hz.
func (er *Reader) SampleRate(signalIndex int) (float64, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return 0, fmt.Errorf("signal index out of range")
	}
	return er.hdr.Signals[signalIndex].SampleRate(er.hdr.DataRecordDuration), nil
}

// ReadAll reads every sample of the signal at the given index.
func (er *Reader) ReadAll(signalIndex int) ([]float64, error) {
	sr, err := er.Signal(signalIndex)
	if err != nil {
		return nil, err
	}

	total := sr.samplesPerRecord * max(er.hdr.DataRecords, 0)
	samples := make([]float64, total)
	n, err := sr.Read(samples)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return samples[:n], nil
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	hdr              *Header
	signal           Signal
	currentRecord    int    // Current record being processed
	currentSample    int    // Current sample in the record
	recordSize       int    // Total size of one data record
	signalOffset     int    // Byte offset of the signal in a record
	samplesPerRecord int    // Number of samples per record for the signal
	block            []byte // Raw samples of the current record
	blockRecord      int    // Record held in block, -1 if none
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	signalOffset := 0
	for _, sig := range er.hdr.Signals[:signalIndex] {
		signalOffset += sig.SamplesPerRecord * sampleBytes
	}

	signal := er.hdr.Signals[signalIndex]
	return &SignalReader{
		r:                er.r,
		hdr:              er.hdr,
		signal:           signal,
		recordSize:       er.hdr.recordBytes(),
		signalOffset:     signalOffset,
		samplesPerRecord: signal.SamplesPerRecord,
		block:            make([]byte, signal.SamplesPerRecord*sampleBytes),
		blockRecord:      -1,
	}, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords || sr.samplesPerRecord == 0 {
			return n, io.EOF // End of data records
		}

		if sr.blockRecord != sr.currentRecord {
			if err := sr.loadRecord(sr.currentRecord); err != nil {
				return n, err
			}
		}

		for sr.currentSample < sr.samplesPerRecord && n < len(data) {
			off := sr.currentSample * sampleBytes
			digitalValue := int16(binary.LittleEndian.Uint16(sr.block[off : off+sampleBytes]))
			data[n] = convertDigitalToPhysical(digitalValue, sr.signal.DigitalMin, sr.signal.DigitalMax, sr.signal.PhysicalMin, sr.signal.PhysicalMax)
			n++
			sr.currentSample++
		}

		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

func (sr *SignalReader) loadRecord(record int) error {
	pos := int64(sr.hdr.HeaderBytes) + int64(record)*int64(sr.recordSize) + int64(sr.signalOffset)
	if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}
	if _, err := io.ReadFull(sr.r, sr.block); err != nil {
		return fmt.Errorf("error reading sample data: %w", err)
	}
	sr.blockRecord = record
	return nil
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0.0
	}
	return f
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}
