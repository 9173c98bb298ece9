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
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	hdr.SignalCount = len(hdr.Signals)

	ew := &Writer{w: w, hdr: &hdr}

	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record to the EDF file.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	var totalSamples int
	for i, signal := range signals {
		if len(signal) != ew.hdr.Signals[i].SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, ew.hdr.Signals[i].SamplesPerRecord, len(signal))
		}
		totalSamples += len(signal)
	}

	// As recommended by the EDF standard.
	if totalSamples*sampleBytes > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max is %d bytes", totalSamples*sampleBytes, maxRecordBytes)
	}

	if _, err := ew.w.Seek(int64(ew.hdr.HeaderBytes)+int64(ew.dataRecords)*int64(totalSamples*sampleBytes), io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to record: %w", err)
	}

	writer := bufio.NewWriter(ew.w)
	buf := make([]byte, sampleBytes)
	for i, signal := range signals {
		sig := ew.hdr.Signals[i]
		for _, sample := range signal {
			digitalValue := convertPhysicalToDigital(sample, sig.PhysicalMin, sig.PhysicalMax, sig.DigitalMin, sig.DigitalMax)
			binary.LittleEndian.PutUint16(buf, uint16(digitalValue))
			if _, err := writer.Write(buf); err != nil {
				return err
			}
		}
	}

	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

// WriteSignals splits whole signals into data records and writes them. Every
// signal must hold the same number of records; a trailing partial record is
// padded with the signal's physical minimum.
func (ew *Writer) WriteSignals(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	records := 0
	for i, signal := range signals {
		per := ew.hdr.Signals[i].SamplesPerRecord
		if per <= 0 {
			return fmt.Errorf("signal %d: invalid samples per record %d", i, per)
		}
		n := (len(signal) + per - 1) / per
		if i > 0 && n != records {
			return fmt.Errorf("signal %d spans %d records, expected %d", i, n, records)
		}
		records = n
	}

	record := make([][]float64, len(signals))
	for r := 0; r < records; r++ {
		for i, signal := range signals {
			per := ew.hdr.Signals[i].SamplesPerRecord
			chunk := make([]float64, per)
			start := r * per
			end := min(start+per, len(signal))
			copy(chunk, signal[start:end])
			for j := end - start; j < per; j++ {
				chunk[j] = ew.hdr.Signals[i].PhysicalMin
			}
			record[i] = chunk
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("error writing record %d: %w", r, err)
		}
	}

	return nil
}

// writeHeader writes the EDF header at the start of the file.
func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	ew.hdr.HeaderBytes = fixedHeaderBytes + (ew.hdr.SignalCount * signalHeaderBytes)

	fields := []string{
		field(string(ew.hdr.Version), 8),
		field(ew.hdr.PatientID, 80),
		field(ew.hdr.RecordingID, 80),
		field(ew.hdr.StartTime.Format("02.01.06"), 8),
		field(ew.hdr.StartTime.Format("15.04.05"), 8),
		field(strconv.Itoa(ew.hdr.HeaderBytes), 8),
		field("", 44), // Reserved
		field(strconv.Itoa(ew.hdr.DataRecords), 8),
		formatNumber(ew.hdr.DataRecordDuration.Seconds(), 8),
		field(strconv.Itoa(ew.hdr.SignalCount), 4),
	}

	columns := []func(s Signal) string{
		func(s Signal) string { return field(s.Label, 16) },
		func(s Signal) string { return field(s.TransducerType, 80) },
		func(s Signal) string { return field(s.PhysicalDimension, 8) },
		func(s Signal) string { return formatNumber(s.PhysicalMin, 8) },
		func(s Signal) string { return formatNumber(s.PhysicalMax, 8) },
		func(s Signal) string { return field(strconv.Itoa(s.DigitalMin), 8) },
		func(s Signal) string { return field(strconv.Itoa(s.DigitalMax), 8) },
		func(s Signal) string { return field(s.Prefiltering, 80) },
		func(s Signal) string { return field(strconv.Itoa(s.SamplesPerRecord), 8) },
		func(Signal) string { return field("", 32) }, // Reserved
	}
	for _, column := range columns {
		for _, sig := range ew.hdr.Signals {
			fields = append(fields, column(sig))
		}
	}

	writer := bufio.NewWriter(ew.w)
	for _, field := range fields {
		if _, err := writer.WriteString(field); err != nil {
			return err
		}
	}

	return writer.Flush()
}

// convertPhysicalToDigital converts a physical value to a digital value using
// the calibration factors, saturating at the digital range.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round(((physical - pmin) * (float64(dmax - dmin)) / (pmax - pmin)) + float64(dmin))
	digital = math.Max(float64(dmin), math.Min(float64(dmax), digital))
	return int16(digital)
}

// field left-justifies v in a header field of width bytes, cutting it if it
// is too long so later fields keep their offsets.
func field(v string, width int) string {
	if len(v) > width {
		v = v[:width]
	}
	return v + strings.Repeat(" ", width-len(v))
}

// formatNumber writes val with as many decimals as fit in width bytes.
func formatNumber(val float64, width int) string {
	s := strconv.FormatFloat(val, 'f', -1, 64)
	for prec := width - 2; len(s) > width && prec >= 0; prec-- {
		s = strconv.FormatFloat(val, 'f', prec, 64)
		if strings.Contains(s, ".") {
			s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
		}
	}
	return field(s, width)
}
