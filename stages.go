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
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Stage is a sleep stage label.
type Stage int

const (
	Wake Stage = iota
	REM
	N1
	N2
	N3
	N4
)

var stageNames = [...]string{"Wake", "REM", "N1", "N2", "N3", "N4"}

func (s Stage) String() string {
	if s < Wake || s > N4 {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// IsBaseline reports whether the stage belongs to the non-REM set used to
// calibrate thresholds (N2, N3, N4).
func (s Stage) IsBaseline() bool {
	return s == N2 || s == N3 || s == N4
}

// ParseStage parses a stage label. Both R&K style (W, R, S1-S4, 0-5) and AASM
// style (Wake, REM, N1-N4) spellings are accepted.
func ParseStage(label string) (Stage, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "W", "WAKE", "0":
		return Wake, nil
	case "R", "REM", "5":
		return REM, nil
	case "N1", "S1", "1":
		return N1, nil
	case "N2", "S2", "2":
		return N2, nil
	case "N3", "S3", "3":
		return N3, nil
	case "N4", "S4", "4":
		return N4, nil
	}
	return 0, fmt.Errorf("unknown sleep stage %q", label)
}

// ReadHypnogram reads one stage label per line. Blank lines and lines
// starting with '#' are skipped.
func ReadHypnogram(r io.Reader) ([]Stage, error) {
	var stages []Stage

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		stage, err := ParseStage(text)
		if err != nil {
			return nil, fmt.Errorf("error parsing hypnogram line %d: %w", line, err)
		}
		stages = append(stages, stage)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading hypnogram: %w", err)
	}

	return stages, nil
}

// ExpandEpochs expands per-epoch labels into a per-sample label stream of
// length n. Samples past the last scored epoch are labelled Wake so they never
// join the baseline.
func ExpandEpochs(epochs []Stage, epochSamples, n int) ([]Stage, error) {
	if epochSamples <= 0 {
		return nil, fmt.Errorf("%w: epoch length %d samples", ErrInvalidConfig, epochSamples)
	}

	labels := make([]Stage, n)
	for i := range labels {
		epoch := i / epochSamples
		if epoch < len(epochs) {
			labels[i] = epochs[epoch]
		} else {
			labels[i] = Wake
		}
	}
	return labels, nil
}
