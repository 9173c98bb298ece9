// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle

import "fmt"

// DurationConvention selects how an event's length in samples is counted.
type DurationConvention int

const (
	// InclusiveCount counts samples: end - start + 1.
	InclusiveCount DurationConvention = iota
	// IntervalCount counts sample intervals: end - start.
	IntervalCount
)

func (c DurationConvention) String() string {
	switch c {
	case InclusiveCount:
		return "inclusive"
	case IntervalCount:
		return "interval"
	}
	return fmt.Sprintf("DurationConvention(%d)", int(c))
}

// Duration returns the length of e in samples under the convention.
func (c DurationConvention) Duration(e Event) int {
	if c == IntervalCount {
		return e.End - e.Start
	}
	return e.End - e.Start + 1
}

// DurationRule bounds accepted event durations.
type DurationRule struct {
	MinSec      float64            // Shortest accepted duration
	MaxSec      float64            // Longest accepted duration
	Convention  DurationConvention // How durations are counted
	StrictLower bool               // Require duration > MinSec*fs instead of >=
}

// Accepts reports whether e passes the rule at sampling rate fs. The upper
// bound is always inclusive.
func (r DurationRule) Accepts(e Event, fs float64) bool {
	d := float64(r.Convention.Duration(e))
	lower := r.MinSec * fs
	if r.StrictLower {
		if d <= lower {
			return false
		}
	} else if d < lower {
		return false
	}
	return d <= r.MaxSec*fs
}

// FilterByDuration returns the events accepted by rule, in order. Rejected
// events are dropped, never clipped.
func FilterByDuration(events []Event, rule DurationRule, fs float64) []Event {
	kept := make([]Event, 0, len(events))
	for _, e := range events {
		if rule.Accepts(e, fs) {
			kept = append(kept, e)
		}
	}
	return kept
}
