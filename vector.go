// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle

// BuildVector renders events into a detection vector of length n. Parts of an
// event outside [0, n) are ignored.
func BuildVector(events []Event, n int) DetectionVector {
	v := make(DetectionVector, n)
	for _, e := range events {
		for i := max(e.Start, 0); i <= e.End && i < n; i++ {
			v[i] = 1
		}
	}
	return v
}
