// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package spindle

import "errors"

var (
	// ErrInsufficientDataForFilter is returned when a signal is too short for
	// the edge transient of zero-phase filtering (3 x filter order samples).
	ErrInsufficientDataForFilter = errors.New("insufficient data for filter")
	// ErrMalformedMask is returned for an empty mask or one holding values
	// other than 0 and 1.
	ErrMalformedMask = errors.New("malformed mask")
	// ErrEmptyBaseline is returned when no baseline samples remain to compute
	// a threshold from.
	ErrEmptyBaseline = errors.New("empty baseline")
	// ErrInvalidConfig is returned for rejected method or filter parameters.
	ErrInvalidConfig = errors.New("invalid configuration")
)
