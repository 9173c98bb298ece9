// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package config loads JSON overrides for the built-in detection methods.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OpenPSG/spindle"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// MethodConfig selects a built-in method and overrides some of its
// parameters. Fields left out keep the method's published values.
type MethodConfig struct {
	Method string `json:"method"`

	// Filter (windowed FIR methods only)
	FilterOrder *int     `json:"filter_order,omitempty"`
	LowHz       *float64 `json:"low_hz,omitempty"`
	HighHz      *float64 `json:"high_hz,omitempty"`

	// Feature
	WindowSec    *float64 `json:"window_sec,omitempty"`    // RMS window
	HopSec       *float64 `json:"hop_sec,omitempty"`       // Sliding RMS hop
	CenterHz     *float64 `json:"center_hz,omitempty"`     // Wavelet target frequency
	SmoothingSec *float64 `json:"smoothing_sec,omitempty"` // Wavelet energy moving average

	// Threshold
	Percentile *float64 `json:"percentile,omitempty"` // Rank selector for PercentileOfRMS
	K          *float64 `json:"k,omitempty"`          // Multiplier for SD or mean energy

	// Events
	MinDurSec     *float64 `json:"min_dur_sec,omitempty"`
	MaxDurSec     *float64 `json:"max_dur_sec,omitempty"`
	MinGapSamples *int     `json:"min_gap_samples,omitempty"`
}

// Load reads a MethodConfig from a JSON file. The file must have a .json
// extension and be smaller than 1MB.
func Load(path string) (*MethodConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a MethodConfig. Unknown fields are rejected.
func Parse(data []byte) (*MethodConfig, error) {
	cfg := &MethodConfig{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every override applies to the selected method.
func (c *MethodConfig) Validate() error {
	_, err := c.Resolve()
	return err
}

// Resolve returns the built-in method with the overrides applied.
func (c *MethodConfig) Resolve() (spindle.Method, error) {
	m, err := spindle.LookupMethod(c.Method)
	if err != nil {
		return spindle.Method{}, err
	}

	if err := c.applyFilter(&m); err != nil {
		return spindle.Method{}, err
	}
	if err := c.applyFeature(&m); err != nil {
		return spindle.Method{}, err
	}
	if err := c.applyThreshold(&m); err != nil {
		return spindle.Method{}, err
	}

	if c.MinDurSec != nil {
		m.Duration.MinSec = *c.MinDurSec
	}
	if c.MaxDurSec != nil {
		m.Duration.MaxSec = *c.MaxDurSec
	}
	if c.MinGapSamples != nil {
		if !m.Merge {
			return spindle.Method{}, notApplicable("min_gap_samples", m)
		}
		m.MinGapSamples = *c.MinGapSamples
	}

	if err := m.Validate(); err != nil {
		return spindle.Method{}, err
	}
	return m, nil
}

func (c *MethodConfig) applyFilter(m *spindle.Method) error {
	if c.FilterOrder == nil && c.LowHz == nil && c.HighHz == nil {
		return nil
	}
	f, ok := m.Filter.(spindle.WindowedFIR)
	if !ok {
		return notApplicable("filter_order/low_hz/high_hz", *m)
	}
	if c.FilterOrder != nil {
		f.Order = *c.FilterOrder
	}
	if c.LowHz != nil {
		f.LowHz = *c.LowHz
	}
	if c.HighHz != nil {
		f.HighHz = *c.HighHz
	}
	if f.Order < 1 || f.LowHz <= 0 || f.HighHz <= f.LowHz {
		return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, f)
	}
	m.Filter = f
	return nil
}

func (c *MethodConfig) applyFeature(m *spindle.Method) error {
	switch f := m.Feature.(type) {
	case spindle.FixedRMS:
		if c.HopSec != nil || c.CenterHz != nil || c.SmoothingSec != nil {
			return notApplicable("hop_sec/center_hz/smoothing_sec", *m)
		}
		if c.WindowSec != nil {
			f.WindowSec = *c.WindowSec
		}
		if f.WindowSec <= 0 {
			return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, f)
		}
		m.Feature = f
	case spindle.SlidingRMS:
		if c.CenterHz != nil || c.SmoothingSec != nil {
			return notApplicable("center_hz/smoothing_sec", *m)
		}
		if c.WindowSec != nil {
			f.WindowSec = *c.WindowSec
		}
		if c.HopSec != nil {
			f.HopSec = *c.HopSec
		}
		if f.WindowSec <= 0 || f.HopSec <= 0 || 2*f.HopSec >= f.WindowSec {
			return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, f)
		}
		m.Feature = f
	case spindle.WaveletEnergy:
		if c.WindowSec != nil || c.HopSec != nil {
			return notApplicable("window_sec/hop_sec", *m)
		}
		if c.CenterHz != nil {
			f.CenterHz = *c.CenterHz
		}
		if c.SmoothingSec != nil {
			f.SmoothingSec = *c.SmoothingSec
		}
		if f.CenterHz <= 0 || f.SmoothingSec <= 0 {
			return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, f)
		}
		m.Feature = f
	}
	return nil
}

func (c *MethodConfig) applyThreshold(m *spindle.Method) error {
	switch p := m.Threshold.(type) {
	case spindle.PercentileOfRMS:
		if c.K != nil {
			return notApplicable("k", *m)
		}
		if c.Percentile != nil {
			p.Percentile = *c.Percentile
		}
		if p.Percentile < 0 || p.Percentile > 100 {
			return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, p)
		}
		m.Threshold = p
	case spindle.StdMultiplier:
		if c.Percentile != nil {
			return notApplicable("percentile", *m)
		}
		if c.K != nil {
			p.K = *c.K
		}
		if p.K <= 0 {
			return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, p)
		}
		m.Threshold = p
	case spindle.MeanEnergyMultiplier:
		if c.Percentile != nil {
			return notApplicable("percentile", *m)
		}
		if c.K != nil {
			p.K = *c.K
		}
		if p.K <= 0 {
			return fmt.Errorf("%w: %s", spindle.ErrInvalidConfig, p)
		}
		m.Threshold = p
	}
	return nil
}

func notApplicable(fields string, m spindle.Method) error {
	return fmt.Errorf("%w: %s not applicable to method %q", spindle.ErrInvalidConfig, fields, m.Name)
}
