// Package models defines the domain types for tribuna.
package models

import (
	"fmt"
	"time"
)

// Frequency is how often a monitored case is checked against Datajud.
type Frequency string

const (
	FrequencyHourly Frequency = "hourly"
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Frequencies lists every accepted Frequency.
var Frequencies = []any{FrequencyHourly, FrequencyDaily, FrequencyWeekly}

// Interval returns the wait between two checks.
func (f Frequency) Interval() (time.Duration, error) {
	switch f {
	case FrequencyHourly:
		return time.Hour, nil
	case FrequencyDaily:
		return 24 * time.Hour, nil
	case FrequencyWeekly:
		return 7 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown frequency %q", f)
}

// Case is a tracked lawsuit identified by its normalized CNJ number.
type Case struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	Title     string     `json:"title,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Monitor   Monitoring `json:"monitoring"`
}

// Monitoring is the per-case Datajud polling state. TotalSeen never decreases.
type Monitoring struct {
	Enabled         bool       `json:"monitoring_enabled"`
	Frequency       Frequency  `json:"check_frequency,omitempty"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	TotalSeen       int        `json:"total_movements_seen"`
	PayloadChecksum string     `json:"-"`
}

// Due reports whether a check is owed at now.
func (m Monitoring) Due(now time.Time) bool {
	if !m.Enabled {
		return false
	}
	if m.LastCheckedAt == nil {
		return true
	}
	iv, err := m.Frequency.Interval()
	if err != nil {
		iv = 24 * time.Hour
	}
	return !m.LastCheckedAt.Add(iv).After(now)
}
