// Package movement tracks docket movements per case and which of them the
// practitioner has already seen.
package movement

import (
	"encoding/json"
	"fmt"
	"time"
)

// ReadState is either Unread or Read. The only transition is Unread → Read.
type ReadState uint8

const (
	Unread ReadState = iota
	Read
)

// IsRead reports whether the movement was acknowledged.
func (s ReadState) IsRead() bool { return s == Read }

// MarkRead moves s to Read and reports whether it changed.
func (s *ReadState) MarkRead() bool {
	if *s == Read {
		return false
	}
	*s = Read
	return true
}

func (s ReadState) String() string {
	if s == Read {
		return "read"
	}
	return "unread"
}

// MarshalJSON encodes the state as a boolean "read" flag.
func (s ReadState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s == Read)
}

// UnmarshalJSON accepts a boolean.
func (s *ReadState) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("movement: read state: %w", err)
	}
	if b {
		*s = Read
	} else {
		*s = Unread
	}
	return nil
}

// Movement is one docket event reported for a case.
type Movement struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	Code         int       `json:"code"`
	Name         string    `json:"name"`
	Date         time.Time `json:"date"`
	Supplement   string    `json:"supplement,omitempty"` // JSON-encoded complements
	SourceSystem string    `json:"source_system,omitempty"`
	State        ReadState `json:"read"`
	RecordedAt   time.Time `json:"recorded_at"`
}

type compositeKey struct {
	code int
	date int64
}

func (m Movement) composite() compositeKey {
	return compositeKey{code: m.Code, date: m.Date.UnixNano()}
}
