package models

import "time"

// Counter is a named, user-owned running total.
//
// Value always equals the initial value plus the sum of every record step.
// Sequence orders an owner's counters for display; higher comes first.
type Counter struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Value     int64     `json:"value"`
	Step      int64     `json:"step"`
	InputStep bool      `json:"input_step"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CounterRecord is an append-only history entry. End - Begin == Step, and
// Begin is the counter value right before the record was written.
type CounterRecord struct {
	ID        int64     `json:"id"`
	CounterID int64     `json:"counter_id"`
	Step      int64     `json:"step"`
	Begin     int64     `json:"begin"`
	End       int64     `json:"end"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CounterExport points at an uploaded snapshot of an owner's counters.
type CounterExport struct {
	Key string `json:"key"`
	URL string `json:"url"`
}
