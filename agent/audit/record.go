package audit

import (
	"time"
)

// EventType identifies what an audit record describes.
type EventType string

const (
	EventRunStart          EventType = "run_start"
	EventRunEnd            EventType = "run_end"
	EventValidationBlocked EventType = "validation_blocked"
	EventAdmissionDenied   EventType = "admission_denied"
	EventError             EventType = "error"
)

// Status is the outcome carried by decision records. It is empty on run_start.
type Status string

const (
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
	StatusBlocked     Status = "blocked"
	StatusRateLimited Status = "rate_limited"
)

// Record is one audit entry.
type Record struct {
	ID                  string         `json:"id"`
	Timestamp           time.Time      `json:"timestamp"`
	RunID               string         `json:"run_id,omitempty"`
	ActorKey            string         `json:"actor_key"`
	EventType           EventType      `json:"event_type"`
	Input               string         `json:"input,omitempty"`
	Output              string         `json:"output,omitempty"`
	ToolArgs            string         `json:"tool_args,omitempty"`
	Status              Status         `json:"status,omitempty"`
	DurationMs          int64          `json:"duration_ms,omitempty"`
	ErrorMessage        string         `json:"error_message,omitempty"`
	TriggeredValidators []string       `json:"triggered_validators,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy that shares nothing mutable with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	if r.TriggeredValidators != nil {
		out.TriggeredValidators = append([]string(nil), r.TriggeredValidators...)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// DefaultMaxResults caps Query results when Filter.MaxResults is unset.
const DefaultMaxResults = 100

// Filter selects records. Zero-valued fields match everything.
type Filter struct {
	ActorKey   string      `json:"actor_key,omitempty"`
	RunID      string      `json:"run_id,omitempty"`
	EventTypes []EventType `json:"event_types,omitempty"`
	Statuses   []Status    `json:"statuses,omitempty"`
	Since      time.Time   `json:"since,omitempty"`
	Until      time.Time   `json:"until,omitempty"`
	MaxResults int         `json:"max_results,omitempty"`
}

// Matches reports whether r satisfies f.
func (f *Filter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.ActorKey != "" && r.ActorKey != f.ActorKey {
		return false
	}
	if f.RunID != "" && r.RunID != f.RunID {
		return false
	}
	if len(f.EventTypes) > 0 && !containsEvent(f.EventTypes, r.EventType) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if !f.Since.IsZero() && r.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && r.Timestamp.After(f.Until) {
		return false
	}
	return true
}

func (f *Filter) limit() int {
	if f == nil || f.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return f.MaxResults
}

func containsEvent(list []EventType, v EventType) bool {
	for _, e := range list {
		if e == v {
			return true
		}
	}
	return false
}

func containsStatus(list []Status, v Status) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
