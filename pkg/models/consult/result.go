package consult

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Result is the diagnostic payload returned by the remote service.
// Every field is optional. A nil list is absent, an empty one is kept as [].
// Members the service sends beyond these are kept in Extra verbatim.
type Result struct {
	Diagnosis    string   `json:"diagnosis,omitempty" yaml:"diagnosis,omitempty"`
	Rationale    string   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Actions      []string `json:"actions" yaml:"actions,omitempty"`
	Warnings     []string `json:"warnings" yaml:"warnings,omitempty"`
	Interactions []string `json:"interactions" yaml:"interactions,omitempty"`

	Extra map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (z Result) members() map[string]any {
	m := make(map[string]any, len(z.Extra)+7)
	for k, v := range z.Extra {
		m[k] = v
	}
	if z.Diagnosis != "" {
		m["diagnosis"] = z.Diagnosis
	}
	if z.Rationale != "" {
		m["rationale"] = z.Rationale
	}
	if z.Actions != nil {
		m["actions"] = z.Actions
	}
	if z.Warnings != nil {
		m["warnings"] = z.Warnings
	}
	if z.Interactions != nil {
		m["interactions"] = z.Interactions
	}
	return m
}

// MarshalJSON implements the json.Marshaler interface.
func (z Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(z.members())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (z *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var t Result
	for k, v := range raw {
		var err error
		switch k {
		case "diagnosis":
			err = json.Unmarshal(v, &t.Diagnosis)
		case "rationale":
			err = json.Unmarshal(v, &t.Rationale)
		case "actions":
			err = json.Unmarshal(v, &t.Actions)
		case "warnings":
			err = json.Unmarshal(v, &t.Warnings)
		case "interactions":
			err = json.Unmarshal(v, &t.Interactions)
		default:
			if t.Extra == nil {
				t.Extra = make(map[string]json.RawMessage)
			}
			t.Extra[k] = v
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	*z = t
	return nil
}

// HasInteractions reports whether any drug interaction was returned
func (z *Result) HasInteractions() bool {
	return z != nil && len(z.Interactions) > 0
}

// Entry is a Result stamped with id and timestamp at save time
type Entry struct {
	Result `yaml:",inline"`

	ID        int64  `json:"id" yaml:"id"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
}

// MarshalJSON writes id and timestamp beside the result members
func (z Entry) MarshalJSON() ([]byte, error) {
	m := z.Result.members()
	m["id"] = z.ID
	m["timestamp"] = z.Timestamp
	return json.Marshal(m)
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (z *Entry) UnmarshalJSON(data []byte) error {
	var t Entry
	if err := json.Unmarshal(data, &t.Result); err != nil {
		return err
	}
	if v, ok := t.Extra["id"]; ok {
		if err := json.Unmarshal(v, &t.ID); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		delete(t.Extra, "id")
	}
	if v, ok := t.Extra["timestamp"]; ok {
		if err := json.Unmarshal(v, &t.Timestamp); err != nil {
			return fmt.Errorf("decode timestamp: %w", err)
		}
		delete(t.Extra, "timestamp")
	}
	if len(t.Extra) == 0 {
		t.Extra = nil
	}
	*z = t
	return nil
}

// NewEntry stamps the result with the wall clock.
// The id is the millisecond clock, two saves in the same tick share it.
func NewEntry(r Result, now time.Time) Entry {
	return Entry{
		Result:    r,
		ID:        now.UnixMilli(),
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

// Time parses Timestamp, zero on malformed value
func (z *Entry) Time() time.Time {
	t, _ := time.Parse(time.RFC3339Nano, z.Timestamp)
	return t
}

type Entries []Entry

// Prepend returns a new list with e at the head, cut to limit
func (z Entries) Prepend(e Entry, limit int) Entries {
	out := make(Entries, 0, len(z)+1)
	out = append(out, e)
	out = append(out, z...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Find returns the first entry with id
func (z Entries) Find(id int64) (*Entry, bool) {
	for i := range z {
		if z[i].ID == id {
			e := z[i]
			return &e, true
		}
	}
	return nil, false
}

// MarshalBinary implements the encoding.BinaryMarshaler interface.
func (z Entries) MarshalBinary() (data []byte, err error) {
	if z == nil {
		z = Entries{}
	}
	data, err = json.Marshal(z)
	return
}

// UnmarshalBinary unmarshal a binary representation of itself. for redis result.Scan
func (z *Entries) UnmarshalBinary(data []byte) error {
	var t Entries
	err := json.Unmarshal(data, &t)
	if err == nil {
		*z = t
	}
	return err
}
