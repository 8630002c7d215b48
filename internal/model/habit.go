// Package model defines the data structures used throughout the application.
//
// Habits and profiles are owned by the REST backend; the client only ever
// holds transient copies of them for the page (or command) that fetched them.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Habit is one tracked habit as returned by GET /habits and GET /habits/public.
//
// Description may be null on the wire; decoding leaves it empty. created_at
// is decoded leniently, see UnmarshalJSON.
type Habit struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsPublic    bool      `json:"is_public"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// timestampLayouts are tried in order for created_at. The backend
// serializes naive datetimes without a zone offset; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// UnmarshalJSON decodes a habit without failing on its timestamp: a
// created_at in none of the known layouts (or null) leaves CreatedAt zero,
// which is shown as "No date".
func (h *Habit) UnmarshalJSON(data []byte) error {
	type plain Habit
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"created_at"`
	}{plain: (*plain)(h)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	h.CreatedAt = parseTimestamp(aux.CreatedAt)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Owner returns the owner reference shown on public listings.
func (h Habit) Owner() string {
	if h.UserID == "" {
		return "Anonymous"
	}
	return h.UserID
}

// HabitInput is the fixed three-field payload for POST /habits and PUT /habits/{id}.
type HabitInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// Input returns the editable fields of h, used to prefill edit forms.
func (h Habit) Input() HabitInput {
	return HabitInput{
		Name:        h.Name,
		Description: h.Description,
		IsPublic:    h.IsPublic,
	}
}

// WithoutHabit returns habits minus the entry with the given id.
// The input slice is not modified.
func WithoutHabit(habits []Habit, id int64) []Habit {
	out := make([]Habit, 0, len(habits))
	for _, h := range habits {
		if h.ID != id {
			out = append(out, h)
		}
	}
	return out
}

// FindHabit returns the habit with the given id, if present.
func FindHabit(habits []Habit, id int64) (Habit, bool) {
	for _, h := range habits {
		if h.ID == id {
			return h, true
		}
	}
	return Habit{}, false
}
