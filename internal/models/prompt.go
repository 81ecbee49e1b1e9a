package models

import "time"

// Prompt is the source text that produced one or more Observations.
// It is immutable once created.
type Prompt struct {
	ID        string    `json:"id" yaml:"id"`
	UserID    string    `json:"user_id" yaml:"user_id"`
	Text      string    `json:"text" yaml:"text"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}
