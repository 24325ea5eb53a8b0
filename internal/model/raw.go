package model

import "time"

// RawEmail is a decoded email message as returned by the email source.
type RawEmail struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

// FormEntry is a single submission from the forms platform. Fields is the
// raw nested bag exactly as the API returned it; the aliaser searches it
// without assuming any particular shape.
type FormEntry struct {
	ID          string         `json:"Id"`
	Number      int            `json:"Number"`
	FormID      string         `json:"FormId,omitempty"`
	FormName    string         `json:"FormName,omitempty"`
	Fields      map[string]any `json:"Fields"`
	DateCreated string         `json:"DateCreated,omitempty"`
}

// Form is a forms-platform form definition, as much of it as admission
// filtering needs.
type Form struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}
