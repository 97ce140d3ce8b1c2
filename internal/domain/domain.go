package domain

import "time"

type Summary struct {
	ID        string
	UserID    string
	FileName  string
	Style     string
	Content   string
	CreatedAt time.Time
}

type UserProfile struct {
	UserID        string
	ReadwiseToken string
	AutoSync      bool
	Goal          string
	Level         string
	Focus         string
}

// HasReadwise reports whether the user saved a Readwise token.
func (p UserProfile) HasReadwise() bool {
	return p.ReadwiseToken != ""
}

type Share struct {
	Token     string
	SummaryID string
	UserID    string
	FileName  string
	Style     string
	Content   string
	CreatedAt time.Time
}

type Export struct {
	SummaryID      string
	UserID         string
	HighlightCount int
	ExportedAt     time.Time
}
