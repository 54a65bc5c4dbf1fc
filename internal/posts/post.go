// Package posts stores, generates and publishes LinkedIn posts.
package posts

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/that-cod/reepost-ai-sub001/internal/ranking"
)

const (
	StatusDraft      = "draft"
	StatusScheduled  = "scheduled"
	StatusPublishing = "publishing"
	StatusPublished  = "published"
	StatusFailed     = "failed"
)

// MaxContentLength is LinkedIn's limit for a member share.
const MaxContentLength = 3000

var (
	ErrNotFound     = errors.New("post not found")
	ErrInvalidInput = errors.New("invalid post")
	ErrConflict     = errors.New("post state conflict")
	ErrNotConnected = errors.New("linkedin account not connected")
)

type Post struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Content         string     `json:"content"`
	Status          string     `json:"status"`
	PublishedAt     *time.Time `json:"published_at"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
	LinkedInPostURN string     `json:"linkedin_post_urn,omitempty"`
	FailureReason   string     `json:"failure_reason,omitempty"`
	MediaURL        string     `json:"media_url,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	ranking.Counters
}

// ValidStatus reports whether s may be used as a list filter.
func ValidStatus(s string) bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublishing, StatusPublished, StatusFailed:
		return true
	}
	return false
}

func contentLength(s string) int {
	return utf8.RuneCountInString(s)
}

// parseID canonicalises a post id. Anything that is not a UUID cannot name
// a post and reports ErrNotFound.
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrNotFound
	}
	return u.String(), nil
}
