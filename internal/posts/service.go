package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/that-cod/reepost-ai-sub001/internal/events"
	"github.com/that-cod/reepost-ai-sub001/internal/users"
	"github.com/that-cod/reepost-ai-sub001/pkg/llm"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
	"github.com/that-cod/reepost-ai-sub001/pkg/pagination"
)

// LinkedInPublisher shares a post on the member's feed.
type LinkedInPublisher interface {
	PublishPost(ctx context.Context, accessToken, authorURN, text string) (string, error)
}

// CredentialSource resolves the member a post is published as.
type CredentialSource interface {
	LinkedInCredentials(ctx context.Context, userID string) (users.LinkedInCredentials, error)
}

// CreateInput is a new post. A non-nil ScheduledAt makes it scheduled.
type CreateInput struct {
	Content     string     `json:"content"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	MediaURL    string     `json:"media_url"`
}

// UpdateInput changes only the non-nil fields.
type UpdateInput struct {
	Content     *string    `json:"content"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	MediaURL    *string    `json:"media_url"`
	Unschedule  bool       `json:"unschedule"`
}

type Service struct {
	store     Store
	embedder  llm.EmbeddingClient
	publisher LinkedInPublisher
	creds     CredentialSource
	events    events.Publisher
	logger    logging.Logger
	now       func() time.Time
}

func NewService(
	store Store,
	embedder llm.EmbeddingClient,
	publisher LinkedInPublisher,
	creds CredentialSource,
	pub events.Publisher,
	logger logging.Logger,
) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		publisher: publisher,
		creds:     creds,
		events:    pub,
		logger:    logger,
		now:       time.Now,
	}
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if contentLength(content) > MaxContentLength {
		return "", fmt.Errorf("%w: content must be at most %d characters", ErrInvalidInput, MaxContentLength)
	}
	return content, nil
}

func (s *Service) validateSchedule(at *time.Time) error {
	if at != nil && !at.After(s.now()) {
		return fmt.Errorf("%w: scheduled_at must be in the future", ErrInvalidInput)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Post, error) {
	content, err := validateContent(in.Content)
	if err != nil {
		return nil, err
	}
	if err := s.validateSchedule(in.ScheduledAt); err != nil {
		return nil, err
	}

	p := &Post{
		UserID:   userID,
		Content:  content,
		Status:   StatusDraft,
		MediaURL: strings.TrimSpace(in.MediaURL),
	}
	if in.ScheduledAt != nil {
		at := in.ScheduledAt.UTC()
		p.ScheduledAt = &at
		p.Status = StatusScheduled
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.embed(ctx, p)
	events.Emit(ctx, s.events, s.logger, events.Event{
		Type:       events.PostCreated,
		UserID:     userID,
		PostID:     p.ID,
		Attributes: map[string]string{"status": p.Status},
	})
	return p, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Post, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, userID, id)
}

func (s *Service) List(ctx context.Context, userID, status string, page pagination.Page) ([]Post, int, error) {
	if status != "" && !ValidStatus(status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	return s.store.List(ctx, userID, status, page)
}

// Update edits a post that has not been published. Content changes
// refresh the embedding.
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*Post, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status == StatusPublished || p.Status == StatusPublishing {
		return nil, fmt.Errorf("%w: %s posts cannot be edited", ErrConflict, p.Status)
	}

	contentChanged := false
	if in.Content != nil {
		content, err := validateContent(*in.Content)
		if err != nil {
			return nil, err
		}
		contentChanged = content != p.Content
		p.Content = content
	}
	if in.MediaURL != nil {
		p.MediaURL = strings.TrimSpace(*in.MediaURL)
	}
	switch {
	case in.Unschedule:
		p.ScheduledAt = nil
		p.Status = StatusDraft
	case in.ScheduledAt != nil:
		if err := s.validateSchedule(in.ScheduledAt); err != nil {
			return nil, err
		}
		at := in.ScheduledAt.UTC()
		p.ScheduledAt = &at
		p.Status = StatusScheduled
	}

	if err := s.store.Update(ctx, p); err != nil {
		return nil, err
	}
	if contentChanged {
		s.embed(ctx, p)
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	id, err := parseID(id)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, userID, id)
}

// Publish shares a post now. The row is claimed first so a concurrent
// publish or scheduler run cannot send it twice; published and in-flight
// posts are a conflict.
func (s *Service) Publish(ctx context.Context, userID, id string) (*Post, error) {
	id, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Claim(ctx, userID, id)
	if errors.Is(err, ErrConflict) {
		current, getErr := s.store.Get(ctx, userID, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: post is %s", ErrConflict, current.Status)
	}
	if err != nil {
		return nil, err
	}
	if err := s.PublishClaimed(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// PublishClaimed sends p to LinkedIn and records the outcome on the row.
// A failure marks the post failed and is returned.
func (s *Service) PublishClaimed(ctx context.Context, p *Post) error {
	urn, err := s.sendToLinkedIn(ctx, p)
	if err != nil {
		if markErr := s.store.MarkFailed(ctx, p.ID, err.Error()); markErr != nil {
			s.logger.WithFields(logging.Fields{
				"post_id": p.ID,
				"error":   markErr,
			}).Error("Failed to mark post failed")
		}
		p.Status = StatusFailed
		p.FailureReason = err.Error()
		events.Emit(ctx, s.events, s.logger, events.Event{
			Type:       events.PostFailed,
			UserID:     p.UserID,
			PostID:     p.ID,
			Attributes: map[string]string{"reason": err.Error()},
		})
		return err
	}

	now := s.now().UTC()
	if err := s.store.MarkPublished(ctx, p.ID, urn, now); err != nil {
		return err
	}
	p.Status = StatusPublished
	p.PublishedAt = &now
	p.LinkedInPostURN = urn
	p.FailureReason = ""

	s.logger.WithFields(logging.Fields{
		"user_id": p.UserID,
		"post_id": p.ID,
		"urn":     urn,
	}).Info("Post published")
	events.Emit(ctx, s.events, s.logger, events.Event{
		Type:       events.PostPublished,
		UserID:     p.UserID,
		PostID:     p.ID,
		Attributes: map[string]string{"urn": urn},
	})
	return nil
}

func (s *Service) sendToLinkedIn(ctx context.Context, p *Post) (string, error) {
	if s.publisher == nil || s.creds == nil {
		return "", ErrNotConnected
	}
	creds, err := s.creds.LinkedInCredentials(ctx, p.UserID)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return "", fmt.Errorf("load linkedin credentials: %w", err)
	}
	if !creds.Usable(s.now()) {
		return "", ErrNotConnected
	}
	return s.publisher.PublishPost(ctx, creds.AccessToken, creds.MemberURN, p.Content)
}

// embed stores the content embedding. Failures leave the post without
// one and are only logged.
func (s *Service) embed(ctx context.Context, p *Post) {
	if s.embedder == nil {
		return
	}
	vectors, err := s.embedder.Embed(ctx, []string{p.Content})
	if err == nil && len(vectors) != 1 {
		err = fmt.Errorf("expected 1 embedding, got %d", len(vectors))
	}
	if err == nil {
		err = s.store.SetEmbedding(ctx, p.ID, vectors[0])
	}
	if err != nil {
		s.logger.WithFields(logging.Fields{
			"post_id": p.ID,
			"error":   err,
		}).Warn("Failed to store post embedding")
	}
}
