package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/that-cod/reepost-ai-sub001/pkg/llm"
	"github.com/that-cod/reepost-ai-sub001/pkg/logging"
)

const (
	DefaultLimit     = 10
	MaxLimit         = 50
	DefaultThreshold = 0.7
)

// ValidationError reports a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// UpstreamError wraps a failure of the embedding provider.
type UpstreamError struct {
	Err       error
	Retryable bool
}

func (e *UpstreamError) Error() string {
	return "embedding provider: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Request is a search query. Nil Limit and Threshold take the defaults.
type Request struct {
	Query     string   `json:"query"`
	Limit     *int     `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Params is a validated Request.
type Params struct {
	Query     string
	Limit     int
	Threshold float64
}

// Validate trims the query and applies defaults and bounds.
func (r Request) Validate() (Params, error) {
	p := Params{
		Query:     strings.TrimSpace(r.Query),
		Limit:     DefaultLimit,
		Threshold: DefaultThreshold,
	}
	if p.Query == "" {
		return Params{}, &ValidationError{Field: "query", Message: "must not be empty"}
	}
	if r.Limit != nil {
		if *r.Limit < 1 || *r.Limit > MaxLimit {
			return Params{}, &ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", MaxLimit)}
		}
		p.Limit = *r.Limit
	}
	if r.Threshold != nil {
		if t := *r.Threshold; math.IsNaN(t) || t < 0 || t > 1 {
			return Params{}, &ValidationError{Field: "threshold", Message: "must be between 0 and 1"}
		}
		p.Threshold = *r.Threshold
	}
	return p, nil
}

// Response is the search payload; Results is never nil.
type Response struct {
	Results   []Result `json:"results"`
	Total     int      `json:"total"`
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold float64  `json:"threshold"`
}

type Service struct {
	embedder   llm.EmbeddingClient
	store      Store
	dimensions int
	logger     logging.Logger
}

func NewService(embedder llm.EmbeddingClient, store Store, dimensions int, logger logging.Logger) *Service {
	if dimensions <= 0 {
		dimensions = llm.DefaultEmbeddingDimensions
	}
	return &Service{embedder: embedder, store: store, dimensions: dimensions, logger: logger}
}

// Search embeds the query and returns the caller's most similar posts.
// Provider failures are returned as *UpstreamError and are not retried.
func (s *Service) Search(ctx context.Context, userID string, req Request) (*Response, error) {
	params, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	vectors, err := s.embedder.Embed(ctx, []string{params.Query})
	if err != nil {
		return nil, &UpstreamError{Err: err, Retryable: llm.IsRetryable(err)}
	}
	if len(vectors) != 1 || len(vectors[0]) != s.dimensions {
		got := 0
		if len(vectors) > 0 {
			got = len(vectors[0])
		}
		return nil, &UpstreamError{
			Err: fmt.Errorf("%w: got %d values, want %d", llm.ErrDimensionMismatch, got, s.dimensions),
		}
	}

	found, err := s.store.Search(ctx, userID, vectors[0], params.Threshold, params.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(found))
	for _, r := range found {
		if r.Similarity > params.Threshold {
			results = append(results, r)
		}
	}
	if len(results) > params.Limit {
		results = results[:params.Limit]
	}

	s.logger.WithFields(logging.Fields{
		"user_id":   userID,
		"results":   len(results),
		"limit":     params.Limit,
		"threshold": params.Threshold,
	}).Debug("Semantic search complete")

	return &Response{
		Results:   results,
		Total:     len(results),
		Query:     params.Query,
		Limit:     params.Limit,
		Threshold: params.Threshold,
	}, nil
}
