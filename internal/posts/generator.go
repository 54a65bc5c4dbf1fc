package posts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/that-cod/reepost-ai-sub001/pkg/llm"
)

const maxTopicLength = 500

var lengthTargets = map[string]int{
	"short":  80,
	"medium": 150,
	"long":   250,
}

var ErrEmptyGeneration = errors.New("model returned no content")

// GenerateRequest describes the post the model should write.
type GenerateRequest struct {
	Topic    string `json:"topic"`
	Tone     string `json:"tone"`
	Length   string `json:"length"`
	Audience string `json:"audience"`
	Save     bool   `json:"save"`
}

// Normalize applies defaults and rejects unusable input.
func (r *GenerateRequest) Normalize() error {
	r.Topic = strings.TrimSpace(r.Topic)
	if r.Topic == "" {
		return fmt.Errorf("%w: topic is required", ErrInvalidInput)
	}
	if contentLength(r.Topic) > maxTopicLength {
		return fmt.Errorf("%w: topic must be at most %d characters", ErrInvalidInput, maxTopicLength)
	}
	if r.Tone = strings.TrimSpace(r.Tone); r.Tone == "" {
		r.Tone = "professional"
	}
	if r.Length = strings.ToLower(strings.TrimSpace(r.Length)); r.Length == "" {
		r.Length = "medium"
	}
	if _, ok := lengthTargets[r.Length]; !ok {
		return fmt.Errorf("%w: length must be short, medium or long", ErrInvalidInput)
	}
	r.Audience = strings.TrimSpace(r.Audience)
	return nil
}

// Generator writes post drafts with an LLM.
type Generator struct {
	provider llm.Provider
	maxChars int
}

func NewGenerator(provider llm.Provider) *Generator {
	return &Generator{provider: provider, maxChars: MaxContentLength}
}

// Generate returns a draft no longer than MaxContentLength. An over-long
// answer is asked for again once with a tighter limit, then cut at a word
// boundary.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := req.Normalize(); err != nil {
		return "", err
	}

	text, err := g.complete(ctx, buildPrompt(req, g.maxChars))
	if err != nil {
		return "", err
	}
	if contentLength(text) <= g.maxChars {
		return text, nil
	}

	shorter := g.maxChars * 2 / 3
	retry, err := g.complete(ctx, buildPrompt(req, shorter))
	if err == nil {
		text = retry
	}
	if contentLength(text) > g.maxChars {
		text = truncateAtWord(text, g.maxChars)
	}
	return text, nil
}

func (g *Generator) complete(ctx context.Context, messages []llm.Message) (string, error) {
	stream, err := g.provider.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("start completion: %w", err)
	}
	text, err := llm.Collect(stream)
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyGeneration
	}
	return text, nil
}

func buildPrompt(req GenerateRequest, maxChars int) []llm.Message {
	var user strings.Builder
	fmt.Fprintf(&user, "Write a LinkedIn post about: %s\n", req.Topic)
	fmt.Fprintf(&user, "Tone: %s\n", req.Tone)
	fmt.Fprintf(&user, "Length: about %d words\n", lengthTargets[req.Length])
	if req.Audience != "" {
		fmt.Fprintf(&user, "Audience: %s\n", req.Audience)
	}
	fmt.Fprintf(&user, "Hard limit: %d characters including hashtags.", maxChars)

	return []llm.Message{
		{
			Role: "system",
			Content: "You write LinkedIn posts. Reply with the post text only: no preamble, " +
				"no quotes, no markdown headings. Use short paragraphs and at most three hashtags.",
		},
		{Role: "user", Content: user.String()},
	}
}

// truncateAtWord cuts s to at most limit runes, preferring the last
// whitespace before the limit.
func truncateAtWord(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	cut := runes[:limit]
	for i := len(cut) - 1; i > limit/2; i-- {
		if unicode.IsSpace(cut[i]) {
			return strings.TrimRightFunc(string(cut[:i]), unicode.IsSpace)
		}
	}
	return string(cut)
}
