package duplicates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/time/rate"
)

const (
	defaultModel     = "claude-3-5-haiku-latest"
	defaultMaxTokens = 256
	defaultBurst     = 5
)

const systemPrompt = `You screen product feedback for duplicates.
A submission is a duplicate only when it asks for the same change or reports the same problem as an existing item, even if worded differently.
Related topics, overlapping keywords or the same area of the product are not enough.
Answer with a single JSON object and nothing else:
{"duplicate": true|false, "similarTo": [ids of the existing items it duplicates]}`

// AnthropicConfig configures an AnthropicClassifier.
type AnthropicConfig struct {
	APIKey        string
	Model         string
	MaxTokens     int64
	RatePerMinute int
}

// AnthropicClassifier classifies submissions with a Claude model. Requests
// are made at temperature 0 and throttled by a token bucket.
type AnthropicClassifier struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewAnthropicClassifier creates a classifier. Extra request options are
// appended after the API key, e.g. option.WithBaseURL in tests.
func NewAnthropicClassifier(cfg AnthropicConfig, opts ...option.RequestOption) (*AnthropicClassifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	// Retries would outlive the caller's deadline; a failed call degrades instead.
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}, opts...)
	client := anthropic.NewClient(clientOpts...)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), defaultBurst)
	}

	return &AnthropicClassifier{
		client:    &client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		limiter:   limiter,
	}, nil
}

func (c *AnthropicClassifier) Classify(ctx context.Context, submission Submission, candidates []Candidate) (Decision, error) {
	if len(candidates) == 0 {
		return Decision{}, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return Decision{}, &ClassifierError{Op: "rate limit", Err: err}
	}

	prompt, err := buildPrompt(submission, candidates)
	if err != nil {
		return Decision{}, &ClassifierError{Op: "prompt", Err: err}
	}

	response, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return Decision{}, &ClassifierError{Op: "request", Err: err}
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	decision, err := ParseDecision(text.String(), candidates)
	if err != nil {
		return Decision{}, &ClassifierError{Op: "parse", Err: err}
	}
	return decision, nil
}

type promptItem struct {
	ID     int64  `json:"id,omitempty"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func buildPrompt(submission Submission, candidates []Candidate) (string, error) {
	newItem, err := json.MarshalIndent(promptItem{Title: submission.Title, Detail: submission.Detail}, "", "  ")
	if err != nil {
		return "", err
	}

	existing := make([]promptItem, 0, len(candidates))
	for _, candidate := range candidates {
		existing = append(existing, promptItem{
			ID:     candidate.Feedback.ID,
			Title:  candidate.Feedback.Title,
			Detail: candidate.Feedback.Detail,
		})
	}
	existingItems, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("New submission:\n")
	b.Write(newItem)
	b.WriteString("\n\nExisting feedback:\n")
	b.Write(existingItems)
	b.WriteString("\n\nIs the new submission a duplicate of any existing feedback?")
	return b.String(), nil
}

type rawDecision struct {
	Duplicate *bool   `json:"duplicate"`
	SimilarTo []int64 `json:"similarTo"`
}

// ParseDecision decodes a model reply of the form
// {"duplicate": bool, "similarTo": [ids]}. A surrounding markdown code fence
// is tolerated; anything else around the object is an error. Ids that are
// not among the candidates are dropped, and a duplicate verdict left without
// ids is rejected.
func ParseDecision(text string, candidates []Candidate) (Decision, error) {
	body := stripCodeFence(strings.TrimSpace(text))
	if body == "" {
		return Decision{}, errors.New("empty reply")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var raw rawDecision
	if err := dec.Decode(&raw); err != nil {
		return Decision{}, fmt.Errorf("decode reply: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Decision{}, errors.New("unexpected data after reply object")
	}
	if raw.Duplicate == nil {
		return Decision{}, errors.New(`reply is missing "duplicate"`)
	}
	if !*raw.Duplicate {
		return Decision{}, nil
	}

	known := make(map[int64]struct{}, len(candidates))
	for _, candidate := range candidates {
		known[candidate.Feedback.ID] = struct{}{}
	}

	seen := make(map[int64]struct{}, len(raw.SimilarTo))
	similar := make([]int64, 0, len(raw.SimilarTo))
	for _, id := range raw.SimilarTo {
		if _, ok := known[id]; !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		similar = append(similar, id)
	}
	if len(similar) == 0 {
		return Decision{}, errors.New("duplicate reply names no candidate")
	}

	return Decision{IsDuplicate: true, SimilarTo: similar}, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
