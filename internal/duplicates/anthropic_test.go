package duplicates

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welisten/apiserver/types"
)

func testCandidates(ids ...int64) []Candidate {
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, Candidate{Feedback: types.Feedback{ID: id, Title: "Dark mode"}, Score: 1})
	}
	return out
}

func TestParseDecision(t *testing.T) {
	candidates := testCandidates(3, 8)

	tests := []struct {
		name    string
		reply   string
		want    Decision
		wantErr bool
	}{
		{name: "not duplicate", reply: `{"duplicate": false, "similarTo": []}`, want: Decision{}},
		{name: "not duplicate without ids", reply: `{"duplicate": false}`, want: Decision{}},
		{name: "duplicate", reply: `{"duplicate": true, "similarTo": [8, 3]}`, want: Decision{IsDuplicate: true, SimilarTo: []int64{8, 3}}},
		{name: "unknown ids dropped", reply: `{"duplicate": true, "similarTo": [42, 3, 3]}`, want: Decision{IsDuplicate: true, SimilarTo: []int64{3}}},
		{name: "code fence", reply: "```json\n{\"duplicate\": true, \"similarTo\": [3]}\n```", want: Decision{IsDuplicate: true, SimilarTo: []int64{3}}},
		{name: "only unknown ids", reply: `{"duplicate": true, "similarTo": [42]}`, wantErr: true},
		{name: "missing duplicate", reply: `{"similarTo": [3]}`, wantErr: true},
		{name: "unknown field", reply: `{"duplicate": false, "reason": "different"}`, wantErr: true},
		{name: "prose", reply: `These look like the same request.`, wantErr: true},
		{name: "trailing prose", reply: `{"duplicate": false} I hope this helps`, wantErr: true},
		{name: "empty", reply: "  ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision(tt.reply, candidates)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func messageResponse(text string) map[string]any {
	return map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         "claude-3-5-haiku-latest",
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 12, "output_tokens": 8},
	}
}

func newTestClassifier(t *testing.T, handler http.HandlerFunc) *AnthropicClassifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	classifier, err := NewAnthropicClassifier(AnthropicConfig{APIKey: "test-key"}, option.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return classifier
}

func TestAnthropicClassifierDuplicate(t *testing.T) {
	var request map[string]any
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse(`{"duplicate": true, "similarTo": [3]}`))
	})

	decision, err := classifier.Classify(context.Background(), Submission{Title: "Dark theme", Detail: "Night mode please"}, testCandidates(3, 8))
	require.NoError(t, err)
	assert.Equal(t, Decision{IsDuplicate: true, SimilarTo: []int64{3}}, decision)

	assert.Equal(t, "claude-3-5-haiku-latest", request["model"])
	assert.Equal(t, float64(0), request["temperature"])
}

func TestAnthropicClassifierMalformedReply(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageResponse("Yes, it is a duplicate of #3."))
	})

	_, err := classifier.Classify(context.Background(), Submission{Title: "Dark theme"}, testCandidates(3))
	var classifierErr *ClassifierError
	require.ErrorAs(t, err, &classifierErr)
	assert.Equal(t, "parse", classifierErr.Op)
}

func TestAnthropicClassifierServerError(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
	})

	_, err := classifier.Classify(context.Background(), Submission{Title: "Dark theme"}, testCandidates(3))
	var classifierErr *ClassifierError
	require.ErrorAs(t, err, &classifierErr)
	assert.Equal(t, "request", classifierErr.Op)
}

func TestAnthropicClassifierTimeout(t *testing.T) {
	release := make(chan struct{})
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := classifier.Classify(ctx, Submission{Title: "Dark theme"}, testCandidates(3))
	var classifierErr *ClassifierError
	require.ErrorAs(t, err, &classifierErr)
	assert.Equal(t, "request", classifierErr.Op)
}

func TestAnthropicClassifierWithoutCandidates(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("classifier called the model without candidates")
	})

	decision, err := classifier.Classify(context.Background(), Submission{Title: "Dark theme"}, nil)
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate)
}

func TestNewAnthropicClassifierRequiresKey(t *testing.T) {
	_, err := NewAnthropicClassifier(AnthropicConfig{})
	assert.Error(t, err)
}

func TestNopClassifier(t *testing.T) {
	decision, err := NopClassifier{}.Classify(context.Background(), Submission{}, testCandidates(1))
	require.NoError(t, err)
	assert.False(t, decision.IsDuplicate)
}
