package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/welisten/apiserver/config"
	"github.com/welisten/apiserver/internal/duplicates"
	"github.com/welisten/apiserver/internal/handlers"
	"github.com/welisten/apiserver/internal/metrics"
	"github.com/welisten/apiserver/internal/registry"
	"github.com/welisten/apiserver/types"
)

type registryOnlyFeedback struct {
	handlers.FeedbackService
}

func (registryOnlyFeedback) Categories() []string { return registry.Default().Categories() }

type noComments struct{}

func (noComments) Add(context.Context, int64, int64, string) (types.Comment, error) {
	return types.Comment{}, nil
}

func (noComments) ListByFeedback(context.Context, int64) ([]types.Comment, error) {
	return []types.Comment{}, nil
}

func (noComments) Reply(context.Context, int64, int64, string) (types.Comment, error) {
	return types.Comment{}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).FeedbackCreated()

	return NewRouter(Deps{
		Logger:     zerolog.Nop(),
		CORSOrigin: "https://board.example.com",
		JWTSecret:  "secret",
		Feedback:   &registryOnlyFeedback{},
		Comments:   noComments{},
		Metrics:    reg,
	})
}

func TestRouterServesHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "welisten_feedback_created_total 1"))
}

func TestRouterMountsFeedbackRoutes(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/feedback/categories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Enhancement"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/feedback", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterHandlesCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/feedback", nil)
	req.Header.Set("Origin", "https://board.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://board.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, splitOrigins(""))
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitOrigins(" https://a.example, ,https://b.example "))
}

func TestNewClassifierFallsBackToNop(t *testing.T) {
	classifier, err := newClassifier(config.ClassifierConfig{Enabled: false, APIKey: "key"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, duplicates.NopClassifier{}, classifier)

	classifier, err = newClassifier(config.ClassifierConfig{Enabled: true}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, duplicates.NopClassifier{}, classifier)

	classifier, err = newClassifier(config.ClassifierConfig{Enabled: true, APIKey: "key"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &duplicates.AnthropicClassifier{}, classifier)
}

func TestNewRequiresJWTSecret(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, zerolog.Nop())
	assert.EqualError(t, err, "JWT_SECRET is required")
}

func TestRouterRateLimitsPerIP(t *testing.T) {
	router := NewRouter(Deps{
		Logger:             zerolog.Nop(),
		CORSOrigin:         "*",
		JWTSecret:          "secret",
		RateLimitPerMinute: 2,
		Feedback:           &registryOnlyFeedback{},
		Comments:           noComments{},
	})

	codes := make([]int, 0, 3)
	for range 3 {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
