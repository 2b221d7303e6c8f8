package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/welisten/apiserver/config"
	"github.com/welisten/apiserver/internal/db"
	"github.com/welisten/apiserver/internal/duplicates"
	"github.com/welisten/apiserver/internal/handlers"
	"github.com/welisten/apiserver/internal/metrics"
	"github.com/welisten/apiserver/internal/mq"
	"github.com/welisten/apiserver/internal/registry"
	"github.com/welisten/apiserver/internal/services"
	"github.com/welisten/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
	logger     zerolog.Logger
}

// Deps are the services and settings the router is built from.
type Deps struct {
	Logger             zerolog.Logger
	CORSOrigin         string
	JWTSecret          string
	RateLimitPerMinute int
	Feedback           handlers.FeedbackService
	Comments           handlers.CommentService
	Metrics            prometheus.Gatherer
}

// New opens the database and optional message queue and wires the
// feedback board API on top of them.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	classifier, err := newClassifier(cfg.Classifier, logger)
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var events services.EventPublisher = services.NopEventPublisher{}
	queue, err := mq.Open(ctx, cfg.MQ)
	switch {
	case errors.Is(err, mq.ErrDisabled):
		logger.Info().Msg("message queue disabled, feedback events will not be published")
	case err != nil:
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	default:
		events = services.NewMQEventPublisher(queue, cfg.MQ.EventsChannel)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	feedbackRepo := store.NewFeedbackRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)
	userRepo := store.NewUserRepository(dbConn)

	feedbackService := services.NewFeedbackService(
		feedbackRepo,
		registry.Default(),
		duplicates.NewFinder(feedbackRepo),
		classifier,
		services.WithLogger(logger),
		services.WithMetrics(metrics.New(reg)),
		services.WithEventPublisher(events),
		services.WithClassifierTimeout(cfg.Classifier.Timeout),
		services.WithListLimits(cfg.Listing.DefaultLimit, cfg.Listing.MaxLimit),
	)
	commentService := services.NewCommentService(commentRepo, feedbackRepo, userRepo, logger)

	router := NewRouter(Deps{
		Logger:             logger,
		CORSOrigin:         cfg.CORSOrigin,
		JWTSecret:          cfg.JWTSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Feedback:           feedbackService,
		Comments:           commentService,
		Metrics:            reg,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		logger:     logger,
	}, nil
}

// NewRouter builds the HTTP routes and middleware.
func NewRouter(deps Deps) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		hlog.NewHandler(deps.Logger),
		hlog.RequestIDHandler("request_id", "X-Request-Id"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Stringer("url", r.URL).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("request")
		}),
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: splitOrigins(deps.CORSOrigin),
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.Timeout(requestTimeout),
	)
	if deps.RateLimitPerMinute > 0 {
		router.Use(httprate.LimitByIP(deps.RateLimitPerMinute, time.Minute))
	}

	authMiddleware := handlers.RequireAuth(deps.JWTSecret)

	router.Get("/healthz", handlers.Healthz)
	if deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Metrics))
	}
	router.Route("/feedback", func(r chi.Router) {
		handlers.FeedbackRouter(r, deps.Feedback, authMiddleware)
	})
	router.Route("/comments", func(r chi.Router) {
		handlers.CommentRouter(r, deps.Comments, authMiddleware)
	})

	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the queue and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.queue != nil {
		if closeErr := s.queue.Close(); closeErr != nil {
			s.logger.Warn().Err(closeErr).Msg("failed to close message queue")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func newClassifier(cfg config.ClassifierConfig, logger zerolog.Logger) (duplicates.Classifier, error) {
	if !cfg.Enabled {
		logger.Info().Msg("duplicate classifier disabled")
		return duplicates.NopClassifier{}, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		logger.Warn().Msg("ANTHROPIC_API_KEY not set, duplicate classifier disabled")
		return duplicates.NopClassifier{}, nil
	}

	classifier, err := duplicates.NewAnthropicClassifier(duplicates.AnthropicConfig{
		APIKey:        cfg.APIKey,
		Model:         cfg.Model,
		RatePerMinute: cfg.RatePerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("duplicate classifier: %w", err)
	}
	return classifier, nil
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
