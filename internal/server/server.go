package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/softdesk/apiserver/config"
	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/auth"
	"github.com/softdesk/apiserver/internal/db"
	"github.com/softdesk/apiserver/internal/events"
	"github.com/softdesk/apiserver/internal/handlers"
	"github.com/softdesk/apiserver/internal/logging"
	"github.com/softdesk/apiserver/internal/metrics"
	"github.com/softdesk/apiserver/internal/mq"
	"github.com/softdesk/apiserver/internal/ratelimit"
	"github.com/softdesk/apiserver/internal/services"
	"github.com/softdesk/apiserver/internal/storage"
	"github.com/softdesk/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Broker
	log        logrus.FieldLogger
}

// New connects to the database and the optional broker and object store, and
// wires the API on top of them.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open broker: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		if broker != nil {
			_ = broker.Close()
		}
		_ = dbConn.Close()
		return nil, fmt.Errorf("open object store: %w", err)
	}

	m := metrics.New()

	var publisher events.Publisher = events.Nop{}
	if broker != nil {
		publisher = events.NewBrokerPublisher(broker, cfg.MQ.Topic)
	} else {
		logger.Info("no message broker configured; activity events are dropped")
	}

	deps := services.Deps{
		Users:        store.NewUserRepository(dbConn),
		Projects:     store.NewProjectRepository(dbConn),
		Contributors: store.NewContributorRepository(dbConn),
		Issues:       store.NewIssueRepository(dbConn),
		Comments:     store.NewCommentRepository(dbConn),
		Events:       m.Publisher(publisher),
		Logger:       logger,
	}
	if objects != nil {
		deps.Archiver = m.Archiver(archive.New(objects))
	} else {
		logger.Info("no object store configured; deleted projects are not archived")
	}

	svc := handlers.Services{
		Users:    services.NewUserService(deps),
		Projects: services.NewProjectService(deps),
		Issues:   services.NewIssueService(deps),
		Comments: services.NewCommentService(deps),
	}
	tokens := auth.NewTokenManager(cfg.Auth)
	limiter := ratelimit.New(cfg.RateLimit)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		ratelimit.PeerAddr,
		middleware.RealIP,
		logging.RequestLogger(logger),
		middleware.Recoverer,
		m.Middleware,
		middleware.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Method(http.MethodGet, "/metrics", m.Handler())
	handlers.Mount(router, svc, tokens, limiter.Middleware, logger)

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
		broker:     broker,
		log:        logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		if closeErr := s.broker.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("failed to close broker")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
