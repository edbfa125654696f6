package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/profiles-api/apiserver/config"
	"github.com/profiles-api/apiserver/internal/db"
	"github.com/profiles-api/apiserver/internal/handlers"
	"github.com/profiles-api/apiserver/internal/mq"
	"github.com/profiles-api/apiserver/internal/services"
	"github.com/profiles-api/apiserver/internal/store"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	closers    []io.Closer
	logger     *zap.Logger
}

// Dependencies are the backing services a Server runs on.
type Dependencies struct {
	Accounts services.AccountRepository
	Events   services.Publisher
	Closers  []io.Closer
}

// OpenDependencies connects the store and message queue selected by cfg.
func OpenDependencies(ctx context.Context, cfg config.Config) (Dependencies, error) {
	var deps Dependencies

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		deps.Accounts = store.NewMemoryAccountRepository()
	case "", config.StoreBackendPostgres:
		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return Dependencies{}, fmt.Errorf("open database: %w", err)
		}
		deps.Accounts = store.NewAccountRepository(dbConn)
		deps.Closers = append(deps.Closers, dbConn)
	default:
		return Dependencies{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	queue, err := mq.Open(ctx, cfg)
	if err != nil {
		deps.Close()
		return Dependencies{}, fmt.Errorf("open mq: %w", err)
	}
	if queue != nil {
		deps.Events = queue
		deps.Closers = append(deps.Closers, queue)
	}

	return deps, nil
}

// Close releases the dependencies in reverse opening order.
func (d Dependencies) Close() {
	closeAll(d.Closers)
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	deps, err := OpenDependencies(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := NewWithDependencies(cfg, deps, logger)
	return srv, nil
}

// NewWithDependencies builds the router over already opened dependencies.
func NewWithDependencies(cfg config.Config, deps Dependencies, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	factory := services.NewAccountFactory(deps.Accounts, services.WithBcryptCost(cfg.BcryptCost))
	accountService := services.NewAccountService(deps.Accounts, factory, deps.Events, logger.Named("accounts"))

	authHandler := handlers.NewAuthHandler(accountService, cfg.JWTSecret, cfg.TokenTTL)
	accountHandler := handlers.NewAccountHandler(accountService, authHandler)

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		IsDevelopment:      cfg.IsDev(),
	})

	authRateLimit := cfg.AuthRateLimit
	if authRateLimit <= 0 {
		authRateLimit = 20
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		secureMiddleware.Handler,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		r.Use(httprate.LimitByIP(authRateLimit, time.Minute))
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/accounts", func(r chi.Router) {
		handlers.AccountRouter(r, accountHandler)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		closers:    deps.Closers,
		logger:     logger,
	}
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases the database and queue.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	closeAll(s.closers)
	return err
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		_ = closers[i].Close()
	}
}
