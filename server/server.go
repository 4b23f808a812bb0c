package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/feedbridge/feedbridge/pkg/feed"
)

// Server exposes the federated actor surface: webfinger discovery, per-source
// actor profiles and the inbox accepting follow/unfollow activities.
type Server struct {
	config       ConfigProvider
	resolver     Resolver
	registry     Registry
	bootstrapper Bootstrapper
	deliverer    Deliverer

	origin    string
	publicKey string
	version   string
	debug     bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Resolver checks whether a hostname is a known feed source
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (*feed.FeedInfo, error)
}

// Registry manages follow state for sources
type Registry interface {
	Subscribe(ctx context.Context, hostname, subscriber string) error
	Unsubscribe(ctx context.Context, hostname, subscriber string) error
}

// Bootstrapper back-fills a fresh subscriber with the source's current items
type Bootstrapper interface {
	BootstrapSubscriber(ctx context.Context, hostname, subscriber string) error
}

// Deliverer posts activities (the follow Accept) to remote actors
type Deliverer interface {
	Deliver(ctx context.Context, act any, subscriber string) error
}

// Params holds server dependencies
type Params struct {
	Config       ConfigProvider
	Resolver     Resolver
	Registry     Registry
	Bootstrapper Bootstrapper
	Deliverer    Deliverer
	Origin       string
	PublicKey    string
	Version      string
	Debug        bool
}

// New initializes a new server instance
func New(p Params) *Server {
	s := &Server{
		config:       p.Config,
		resolver:     p.Resolver,
		registry:     p.Registry,
		bootstrapper: p.Bootstrapper,
		deliverer:    p.Deliverer,
		origin:       p.Origin,
		publicKey:    p.PublicKey,
		version:      p.Version,
		debug:        p.Debug,
		router:       routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	log.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		log.Printf("[INFO] shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	return nil
}

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedbridge", "feedbridge", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /.well-known/webfinger", s.webfingerHandler)

	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)
	})

	// per-source actor surface
	s.router.HandleFunc("GET /{hostname}", s.actorHandler)
	s.router.HandleFunc("POST /{hostname}/inbox", s.inboxHandler)
}

// statusHandler returns server status
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().UTC(),
	}
	RenderJSON(w, r, http.StatusOK, status)
}

// RenderJSON sends JSON response
func RenderJSON(w http.ResponseWriter, _ *http.Request, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// RenderError sends error response as JSON
func RenderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	RenderJSON(w, r, code, map[string]string{"error": errMsg})
}
