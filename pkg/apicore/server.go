// Package apicore provides the base HTTP server, flags, middleware chain,
// and response helpers for the Dispatch content API.
package apicore

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// DefaultTokenTTL is how long issued auth tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// Config holds the server configuration, parsed from CLI flags and environment.
type Config struct {
	Port     int
	Latency  time.Duration
	FailRate float64
	SeedFile string
	Verbose  bool
	TokenKey string
	TokenTTL time.Duration
	Name     string // server name for logging
}

// RegisterFlags binds the server flags to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Port, "port", 0, "HTTP listen port (default: 8000)")
	fs.DurationVar(&c.Latency, "latency", 0, "Base simulated latency")
	fs.Float64Var(&c.FailRate, "fail-rate", 0.0, "Random failure rate 0.0-1.0")
	fs.StringVar(&c.SeedFile, "seed-file", "", "Path to YAML fixture for initial state")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable request/response logging")
	fs.StringVar(&c.TokenKey, "token-key", "", "32-byte symmetric key for auth tokens")
	fs.DurationVar(&c.TokenTTL, "token-ttl", DefaultTokenTTL, "Lifetime of issued auth tokens")
}

// DefaultPort is used when neither --port nor PORT is set.
const DefaultPort = 8000

// ApplyEnv fills unset fields from PORT and DISPATCH_TOKEN_KEY, then defaults.
func (c *Config) ApplyEnv() {
	if c.Port == 0 {
		if p := os.Getenv("PORT"); p != "" {
			if n, err := strconv.Atoi(p); err == nil {
				c.Port = n
			}
		}
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TokenKey == "" {
		c.TokenKey = os.Getenv("DISPATCH_TOKEN_KEY")
	}
	if c.TokenTTL == 0 {
		c.TokenTTL = DefaultTokenTTL
	}
}

// ParseFlags parses the command line flags and returns a Config.
// The name is used for logging and identification.
func ParseFlags(name string) *Config {
	cfg := &Config{Name: name}
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	cfg.ApplyEnv()
	return cfg
}

// Server wraps a chi router with the common middleware and provides
// lifecycle management.
type Server struct {
	Config *Config
	Router *chi.Mux
	Logger *slog.Logger
	mw     *Middleware
	mu     sync.RWMutex // protects Config fields during runtime updates
}

// New creates a new Server with the given config.
func New(cfg *Config) *Server {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	r := chi.NewRouter()
	mw := NewMiddleware(cfg, logger)

	// Simulate is always mounted so runtime config updates take effect
	// immediately.
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS)
	r.Use(mw.RequestLog)
	r.Use(mw.Simulate)

	return &Server{
		Config: cfg,
		Router: r,
		Logger: logger,
		mw:     mw,
	}
}

// Middleware returns the shared middleware for the API and admin routes.
func (s *Server) Middleware() *Middleware {
	return s.mw
}

// GetConfig returns the current runtime configuration as a map.
// This implements the admin.ConfigProvider interface.
func (s *Server) GetConfig() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"name":      s.Config.Name,
		"port":      s.Config.Port,
		"latency":   s.Config.Latency.String(),
		"fail_rate": s.Config.FailRate,
		"verbose":   s.Config.Verbose,
		"token_ttl": s.Config.TokenTTL.String(),
	}
}

// UpdateConfig updates runtime configuration fields from a map.
// Only latency, fail_rate and verbose can be updated at runtime.
// All fields are validated before any are applied.
func (s *Server) UpdateConfig(updates map[string]any) error {
	type configUpdate struct {
		latency  *time.Duration
		failRate *float64
		verbose  *bool
	}
	var cu configUpdate

	for k, v := range updates {
		switch k {
		case "latency":
			str, ok := v.(string)
			if !ok {
				return fmt.Errorf("latency must be a duration string")
			}
			d, err := time.ParseDuration(str)
			if err != nil {
				return fmt.Errorf("invalid latency duration: %w", err)
			}
			if d < 0 {
				return fmt.Errorf("latency must not be negative")
			}
			cu.latency = &d
		case "fail_rate":
			f, ok := v.(float64)
			if !ok {
				return fmt.Errorf("fail_rate must be a number")
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
			}
			cu.failRate = &f
		case "verbose":
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("verbose must be a boolean")
			}
			cu.verbose = &b
		case "name", "port", "token_ttl":
			return fmt.Errorf("%s cannot be changed at runtime", k)
		default:
			return fmt.Errorf("unknown config key: %s", k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cu.latency != nil {
		s.Config.Latency = *cu.latency
	}
	if cu.failRate != nil {
		s.Config.FailRate = *cu.failRate
	}
	if cu.verbose != nil {
		s.Config.Verbose = *cu.verbose
	}
	s.mw.Configure(s.Config.Latency, s.Config.FailRate, s.Config.Verbose)
	return nil
}

// Serve starts the HTTP server and blocks until ctx is cancelled or a
// shutdown signal arrives.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.Config.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("starting server", "name", s.Config.Name, "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.Logger.Info("shutting down server", "name", s.Config.Name)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ServeHTTP implements http.Handler so Server can be used directly in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response. The top-level detail key matches the
// shape Dispatch clients already read.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]any{
		"detail": message,
		"error": map[string]any{
			"message": message,
			"type":    http.StatusText(status),
			"code":    status,
		},
	})
}

// FieldErrors writes a 400 response carrying per-field validation messages.
func FieldErrors(w http.ResponseWriter, errs map[string]string) {
	JSON(w, http.StatusBadRequest, map[string]any{
		"detail": "invalid request",
		"fields": errs,
		"error": map[string]any{
			"message": "invalid request",
			"type":    http.StatusText(http.StatusBadRequest),
			"code":    http.StatusBadRequest,
		},
	})
}
