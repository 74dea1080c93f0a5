// Package app wires all mockmate subsystems into a running service.
//
// The App struct owns the full lifecycle: New connects the providers, the
// question cache, the session manager, the WebSocket gateway, and the
// health/metrics endpoints into one HTTP server; Run serves until the
// context is cancelled; Shutdown tears everything down in reverse order.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/mockmate/mockmate/internal/config"
	"github.com/mockmate/mockmate/internal/gateway"
	"github.com/mockmate/mockmate/internal/health"
	"github.com/mockmate/mockmate/internal/observe"
	"github.com/mockmate/mockmate/internal/question"
	"github.com/mockmate/mockmate/pkg/provider/llm"
	"github.com/mockmate/mockmate/pkg/provider/tts"
)

// shutdownTimeout bounds graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// Providers holds one interface value per provider slot, populated by main
// via the config registry (with fallback wrapping where configured).
type Providers struct {
	LLM llm.Provider
	TTS tts.Provider
}

// Option injects a test double or overrides a default.
type Option func(*App)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithSessionManager injects a session manager.
func WithSessionManager(sm *SessionManager) Option {
	return func(a *App) { a.sessions = sm }
}

// WithCache injects a question cache.
func WithCache(c *question.Cache) Option {
	return func(a *App) { a.cache = c }
}

// App owns the service lifecycle.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	sessions *SessionManager
	cache    *question.Cache
	gateway  *gateway.Handler
	server   *http.Server

	// closers run in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// New wires the application. Both providers are required: the LLM drives
// questions and scoring, the TTS drives playback.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}
	if providers.TTS == nil {
		return nil, errors.New("app: a TTS provider is required")
	}

	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	if a.sessions == nil {
		a.sessions = NewSessionManager(a.metrics)
	}

	interviewCfg := cfg.Interview.WithDefaults()
	if a.cache == nil {
		a.cache = question.NewCache(interviewCfg.Cache.TTL, interviewCfg.Cache.MaxEntries)
	}

	mux := http.NewServeMux()

	a.gateway = gateway.New(providers.LLM, providers.TTS, interviewCfg,
		gateway.WithCache(a.cache),
		gateway.WithMetrics(a.metrics),
		gateway.WithRegistry(a.sessions),
	)
	a.gateway.Register(mux)

	health.New(
		health.LLMChecker(providers.LLM),
		health.TTSChecker(providers.TTS),
	).Register(mux)

	mux.Handle("GET /metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// Sessions returns the session manager.
func (a *App) Sessions() *SessionManager { return a.sessions }

// Run serves until ctx is cancelled, then shuts down gracefully. Blocks.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	a.Shutdown()
	return err
}

// Shutdown closes all live sessions and runs registered closers in reverse
// order. Safe to call more than once.
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		a.sessions.CloseAll()
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				observe.Logger(context.Background()).Warn("closer failed", "error", err)
			}
		}
	})
}

// AddCloser registers a teardown function run during Shutdown.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}
