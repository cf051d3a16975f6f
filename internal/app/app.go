// Package app provides application-level wiring: dataset loading, the
// swappable cube provider, and scheduled reloads.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/robfig/cron/v3"

	"cube-demo/internal/api"
	"cube-demo/internal/config"
	"cube-demo/internal/cube"
	"cube-demo/internal/dataset"
	"cube-demo/internal/ui"
)

// Deps holds the external dependencies that main() must provide.
type Deps struct {
	Cfg    *config.Config
	Logger *slog.Logger
}

// Provider hands out the currently loaded cube. Reloads swap the engine
// atomically, so in-flight requests keep the cube they started with.
type Provider struct {
	current atomic.Pointer[cube.Hypercube]
}

func (p *Provider) Cube() *cube.Hypercube { return p.current.Load() }

// App is the fully-wired application: the HTTP handler plus the reload
// machinery behind it.
type App struct {
	Handler  http.Handler
	Provider *Provider

	cfg    *config.Config
	logger *slog.Logger
	cron   *cron.Cron
}

// New loads the dataset and wires the API and dashboard around it.
func New(deps Deps) (*App, error) {
	engine, err := dataset.Load(deps.Cfg.DatasetDir)
	if err != nil {
		return nil, fmt.Errorf("load dataset from %s: %w", deps.Cfg.DatasetDir, err)
	}

	provider := &Provider{}
	provider.current.Store(engine)

	apiHandler := api.NewHandler(provider, deps.Logger.With("component", "api"))
	uiHandler := ui.NewHandler(provider, deps.Logger.With("component", "ui"))
	router := api.NewRouter(apiHandler, uiHandler.Router(), api.RouterConfig{
		CORSAllowedOrigins: deps.Cfg.CORSAllowedOrigins,
		RateLimitRPS:       deps.Cfg.RateLimitRPS,
		RateLimitBurst:     deps.Cfg.RateLimitBurst,
	})

	a := &App{
		Handler:  router,
		Provider: provider,
		cfg:      deps.Cfg,
		logger:   deps.Logger,
	}

	if deps.Cfg.ReloadCron != "" {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(deps.Cfg.ReloadCron, a.reloadJob); err != nil {
			return nil, fmt.Errorf("reload schedule %q: %w", deps.Cfg.ReloadCron, err)
		}
	}
	return a, nil
}

// Reload re-reads the dataset directory and swaps the cube in place. Filter
// states defined on the old cube do not carry over.
func (a *App) Reload() error {
	engine, err := dataset.Load(a.cfg.DatasetDir)
	if err != nil {
		return fmt.Errorf("reload dataset: %w", err)
	}
	a.Provider.current.Store(engine)
	a.logger.Info("dataset reloaded", "dir", a.cfg.DatasetDir)
	return nil
}

func (a *App) reloadJob() {
	if err := a.Reload(); err != nil {
		a.logger.Error("scheduled reload failed", "error", err)
	}
}

// StartReloader begins the cron schedule, if one is configured.
func (a *App) StartReloader() {
	if a.cron != nil {
		a.cron.Start()
		a.logger.Info("reload schedule started", "spec", a.cfg.ReloadCron)
	}
}

// StopReloader stops the schedule and waits for a running job to finish.
func (a *App) StopReloader() {
	if a.cron != nil {
		<-a.cron.Stop().Done()
	}
}
