// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/invowk/extman/internal/config"
	"github.com/invowk/extman/internal/discovery"
	"github.com/invowk/extman/internal/telemetry"
	"github.com/invowk/extman/pkg/extension"
	"github.com/invowk/extman/pkg/extmanager"
)

const serviceName = "extman"

type (
	// App wires CLI services and shared dependencies. All Cobra handlers receive
	// an App and build their Manager through it.
	App struct {
		Config config.Provider
		// Source overrides filesystem discovery when set.
		Source extension.ModuleSource
		stdout io.Writer
		stderr io.Writer
		opts   rootOptions
	}

	// Dependencies defines the injection points for building an App. Nil fields
	// are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Source extension.ModuleSource
		Stdout io.Writer
		Stderr io.Writer
	}

	rootOptions struct {
		configPath  string
		verbose     bool
		jsonOutput  bool
		searchPaths []string
	}

	// session is one loaded configuration with the Manager built from it.
	session struct {
		cfg        *config.Config
		configPath string
		manager    *extmanager.Manager
		logger     *slog.Logger
		shutdown   telemetry.ShutdownFunc
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}

	return &App{
		Config: deps.Config,
		Source: deps.Source,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
	}
}

// loadConfig loads the configuration selected by --config and applies the
// flag overrides.
func (a *App) loadConfig(ctx context.Context) (config.Loaded, error) {
	loaded, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.opts.configPath})
	if err != nil {
		return config.Loaded{}, err
	}
	if a.opts.verbose {
		loaded.Config.Log.Level = config.LogLevelDebug
	}
	for _, p := range a.opts.searchPaths {
		loaded.Config.SearchPaths = append(loaded.Config.SearchPaths, config.ExtensionPath(p))
	}
	return loaded, nil
}

// newSession loads configuration and builds an uninitialized Manager.
// The caller must call close.
func (a *App) newSession(ctx context.Context) (*session, error) {
	loaded, err := a.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	cfg := loaded.Config

	logger := newLogger(a.stderr, cfg.Log)

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}

	source := a.Source
	if source == nil {
		source = discovery.New(cfg, discovery.WithLogger(logger))
	}

	var strategies []extension.DependencyStrategy
	if cfg.Ordering.ThemeDependencies {
		strategies = append(strategies, extension.ThemeDependencyStrategy{})
	}

	m := extmanager.New(source,
		extmanager.WithLogger(logger),
		extmanager.WithDependencyStrategies(strategies...),
		extmanager.WithMaxParallelism(cfg.Discovery.MaxParallelism),
	)

	return &session{
		cfg:        cfg,
		configPath: loaded.Path,
		manager:    m,
		logger:     logger,
		shutdown:   shutdown,
	}, nil
}

// initialize runs discovery and ordering, decorating fatal errors with
// remediation hints.
func (s *session) initialize(ctx context.Context) error {
	if err := s.manager.EnsureInitialized(ctx); err != nil {
		return wrapInitError(err)
	}
	return nil
}

func (s *session) close(ctx context.Context) {
	if err := s.shutdown(ctx); err != nil {
		s.logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// withSession runs fn with an initialized session.
func (a *App) withSession(ctx context.Context, fn func(*session) error) error {
	s, err := a.newSession(ctx)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	if err := s.initialize(ctx); err != nil {
		return err
	}
	return fn(s)
}
