// Copyright 2020-2021 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package app wires the configuration and the logger
// into the options used to open engine tracks.
package app

import (
	"context"
	"fmt"
	"sync"

	"mediamux/pkg/compression"
	"mediamux/pkg/config"
	"mediamux/pkg/engine"
	"mediamux/pkg/log"

	"golang.org/x/sync/errgroup"
)

// App holds the services shared by all tracks.
type App struct {
	Config *config.Config
	Logger *log.Logger
	LogDB  *log.DB

	wg *sync.WaitGroup
}

// New loads the configuration file at configPath.
func New(configPath string) (*App, error) {
	c, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not get config: %w", err)
	}
	return NewWithConfig(c), nil
}

// NewWithConfig returns an app for a parsed configuration.
func NewWithConfig(c *config.Config) *App {
	wg := &sync.WaitGroup{}
	return &App{
		Config: c,
		Logger: log.NewLogger(c.LogLevel),
		LogDB:  log.NewDB(c.Log.DBPath, wg),
		wg:     wg,
	}
}

// Run starts the logger and the log savers.
// It blocks until ctx is canceled and the database is closed.
func (a *App) Run(ctx context.Context) error {
	if err := a.LogDB.Init(ctx); err != nil {
		return fmt.Errorf("could not initialize log database: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Start(ctx)
		return nil
	})
	g.Go(func() error {
		a.LogDB.SaveLogs(ctx, a.Logger)
		return nil
	})
	if a.Config.LogToStdout() {
		g.Go(func() error {
			a.Logger.LogToStdout(ctx)
			return nil
		})
	}

	a.Logger.Info().Src("app").Msgf("container: %v, log level: %v",
		a.Config.ContainerType, a.Config.LogLevel)

	err := g.Wait()
	a.wg.Wait()
	return err
}

// TrackOptions returns the options for a track compressed as id.
// Events logged by the track before Run has started are dropped.
func (a *App) TrackOptions(id compression.ID, name string) []engine.Option {
	return []engine.Option{
		engine.WithLogger(a.Logger),
		engine.WithName(name),
		engine.WithContainerType(a.Config.ContainerType),
		engine.WithParameters(a.Config.CodecParameters(id)),
	}
}
