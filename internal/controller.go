package internal

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dcrodman/warpserver/internal/console"
	"github.com/dcrodman/warpserver/internal/core"
	"github.com/dcrodman/warpserver/internal/core/data"
	"github.com/dcrodman/warpserver/internal/core/debug"
	"github.com/dcrodman/warpserver/internal/core/metrics"
	"github.com/dcrodman/warpserver/internal/game"
	"github.com/dcrodman/warpserver/internal/status"
)

// Controller is the main entrypoint for the server. It's responsible for initializing
// any shared resources (such as database and logging), defining the servers, and
// launching everything.
type Controller struct {
	Config *core.Config
	// Console commands are read from here when set.
	Console io.Reader
	// ConsoleOutput receives command output. Defaults to io.Discard.
	ConsoleOutput io.Writer
	// WatchConfig enables reloading the config file when it changes.
	WatchConfig bool

	logger *logrus.Logger
	game   *game.Server
	server *frontend
}

// Start runs every server until ctx is cancelled, a server fails, or the
// operator quits from the console.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.Enabled {
		debug.StartUtilities(c.logger, c.Config.Debugging.PprofPort)
	}

	db, err := data.Initialize(c.Config.Database.Engine, c.Config.DatabaseURL(), c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		return err
	}
	defer data.Shutdown(db)

	m := metrics.New()
	c.game = &game.Server{
		Name:    "GAME",
		Config:  c.Config,
		Logger:  c.logger,
		DB:      db,
		Metrics: m,
	}
	c.server = &frontend{
		Address: c.Config.ListenAddress(),
		Backend: c.game,
		Config:  c.Config,
		Logger:  c.logger,
		Metrics: m,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Failure to initialize the server is considered terminal.
	if err := c.server.Start(ctx); err != nil {
		return err
	}

	if c.WatchConfig {
		core.WatchConfig(c.reload)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.server.Serve(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		c.game.Shutdown("Server shutting down")
		return nil
	})

	if c.Config.Web.HTTPPort != 0 {
		statusServer := &status.Server{
			Port:       c.Config.Web.HTTPPort,
			ServerName: c.Config.ServerName,
			Source:     c.game,
			Metrics:    m,
			Logger:     c.logger,
		}
		g.Go(func() error {
			return statusServer.Run(ctx)
		})
	}

	if c.Console != nil {
		out := c.ConsoleOutput
		if out == nil {
			out = io.Discard
		}
		cons := &console.Console{
			Server: c.game,
			In:     c.Console,
			Out:    out,
			Logger: c.logger,
		}
		g.Go(func() error {
			return cons.Run(ctx)
		})
	}

	err = g.Wait()
	if errors.Is(err, console.ErrQuit) {
		c.logger.Info("shutdown requested from the console")
		return nil
	}
	return err
}

func (c *Controller) reload(cfg *core.Config, err error) {
	if err != nil {
		c.logger.Warnf("ignoring config change: %v", err)
		return
	}
	c.game.Reload(cfg.Reloadable())
}
