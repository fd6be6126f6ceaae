package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/offlinesync/internal/client/config"
	"github.com/dmitrijs2005/offlinesync/internal/client/engine"
	"github.com/dmitrijs2005/offlinesync/internal/logging"
	"github.com/spf13/pflag"
)

// openEngine is a test seam for engine.Open.
var openEngine = engine.Open

// newLogger is a test seam for the process logger.
var newLogger = func(cfg *config.Config) logging.Logger {
	return logging.New(logging.Options{File: cfg.LogFile, Level: cfg.LogLevel})
}

// App holds the engine shared by the commands of one invocation, or of a
// whole shell session.
type App struct {
	config *config.Config
	engine *engine.Engine
	log    logging.Logger

	// interactive keeps the engine open between commands.
	interactive bool
}

// open loads the configuration from fs and opens the engine. It is a no-op
// when the engine is already open.
func (a *App) open(ctx context.Context, fs *pflag.FlagSet) error {
	if a.engine != nil {
		return nil
	}

	cfg, err := config.LoadConfig(fs)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	log := newLogger(cfg)

	e, err := openEngine(ctx, cfg, engine.Deps{Logger: log})
	if err != nil {
		return fmt.Errorf("error opening engine: %w", err)
	}

	a.config = cfg
	a.engine = e
	a.log = log
	return nil
}

// release closes the engine unless a shell session still needs it.
func (a *App) release() error {
	if a.interactive {
		return nil
	}
	return a.Close()
}

func (a *App) Close() error {
	if a.engine == nil {
		return nil
	}
	err := a.engine.Close()
	a.engine = nil
	return err
}

func (a *App) status() string {
	if a.engine == nil {
		return ""
	}
	return fmt.Sprintf("(%s)", a.engine.Mode())
}

func (a *App) warnDisabled(w io.Writer) {
	if a.engine != nil && a.engine.Mode() == engine.ModeDisabled {
		fmt.Fprintln(w, "warning: local store unavailable, offline features are disabled")
	}
}
