package cli

import (
	"log/slog"
	"os"

	"github.com/laserline/engraver/internal/config"
	"github.com/laserline/engraver/internal/feed"
	"github.com/laserline/engraver/internal/job"
	"github.com/laserline/engraver/internal/rules"
	"github.com/laserline/engraver/internal/store"
	"github.com/laserline/engraver/internal/syncer"
)

// app bundles the collaborators a command needs, built from the
// configuration file once per invocation.
type app struct {
	cfg    config.Config
	store  *store.Store
	logger *slog.Logger
}

// openApp loads configuration, opens the store and builds the logger.
// Callers must Close the returned app.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}

	level := logLevel(cfg.Log.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(cfg.DB.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}

	return &app{cfg: cfg, store: st, logger: logger}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) engine() *rules.Engine {
	return rules.NewEngine(a.store)
}

func (a *app) reader() *feed.Reader {
	var opts []feed.Option
	if a.cfg.Feed.Format != "" {
		opts = append(opts, feed.WithKind(feed.Kind(a.cfg.Feed.Format)))
	}
	return feed.NewReader(opts...)
}

func (a *app) syncer() *syncer.Syncer {
	return syncer.New(a.reader(), a.store, a.engine(), a.cfg.Feed.Location, a.logger)
}

func (a *app) processor() *job.Processor {
	renderer := &job.ExecRenderer{
		Command: a.cfg.Renderer.Command,
		Args:    a.cfg.Renderer.Args,
		Timeout: a.cfg.Renderer.Timeout.Std(),
	}
	gen := &job.Generator{
		TemplatesDir: a.cfg.Paths.Templates,
		AssetsDir:    a.cfg.Paths.Assets,
		WorkDir:      a.cfg.Paths.Workdir,
	}
	return job.NewProcessor(a.store, a.engine(), gen, renderer,
		job.WithLogger(a.logger),
		job.WithSettleDelay(a.cfg.Renderer.SettleDelay.Std()),
	)
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
