package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jgivc/nebula/internal/adapter/acfadapter"
	"github.com/jgivc/nebula/internal/adapter/launcher"
	"github.com/jgivc/nebula/internal/adapter/registry"
	"github.com/jgivc/nebula/internal/config"
	clihandler "github.com/jgivc/nebula/internal/handler/cli"
	"github.com/jgivc/nebula/internal/repository/library"
	srvlibrary "github.com/jgivc/nebula/internal/service/library"
	"github.com/jgivc/nebula/internal/storage/steam"
	"github.com/spf13/cobra"
)

// App owns every long lived component. Nothing is shared through package
// globals; commands reach the library only through the service built here.
type App struct {
	cfg    *config.Config
	logOut io.Writer
	log    *slog.Logger
}

func New() *App {
	return &App{
		logOut: os.Stderr,
	}
}

func (a *App) Command() *cobra.Command {
	return clihandler.NewRootCommand(a.Open)
}

// Open loads the config and wires the library service.
func (a *App) Open(ctx context.Context, cfgPath string) (clihandler.LibraryService, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}

	a.cfg = cfg

	log, err := newLogger(a.logOut, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	a.log = log

	log.Debug("Open library", slog.String("config", cfgPath), slog.String("data_file", cfg.DataFile))

	repo := library.NewLibraryRepository(cfg.DataFile, log)
	store := steam.NewSteamStorage(
		registry.NewSteamResolver(cfg.SteamConfig.Root, log),
		acfadapter.NewACFAdapter(log),
		&cfg.SteamConfig,
		log,
	)
	l := launcher.NewLauncher(cfg.LaunchConfig.SteamURI, log)

	return srvlibrary.NewLibraryService(repo, store, l, log), log, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lo := &slog.HandlerOptions{}
	switch level {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	return slog.New(slog.NewTextHandler(w, lo)), nil
}
