package launcher

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/jgivc/nebula/internal/common"
	"github.com/jgivc/nebula/internal/entity"
	"github.com/spf13/afero"
)

const (
	OSDarwin  = "darwin"
	OSWindows = "windows"

	OpenCommand    = "open"
	XDGOpenCommand = "xdg-open"
	CmdCommand     = "cmd"
	WindowsCmdFlag = "/c"
	StartCommand   = "start"
)

type launcher struct {
	fs       afero.Fs
	goos     string
	steamURI string
	start    func(cmd *exec.Cmd) error
	log      *slog.Logger
}

// NewLauncher starts games as detached child processes. steamURI is a format
// string with a single %s for the appid.
func NewLauncher(steamURI string, log *slog.Logger) *launcher {
	return NewLauncherWithFS(afero.NewOsFs(), runtime.GOOS, steamURI, nil, log)
}

func NewLauncherWithFS(fs afero.Fs, goos, steamURI string, start func(cmd *exec.Cmd) error, log *slog.Logger) *launcher {
	l := &launcher{
		fs:       fs,
		goos:     goos,
		steamURI: steamURI,
		start:    start,
		log:      log.With(slog.String("item", "Launcher")),
	}

	if l.start == nil {
		l.start = l.startDetached
	}

	return l
}

// LaunchLocal runs the executable at path with its own directory as working
// directory. Output is discarded and the process is not waited for.
func (l *launcher) LaunchLocal(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if path == "" {
		return common.ErrInvalidPath
	}

	stat, err := l.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot find executable %s: %w", path, err)
	}

	if stat.IsDir() {
		return fmt.Errorf("%s is a directory: %w", path, common.ErrInvalidPath)
	}

	cmd := exec.Command(path)
	cmd.Dir = filepath.Dir(path)

	if err := l.start(cmd); err != nil {
		return fmt.Errorf("cannot start %s: %w", path, err)
	}

	l.log.Info("Started executable", slog.String("path", path))

	return nil
}

// LaunchSteam hands the steam run URI to the platform URI handler.
func (l *launcher) LaunchSteam(ctx context.Context, appID entity.AppID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if appID == "" {
		return common.ErrInvalidAppID
	}

	uri := fmt.Sprintf(l.steamURI, appID)
	name, args := openURICommand(l.goos, uri)

	if err := l.start(exec.Command(name, args...)); err != nil {
		return fmt.Errorf("cannot open %s: %w", uri, err)
	}

	l.log.Info("Opened steam uri", slog.String("uri", uri))

	return nil
}

func (l *launcher) startDetached(cmd *exec.Cmd) error {
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			l.log.Debug("Child exited", slog.String("path", cmd.Path), slog.Any("error", err))
		}
	}()

	return nil
}

func openURICommand(goos, uri string) (string, []string) {
	switch goos {
	case OSDarwin:
		return OpenCommand, []string{uri}
	case OSWindows:
		return CmdCommand, []string{WindowsCmdFlag, StartCommand, "", uri}
	default:
		return XDGOpenCommand, []string{uri}
	}
}
