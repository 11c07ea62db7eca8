package registry

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/jgivc/nebula/internal/common"
	"github.com/spf13/afero"
)

type steamResolver struct {
	fs         afero.Fs
	root       string
	candidates func() []string
	log        *slog.Logger
}

// NewSteamResolver returns a lookup of the Steam installation root. A non
// empty root from configuration is tried first, then the host registry or
// the usual per-platform install locations.
func NewSteamResolver(root string, log *slog.Logger) *steamResolver {
	return NewSteamResolverWithFS(afero.NewOsFs(), root, platformRoots, log)
}

func NewSteamResolverWithFS(fs afero.Fs, root string, candidates func() []string, log *slog.Logger) *steamResolver {
	return &steamResolver{
		fs:         fs,
		root:       root,
		candidates: candidates,
		log:        log.With(slog.String("item", "SteamResolver")),
	}
}

// SteamRoot returns common.ErrSteamRootNotFound when no candidate is an
// existing directory.
func (r *steamResolver) SteamRoot(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if r.root != "" {
		if r.isDir(r.root) {
			return filepath.Clean(r.root), nil
		}

		r.log.Warn("Configured steam root does not exist", slog.String("path", r.root))
	}

	if r.candidates == nil {
		return "", common.ErrSteamRootNotFound
	}

	for _, path := range r.candidates() {
		if path == "" {
			continue
		}

		if r.isDir(path) {
			r.log.Debug("Found steam root", slog.String("path", path))

			return filepath.Clean(path), nil
		}
	}

	return "", common.ErrSteamRootNotFound
}

func (r *steamResolver) isDir(path string) bool {
	stat, err := r.fs.Stat(path)
	if err != nil {
		return false
	}

	return stat.IsDir()
}
