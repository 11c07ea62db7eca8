package steam

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/jgivc/nebula/internal/common"
	"github.com/jgivc/nebula/internal/config"
	"github.com/jgivc/nebula/internal/entity"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	libraryFoldersFileName = "libraryfolders.vdf"
	scanKey                = "steam"

	fieldAppID      = "appid"
	fieldName       = "name"
	fieldInstallDir = "installdir"
	fieldPath       = "path"
)

type RootResolver interface {
	SteamRoot(ctx context.Context) (string, error)
}

// ManifestParser turns one manifest file into flat key-value pairs. A nil
// result means the file could not be used.
type ManifestParser interface {
	ParseFile(path string) map[string]string
	Values(path, key string) []string
}

type steamStorage struct {
	fs       afero.Fs
	resolver RootResolver
	parser   ManifestParser
	cfg      *config.SteamConfig
	group    singleflight.Group
	log      *slog.Logger
}

func NewSteamStorage(resolver RootResolver, parser ManifestParser, cfg *config.SteamConfig, log *slog.Logger) *steamStorage {
	return NewSteamStorageWithFS(afero.NewOsFs(), resolver, parser, cfg, log)
}

func NewSteamStorageWithFS(fs afero.Fs, resolver RootResolver, parser ManifestParser, cfg *config.SteamConfig, log *slog.Logger) *steamStorage {
	return &steamStorage{
		fs:       fs,
		resolver: resolver,
		parser:   parser,
		cfg:      cfg,
		log:      log.With(slog.String("item", "SteamStorage")),
	}
}

// Discover lists installed Steam titles in manifest enumeration order. Any
// lookup or filesystem problem degrades to fewer (or no) titles; the only
// error returned is the context's. Concurrent callers share a single scan,
// and a caller giving up does not abort the scan for the others.
func (s *steamStorage) Discover(ctx context.Context) ([]entity.SteamTitle, error) {
	ch := s.group.DoChan(scanKey, func() (any, error) {
		return s.scan(context.WithoutCancel(ctx)), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		titles := res.Val.([]entity.SteamTitle)
		out := make([]entity.SteamTitle, len(titles))
		copy(out, titles)

		return out, nil
	}
}

func (s *steamStorage) scan(ctx context.Context) []entity.SteamTitle {
	root, err := s.resolver.SteamRoot(ctx)
	if err != nil {
		if errors.Is(err, common.ErrSteamRootNotFound) {
			s.log.Info("Steam is not installed")
		} else {
			s.log.Warn("Cannot resolve steam root", slog.Any("error", err))
		}

		return []entity.SteamTitle{}
	}

	titles := []entity.SteamTitle{}
	seen := make(map[entity.AppID]struct{})

	for _, lib := range s.libraries(root) {
		for _, title := range s.scanLibrary(ctx, lib) {
			if _, exists := seen[title.AppID]; exists {
				s.log.Debug("Skip title found in another library", slog.String("appid", string(title.AppID)), slog.String("library", lib))

				continue
			}

			seen[title.AppID] = struct{}{}
			titles = append(titles, title)
		}
	}

	s.log.Info("Scan steam libraries", slog.String("root", root), slog.Int("count", len(titles)))

	return titles
}

// libraries returns the root library followed by the extra libraries listed in
// libraryfolders.vdf, without duplicates.
func (s *steamStorage) libraries(root string) []string {
	libs := []string{root}
	if !s.cfg.ScanLibraryFolders() {
		return libs
	}

	seen := map[string]struct{}{libraryKey(root): {}}

	vdf := filepath.Join(root, s.cfg.AppsDir, libraryFoldersFileName)
	if !s.exists(vdf) {
		return libs
	}

	for _, path := range s.parser.Values(vdf, fieldPath) {
		if path == "" {
			continue
		}

		key := libraryKey(path)
		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		libs = append(libs, filepath.Clean(path))
	}

	return libs
}

func (s *steamStorage) scanLibrary(ctx context.Context, lib string) []entity.SteamTitle {
	log := s.log.With(slog.String("library", lib))
	appsDir := filepath.Join(lib, s.cfg.AppsDir)

	entries, err := afero.ReadDir(s.fs, appsDir)
	if err != nil {
		log.Info("Cannot read apps dir", slog.String("path", appsDir), slog.Any("error", err))

		return nil
	}

	var manifests []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), s.cfg.ManifestExt) {
			continue
		}

		manifests = append(manifests, filepath.Join(appsDir, entry.Name()))
	}

	if len(manifests) == 0 {
		return nil
	}

	results := make([]*entity.SteamTitle, len(manifests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, path := range manifests {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i] = s.toTitle(path, lib)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Info("Interrupted", slog.Any("error", err))

		return nil
	}

	titles := make([]entity.SteamTitle, 0, len(results))
	for _, title := range results {
		if title != nil {
			titles = append(titles, *title)
		}
	}

	return titles
}

func (s *steamStorage) toTitle(path, lib string) *entity.SteamTitle {
	kv := s.parser.ParseFile(path)
	if kv == nil {
		return nil
	}

	appID := kv[fieldAppID]
	if appID == "" {
		s.log.Warn("Skip manifest without appid", slog.String("path", path))

		return nil
	}

	return &entity.SteamTitle{
		AppID:      entity.AppID(appID),
		Name:       kv[fieldName],
		InstallDir: kv[fieldInstallDir],
		LibraryDir: lib,
	}
}

func (s *steamStorage) exists(path string) bool {
	_, err := s.fs.Stat(path)

	return err == nil
}

func libraryKey(path string) string {
	key := filepath.Clean(filepath.FromSlash(path))
	if runtime.GOOS == "windows" {
		key = strings.ToLower(key)
	}

	return key
}
