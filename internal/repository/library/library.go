package library

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jgivc/nebula/internal/common"
	"github.com/jgivc/nebula/internal/entity"
	"github.com/jgivc/nebula/internal/util"
	"github.com/spf13/afero"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o600
	tempFilePattern = ".nebula-*.tmp"
)

// libraryRepository owns the library document. Every mutation reloads the
// document, applies the change and rewrites the whole file while holding mu,
// so two mutations never interleave their read-modify-write cycles.
type libraryRepository struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
	ids  *util.IDGenerator
	log  *slog.Logger
}

func NewLibraryRepository(path string, log *slog.Logger) *libraryRepository {
	return NewLibraryRepositoryWithFS(afero.NewOsFs(), path, util.NewIDGenerator(), log)
}

func NewLibraryRepositoryWithFS(fs afero.Fs, path string, ids *util.IDGenerator, log *slog.Logger) *libraryRepository {
	return &libraryRepository{
		fs:   fs,
		path: path,
		ids:  ids,
		log:  log.With(slog.String("item", "LibraryRepository")),
	}
}

// Load returns the stored entries in document order. A missing, unreadable or
// corrupt document yields an empty library.
func (r *libraryRepository) Load(ctx context.Context) ([]entity.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(), nil
}

// Save replaces the document with entries. The previous document stays intact
// if the write fails.
func (r *libraryRepository) Save(ctx context.Context, entries []entity.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(entries)
}

func (r *libraryRepository) AddLocal(ctx context.Context, path string, image *string) (*entity.Entry, error) {
	if strings.TrimSpace(path) == "" {
		return nil, common.ErrInvalidPath
	}

	var added entity.Entry

	err := r.mutate(ctx, "AddLocal", func(entries []entity.Entry) ([]entity.Entry, error) {
		added = entity.Entry{
			ID:     r.ids.Next(),
			Name:   util.NameFromPath(path),
			Source: entity.SourceLocal,
			Path:   entity.StringPtr(path),
			Image:  cloneString(image),
		}

		return append(entries, added), nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Add local entry", slog.Int64("id", added.ID), slog.String("name", added.Name), slog.String("path", path))

	return &added, nil
}

// AddSteam returns common.ErrEntryAlreadyExists without touching the document
// when an entry with the same appid is already stored.
func (r *libraryRepository) AddSteam(ctx context.Context, appID entity.AppID, name string, image *string) (*entity.Entry, error) {
	if appID == "" {
		return nil, common.ErrInvalidAppID
	}

	var added entity.Entry

	err := r.mutate(ctx, "AddSteam", func(entries []entity.Entry) ([]entity.Entry, error) {
		for _, e := range entries {
			if e.AppID != nil && *e.AppID == appID {
				return nil, common.ErrEntryAlreadyExists
			}
		}

		if strings.TrimSpace(name) == "" {
			name = string(appID)
		}

		added = entity.Entry{
			ID:     r.ids.Next(),
			Name:   name,
			Source: entity.SourceSteam,
			AppID:  entity.AppIDPtr(appID),
			Image:  cloneString(image),
		}

		return append(entries, added), nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("Add steam entry", slog.Int64("id", added.ID), slog.String("name", added.Name), slog.String("appid", string(appID)))

	return &added, nil
}

// Remove deletes the entry with id. A missing id is not an error.
func (r *libraryRepository) Remove(ctx context.Context, id int64) error {
	return r.mutate(ctx, "Remove", func(entries []entity.Entry) ([]entity.Entry, error) {
		return slices.DeleteFunc(entries, func(e entity.Entry) bool {
			return e.ID == id
		}), nil
	})
}

func (r *libraryRepository) Rename(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return common.ErrInvalidName
	}

	return r.mutate(ctx, "Rename", func(entries []entity.Entry) ([]entity.Entry, error) {
		i := slices.IndexFunc(entries, func(e entity.Entry) bool {
			return e.ID == id
		})
		if i < 0 {
			return nil, common.ErrEntryNotFound
		}

		entries[i].Name = name

		return entries, nil
	})
}

// Reorder rearranges the library to follow ids. Unknown ids and repeats are
// ignored. Stored entries whose id is not listed are dropped and returned.
func (r *libraryRepository) Reorder(ctx context.Context, ids []int64) ([]int64, error) {
	var dropped []int64

	err := r.mutate(ctx, "Reorder", func(entries []entity.Entry) ([]entity.Entry, error) {
		byID := make(map[int64]entity.Entry, len(entries))
		for _, e := range entries {
			byID[e.ID] = e
		}

		ordered := make([]entity.Entry, 0, len(entries))
		for _, id := range ids {
			e, exists := byID[id]
			if !exists {
				continue
			}

			ordered = append(ordered, e)
			delete(byID, id)
		}

		for _, e := range entries {
			if _, left := byID[e.ID]; left {
				dropped = append(dropped, e.ID)
			}
		}

		return ordered, nil
	})
	if err != nil {
		return nil, err
	}

	if len(dropped) > 0 {
		r.log.Warn("Reorder dropped entries", slog.Any("ids", dropped))
	}

	return dropped, nil
}

func (r *libraryRepository) mutate(ctx context.Context, op string, fn func([]entity.Entry) ([]entity.Entry, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := fn(r.load())
	if err != nil {
		return err
	}

	if err := r.save(entries); err != nil {
		r.log.Error("Cannot save library", slog.String("op", op), slog.Any("error", err))

		return fmt.Errorf("cannot save library: %w", err)
	}

	return nil
}

func (r *libraryRepository) load() []entity.Entry {
	log := r.log.With(slog.String("op", "load"), slog.String("path", r.path))

	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Cannot read library, starting empty", slog.Any("error", err))
		}

		return []entity.Entry{}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return []entity.Entry{}
	}

	var raw []entity.Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		log.Warn("Library is corrupt, starting empty", slog.Any("error", err))

		return []entity.Entry{}
	}

	entries := make([]entity.Entry, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))

	for _, e := range raw {
		r.ids.Observe(e.ID)

		if e.Source == "" {
			e.Source = inferSource(e)
		}

		if !e.Valid() {
			log.Warn("Skip invalid entry", slog.Int64("id", e.ID), slog.String("name", e.Name))

			continue
		}

		if _, exists := seen[e.ID]; exists {
			log.Warn("Skip entry with duplicate id", slog.Int64("id", e.ID), slog.String("name", e.Name))

			continue
		}

		seen[e.ID] = struct{}{}
		entries = append(entries, e)
	}

	return entries
}

// inferSource fills in the source of entries written before it was stored.
func inferSource(e entity.Entry) entity.Source {
	switch {
	case e.Path != nil && e.AppID == nil:
		return entity.SourceLocal
	case e.AppID != nil && e.Path == nil:
		return entity.SourceSteam
	}

	return ""
}

func (r *libraryRepository) save(entries []entity.Entry) error {
	if entries == nil {
		entries = []entity.Entry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode library: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := r.fs.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("cannot create library dir: %w", err)
	}

	tmp, err := afero.TempFile(r.fs, dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = r.fs.Remove(tmpName)

		return fmt.Errorf("cannot write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		_ = r.fs.Remove(tmpName)

		return fmt.Errorf("cannot sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = r.fs.Remove(tmpName)

		return fmt.Errorf("cannot close temp file: %w", err)
	}

	if err := r.fs.Chmod(tmpName, filePermissions); err != nil {
		r.log.Debug("Cannot chmod temp file", slog.String("path", tmpName), slog.Any("error", err))
	}

	if err := r.fs.Rename(tmpName, r.path); err != nil {
		_ = r.fs.Remove(tmpName)

		return fmt.Errorf("cannot replace library: %w", err)
	}

	return nil
}

func cloneString(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}

	return entity.StringPtr(*s)
}
