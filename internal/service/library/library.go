package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jgivc/nebula/internal/common"
	"github.com/jgivc/nebula/internal/entity"
)

const (
	serviceName = "library"
)

type LibraryRepository interface {
	Load(ctx context.Context) ([]entity.Entry, error)
	AddLocal(ctx context.Context, path string, image *string) (*entity.Entry, error)
	AddSteam(ctx context.Context, appID entity.AppID, name string, image *string) (*entity.Entry, error)
	Remove(ctx context.Context, id int64) error
	Rename(ctx context.Context, id int64, name string) error
	Reorder(ctx context.Context, ids []int64) ([]int64, error)
}

type SteamDiscovery interface {
	Discover(ctx context.Context) ([]entity.SteamTitle, error)
}

type Launcher interface {
	LaunchLocal(ctx context.Context, path string) error
	LaunchSteam(ctx context.Context, appID entity.AppID) error
}

// Picker asks the user for files. Both methods return common.ErrCancelled
// when the user closes the prompt without choosing.
type Picker interface {
	SelectExecutable(ctx context.Context) (string, error)
	SelectImage(ctx context.Context) (string, error)
}

type libraryService struct {
	repo     LibraryRepository
	steam    SteamDiscovery
	launcher Launcher
	log      *slog.Logger
}

func NewLibraryService(repo LibraryRepository, steam SteamDiscovery, launcher Launcher, log *slog.Logger) *libraryService {
	return &libraryService{
		repo:     repo,
		steam:    steam,
		launcher: launcher,
		log:      log.With(slog.String("service", serviceName)),
	}
}

func (s *libraryService) ListEntries(ctx context.Context) ([]entity.Entry, error) {
	entries, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load library: %w", err)
	}

	return entries, nil
}

// Search returns entries whose name contains term, ignoring case, in library
// order. An empty term matches everything.
func (s *libraryService) Search(ctx context.Context, term string) ([]entity.Entry, error) {
	entries, err := s.ListEntries(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return entries, nil
	}

	found := make([]entity.Entry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Name), term) {
			found = append(found, e)
		}
	}

	return found, nil
}

func (s *libraryService) AddLocal(ctx context.Context, path string, image *string) (*entity.Entry, error) {
	e, err := s.repo.AddLocal(ctx, path, image)
	if err != nil {
		s.log.Error("Cannot add local entry", slog.String("path", path), slog.Any("error", err))

		return nil, fmt.Errorf("cannot add %s: %w", path, err)
	}

	return e, nil
}

// AddLocalInteractive asks for an executable and then for a cover image. If
// the executable prompt is cancelled nothing is added; a cancelled image
// prompt only leaves the entry without a cover.
func (s *libraryService) AddLocalInteractive(ctx context.Context, picker Picker) (*entity.Entry, error) {
	path, err := picker.SelectExecutable(ctx)
	if err != nil {
		if errors.Is(err, common.ErrCancelled) {
			s.log.Info("Add cancelled")
		}

		return nil, fmt.Errorf("cannot select executable: %w", err)
	}

	var image *string

	img, err := picker.SelectImage(ctx)
	switch {
	case err == nil:
		image = &img
	case errors.Is(err, common.ErrCancelled):
	default:
		return nil, fmt.Errorf("cannot select image: %w", err)
	}

	return s.AddLocal(ctx, path, image)
}

// AddSteam imports a discovered title. It returns common.ErrEntryAlreadyExists
// if the appid is already in the library.
func (s *libraryService) AddSteam(ctx context.Context, title entity.SteamTitle, image *string) (*entity.Entry, error) {
	e, err := s.repo.AddSteam(ctx, title.AppID, title.Name, image)
	if err != nil {
		if errors.Is(err, common.ErrEntryAlreadyExists) {
			s.log.Info("Steam title already in library", slog.String("appid", string(title.AppID)))
		} else {
			s.log.Error("Cannot add steam entry", slog.String("appid", string(title.AppID)), slog.Any("error", err))
		}

		return nil, fmt.Errorf("cannot add steam title %s: %w", title.AppID, err)
	}

	return e, nil
}

// ListAvailableSteamTitles returns installed titles that are not yet imported.
func (s *libraryService) ListAvailableSteamTitles(ctx context.Context) ([]entity.SteamTitle, error) {
	titles, err := s.steam.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot discover steam titles: %w", err)
	}

	entries, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load library: %w", err)
	}

	imported := make(map[entity.AppID]struct{}, len(entries))
	for _, e := range entries {
		if e.AppID != nil {
			imported[*e.AppID] = struct{}{}
		}
	}

	available := make([]entity.SteamTitle, 0, len(titles))
	for _, title := range titles {
		if _, exists := imported[title.AppID]; !exists {
			available = append(available, title)
		}
	}

	return available, nil
}

// ImportAllSteam imports every available title in discovery order. Titles
// imported concurrently by someone else are skipped.
func (s *libraryService) ImportAllSteam(ctx context.Context) ([]entity.Entry, error) {
	titles, err := s.ListAvailableSteamTitles(ctx)
	if err != nil {
		return nil, err
	}

	added := make([]entity.Entry, 0, len(titles))
	for _, title := range titles {
		e, err := s.AddSteam(ctx, title, nil)
		if err != nil {
			if errors.Is(err, common.ErrEntryAlreadyExists) {
				continue
			}

			return added, err
		}

		added = append(added, *e)
	}

	s.log.Info("Import steam titles", slog.Int("count", len(added)))

	return added, nil
}

func (s *libraryService) Remove(ctx context.Context, id int64) error {
	if err := s.repo.Remove(ctx, id); err != nil {
		s.log.Error("Cannot remove entry", slog.Int64("id", id), slog.Any("error", err))

		return fmt.Errorf("cannot remove %d: %w", id, err)
	}

	return nil
}

func (s *libraryService) Rename(ctx context.Context, id int64, name string) error {
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return fmt.Errorf("cannot rename %d: %w", id, err)
	}

	return nil
}

// Reorder applies a new order and returns the ids that were dropped because
// they were missing from ids.
func (s *libraryService) Reorder(ctx context.Context, ids []int64) ([]int64, error) {
	dropped, err := s.repo.Reorder(ctx, ids)
	if err != nil {
		s.log.Error("Cannot reorder library", slog.Any("error", err))

		return nil, fmt.Errorf("cannot reorder library: %w", err)
	}

	return dropped, nil
}

// Launch starts the entry with id. Only an unknown id is an error: a failed
// launch is logged and reported in the result, the library is left as is.
func (s *libraryService) Launch(ctx context.Context, id int64) (*entity.LaunchResult, error) {
	entries, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load library: %w", err)
	}

	var target *entity.Entry
	for i := range entries {
		if entries[i].ID == id {
			target = &entries[i]

			break
		}
	}

	if target == nil {
		return nil, fmt.Errorf("cannot launch %d: %w", id, common.ErrEntryNotFound)
	}

	res := &entity.LaunchResult{
		ID:      uuid.New(),
		EntryID: id,
	}

	log := s.log.With(slog.String("launch_id", res.ID.String()), slog.Int64("id", id), slog.String("name", target.Name))

	switch target.Source {
	case entity.SourceSteam:
		res.Err = s.launcher.LaunchSteam(ctx, *target.AppID)
	default:
		res.Err = s.launcher.LaunchLocal(ctx, *target.Path)
	}

	if res.Err != nil {
		log.Error("Cannot launch", slog.Any("error", res.Err))

		return res, nil
	}

	res.OK = true
	log.Info("Launched")

	return res, nil
}
