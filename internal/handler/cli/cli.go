package clihandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jgivc/nebula/internal/adapter/picker"
	"github.com/jgivc/nebula/internal/common"
	"github.com/jgivc/nebula/internal/entity"
	srvlibrary "github.com/jgivc/nebula/internal/service/library"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigFileName = "config.yml"
)

type LibraryService interface {
	ListEntries(ctx context.Context) ([]entity.Entry, error)
	Search(ctx context.Context, term string) ([]entity.Entry, error)
	AddLocalInteractive(ctx context.Context, picker srvlibrary.Picker) (*entity.Entry, error)
	AddSteam(ctx context.Context, title entity.SteamTitle, image *string) (*entity.Entry, error)
	ListAvailableSteamTitles(ctx context.Context) ([]entity.SteamTitle, error)
	ImportAllSteam(ctx context.Context) ([]entity.Entry, error)
	Remove(ctx context.Context, id int64) error
	Rename(ctx context.Context, id int64, name string) error
	Reorder(ctx context.Context, ids []int64) ([]int64, error)
	Launch(ctx context.Context, id int64) (*entity.LaunchResult, error)
}

// Opener builds the service once the config path is known.
type Opener func(ctx context.Context, cfgPath string) (LibraryService, *slog.Logger, error)

type handler struct {
	srv LibraryService
	log *slog.Logger
}

func NewRootCommand(open Opener) *cobra.Command {
	var (
		cfgPath string
		h       handler
	)

	root := &cobra.Command{
		Use:           "nebula",
		Short:         "Keep local and Steam games in one library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			srv, log, err := open(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}

			h.srv = srv
			h.log = log.With(slog.String("handler", "cli"))

			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", DefaultConfigFileName, "Path to config file")

	root.AddCommand(
		newListCommand(&h),
		newAddCommand(&h),
		newRemoveCommand(&h),
		newRenameCommand(&h),
		newReorderCommand(&h),
		newLaunchCommand(&h),
		newSteamCommand(&h),
	)

	return root
}

func newListCommand(h *handler) *cobra.Command {
	var term string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library entries in display order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				entries []entity.Entry
				err     error
			)

			if term == "" {
				entries, err = h.srv.ListEntries(cmd.Context())
			} else {
				entries, err = h.srv.Search(cmd.Context(), term)
			}

			if err != nil {
				return err
			}

			printEntries(cmd.OutOrStdout(), entries)

			return nil
		},
	}

	cmd.Flags().StringVarP(&term, "search", "s", "", "Show only entries whose name contains this text")

	return cmd
}

func newAddCommand(h *handler) *cobra.Command {
	var image string

	cmd := &cobra.Command{
		Use:   "add [executable]",
		Short: "Add a local game",
		Long: `Add a local game to the library.

Without an executable the path is asked on standard input, followed by an
optional cover image. An empty answer cancels.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p srvlibrary.Picker
			if len(args) == 1 {
				p = picker.NewStaticPicker(args[0], image)
			} else {
				p = picker.NewPromptPicker(cmd.InOrStdin(), cmd.OutOrStdout())
			}

			e, err := h.srv.AddLocalInteractive(cmd.Context(), p)
			if err != nil {
				switch {
				case errors.Is(err, common.ErrCancelled):
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")

					return nil
				case errors.Is(err, common.ErrInvalidPath):
					return fmt.Errorf("executable path is empty")
				default:
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %d %s\n", e.ID, e.Name)

			return nil
		},
	}

	cmd.Flags().StringVarP(&image, "image", "i", "", "Cover image path")

	return cmd
}

func newRemoveCommand(h *handler) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			return h.srv.Remove(cmd.Context(), id)
		},
	}
}

func newRenameCommand(h *handler) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <name...>",
		Short: "Change the display name of an entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			if err := h.srv.Rename(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				switch {
				case errors.Is(err, common.ErrEntryNotFound):
					return fmt.Errorf("no entry with id %d", id)
				case errors.Is(err, common.ErrInvalidName):
					return fmt.Errorf("name cannot be empty")
				default:
					return err
				}
			}

			return nil
		},
	}
}

func newReorderCommand(h *handler) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id>...",
		Short: "Set the display order",
		Long: `Set the display order of the library.

Entries whose ids are not listed are removed from the library.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}

				ids = append(ids, id)
			}

			dropped, err := h.srv.Reorder(cmd.Context(), ids)
			if err != nil {
				return err
			}

			for _, id := range dropped {
				fmt.Fprintf(cmd.OutOrStdout(), "Dropped %d\n", id)
			}

			return nil
		},
	}
}

func newLaunchCommand(h *handler) *cobra.Command {
	return &cobra.Command{
		Use:   "launch <id>",
		Short: "Start a game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			res, err := h.srv.Launch(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, common.ErrEntryNotFound) {
					return fmt.Errorf("no entry with id %d", id)
				}

				return err
			}

			if !res.OK {
				return fmt.Errorf("launch %s failed: %w", res.ID, res.Err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Launched %d (%s)\n", id, res.ID)

			return nil
		},
	}
}

func newSteamCommand(h *handler) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steam",
		Short: "Work with installed Steam titles",
	}

	cmd.AddCommand(newSteamListCommand(h), newSteamImportCommand(h))

	return cmd
}

func newSteamListCommand(h *handler) *cobra.Command {
	var asYAML bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed Steam titles that are not imported yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			titles, err := h.srv.ListAvailableSteamTitles(cmd.Context())
			if err != nil {
				return err
			}

			if asYAML {
				data, err := yaml.Marshal(titles)
				if err != nil {
					return fmt.Errorf("cannot encode titles: %w", err)
				}

				_, err = cmd.OutOrStdout().Write(data)

				return err
			}

			for _, t := range titles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", t.AppID, t.Name)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print full title descriptors as YAML")

	return cmd
}

func newSteamImportCommand(h *handler) *cobra.Command {
	var (
		all   bool
		image string
	)

	cmd := &cobra.Command{
		Use:   "import <appid>...",
		Short: "Import installed Steam titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if all {
				added, err := h.srv.ImportAllSteam(ctx)
				printEntries(out, added)

				return err
			}

			if len(args) == 0 {
				return fmt.Errorf("give at least one appid or --all")
			}

			titles, err := h.srv.ListAvailableSteamTitles(ctx)
			if err != nil {
				return err
			}

			byID := make(map[entity.AppID]entity.SteamTitle, len(titles))
			for _, t := range titles {
				byID[t.AppID] = t
			}

			var img *string
			if image != "" {
				img = &image
			}

			var errs []error
			for _, arg := range args {
				title, ok := byID[entity.AppID(arg)]
				if !ok {
					errs = append(errs, fmt.Errorf("%s is not installed or already imported", arg))

					continue
				}

				e, err := h.srv.AddSteam(ctx, title, img)
				if err != nil {
					if errors.Is(err, common.ErrEntryAlreadyExists) {
						h.log.Info("Skip imported title", slog.String("appid", arg))

						continue
					}

					errs = append(errs, err)

					continue
				}

				fmt.Fprintf(out, "Added %d %s\n", e.ID, e.Name)
			}

			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Import every available title")
	cmd.Flags().StringVarP(&image, "image", "i", "", "Cover image path")

	return cmd
}

func printEntries(w io.Writer, entries []entity.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\n", e.ID, e.Source, e.Name)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad entry id %q", s)
	}

	return id, nil
}
