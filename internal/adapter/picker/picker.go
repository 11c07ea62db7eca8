package picker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jgivc/nebula/internal/common"
	"github.com/spf13/afero"
)

var (
	ImageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// staticPicker answers with paths known up front, e.g. from command line
// arguments. An empty path behaves like a cancelled prompt.
type staticPicker struct {
	executable string
	image      string
}

func NewStaticPicker(executable, image string) *staticPicker {
	return &staticPicker{executable: executable, image: image}
}

func (p *staticPicker) SelectExecutable(ctx context.Context) (string, error) {
	return answer(ctx, p.executable)
}

func (p *staticPicker) SelectImage(ctx context.Context) (string, error) {
	return answer(ctx, p.image)
}

func answer(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if path == "" {
		return "", common.ErrCancelled
	}

	return path, nil
}

type line struct {
	text string
	err  error
}

// promptPicker asks on a terminal. An empty answer or end of input cancels.
type promptPicker struct {
	fs    afero.Fs
	lines chan line
	out   io.Writer
}

func NewPromptPicker(in io.Reader, out io.Writer) *promptPicker {
	return NewPromptPickerWithFS(afero.NewOsFs(), in, out)
}

func NewPromptPickerWithFS(fs afero.Fs, in io.Reader, out io.Writer) *promptPicker {
	p := &promptPicker{
		fs:    fs,
		lines: make(chan line),
		out:   out,
	}

	go p.read(in)

	return p
}

func (p *promptPicker) read(in io.Reader) {
	defer close(p.lines)

	sc := bufio.NewScanner(in)
	for sc.Scan() {
		p.lines <- line{text: sc.Text()}
	}

	if err := sc.Err(); err != nil {
		p.lines <- line{err: err}
	}
}

func (p *promptPicker) SelectExecutable(ctx context.Context) (string, error) {
	return p.ask(ctx, "Game executable", func(path string) error {
		stat, err := p.fs.Stat(path)
		if err != nil {
			return fmt.Errorf("cannot find %s", path)
		}

		if stat.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}

		return nil
	})
}

func (p *promptPicker) SelectImage(ctx context.Context) (string, error) {
	return p.ask(ctx, "Cover art", func(path string) error {
		if !slices.Contains(ImageExtensions, strings.ToLower(filepath.Ext(path))) {
			return fmt.Errorf("unsupported image type, use one of %s", strings.Join(ImageExtensions, ", "))
		}

		if _, err := p.fs.Stat(path); err != nil {
			return fmt.Errorf("cannot find %s", path)
		}

		return nil
	})
}

func (p *promptPicker) ask(ctx context.Context, title string, check func(string) error) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s (empty to cancel): ", title)

		select {
		case <-ctx.Done():
			return "", errors.Join(common.ErrCancelled, ctx.Err())
		case l, ok := <-p.lines:
			if !ok {
				return "", common.ErrCancelled
			}

			if l.err != nil {
				return "", fmt.Errorf("cannot read answer: %w", l.err)
			}

			path := strings.Trim(strings.TrimSpace(l.text), `"'`)
			if path == "" {
				return "", common.ErrCancelled
			}

			if err := check(path); err != nil {
				fmt.Fprintln(p.out, err)

				continue
			}

			return path, nil
		}
	}
}
