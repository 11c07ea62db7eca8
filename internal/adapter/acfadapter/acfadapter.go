package acfadapter

import (
	"bufio"
	"bytes"
	"iter"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

var (
	kvRegexp  = regexp.MustCompile(`^\s*"((?:[^"\\]|\\.)*)"\s+"((?:[^"\\]|\\.)*)"`)
	unescaper = strings.NewReplacer(`\\`, `\`, `\"`, `"`)
)

// Parse extracts every "key" "value" line of a Steam key-value document into
// a flat map. Nesting is ignored: braces, section headers and blank lines do
// not match, and a key seen twice keeps its last value.
func Parse(data []byte) map[string]string {
	kv := make(map[string]string)

	for key, value := range pairs(data) {
		kv[key] = value
	}

	return kv
}

func pairs(data []byte) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		sc := bufio.NewScanner(bytes.NewReader(data))
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for sc.Scan() {
			m := kvRegexp.FindSubmatch(sc.Bytes())
			if m == nil {
				continue
			}

			if !yield(unescaper.Replace(string(m[1])), unescaper.Replace(string(m[2]))) {
				return
			}
		}
	}
}

type acfAdapter struct {
	fs  afero.Fs
	log *slog.Logger
}

func NewACFAdapter(log *slog.Logger) *acfAdapter {
	return NewACFAdapterWithFS(afero.NewOsFs(), log)
}

func NewACFAdapterWithFS(fs afero.Fs, log *slog.Logger) *acfAdapter {
	return &acfAdapter{
		fs:  fs,
		log: log.With(slog.String("item", "ACFAdapter")),
	}
}

// ParseFile reads and parses one manifest. It returns nil when the file
// cannot be read or is not valid UTF-8, so one bad manifest never fails a scan.
func (a *acfAdapter) ParseFile(path string) map[string]string {
	data, ok := a.read(path)
	if !ok {
		return nil
	}

	return Parse(data)
}

// Values returns every value stored under key in file order. Unlike ParseFile
// repeated keys are all kept, which is what libraryfolders.vdf needs.
func (a *acfAdapter) Values(path, key string) []string {
	data, ok := a.read(path)
	if !ok {
		return nil
	}

	var values []string
	for k, v := range pairs(data) {
		if strings.EqualFold(k, key) {
			values = append(values, v)
		}
	}

	return values
}

func (a *acfAdapter) read(path string) ([]byte, bool) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		a.log.Warn("Cannot read manifest", slog.String("path", path), slog.Any("error", err))

		return nil, false
	}

	if !utf8.Valid(data) {
		a.log.Warn("Manifest is not valid UTF-8", slog.String("path", path))

		return nil, false
	}

	return data, true
}
