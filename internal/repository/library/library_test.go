package library

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jgivc/nebula/internal/common"
	"github.com/jgivc/nebula/internal/entity"
	"github.com/jgivc/nebula/internal/util"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const libraryPath = "/data/nebula/nebula_v3.json"

func newTestRepository(t *testing.T, fs afero.Fs, document string) *libraryRepository {
	t.Helper()

	if document != "" {
		require.NoError(t, fs.MkdirAll("/data/nebula", os.ModeDir))
		require.NoError(t, afero.WriteFile(fs, libraryPath, []byte(document), 0o644))
	}

	ids := util.NewIDGeneratorWithClock(func() time.Time { return time.UnixMilli(0) })
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	return NewLibraryRepositoryWithFS(fs, libraryPath, ids, log)
}

func ids(entries []entity.Entry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}

	return out
}

func TestLoadDegradesToEmpty(t *testing.T) {
	testCases := []struct {
		name     string
		document string
	}{
		{name: "Missing document"},
		{name: "Whitespace", document: "  \n"},
		{name: "Truncated", document: `[{"id":1,"name":"Foo","source":"local","path":"/g/fo`},
		{name: "Not json", document: "<html></html>"},
		{name: "Object instead of array", document: `{"id":1}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRepository(t, afero.NewMemMapFs(), tc.document)

			entries, err := r.Load(context.Background())
			require.NoError(t, err)
			require.NotNil(t, entries)
			require.Empty(t, entries)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestRepository(t, fs, "")

	expected := []entity.Entry{
		{ID: 3, Name: "Zeta", Source: entity.SourceLocal, Path: entity.StringPtr(`C:\Games\zeta.exe`), Image: entity.StringPtr("/covers/z.png")},
		{ID: 1, Name: "Team Fortress 2", Source: entity.SourceSteam, AppID: entity.AppIDPtr("440")},
		{ID: 2, Name: "Alpha", Source: entity.SourceLocal, Path: entity.StringPtr("/g/alpha")},
	}

	require.NoError(t, r.Save(context.Background(), expected))

	entries, err := r.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, expected, entries)

	tmp, err := afero.Glob(fs, "/data/nebula/.nebula-*")
	require.NoError(t, err)
	require.Empty(t, tmp)
}

func TestSaveDocumentFormat(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := newTestRepository(t, fs, "")

	_, err := r.AddLocal(context.Background(), "/g/foo.exe", nil)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, libraryPath)
	require.NoError(t, err)
	require.JSONEq(t, `[{"id":1,"name":"foo","source":"local","path":"/g/foo.exe","appid":null,"image":null}]`, string(data))
}

func TestLoadLegacyDocument(t *testing.T) {
	document := `[
  {"id": 1700000000001, "name": "Old", "path": "C:\\Games\\old.exe", "image": null},
  {"id": 1700000000002, "name": "Numeric", "appid": 570},
  {"id": 1700000000003, "name": "Both", "path": "/g/x", "appid": "1"},
  {"id": 1700000000004, "name": "Neither"},
  {"id": 1700000000001, "name": "Duplicate", "source": "local", "path": "/g/dup"},
  {"id": 1700000000005, "name": "Wrong", "source": "steam", "path": "/g/y"}
]`
	r := newTestRepository(t, afero.NewMemMapFs(), document)

	entries, err := r.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []entity.Entry{
		{ID: 1700000000001, Name: "Old", Source: entity.SourceLocal, Path: entity.StringPtr(`C:\Games\old.exe`)},
		{ID: 1700000000002, Name: "Numeric", Source: entity.SourceSteam, AppID: entity.AppIDPtr("570")},
	}, entries)

	added, err := r.AddLocal(context.Background(), "/g/new", nil)
	require.NoError(t, err)
	require.Greater(t, added.ID, int64(1700000000005))
}

func TestSteamImportScenario(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, afero.NewMemMapFs(), `[{"id":1,"name":"Foo","source":"local","path":"/g/foo.exe"}]`)

	tf2, err := r.AddSteam(ctx, "440", "Team Fortress 2", nil)
	require.NoError(t, err)
	require.Equal(t, int64(2), tf2.ID)
	require.Equal(t, entity.SourceSteam, tf2.Source)
	require.Nil(t, tf2.Path)

	dup, err := r.AddSteam(ctx, "440", "Team Fortress 2", nil)
	require.ErrorIs(t, err, common.ErrEntryAlreadyExists)
	require.Nil(t, dup)

	entries, err := r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids(entries))

	dropped, err := r.Reorder(ctx, []int64{2, 1})
	require.NoError(t, err)
	require.Empty(t, dropped)

	entries, err = r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 1}, ids(entries))
	require.Equal(t, "Team Fortress 2", entries[0].Name)
	require.Equal(t, "Foo", entries[1].Name)

	require.NoError(t, r.Remove(ctx, 1))

	entries, err = r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{2}, ids(entries))
}

func TestAddLocal(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, afero.NewMemMapFs(), "")

	e, err := r.AddLocal(ctx, `D:\Games\Hollow Knight\hollow_knight.exe`, entity.StringPtr("/covers/hk.jpg"))
	require.NoError(t, err)
	require.Equal(t, "hollow_knight", e.Name)
	require.Equal(t, entity.SourceLocal, e.Source)
	require.Nil(t, e.AppID)
	require.Equal(t, "/covers/hk.jpg", *e.Image)

	noImage, err := r.AddLocal(ctx, "/g/celeste", entity.StringPtr(""))
	require.NoError(t, err)
	require.Nil(t, noImage.Image)

	_, err = r.AddLocal(ctx, " ", nil)
	require.ErrorIs(t, err, common.ErrInvalidPath)

	_, err = r.AddSteam(ctx, "", "x", nil)
	require.ErrorIs(t, err, common.ErrInvalidAppID)

	entries, err := r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{e.ID, noImage.ID}, ids(entries))
}

func TestRename(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, afero.NewMemMapFs(), `[{"id":1,"name":"Foo","source":"local","path":"/g/foo.exe"}]`)

	require.NoError(t, r.Rename(ctx, 1, "  Foo: Remastered "))
	require.ErrorIs(t, r.Rename(ctx, 1, "   "), common.ErrInvalidName)
	require.ErrorIs(t, r.Rename(ctx, 42, "Bar"), common.ErrEntryNotFound)

	entries, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Foo: Remastered", entries[0].Name)
	require.Equal(t, "/g/foo.exe", *entries[0].Path)
}

func TestRemoveMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, afero.NewMemMapFs(), `[{"id":1,"name":"Foo","source":"local","path":"/g/foo.exe"}]`)

	require.NoError(t, r.Remove(ctx, 99))

	entries, err := r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(entries))
}

func TestReorder(t *testing.T) {
	document := `[
  {"id":1,"name":"A","source":"local","path":"/g/a"},
  {"id":2,"name":"B","source":"local","path":"/g/b"},
  {"id":3,"name":"C","source":"steam","appid":"440"}
]`

	testCases := []struct {
		name    string
		order   []int64
		want    []int64
		dropped []int64
	}{
		{name: "Full permutation", order: []int64{3, 1, 2}, want: []int64{3, 1, 2}},
		{name: "Missing id is dropped", order: []int64{2, 1}, want: []int64{2, 1}, dropped: []int64{3}},
		{name: "Unknown and repeated ids ignored", order: []int64{7, 2, 2, 3, 1}, want: []int64{2, 3, 1}},
		{name: "Empty order drops all", order: nil, want: []int64{}, dropped: []int64{1, 2, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			r := newTestRepository(t, afero.NewMemMapFs(), document)

			dropped, err := r.Reorder(ctx, tc.order)
			require.NoError(t, err)
			require.Equal(t, tc.dropped, dropped)

			entries, err := r.Load(ctx)
			require.NoError(t, err)
			require.Equal(t, tc.want, ids(entries))
		})
	}
}

func TestWriteFailureKeepsDocument(t *testing.T) {
	ctx := context.Background()
	document := `[{"id":1,"name":"Foo","source":"local","path":"/g/foo.exe"}]`

	base := afero.NewMemMapFs()
	newTestRepository(t, base, document)

	r := newTestRepository(t, afero.NewReadOnlyFs(base), "")

	_, err := r.AddLocal(ctx, "/g/bar.exe", nil)
	require.Error(t, err)

	_, err = r.AddSteam(ctx, "440", "Team Fortress 2", nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, common.ErrEntryAlreadyExists)

	require.Error(t, r.Remove(ctx, 1))

	data, err := afero.ReadFile(base, libraryPath)
	require.NoError(t, err)
	require.Equal(t, document, string(data))

	entries, err := r.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(entries))
}

func TestConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	r := newTestRepository(t, afero.NewMemMapFs(), "")

	const n = 32

	var wg sync.WaitGroup
	errs := make(chan error, n)

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()

			var err error
			if i%2 == 0 {
				_, err = r.AddLocal(ctx, fmt.Sprintf("/g/game%d.exe", i), nil)
			} else {
				_, err = r.AddSteam(ctx, entity.AppID(fmt.Sprint(i)), fmt.Sprintf("Game %d", i), nil)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	entries, err := r.Load(ctx)
	require.NoError(t, err)
	require.Len(t, entries, n)

	seen := make(map[int64]struct{}, n)
	for _, e := range entries {
		seen[e.ID] = struct{}{}
	}
	require.Len(t, seen, n)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := afero.NewMemMapFs()
	r := newTestRepository(t, fs, "")

	_, err := r.AddLocal(ctx, "/g/foo.exe", nil)
	require.ErrorIs(t, err, context.Canceled)

	exists, err := afero.Exists(fs, libraryPath)
	require.NoError(t, err)
	require.False(t, exists)
}
