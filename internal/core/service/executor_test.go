package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sebsync/internal/core/domain/models"
)

// fakeSource serves catalog entries and their bytes from memory.
type fakeSource struct {
	entries  []models.CatalogEntry
	content  map[string][]byte
	fetchErr error
	// downloadErr fails DownloadEntry outright for the given entry ID.
	downloadErr map[string]error
	// truncate fails the stream for the given entry ID after delivering
	// half of its content.
	truncate map[string]bool
}

func (f *fakeSource) FetchEntries(ctx context.Context) ([]models.CatalogEntry, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.entries, nil
}

func (f *fakeSource) DownloadEntry(ctx context.Context, entry models.CatalogEntry) (io.ReadCloser, error) {
	if err := f.downloadErr[entry.ID]; err != nil {
		return nil, err
	}
	data := f.content[entry.ID]
	if f.truncate[entry.ID] {
		return io.NopCloser(&brokenReader{data: data[:len(data)/2]}), nil
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// brokenReader delivers its data and then fails instead of returning EOF.
type brokenReader struct {
	data []byte
	off  int
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data[r.off:])
	r.off += n
	return n, nil
}

func newExecutor(t *testing.T, src *fakeSource, dryRun bool) (*Executor, string) {
	t.Helper()
	downloads := t.TempDir()
	return NewExecutor(src, downloads, dryRun, zerolog.Nop()), downloads
}

func TestExecutor_DownloadNewPlacesFileInDownloads(t *testing.T) {
	e := models.CatalogEntry{ID: "a", Title: "Emma", Author: "Jane Austen", Updated: rev1}
	src := &fakeSource{content: map[string][]byte{"a": []byte("epub bytes")}}
	exec, downloads := newExecutor(t, src, false)

	action := models.Action{Kind: models.ActionDownloadNew, Entry: e}
	require.NoError(t, exec.Execute(context.Background(), action))

	dest := filepath.Join(downloads, "Austen, Jane - Emma.epub")
	assert.Equal(t, dest, exec.Destination(action))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("epub bytes"), data)
}

func TestExecutor_DownloadNewCollision(t *testing.T) {
	e := models.CatalogEntry{ID: "a", Title: "Emma", Author: "Jane Austen", Updated: rev1}
	src := &fakeSource{content: map[string][]byte{"a": []byte("fresh")}}
	exec, downloads := newExecutor(t, src, false)

	dest := filepath.Join(downloads, "Austen, Jane - Emma.epub")
	require.NoError(t, os.WriteFile(dest, []byte("already here"), 0o644))

	err := exec.Execute(context.Background(), models.Action{Kind: models.ActionDownloadNew, Entry: e})

	var collision *models.CollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, dest, collision.Path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte("already here"), data, "existing file must not be overwritten")
}

func TestExecutor_DownloadUpdateReplacesInPlace(t *testing.T) {
	books := t.TempDir()
	target := filepath.Join(books, "old.epub")
	require.NoError(t, os.WriteFile(target, []byte("revision 1"), 0o644))

	e := models.CatalogEntry{ID: "a", Title: "Emma", Updated: rev2}
	src := &fakeSource{content: map[string][]byte{"a": []byte("revision 2")}}
	exec, _ := newExecutor(t, src, false)

	action := models.Action{
		Kind:   models.ActionDownloadUpdate,
		Entry:  e,
		Target: models.LocalFile{ID: "a", Path: target, Role: models.RoleBooks, Modified: rev1},
	}
	require.NoError(t, exec.Execute(context.Background(), action))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("revision 2"), data)
}

func TestExecutor_FailedUpdateLeavesTargetUntouched(t *testing.T) {
	books := t.TempDir()
	target := filepath.Join(books, "good.epub")
	original := []byte("known good contents")
	require.NoError(t, os.WriteFile(target, original, 0o644))

	e := models.CatalogEntry{ID: "a", Title: "Emma", Updated: rev2}
	src := &fakeSource{
		content:  map[string][]byte{"a": []byte("partial new contents")},
		truncate: map[string]bool{"a": true},
	}
	exec, _ := newExecutor(t, src, false)

	err := exec.Execute(context.Background(), models.Action{
		Kind:   models.ActionDownloadUpdate,
		Entry:  e,
		Target: models.LocalFile{ID: "a", Path: target, Role: models.RoleBooks, Modified: rev1},
	})

	var transport *models.TransportError
	require.ErrorAs(t, err, &transport)

	data, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, original, data, "target must stay byte-identical after a failed fetch")

	// No staging leftovers either.
	entries, readErr := os.ReadDir(books)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1)
}

func TestExecutor_DryRunMutatesNothing(t *testing.T) {
	e := models.CatalogEntry{ID: "a", Title: "Emma", Author: "Jane Austen", Updated: rev2}
	src := &fakeSource{content: map[string][]byte{"a": []byte("bytes")}}
	exec, downloads := newExecutor(t, src, true)

	require.NoError(t, exec.Execute(context.Background(), models.Action{Kind: models.ActionDownloadNew, Entry: e}))

	entries, err := os.ReadDir(downloads)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExecutor_ExtraneousIsReportOnly(t *testing.T) {
	src := &fakeSource{}
	exec, _ := newExecutor(t, src, false)

	books := t.TempDir()
	target := filepath.Join(books, "extra.epub")
	require.NoError(t, os.WriteFile(target, []byte("still here"), 0o644))

	action := models.Action{
		Kind:   models.ActionReportExtraneous,
		Target: models.LocalFile{ID: "x", Path: target, Role: models.RoleBooks},
	}
	assert.Empty(t, exec.Destination(action))
	require.NoError(t, exec.Execute(context.Background(), action))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), data)
}

func TestEntryFilename(t *testing.T) {
	cases := []struct {
		name   string
		author string
		title  string
		want   string
	}{
		{"surname first", "Jane Austen", "Emma", "Austen, Jane - Emma.epub"},
		{"middle names kept", "Arthur Conan Doyle", "A Study in Scarlet", "Doyle, Arthur Conan - A Study in Scarlet.epub"},
		{"single name", "Voltaire", "Candide", "Voltaire - Candide.epub"},
		{"no author", "", "Beowulf", "Beowulf.epub"},
		{"slash stripped", "H. G. Wells", "This/That", "Wells, H. G. - This-That.epub"},
		{"smart quotes normalized", "Jane Austen", "“Emma’s” Day", "Austen, Jane - 'Emma's' Day.epub"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := entryFilename(models.CatalogEntry{Author: tc.author, Title: tc.title})
			assert.Equal(t, tc.want, got)
		})
	}
}
