package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"sebsync/internal/core/domain/models"
	"sebsync/internal/core/domain/ports"
)

// Executor carries out a plan's side effects: download-and-place for new
// titles, download-and-replace for updates. Extraneous reports mutate
// nothing. In dry-run mode every action is a no-op beyond collision checks.
type Executor struct {
	source       ports.CatalogSource
	downloadsDir string
	dryRun       bool
	log          zerolog.Logger
}

func NewExecutor(source ports.CatalogSource, downloadsDir string, dryRun bool, log zerolog.Logger) *Executor {
	return &Executor{
		source:       source,
		downloadsDir: downloadsDir,
		dryRun:       dryRun,
		log:          log,
	}
}

// Destination returns the path an action will write to, or "" for
// report-only actions. The sync service uses it to reserve paths so no two
// concurrent actions target the same file.
func (e *Executor) Destination(action models.Action) string {
	switch action.Kind {
	case models.ActionDownloadNew:
		return filepath.Join(e.downloadsDir, entryFilename(action.Entry))
	case models.ActionDownloadUpdate:
		return action.Target.Path
	default:
		return ""
	}
}

func (e *Executor) Execute(ctx context.Context, action models.Action) error {
	switch action.Kind {
	case models.ActionDownloadNew:
		return e.downloadNew(ctx, action.Entry)
	case models.ActionDownloadUpdate:
		return e.downloadUpdate(ctx, action.Entry, action.Target)
	case models.ActionReportExtraneous:
		return nil
	default:
		return fmt.Errorf("unknown action kind %d", action.Kind)
	}
}

func (e *Executor) downloadNew(ctx context.Context, entry models.CatalogEntry) error {
	dest := filepath.Join(e.downloadsDir, entryFilename(entry))

	// A pre-existing file here means the index and the catalog disagree;
	// never overwrite it.
	if _, err := os.Lstat(dest); err == nil {
		return &models.CollisionError{Path: dest}
	}

	if e.dryRun {
		return nil
	}

	tmp, err := e.stage(ctx, entry, e.downloadsDir)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to place %s: %w", dest, err)
	}

	e.log.Debug().Str("id", entry.ID).Str("path", dest).Msg("new title placed")
	return nil
}

func (e *Executor) downloadUpdate(ctx context.Context, entry models.CatalogEntry, target models.LocalFile) error {
	if e.dryRun {
		return nil
	}

	// Stage in the target's own directory so the final rename is atomic and
	// a failed fetch never touches the original.
	tmp, err := e.stage(ctx, entry, filepath.Dir(target.Path))
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, target.Path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", target.Path, err)
	}

	e.log.Debug().Str("id", entry.ID).Str("path", target.Path).Msg("title updated in place")
	return nil
}

// stage downloads the entry into a temp file inside dir and returns the temp
// path. On any failure the temp file is removed and nothing else is touched.
func (e *Executor) stage(ctx context.Context, entry models.CatalogEntry, dir string) (string, error) {
	rc, err := e.source.DownloadEntry(ctx, entry)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	f, err := os.CreateTemp(dir, ".sebsync-*.part")
	if err != nil {
		return "", fmt.Errorf("failed to create staging file in %s: %w", dir, err)
	}

	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", &models.TransportError{URL: entry.DownloadURL, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}

// filenameReplacer strips path separators and normalizes typographic quotes,
// as the catalog's titles routinely contain both.
var filenameReplacer = strings.NewReplacer(
	"/", "-",
	"‘", "'",
	"’", "'",
	"\"", "'",
	"“", "'",
	"”", "'",
)

// entryFilename derives "Last, First - Title.epub" from the entry so new
// acquisitions sort by author surname in the inbox.
func entryFilename(entry models.CatalogEntry) string {
	author := entry.Author
	if names := strings.Fields(author); len(names) > 1 {
		author = names[len(names)-1] + ", " + strings.Join(names[:len(names)-1], " ")
	}

	name := entry.Title + ".epub"
	if author != "" {
		name = author + " - " + name
	}
	return filenameReplacer.Replace(name)
}
