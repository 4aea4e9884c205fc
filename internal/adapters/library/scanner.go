package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"sebsync/internal/core/domain/models"
	"sebsync/internal/core/domain/ports"
)

// DefaultIDMarker recognizes Standard Ebooks identifiers. Files whose
// identifier lacks the marker are not collection items and are ignored.
const DefaultIDMarker = "standardebooks.org"

// Ensure Scanner implements LibraryScanner
var _ ports.LibraryScanner = (*Scanner)(nil)

// Scanner rebuilds the local index from scratch by walking the books and
// downloads directories and reading each EPUB's embedded metadata. Read-only.
type Scanner struct {
	booksDir     string
	downloadsDir string
	marker       string
	log          zerolog.Logger
}

func NewScanner(booksDir, downloadsDir, marker string, log zerolog.Logger) *Scanner {
	return &Scanner{
		booksDir:     booksDir,
		downloadsDir: downloadsDir,
		marker:       marker,
		log:          log,
	}
}

// Scan walks books first, then downloads, so the authoritative copy of a
// title wins when both roles claim the same identifier. A single corrupt
// file is skipped with a warning and never aborts the scan; an unreadable
// directory is structural and fatal.
func (s *Scanner) Scan() (models.Index, error) {
	idx := models.NewIndex()

	roots := []struct {
		dir  string
		role models.Role
	}{
		{s.booksDir, models.RoleBooks},
		{s.downloadsDir, models.RoleDownloads},
	}

	for _, root := range roots {
		if err := s.scanDir(root.dir, root.role, &idx); err != nil {
			return models.Index{}, err
		}
	}

	s.log.Debug().
		Int("files", len(idx.Files)).
		Int("duplicates", len(idx.Duplicates)).
		Msg("local scan complete")

	return idx, nil
}

func (s *Scanner) scanDir(dir string, role models.Role, idx *models.Index) error {
	if info, err := os.Stat(dir); err != nil {
		return fmt.Errorf("cannot scan %s directory: %w", role, err)
	} else if !info.IsDir() {
		return fmt.Errorf("cannot scan %s directory: %s is not a directory", role, dir)
	}

	// WalkDir visits entries in lexical order and does not descend into
	// symlinked directories, which keeps the scan deterministic and
	// cycle-free.
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("cannot scan %s directory: %w", role, err)
			}
			s.log.Warn().Str("path", path).Err(err).Msg("skipping unreadable entry")
			return nil
		}
		if d.IsDir() || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".epub") {
			return nil
		}

		meta, err := readEpubMetadata(path)
		if err != nil {
			s.log.Warn().Str("path", path).Err(err).Msg("skipping unparsable epub")
			return nil
		}
		if s.marker != "" && !strings.Contains(meta.ID, s.marker) {
			return nil
		}

		s.add(idx, models.LocalFile{
			ID:       meta.ID,
			Title:    meta.Title,
			Path:     path,
			Role:     role,
			Modified: meta.Modified,
		})
		return nil
	})
}

func (s *Scanner) add(idx *models.Index, file models.LocalFile) {
	existing, ok := idx.Files[file.ID]
	if !ok {
		idx.Files[file.ID] = file
		return
	}

	// Books is scanned first, so a downloads copy of an already-filed title
	// is the stale duplicate. It stays out of the index and is surfaced as
	// extraneous by the reconciler.
	if existing.Role == models.RoleBooks && file.Role == models.RoleDownloads {
		idx.Duplicates = append(idx.Duplicates, file)
		s.log.Warn().
			Str("id", file.ID).
			Str("kept", existing.Path).
			Str("duplicate", file.Path).
			Msg("identifier present in both roles; books copy wins")
		return
	}

	s.log.Warn().
		Str("id", file.ID).
		Str("kept", existing.Path).
		Str("ignored", file.Path).
		Msg("duplicate identifier within role; keeping first")
}
