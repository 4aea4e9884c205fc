package models

import "time"

// Role names the directory a local file was found in.
type Role string

const (
	// RoleBooks is the authoritative collection.
	RoleBooks Role = "books"
	// RoleDownloads is the inbox for new, unreviewed acquisitions.
	RoleDownloads Role = "downloads"
)

// CatalogEntry is one publication in the remote OPDS catalog. Entries are
// built fresh from the feed on every run and discarded afterwards.
type CatalogEntry struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	DownloadURL string    `json:"download_url"`
	Updated     time.Time `json:"updated"`
}

// LocalFile is a collection item discovered on disk. ID and Modified come
// from the EPUB's own embedded metadata, never from the filename.
type LocalFile struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Path     string    `json:"path"`
	Role     Role      `json:"role"`
	Modified time.Time `json:"modified"`
}

// Index maps identifier to the local file chosen for it. When the same
// identifier appears in both roles, the books copy wins and the downloads
// copy lands in Duplicates.
type Index struct {
	Files      map[string]LocalFile
	Duplicates []LocalFile
}

// NewIndex returns an empty index.
func NewIndex() Index {
	return Index{Files: make(map[string]LocalFile)}
}

// ActionKind tags a reconciliation action.
type ActionKind int

const (
	// ActionDownloadNew fetches an entry seen for the first time into the
	// downloads inbox.
	ActionDownloadNew ActionKind = iota

	// ActionDownloadUpdate fetches a newer revision over an existing local
	// file, in whichever directory that file already lives.
	ActionDownloadUpdate

	// ActionReportExtraneous reports a local file whose identifier no
	// longer appears in the catalog. No filesystem mutation.
	ActionReportExtraneous
)

func (k ActionKind) String() string {
	switch k {
	case ActionDownloadNew:
		return "new"
	case ActionDownloadUpdate:
		return "update"
	case ActionReportExtraneous:
		return "extraneous"
	default:
		return "unknown"
	}
}

// Action is one step of a reconciliation plan. Entry is set for download
// actions; Target is set for updates and extraneous reports.
type Action struct {
	Kind   ActionKind
	Entry  CatalogEntry
	Target LocalFile
}

// Anomaly records a local file claiming a newer revision than the catalog.
// Never downgraded, only surfaced.
type Anomaly struct {
	Entry CatalogEntry
	Local LocalFile
}

// Plan is the full, deterministic output of one reconciliation pass:
// catalog-ordered download actions followed by extraneous reports sorted by
// identifier, plus any revision anomalies.
type Plan struct {
	Actions   []Action
	Anomalies []Anomaly

	// Unchanged counts entries whose local revision already matches the
	// catalog. They produce no action but show up in the summary.
	Unchanged int
}

// ActionFailure pairs a failed action with its error for the final report.
type ActionFailure struct {
	Action Action
	Err    error
}

// Summary tallies one sync run.
type Summary struct {
	New        int
	Updated    int
	Unchanged  int
	Extraneous int
	Failures   []ActionFailure
}

// Failed reports whether any action in the run failed.
func (s *Summary) Failed() bool { return len(s.Failures) > 0 }
