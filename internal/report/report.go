package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"sebsync/internal/core/domain/models"
)

// Status is the single-letter classification printed before each path.
type Status int

const (
	StatusNew Status = iota
	StatusUpdated
	StatusExtraneous
)

var (
	styleNew     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleUpdated = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleExtra   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func (s Status) glyph() string {
	switch s {
	case StatusNew:
		return styleNew.Render("N")
	case StatusUpdated:
		return styleUpdated.Render("U")
	case StatusExtraneous:
		return styleExtra.Render("X")
	default:
		return "?"
	}
}

// Reporter writes the human-readable run report. Safe for concurrent use;
// download actions complete in parallel.
type Reporter struct {
	out   io.Writer
	quiet bool
	mu    sync.Mutex
}

func New(out io.Writer, quiet bool) *Reporter {
	return &Reporter{out: out, quiet: quiet}
}

// Status prints one classified item, e.g. "N /home/me/Downloads/...".
func (r *Reporter) Status(s Status, path string) {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s\n", s.glyph(), path)
}

// Failure prints a failed action. Failures always print, quiet or not.
func (r *Reporter) Failure(action models.Action, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%s %s: %v\n", styleFailed.Render("E"), describe(action), err)
}

// Summary prints the final tallies. Suppressed under --quiet unless the
// failure set is non-empty.
func (r *Reporter) Summary(sum *models.Summary) {
	if r.quiet && !sum.Failed() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "%d new, %d updated, %d unchanged, %d extraneous, %d failed\n",
		sum.New, sum.Updated, sum.Unchanged, sum.Extraneous, len(sum.Failures))
}

func describe(action models.Action) string {
	if action.Kind == models.ActionReportExtraneous {
		return action.Target.Path
	}
	if action.Entry.Title != "" {
		return action.Entry.Title
	}
	return action.Entry.ID
}
