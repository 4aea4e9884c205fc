package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"sebsync/internal/config"
	"sebsync/internal/core/domain/models"
	"sebsync/internal/core/domain/ports"
	"sebsync/internal/report"
)

// SyncService runs one bounded reconciliation pass: fetch the catalog, scan
// the local collection, reconcile, execute the plan. Nothing persists
// between runs.
type SyncService struct {
	cfg     *config.Config
	source  ports.CatalogSource
	scanner ports.LibraryScanner
	exec    *Executor
	rep     *report.Reporter
	log     zerolog.Logger
}

func NewSyncService(
	cfg *config.Config,
	source ports.CatalogSource,
	scanner ports.LibraryScanner,
	exec *Executor,
	rep *report.Reporter,
	log zerolog.Logger,
) *SyncService {
	return &SyncService{
		cfg:     cfg,
		source:  source,
		scanner: scanner,
		exec:    exec,
		rep:     rep,
		log:     log,
	}
}

// Run executes the pass and returns its summary. A nil error with a
// non-empty failure set means the run completed but some actions failed;
// the caller decides the exit code.
func (s *SyncService) Run(ctx context.Context) (*models.Summary, error) {
	entries, err := s.source.FetchEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, &models.FeedFormatError{URL: s.cfg.OPDSURL, Reason: "catalog contains no entries; is the email address correct?"}
	}
	s.log.Info().Int("entries", len(entries)).Msg("catalog fetched")

	idx, err := s.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan local collection: %w", err)
	}
	s.log.Info().Int("files", len(idx.Files)).Msg("local collection scanned")

	plan := Reconcile(entries, idx)
	for _, a := range plan.Anomalies {
		s.log.Warn().
			Str("id", a.Entry.ID).
			Str("path", a.Local.Path).
			Time("local", a.Local.Modified).
			Time("catalog", a.Entry.Updated).
			Msg("local file is newer than the catalog; not downgrading")
	}

	summary := &models.Summary{Unchanged: plan.Unchanged}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	sem := make(chan struct{}, s.cfg.Concurrency)

	// Destinations claimed this run. A second action resolving to the same
	// path fails up front instead of racing the first.
	claimed := make(map[string]bool)

	for _, action := range plan.Actions {
		if action.Kind == models.ActionReportExtraneous {
			s.rep.Status(report.StatusExtraneous, action.Target.Path)
			summary.Extraneous++
			continue
		}

		dest := s.exec.Destination(action)
		if claimed[dest] {
			collision := &models.CollisionError{Path: dest}
			s.rep.Failure(action, collision)
			mu.Lock()
			summary.Failures = append(summary.Failures, models.ActionFailure{Action: action, Err: collision})
			mu.Unlock()
			continue
		}
		claimed[dest] = true

		wg.Add(1)
		sem <- struct{}{} // Acquire token

		// Politeness delay to avoid hammering the catalog
		if s.cfg.DelayMS > 0 {
			time.Sleep(time.Duration(s.cfg.DelayMS) * time.Millisecond)
		}

		go func(a models.Action, dest string) {
			defer wg.Done()
			defer func() { <-sem }() // Release token

			if err := s.exec.Execute(ctx, a); err != nil {
				s.log.Error().Str("id", a.Entry.ID).Str("title", a.Entry.Title).Err(err).Msg("action failed")
				s.rep.Failure(a, err)
				mu.Lock()
				summary.Failures = append(summary.Failures, models.ActionFailure{Action: a, Err: err})
				mu.Unlock()
				return
			}

			mu.Lock()
			switch a.Kind {
			case models.ActionDownloadNew:
				summary.New++
				s.rep.Status(report.StatusNew, dest)
			case models.ActionDownloadUpdate:
				summary.Updated++
				s.rep.Status(report.StatusUpdated, dest)
			}
			mu.Unlock()
		}(action, dest)
	}

	wg.Wait()

	s.rep.Summary(summary)
	return summary, nil
}
