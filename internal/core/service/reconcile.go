package service

import (
	"sort"

	"sebsync/internal/core/domain/models"
)

// Reconcile is a pure decision function over the catalog and the local
// index. No I/O. It classifies every catalog entry and every local file:
//
//   - entry absent locally                      -> DownloadNew
//   - local revision older than the catalog's   -> DownloadUpdate (in place)
//   - revisions equal                           -> no action (unchanged)
//   - local revision newer than the catalog's   -> no action, anomaly
//   - local file absent from the catalog        -> ReportExtraneous
//
// Identifiers are the only join key; revisions are compared as instants,
// never as strings. Output is deterministic: download actions in catalog
// order, extraneous reports appended last sorted by identifier.
func Reconcile(entries []models.CatalogEntry, idx models.Index) models.Plan {
	var plan models.Plan
	inCatalog := make(map[string]bool, len(entries))

	for _, entry := range entries {
		inCatalog[entry.ID] = true

		local, ok := idx.Files[entry.ID]
		switch {
		case !ok:
			plan.Actions = append(plan.Actions, models.Action{
				Kind:  models.ActionDownloadNew,
				Entry: entry,
			})
		case entry.Updated.After(local.Modified):
			plan.Actions = append(plan.Actions, models.Action{
				Kind:   models.ActionDownloadUpdate,
				Entry:  entry,
				Target: local,
			})
		case local.Modified.After(entry.Updated):
			plan.Anomalies = append(plan.Anomalies, models.Anomaly{
				Entry: entry,
				Local: local,
			})
		default:
			plan.Unchanged++
		}
	}

	extraneous := make([]models.LocalFile, 0, len(idx.Duplicates))
	for id, file := range idx.Files {
		if !inCatalog[id] {
			extraneous = append(extraneous, file)
		}
	}
	// Role duplicates were shadowed by the books copy during the scan and
	// are always reported, whether or not the catalog still lists the ID.
	extraneous = append(extraneous, idx.Duplicates...)

	sort.Slice(extraneous, func(i, j int) bool {
		if extraneous[i].ID != extraneous[j].ID {
			return extraneous[i].ID < extraneous[j].ID
		}
		return extraneous[i].Path < extraneous[j].Path
	})

	for _, file := range extraneous {
		plan.Actions = append(plan.Actions, models.Action{
			Kind:   models.ActionReportExtraneous,
			Target: file,
		})
	}

	return plan
}
