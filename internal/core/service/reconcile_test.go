package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sebsync/internal/core/domain/models"
)

var (
	rev1 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rev2 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
)

func entry(id string, rev time.Time) models.CatalogEntry {
	return models.CatalogEntry{ID: id, Title: "Title " + id, Updated: rev}
}

func localFile(id string, role models.Role, rev time.Time) models.LocalFile {
	return models.LocalFile{
		ID:       id,
		Path:     string(role) + "/" + id + ".epub",
		Role:     role,
		Modified: rev,
	}
}

func indexOf(files ...models.LocalFile) models.Index {
	idx := models.NewIndex()
	for _, f := range files {
		idx.Files[f.ID] = f
	}
	return idx
}

func TestReconcile_NewEntry(t *testing.T) {
	plan := Reconcile([]models.CatalogEntry{entry("B", rev1)}, models.NewIndex())

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.ActionDownloadNew, plan.Actions[0].Kind)
	assert.Equal(t, "B", plan.Actions[0].Entry.ID)
	assert.Empty(t, plan.Anomalies)
}

func TestReconcile_UpdatedEntryTargetsExistingPath(t *testing.T) {
	for _, role := range []models.Role{models.RoleBooks, models.RoleDownloads} {
		t.Run(string(role), func(t *testing.T) {
			local := localFile("A", role, rev1)
			plan := Reconcile([]models.CatalogEntry{entry("A", rev2)}, indexOf(local))

			require.Len(t, plan.Actions, 1)
			assert.Equal(t, models.ActionDownloadUpdate, plan.Actions[0].Kind)
			assert.Equal(t, local.Path, plan.Actions[0].Target.Path)
		})
	}
}

func TestReconcile_UnchangedEntry(t *testing.T) {
	plan := Reconcile(
		[]models.CatalogEntry{entry("D", rev1)},
		indexOf(localFile("D", models.RoleDownloads, rev1)),
	)

	assert.Empty(t, plan.Actions)
	assert.Empty(t, plan.Anomalies)
	assert.Equal(t, 1, plan.Unchanged)
}

func TestReconcile_LocalNewerIsAnomalyNotDowngrade(t *testing.T) {
	plan := Reconcile(
		[]models.CatalogEntry{entry("A", rev1)},
		indexOf(localFile("A", models.RoleBooks, rev2)),
	)

	assert.Empty(t, plan.Actions)
	require.Len(t, plan.Anomalies, 1)
	assert.Equal(t, "A", plan.Anomalies[0].Entry.ID)
}

func TestReconcile_ExtraneousLocalFile(t *testing.T) {
	plan := Reconcile(nil, indexOf(localFile("C", models.RoleBooks, rev1)))

	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.ActionReportExtraneous, plan.Actions[0].Kind)
	assert.Equal(t, "C", plan.Actions[0].Target.ID)
}

func TestReconcile_RoleDuplicateAlwaysReported(t *testing.T) {
	idx := indexOf(localFile("A", models.RoleBooks, rev1))
	idx.Duplicates = append(idx.Duplicates, localFile("A", models.RoleDownloads, rev1))

	plan := Reconcile([]models.CatalogEntry{entry("A", rev1)}, idx)

	// The books copy is unchanged; the shadowed downloads copy is reported.
	require.Len(t, plan.Actions, 1)
	assert.Equal(t, models.ActionReportExtraneous, plan.Actions[0].Kind)
	assert.Equal(t, models.RoleDownloads, plan.Actions[0].Target.Role)
	assert.Equal(t, 1, plan.Unchanged)
}

func TestReconcile_OrderingAndDeterminism(t *testing.T) {
	entries := []models.CatalogEntry{
		entry("zeta", rev1),
		entry("alpha", rev2),
	}
	idx := indexOf(
		localFile("alpha", models.RoleBooks, rev1),
		localFile("mmm", models.RoleBooks, rev1),
		localFile("bbb", models.RoleDownloads, rev1),
	)

	plan := Reconcile(entries, idx)

	// Download actions keep catalog order; extraneous reports come last,
	// sorted by identifier.
	require.Len(t, plan.Actions, 4)
	assert.Equal(t, models.ActionDownloadNew, plan.Actions[0].Kind)
	assert.Equal(t, "zeta", plan.Actions[0].Entry.ID)
	assert.Equal(t, models.ActionDownloadUpdate, plan.Actions[1].Kind)
	assert.Equal(t, "alpha", plan.Actions[1].Entry.ID)
	assert.Equal(t, "bbb", plan.Actions[2].Target.ID)
	assert.Equal(t, "mmm", plan.Actions[3].Target.ID)

	// Idempotence: same inputs, identical plan.
	assert.Equal(t, plan, Reconcile(entries, idx))
}

func TestReconcile_EveryEntryYieldsAtMostOneAction(t *testing.T) {
	entries := []models.CatalogEntry{
		entry("new", rev1),
		entry("same", rev1),
		entry("newer", rev2),
	}
	idx := indexOf(
		localFile("same", models.RoleBooks, rev1),
		localFile("newer", models.RoleBooks, rev1),
	)

	plan := Reconcile(entries, idx)

	seen := map[string]int{}
	for _, a := range plan.Actions {
		if a.Kind != models.ActionReportExtraneous {
			seen[a.Entry.ID]++
		}
	}
	assert.Equal(t, map[string]int{"new": 1, "newer": 1}, seen)
}
