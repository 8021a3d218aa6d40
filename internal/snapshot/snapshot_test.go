package snapshot_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/events"
	"courtline/internal/projection"
	"courtline/internal/snapshot"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func caseEvents(t *testing.T, extra int) []events.Event {
	t.Helper()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	var out []events.Event
	add := func(kind events.Kind, v any) {
		p, err := events.PayloadOf(v)
		require.NoError(t, err)
		out = append(out, events.Event{ID: "e" + string(rune('a'+len(out))), Timestamp: base.Add(time.Duration(len(out)) * time.Minute), Kind: kind, Payload: p})
	}
	add(events.CaseCreated, events.CaseCreatedPayload{CaseID: "c1", Title: "Locked Room", CaseLength: 2, Trigger: 1, Gates: []events.GateSpec{
		{ID: "investigation_start", Kind: "investigation"},
		{ID: "trial_opening", Kind: "trial"},
		{ID: "witness_confrontation", Kind: "trial"},
		{ID: "final_revelation", Kind: "trial"},
	}})
	add(events.CaseInitialized, events.CaseInitializedPayload{})
	add(events.EvidenceAdded, events.EvidenceAddedPayload{ID: "brass_key", Name: "Brass Key", Significance: 6})
	if extra > 0 {
		add(events.GateCompleted, events.GatePayload{Gate: "investigation_start"})
	}
	return out
}

func snap(t *testing.T, evts []events.Event) snapshot.Snapshot {
	t.Helper()
	st, err := projection.Project(evts)
	require.NoError(t, err)
	return snapshot.Snapshot{State: st, Events: evts, Classifications: map[string]domain.Classification{"Ada Finch": domain.Killer}}
}

func TestCreateListRestore(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}
	m := snapshot.Manager{Dir: t.TempDir(), Now: c.Now}

	early := snap(t, caseEvents(t, 0))
	meta, err := m.Create("before_gate", early)
	require.NoError(t, err)
	require.Equal(t, 3, meta.EventCount)
	require.Equal(t, 0, meta.Progress)
	require.Equal(t, domain.PhaseInvestigation, meta.Phase)

	late := snap(t, caseEvents(t, 1))
	meta, err = m.Create("after_gate", late)
	require.NoError(t, err)
	require.Equal(t, 25, meta.Progress)

	metas, err := m.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	require.Equal(t, "after_gate", metas[0].Name, "newest first")
	require.Equal(t, "before_gate", metas[1].Name)

	got, err := m.Restore("before_gate")
	require.NoError(t, err)
	if diff := cmp.Diff(early.State, got.State); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, got.Events, 3)
	require.Equal(t, domain.Killer, got.Classifications["Ada Finch"])
}

func TestRestoreUnknownListsSaves(t *testing.T) {
	m := snapshot.Manager{Dir: t.TempDir()}
	_, err := m.Create("one", snap(t, caseEvents(t, 0)))
	require.NoError(t, err)
	_, err = m.Restore("two")
	require.True(t, apperr.HasCode(err, apperr.CodeUnknownSave))
	ae, _ := apperr.As(err)
	require.Equal(t, []string{"one"}, ae.Details["valid"])

	_, err = m.Restore("../escape")
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestCorruptSavesAreSkippedAndNeverRestored(t *testing.T) {
	dir := t.TempDir()
	m := snapshot.Manager{Dir: dir}
	_, err := m.Create("good", snap(t, caseEvents(t, 0)))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("{not json"), 0o644))

	metas, err := m.List()
	require.NoError(t, err)
	require.Len(t, metas, 1)

	_, err = m.Restore("garbage")
	require.Equal(t, apperr.KindCorrupt, apperr.KindOf(err))

	// A save whose state disagrees with its events is rejected whole.
	tampered := snap(t, caseEvents(t, 0))
	_, err = m.Create("tampered", tampered)
	require.NoError(t, err)
	path := filepath.Join(dir, "tampered.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	raw["state"].(map[string]any)["current_location"] = "crime_scene"
	data, err = json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = m.Restore("tampered")
	require.True(t, apperr.HasCode(err, apperr.CodeCorruptSave))
}

func TestCleanupKeepsNewest(t *testing.T) {
	c := &clock{t: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}
	m := snapshot.Manager{Dir: t.TempDir(), Now: c.Now}
	s := snap(t, caseEvents(t, 0))
	for _, name := range []string{"s1", "s2", "s3", "s4"} {
		_, err := m.Create(name, s)
		require.NoError(t, err)
	}
	deleted, err := m.Cleanup(2)
	require.NoError(t, err)
	require.Equal(t, []string{"s2", "s1"}, deleted)

	metas, err := m.List()
	require.NoError(t, err)
	require.Equal(t, []string{"s4", "s3"}, []string{metas[0].Name, metas[1].Name})

	deleted, err = m.Cleanup(5)
	require.NoError(t, err)
	require.Empty(t, deleted)
}

func TestAutoBackupNaming(t *testing.T) {
	fixed := time.Date(2024, 3, 2, 14, 5, 9, 0, time.UTC)
	m := snapshot.Manager{Dir: t.TempDir(), Now: func() time.Time { return fixed }}
	s := snap(t, caseEvents(t, 0))

	meta, err := m.AutoBackup(s)
	require.NoError(t, err)
	require.Equal(t, "auto_backup_20240302_140509", meta.Name)
	require.True(t, meta.Auto)

	meta, err = m.AutoBackup(s)
	require.NoError(t, err)
	require.Equal(t, "auto_backup_20240302_140509_2", meta.Name)
}

func TestDelete(t *testing.T) {
	m := snapshot.Manager{Dir: t.TempDir()}
	_, err := m.Create("one", snap(t, caseEvents(t, 0)))
	require.NoError(t, err)
	require.NoError(t, m.Delete("one"))
	require.True(t, apperr.HasCode(m.Delete("one"), apperr.CodeUnknownSave))

	metas, err := m.List()
	require.NoError(t, err)
	require.Empty(t, metas)
}

func TestListMissingDir(t *testing.T) {
	m := snapshot.Manager{Dir: filepath.Join(t.TempDir(), "absent")}
	metas, err := m.List()
	require.NoError(t, err)
	require.Empty(t, metas)
}
