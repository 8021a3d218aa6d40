// Package snapshot stores named save points of a case: its event log, the
// state projected from it and the hidden role registry.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"courtline/internal/apperr"
	"courtline/internal/atomicfile"
	"courtline/internal/domain"
	"courtline/internal/events"
	"courtline/internal/gates"
	"courtline/internal/projection"
)

// AutoBackupPrefix names saves taken automatically before a restore.
const AutoBackupPrefix = "auto_backup_"

const ext = ".json"

// Meta is the part of a save that List reads.
type Meta struct {
	Name        string       `json:"name"`
	CreatedAt   time.Time    `json:"created_at"`
	CaseID      string       `json:"case_id"`
	CaseLength  int          `json:"case_length"`
	Phase       domain.Phase `json:"phase"`
	TrialPhase  string       `json:"trial_phase"`
	Progress    int          `json:"progress"`
	EventCount  int          `json:"event_count"`
	LastEventID string       `json:"last_event_id,omitempty"`
	Auto        bool         `json:"auto"`
}

// Snapshot is the full content of a save file.
type Snapshot struct {
	Meta            Meta                             `json:"meta"`
	State           domain.CaseState                 `json:"state"`
	Events          []events.Event                   `json:"events"`
	Classifications map[string]domain.Classification `json:"classifications"`
}

// Manager keeps saves as one JSON file per name in Dir.
type Manager struct {
	Dir string
	Now func() time.Time
}

func (m Manager) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m Manager) path(name string) string {
	return filepath.Join(m.Dir, name+ext)
}

// ValidName reports whether name can be used as a save name.
func ValidName(name string) error {
	if name == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "save name is required")
	}
	for _, r := range name {
		ok := r == '_' || r == '-' || r == '.' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return apperr.Validation(apperr.CodeInvalidArgument, "save name %q may only contain letters, digits, '.', '-' and '_'", name)
		}
	}
	if strings.HasPrefix(name, ".") {
		return apperr.Validation(apperr.CodeInvalidArgument, "save name %q must not start with '.'", name)
	}
	return nil
}

// Create writes a save named name, replacing an existing save of that name.
// Meta is derived from the snapshot contents.
func (m Manager) Create(name string, snap Snapshot) (Meta, error) {
	if err := ValidName(name); err != nil {
		return Meta{}, err
	}
	return m.write(name, snap, false)
}

// AutoBackup writes a save named auto_backup_<YYYYMMDD_HHMMSS>.
func (m Manager) AutoBackup(snap Snapshot) (Meta, error) {
	name := AutoBackupPrefix + m.now().Format("20060102_150405")
	for i := 2; m.exists(name); i++ {
		name = fmt.Sprintf("%s%s_%d", AutoBackupPrefix, m.now().Format("20060102_150405"), i)
	}
	return m.write(name, snap, true)
}

func (m Manager) exists(name string) bool {
	_, err := os.Stat(m.path(name))
	return err == nil
}

func (m Manager) write(name string, snap Snapshot, auto bool) (Meta, error) {
	st := snap.State
	snap.Meta = Meta{
		Name:        name,
		CreatedAt:   m.now(),
		CaseID:      st.CaseID,
		CaseLength:  st.CaseLength,
		Phase:       st.Phase,
		TrialPhase:  string(st.Trial.Phase),
		Progress:    gates.New(st.Gates, st.TrialTrigger).Progress().Percent,
		EventCount:  len(snap.Events),
		LastEventID: st.Metadata.LastEventID,
		Auto:        auto,
	}
	if snap.Events == nil {
		snap.Events = []events.Event{}
	}
	if snap.Classifications == nil {
		snap.Classifications = map[string]domain.Classification{}
	}
	if err := atomicfile.WriteJSON(m.path(name), snap); err != nil {
		return Meta{}, fmt.Errorf("write save %s: %w", name, err)
	}
	return snap.Meta, nil
}

// Restore reads and checks a save in full. A save whose events do not fold
// back into its recorded state is reported corrupt and never handed out.
func (m Manager) Restore(name string) (Snapshot, error) {
	if err := ValidName(name); err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(m.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, m.unknown(name)
		}
		return Snapshot{}, fmt.Errorf("read save %s: %w", name, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, apperr.Corrupt(apperr.CodeCorruptSave, m.path(name), err)
	}
	if err := check(snap); err != nil {
		return Snapshot{}, apperr.Corrupt(apperr.CodeCorruptSave, m.path(name), err)
	}
	return snap, nil
}

func check(snap Snapshot) error {
	if snap.Meta.EventCount != len(snap.Events) {
		return fmt.Errorf("meta lists %d events, save holds %d", snap.Meta.EventCount, len(snap.Events))
	}
	state, err := projection.Project(snap.Events)
	if err != nil {
		return err
	}
	want, err := projection.Canonical(snap.State)
	if err != nil {
		return err
	}
	got, err := projection.Canonical(state)
	if err != nil {
		return err
	}
	if string(want) != string(got) {
		return errors.New("recorded state does not match its events")
	}
	killers := 0
	for name, c := range snap.Classifications {
		if !c.Valid() {
			return fmt.Errorf("character %s has unknown classification %q", name, c)
		}
		if c == domain.Killer {
			killers++
		}
	}
	if killers > 1 {
		return fmt.Errorf("save names %d killers", killers)
	}
	return nil
}

func (m Manager) unknown(name string) error {
	metas, _ := m.List()
	valid := make([]string, 0, len(metas))
	for _, meta := range metas {
		valid = append(valid, meta.Name)
	}
	return apperr.Validation(apperr.CodeUnknownSave, "save %s not found", name).With("save", name).WithValid(valid)
}

// List returns save metadata, newest first. Unreadable saves are skipped.
func (m Manager) List() ([]Meta, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Meta{}, nil
		}
		return nil, fmt.Errorf("list saves: %w", err)
	}
	out := []Meta{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.Dir, e.Name()))
		if err != nil {
			continue
		}
		var head struct {
			Meta *Meta `json:"meta"`
		}
		if err := json.Unmarshal(data, &head); err != nil || head.Meta == nil {
			continue
		}
		if head.Meta.Name != strings.TrimSuffix(e.Name(), ext) {
			continue
		}
		out = append(out, *head.Meta)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Cleanup deletes all but the keep newest saves and returns the deleted names.
func (m Manager) Cleanup(keep int) ([]string, error) {
	if keep < 0 {
		return nil, apperr.Validation(apperr.CodeInvalidArgument, "keep must not be negative")
	}
	metas, err := m.List()
	if err != nil {
		return nil, err
	}
	deleted := []string{}
	if len(metas) <= keep {
		return deleted, nil
	}
	for _, meta := range metas[keep:] {
		if err := os.Remove(m.path(meta.Name)); err != nil && !os.IsNotExist(err) {
			return deleted, fmt.Errorf("delete save %s: %w", meta.Name, err)
		}
		deleted = append(deleted, meta.Name)
	}
	return deleted, nil
}

// Delete removes one save.
func (m Manager) Delete(name string) error {
	if err := ValidName(name); err != nil {
		return err
	}
	if err := os.Remove(m.path(name)); err != nil {
		if os.IsNotExist(err) {
			return m.unknown(name)
		}
		return fmt.Errorf("delete save %s: %w", name, err)
	}
	return nil
}
