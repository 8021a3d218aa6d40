package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"courtline/internal/config"
	"courtline/internal/domain"
	"courtline/internal/events"
	"courtline/internal/snapshot"
)

func (rt *caseRuntime) snapshot(s domain.CaseState) snapshot.Snapshot {
	return snapshot.Snapshot{
		State:           s,
		Events:          rt.log.Events(),
		Classifications: rt.classifier.All(),
	}
}

// CreateSave writes a named save of the case as it stands, then records
// save_created. Saving under an existing name replaces that save.
func (e Engine) CreateSave(ctx context.Context, caseID, name string) (Outcome, error) {
	return e.run(ctx, caseID, "create_save", func(c *command) (Outcome, error) {
		if err := snapshot.ValidName(name); err != nil {
			return Outcome{}, err
		}
		meta, err := c.rt.saves.Create(name, c.rt.snapshot(c.state))
		if err != nil {
			return Outcome{}, err
		}
		if _, err := c.append(events.SaveCreated, events.SavePayload{Name: name}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "save_created", Message: "Saved as " + name, Data: meta}, nil
	})
}

// RestoreSave replaces the case log and role registry with those of a save.
// Unless disabled in config, the current case is first written to an
// auto_backup_ save. A save that does not replay to its recorded state, or
// whose registry breaks the role limits, is refused and the case is left
// untouched.
func (e Engine) RestoreSave(ctx context.Context, caseID, name string) (Outcome, error) {
	return e.run(ctx, caseID, "restore_save", func(c *command) (Outcome, error) {
		snap, err := c.rt.saves.Restore(name)
		if err != nil {
			return Outcome{}, err
		}
		if snap.State.CaseID != c.state.CaseID {
			return Outcome{}, fmt.Errorf("save %s belongs to case %s", name, snap.State.CaseID)
		}
		if err := c.rt.classifier.Check(snap.Classifications); err != nil {
			return Outcome{}, err
		}
		var backup string
		if e.Config == nil || e.Config.Saves.AutoBackup {
			meta, err := c.rt.saves.AutoBackup(c.rt.snapshot(c.state))
			if err != nil {
				return Outcome{}, fmt.Errorf("auto backup: %w", err)
			}
			backup = meta.Name
		}
		if err := e.Events.Reindex(ctx, c.tx, caseID, snap.Events); err != nil {
			return Outcome{}, err
		}
		if err := e.swapCase(c, name, snap); err != nil {
			return Outcome{}, err
		}
		e.logger().InfoContext(ctx, "save restored", slog.String("save", name), slog.String("backup", backup),
			slog.Int("events", len(snap.Events)))
		out := Outcome{OK: true, Code: "save_restored", Message: "Restored " + name, Data: snap.Meta}
		if backup != "" {
			out.Details = map[string]any{"backup": backup}
		}
		return out, nil
	})
}

// swapCase installs the save's log and registry and records save_restored.
// On any failure the log and registry the case had before are put back; the
// catalog rows follow the rolled back transaction.
func (e Engine) swapCase(c *command, name string, snap snapshot.Snapshot) (err error) {
	prevEvents := c.rt.log.Events()
	prevReg := c.rt.classifier.All()
	prevState := c.state
	prevAppended := len(c.appended)
	defer func() {
		if err == nil {
			return
		}
		c.state = prevState
		c.appended = c.appended[:prevAppended]
		c.rt.projector.Invalidate()
		if rerr := c.rt.log.Replace(prevEvents); rerr != nil {
			err = errors.Join(err, fmt.Errorf("roll back event log: %w", rerr))
		}
		if rerr := c.rt.classifier.Replace(prevReg); rerr != nil {
			err = errors.Join(err, fmt.Errorf("roll back registry: %w", rerr))
		}
		e.logger().WarnContext(c.ctx, "save restore rolled back", slog.String("save", name), slog.Any("error", err))
	}()

	if err := c.rt.log.Replace(snap.Events); err != nil {
		return err
	}
	if err := c.rt.classifier.Replace(snap.Classifications); err != nil {
		return err
	}
	c.rt.projector.Invalidate()
	s, err := c.rt.projector.State(c.rt.log.Events())
	if err != nil {
		return err
	}
	c.state = s
	_, err = c.append(events.SaveRestored, events.SavePayload{Name: name})
	return err
}

func (e Engine) ListSaves(ctx context.Context, caseID string) ([]snapshot.Meta, error) {
	rt, err := e.runtime(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return rt.saves.List()
}

// CleanupSaves keeps the newest keep saves; keep < 0 uses the configured
// default.
func (e Engine) CleanupSaves(ctx context.Context, caseID string, keep int) ([]string, error) {
	if keep < 0 {
		cfg := e.Config
		if cfg == nil {
			cfg = config.Default()
		}
		keep = cfg.Saves.Keep
	}
	var deleted []string
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		var err error
		deleted, err = rt.saves.Cleanup(keep)
		return err
	})
	return deleted, err
}

func (e Engine) DeleteSave(ctx context.Context, caseID, name string) error {
	return e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		return rt.saves.Delete(name)
	})
}
