package engine_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/repo"
)

// rewriteSave replaces the classifications stored in a save file.
func rewriteSave(t *testing.T, dir, name string, reg map[string]domain.Classification) {
	t.Helper()
	path := filepath.Join(dir, "saves", name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	doc["classifications"] = reg
	data, err = json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRestoreRefusesSaveBreakingRoleLimits(t *testing.T) {
	cases := []struct {
		name string
		reg  map[string]domain.Classification
		kind apperr.Kind
	}{
		{
			name: "two killers",
			reg:  map[string]domain.Classification{"Ann Lee": domain.Killer, "Bo Chen": domain.Killer},
			kind: apperr.KindCorrupt,
		},
		{
			name: "conspirators over the cap",
			reg: map[string]domain.Classification{
				"Ann Lee": domain.Conspirator, "Bo Chen": domain.Conspirator, "Cy Park": domain.Conspirator,
			},
			kind: apperr.KindValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := createCase(t, env, "tampered", 2)
			if _, err := env.Engine.AddEvidence(env.Ctx, "tampered", "Knife", "Kitchen knife", ""); err != nil {
				t.Fatal(err)
			}
			if err := env.Engine.OverrideClassification(env.Ctx, "tampered", "Ann Lee", domain.RedHerring); err != nil {
				t.Fatal(err)
			}
			if _, err := env.Engine.CreateSave(env.Ctx, "tampered", "early"); err != nil {
				t.Fatal(err)
			}
			if _, err := env.Engine.AddEvidence(env.Ctx, "tampered", "Letter", "Threatening letter", ""); err != nil {
				t.Fatal(err)
			}
			mirrored, err := env.Engine.LatestEvents(env.Ctx, repo.EventFilters{CaseID: "tampered"})
			if err != nil {
				t.Fatal(err)
			}
			rewriteSave(t, rec.Dir, "early", tc.reg)

			out, err := env.Engine.RestoreSave(env.Ctx, "tampered", "early")
			if apperr.KindOf(err) != tc.kind || out.OK {
				t.Fatalf("restore: %+v %v", out, err)
			}

			st, err := env.Engine.State(env.Ctx, "tampered")
			if err != nil {
				t.Fatal(err)
			}
			if len(st.Evidence) != 2 {
				t.Fatalf("evidence after refused restore = %d, want 2", len(st.Evidence))
			}
			reg, _ := env.Engine.Classifications(env.Ctx, "tampered")
			if reg["Ann Lee"] != domain.RedHerring || len(reg) != 1 {
				t.Fatalf("registry after refused restore = %v", reg)
			}
			after, err := env.Engine.LatestEvents(env.Ctx, repo.EventFilters{CaseID: "tampered"})
			if err != nil || len(after) != len(mirrored) {
				t.Fatalf("catalog mirror holds %d events, want %d (%v)", len(after), len(mirrored), err)
			}
			metas, _ := env.Engine.ListSaves(env.Ctx, "tampered")
			if len(metas) != 1 {
				t.Fatalf("saves after refused restore = %+v", metas)
			}
			rep, err := env.Engine.VerifyReplay(env.Ctx, "tampered")
			if err != nil || !rep.OK() {
				t.Fatalf("replay: %+v %v", rep, err)
			}
		})
	}
}
