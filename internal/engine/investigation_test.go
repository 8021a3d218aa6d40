package engine_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/events"
	"courtline/internal/repo"
)

func TestLocationTrustAndInterview(t *testing.T) {
	env := newTestEnv(t)
	createCase(t, env, "manor", 2)

	out, err := env.Engine.ChangeLocation(env.Ctx, "manor", "crime_scene")
	if err != nil || out.Code != "location_changed" {
		t.Fatalf("move: %+v %v", out, err)
	}
	out, err = env.Engine.ChangeLocation(env.Ctx, "manor", "crime_scene")
	if err != nil || out.Code != "already_done" {
		t.Fatalf("repeat move: %+v %v", out, err)
	}

	if _, err := env.Engine.MeetCharacter(env.Ctx, "manor", engine.CharacterInput{Name: "Lady Grey", Role: "witness", TrustLevel: 3}); err != nil {
		t.Fatal(err)
	}
	out, err = env.Engine.UpdateTrust(env.Ctx, "manor", "Lady Grey", 40)
	if err != nil || out.Data.(domain.Character).TrustLevel != 10 {
		t.Fatalf("trust: %+v %v", out, err)
	}
	out, err = env.Engine.Interview(env.Ctx, "manor", "lady_grey", "")
	if err != nil || out.Code != "interviewed" {
		t.Fatalf("interview: %+v %v", out, err)
	}
	if _, err := env.Engine.Interview(env.Ctx, "manor", "Lady Grey", "chatty"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("bad status: %v", err)
	}
	if _, err := env.Engine.Interview(env.Ctx, "manor", "Lord Grey", ""); err == nil {
		t.Fatal("unknown character accepted")
	}

	chars, err := env.Engine.Characters(env.Ctx, "manor", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(chars) != 1 || chars[0].InterviewStatus != domain.InterviewStarted {
		t.Fatalf("characters = %+v", chars)
	}
	st, _ := env.Engine.State(env.Ctx, "manor")
	if st.CurrentLocation != "crime_scene" {
		t.Fatalf("location = %s", st.CurrentLocation)
	}
}

func TestDiceHistoryTracksRolls(t *testing.T) {
	env := newTestEnv(t)
	createCase(t, env, "dice", 2)
	for i := 0; i < 3; i++ {
		if _, err := env.Engine.RollDice(env.Ctx, "dice", "examine the letter", nil); err != nil {
			t.Fatal(err)
		}
	}
	rolls, stats, err := env.Engine.DiceHistory(env.Ctx, "dice")
	if err != nil {
		t.Fatal(err)
	}
	if len(rolls) != 3 || stats.Rolls != 3 {
		t.Fatalf("rolls = %d, summary = %+v", len(rolls), stats)
	}
	if stats.AverageRoll < 1 || stats.AverageRoll > 20 {
		t.Fatalf("average = %v", stats.AverageRoll)
	}
}

func TestPresentCombination(t *testing.T) {
	env := newTestEnv(t)
	createCase(t, env, "gallery", 1)
	for _, name := range []string{"Ticket Stub", "Security Log", "Paint Chip"} {
		if _, err := env.Engine.AddEvidence(env.Ctx, "gallery", name, "Recovered from the gallery", ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.StartTrial(env.Ctx, "gallery"); err != nil {
		t.Fatal(err)
	}
	_, err := env.Engine.RecordTestimony(env.Ctx, "gallery", "Curator Vance", []events.StatementSpec{
		{ID: "A", Text: "I locked up at nine."},
		{ID: "B", Text: "I never left the building.", IsLie: true, Combinations: [][]string{{"Ticket Stub", "Security Log"}}},
		{ID: "C", Text: "The painting was insured.", IsLie: true, ContradictingEvidence: []string{"Paint Chip"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if out, err := env.Engine.StartCrossExamination(env.Ctx, "gallery", "Curator Vance"); err != nil || !out.OK {
		t.Fatalf("start: %+v %v", out, err)
	}

	for _, action := range []string{"present_evidence", "press_statement", "end_cross_examination"} {
		if out, err := env.Engine.ValidateAction(env.Ctx, "gallery", action); err != nil || !out.OK {
			t.Fatalf("validate %s: %+v %v", action, out, err)
		}
	}

	out, err := env.Engine.PresentCombination(env.Ctx, "gallery", "B", []string{"Ticket Stub"})
	if apperr.KindOf(err) != apperr.KindValidation || out.OK {
		t.Fatalf("single piece combination: %+v %v", out, err)
	}
	out, err = env.Engine.PresentCombination(env.Ctx, "gallery", "B", []string{"Ticket Stub", "Paint Chip"})
	if err != nil || out.Code != "penalty" {
		t.Fatalf("wrong pair: %+v %v", out, err)
	}
	out, err = env.Engine.PresentCombination(env.Ctx, "gallery", "B", []string{"security_log", "Ticket Stub"})
	if err != nil || out.Code != "contradiction" || out.Signal != engine.SignalVictory {
		t.Fatalf("pair: %+v %v", out, err)
	}
	v, err := env.Engine.CheckVictory(env.Ctx, "gallery")
	if err != nil || !v.Achieved || !cmp.Equal(v.CriticalExposed, []string{"B"}) {
		t.Fatalf("victory = %+v %v", v, err)
	}
}

func TestClassificationOverrideLimits(t *testing.T) {
	env := newTestEnv(t)
	createCase(t, env, "override", 2)
	if err := env.Engine.OverrideClassification(env.Ctx, "override", "Mr Black", domain.Killer); err != nil {
		t.Fatal(err)
	}
	err := env.Engine.OverrideClassification(env.Ctx, "override", "Mrs White", domain.Killer)
	if ae, ok := apperr.As(err); !ok || ae.Code != apperr.CodeCapReached {
		t.Fatalf("second killer: %v", err)
	}
	if err := env.Engine.OverrideClassification(env.Ctx, "override", "Mrs White", "butler"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("unknown role: %v", err)
	}
	stats, err := env.Engine.ClassifierStats(env.Ctx, "override")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Killers != 1 || stats.TotalCharacters != 1 || stats.CaseLength != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	out, err := env.Engine.Classify(env.Ctx, "override", "Mr Black", "")
	if err != nil || out.Code != "already_done" || out.Data.(engine.Classification).Role != domain.Killer {
		t.Fatalf("classify overridden: %+v %v", out, err)
	}
}

func TestDeleteSave(t *testing.T) {
	env := newTestEnv(t)
	createCase(t, env, "drafts", 2)
	if _, err := env.Engine.CreateSave(env.Ctx, "drafts", "draft"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteSave(env.Ctx, "drafts", "draft"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteSave(env.Ctx, "drafts", "draft"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("second delete: %v", err)
	}
}

func TestMembersAndAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	createCase(t, env, "club", 2)

	if err := env.Engine.AddMember(env.Ctx, "club", "ada", "player"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.AddMember(env.Ctx, "club", "ada", "juror"); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("unknown role: %v", err)
	}
	if err := env.Engine.AddMember(env.Ctx, "nowhere", "ada", "player"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing case: %v", err)
	}
	members, err := env.Engine.Members(env.Ctx, "club")
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, m := range members {
		got[m.ActorID] = m.Role
	}
	if diff := cmp.Diff(map[string]string{"tester": "gm", "ada": "player"}, got); diff != "" {
		t.Fatalf("members (-want +got):\n%s", diff)
	}
	if err := env.Engine.RemoveMember(env.Ctx, "club", "ada", "player"); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.RemoveMember(env.Ctx, "club", "ada", "player"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second remove: %v", err)
	}

	key, secret, err := env.Engine.CreateAPIKey(env.Ctx, "ada", "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if len(secret) <= len(repo.KeyPrefix) || secret[:len(repo.KeyPrefix)] != repo.KeyPrefix {
		t.Fatalf("secret = %q", secret)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, "bob", key.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("foreign revoke: %v", err)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, "ada", key.ID); err != nil {
		t.Fatal(err)
	}
	keys, err := env.Engine.ListAPIKeys(env.Ctx, "ada")
	if err != nil || len(keys) != 0 {
		t.Fatalf("keys = %+v %v", keys, err)
	}
}

func TestDeleteCaseRemovesDirectory(t *testing.T) {
	env := newTestEnv(t)
	rec := createCase(t, env, "gone", 2)
	if _, err := env.Engine.AddEvidence(env.Ctx, "gone", "Knife", "Kitchen knife", ""); err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.DeleteCase(env.Ctx, "gone"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.GetCase(env.Ctx, "gone"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("get after delete: %v", err)
	}
	if _, err := env.Engine.State(env.Ctx, "gone"); err == nil {
		t.Fatal("state of deleted case")
	}
	if rec.Dir == "" {
		t.Fatal("case had no directory")
	}
	cases, err := env.Engine.ListCases(env.Ctx, repo.CaseFilters{})
	if err != nil || len(cases) != 0 {
		t.Fatalf("cases = %+v %v", cases, err)
	}
}
