package trial_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/trial"
)

const at = "2024-01-01T10:00:00Z"

func collected(names ...string) map[string]domain.Evidence {
	out := map[string]domain.Evidence{}
	for _, n := range names {
		out[domain.Slug(n)] = domain.Evidence{ID: domain.Slug(n), Name: n}
	}
	return out
}

func nurseHall() []domain.Statement {
	return []domain.Statement{
		{ID: "A", Text: "I arrived at nine."},
		{ID: "B", Text: "The patient was asleep."},
		{ID: "C", Text: "He died of natural causes.", IsLie: true, ContradictingEvidence: []string{"Autopsy Report"}},
	}
}

func startedTrial(t *testing.T, witness string, statements []domain.Statement) *domain.TrialState {
	t.Helper()
	ts := domain.NewTrialState()
	require.NoError(t, trial.Begin(&ts, at))
	require.NoError(t, trial.RecordTestimony(&ts, witness, statements, trial.DefaultRules))
	_, err := trial.Start(&ts, witness, trial.DefaultRules, at)
	require.NoError(t, err)
	return &ts
}

func TestNurseHallScenario(t *testing.T) {
	ts := startedTrial(t, "Nurse Hall", nurseHall())
	ev := collected("Autopsy Report")
	require.Equal(t, trial.Active, trial.StatusOf(*ts))

	res, err := trial.Present(ts, ev, "B", "Autopsy Report", at)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 1, res.PenaltyCount)
	require.Equal(t, trial.BandMild, res.Band)

	res, err = trial.Present(ts, ev, "C", "Autopsy Report", at)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, 1, ts.Session.SuccessfulContradictions)
	require.Equal(t, 1, ts.Session.FailedPresentations)
	require.True(t, res.Victory.Achieved, "one lie: one required contradiction, C is critical")
}

func TestFifthFailureIsGameOverAndSixthIsRejected(t *testing.T) {
	ts := startedTrial(t, "Nurse Hall", nurseHall())
	ev := collected("Autopsy Report", "Visitor Log")
	for i := 1; i <= 4; i++ {
		res, err := trial.Present(ts, ev, "A", "Visitor Log", at)
		require.NoError(t, err)
		require.Equal(t, i, res.PenaltyCount)
		require.False(t, res.GameOver, "penalty %d must not end the session", i)
	}
	require.Equal(t, trial.BandEscalated, trial.Band(4))

	res, err := trial.Present(ts, ev, "A", "Visitor Log", at)
	require.NoError(t, err)
	require.True(t, res.GameOver)
	require.Equal(t, trial.BandSevere, res.Band)
	require.Equal(t, trial.GameOver, trial.StatusOf(*ts))

	_, err = trial.Present(ts, ev, "C", "Autopsy Report", at)
	require.True(t, apperr.IsGameOver(err))
	require.True(t, apperr.HasCode(err, apperr.CodeSessionTerminated))
	require.Equal(t, 5, ts.Session.PenaltyCount, "rejected command must not be processed")
	require.Len(t, ts.Session.Presentations, 5)

	_, err = trial.Press(ts, "A")
	require.True(t, apperr.IsGameOver(err))

	rec, err := trial.End(ts, at)
	require.NoError(t, err)
	require.True(t, rec.GameOver)
	require.False(t, rec.Victory)
}

func TestVictoryRequiresCriticalExposure(t *testing.T) {
	statements := []domain.Statement{
		{ID: "A", Text: "The lights were on.", IsLie: true, ContradictingEvidence: []string{"power_bill"}},
		{ID: "B", Text: "I saw the defendant.", IsLie: true, Critical: true, ContradictingEvidence: []string{"cctv_still"}},
		{ID: "C", Text: "It was raining."},
	}
	ts := startedTrial(t, "Mr. Grey", statements)
	require.Equal(t, 1, ts.Session.RequiredContradictions)
	require.Equal(t, []string{"B"}, ts.Session.CriticalStatements)

	ev := collected("Power Bill", "CCTV Still")
	res, err := trial.Present(ts, ev, "A", "power_bill", at)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, ts.Session.RequiredContradictions, ts.Session.SuccessfulContradictions)
	require.False(t, trial.CheckVictory(ts.Session).Achieved)

	_, err = trial.Present(ts, ev, "B", "CCTV Still", at)
	require.NoError(t, err)
	v := trial.CheckVictory(ts.Session)
	require.True(t, v.Achieved)
	require.Equal(t, []string{"B"}, v.CriticalExposed)
}

func TestPressIsInformationOnlyAndIdempotent(t *testing.T) {
	ts := startedTrial(t, "Nurse Hall", nurseHall())
	res, err := trial.Press(ts, "b")
	require.NoError(t, err)
	require.Equal(t, "B", res.Statement)
	require.Contains(t, res.Response, "The patient was asleep.")
	before := ts.Session.Clone()

	again, err := trial.Press(ts, "B")
	require.True(t, apperr.HasCode(err, apperr.CodeAlreadyPressed))
	require.True(t, again.Repeat)
	require.Equal(t, res.Response, again.Response)
	require.Equal(t, before, ts.Session.Clone())
	require.Zero(t, ts.Session.PenaltyCount)
	require.Zero(t, ts.Session.SuccessfulContradictions)
}

func TestUnknownStatementAndEvidence(t *testing.T) {
	ts := startedTrial(t, "Nurse Hall", nurseHall())
	_, err := trial.Present(ts, collected("Autopsy Report"), "Z", "Autopsy Report", at)
	require.True(t, apperr.HasCode(err, apperr.CodeUnknownStatement))

	_, err = trial.Present(ts, collected("Autopsy Report"), "C", "Murder Weapon", at)
	require.True(t, apperr.HasCode(err, apperr.CodeUnknownEvidence))
	ae, _ := apperr.As(err)
	require.Equal(t, []string{"autopsy_report"}, ae.Details["valid"])
	require.Zero(t, ts.Session.PenaltyCount, "validation failures are not penalties")
}

func TestCombinationPresentation(t *testing.T) {
	statements := []domain.Statement{
		{ID: "A", Text: "I never left the house."},
		{ID: "B", Text: "I don't own a car.", IsLie: true,
			ContradictingEvidence: []string{"parking_ticket", "car_keys"},
			Combinations:          [][]string{{"Receipt", "Toll Record"}}},
		{ID: "C", Text: "I went to bed early."},
	}
	ev := collected("Parking Ticket", "Car Keys", "Receipt", "Toll Record", "Diary")

	ts := startedTrial(t, "Ms. Plum", statements)
	res, err := trial.PresentCombination(ts, ev, "B", []string{"Receipt", "Toll Record", "Diary"}, at)
	require.NoError(t, err)
	require.True(t, res.Success, "declared combination is covered")

	ts = startedTrial(t, "Ms. Plum", statements)
	res, err = trial.PresentCombination(ts, ev, "B", []string{"Parking Ticket", "Car Keys"}, at)
	require.NoError(t, err)
	require.True(t, res.Success, "two individually contradicting pieces")

	ts = startedTrial(t, "Ms. Plum", statements)
	res, err = trial.PresentCombination(ts, ev, "B", []string{"Parking Ticket", "Diary"}, at)
	require.NoError(t, err)
	require.False(t, res.Success)
	require.Equal(t, 1, res.PenaltyCount)

	_, err = trial.PresentCombination(ts, ev, "B", []string{"Diary"}, at)
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
}

func TestRecontradictingIsNoOp(t *testing.T) {
	ts := startedTrial(t, "Nurse Hall", nurseHall())
	ev := collected("Autopsy Report")
	_, err := trial.Present(ts, ev, "C", "Autopsy Report", at)
	require.NoError(t, err)
	_, err = trial.Present(ts, ev, "C", "Autopsy Report", at)
	require.True(t, apperr.IsAlreadyDone(err))
	require.Equal(t, 1, ts.Session.SuccessfulContradictions)
}

func TestStartRequiresTrialAndStatements(t *testing.T) {
	ts := domain.NewTrialState()
	require.NoError(t, trial.RecordTestimony(&ts, "Nurse Hall", nurseHall()[:2], trial.DefaultRules))
	_, err := trial.Start(&ts, "Nurse Hall", trial.DefaultRules, at)
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidPhase))

	require.NoError(t, trial.Begin(&ts, at))
	_, err = trial.Start(&ts, "Nurse Hall", trial.DefaultRules, at)
	require.True(t, apperr.HasCode(err, apperr.CodeInsufficientStatements))
	require.Nil(t, ts.Session)

	_, err = trial.Start(&ts, "Nobody", trial.DefaultRules, at)
	require.True(t, apperr.HasCode(err, apperr.CodeInsufficientStatements))
}

func TestRecordTestimonyValidatesIDs(t *testing.T) {
	ts := domain.NewTrialState()
	err := trial.RecordTestimony(&ts, "W", []domain.Statement{{ID: "F"}}, trial.DefaultRules)
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	err = trial.RecordTestimony(&ts, "W", []domain.Statement{{ID: "a"}, {ID: "A"}}, trial.DefaultRules)
	require.Error(t, err)
	six := make([]domain.Statement, 6)
	err = trial.RecordTestimony(&ts, "W", six, trial.DefaultRules)
	require.Error(t, err)
}

func TestEndArchivesSession(t *testing.T) {
	ts := startedTrial(t, "Nurse Hall", nurseHall())
	_, err := trial.Present(ts, collected("Autopsy Report"), "C", "Autopsy Report", at)
	require.NoError(t, err)

	rec, err := trial.End(ts, "2024-01-01T11:00:00Z")
	require.NoError(t, err)
	require.True(t, rec.Victory)
	require.Equal(t, []string{"C"}, rec.Contradicted)
	require.Nil(t, ts.Session)
	require.Equal(t, domain.TrialWitnessExamination, ts.Phase)
	require.Equal(t, []string{"Nurse Hall"}, ts.WitnessesExamined)
	require.Len(t, ts.History, 1)
	require.Equal(t, trial.Ended, trial.StatusOf(*ts))

	_, err = trial.End(ts, at)
	require.True(t, apperr.HasCode(err, apperr.CodeNoActiveSession))

	_, err = trial.Start(ts, "Nurse Hall", trial.DefaultRules, at)
	require.NoError(t, err, "a witness can be cross-examined again")
	require.Zero(t, ts.Session.SuccessfulContradictions)
	for _, st := range ts.Session.Statements {
		require.False(t, st.Contradicted)
	}
}

func TestCallWitness(t *testing.T) {
	ts := domain.NewTrialState()
	require.Error(t, trial.CallWitness(&ts, "Nurse Hall"))
	require.NoError(t, trial.Begin(&ts, at))
	require.NoError(t, trial.CallWitness(&ts, "Nurse Hall"))
	require.Equal(t, trial.WitnessCalled, trial.StatusOf(ts))
	require.NoError(t, trial.RecordTestimony(&ts, "Nurse Hall", nurseHall(), trial.DefaultRules))
	s, err := trial.Start(&ts, "", trial.DefaultRules, at)
	require.NoError(t, err)
	require.Equal(t, "Nurse Hall", s.Witness)
}

func TestPenaltyBands(t *testing.T) {
	cases := map[int]trial.PenaltyBand{0: trial.BandNone, 1: trial.BandMild, 2: trial.BandMild, 3: trial.BandEscalated, 4: trial.BandEscalated, 5: trial.BandSevere, 9: trial.BandSevere}
	for n, want := range cases {
		require.Equal(t, want, trial.Band(n), "count %d", n)
	}
	require.Contains(t, trial.PenaltyMessage(5, 5), "case is lost")
}

func TestWitnessNamesIgnoreCase(t *testing.T) {
	ts := domain.NewTrialState()
	require.NoError(t, trial.Begin(&ts, at))
	require.NoError(t, trial.RecordTestimony(&ts, "Nurse Hall", nurseHall(), trial.DefaultRules))
	require.NoError(t, trial.CallWitness(&ts, "NURSE HALL"))
	require.Equal(t, "Nurse Hall", ts.CurrentWitness)

	s, err := trial.Start(&ts, "nurse hall", trial.DefaultRules, at)
	require.NoError(t, err)
	require.Equal(t, "Nurse Hall", s.Witness)
	require.Len(t, s.Statements, 3)
	_, err = trial.End(&ts, at)
	require.NoError(t, err)

	require.NoError(t, trial.RecordTestimony(&ts, " nurse HALL ", nurseHall()[:2], trial.DefaultRules))
	require.Equal(t, []string{"Nurse Hall"}, trial.Witnesses(ts))
	require.Len(t, ts.Testimonies["Nurse Hall"], 2)
	require.Equal(t, "Dr Sato", trial.WitnessName(ts, " Dr Sato "))
}
