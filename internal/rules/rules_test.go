package rules_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/rules"
)

func twoDayCase() domain.CaseState {
	s := domain.NewCaseState()
	s.CaseID = "c1"
	s.TrialTrigger = 1
	s.Gates = []domain.Gate{
		{ID: "crime_scene_analysis", Kind: domain.GateInvestigation, Status: domain.GatePending},
		{ID: "trial_opening", Kind: domain.GateTrial, Status: domain.GatePending},
	}
	return s
}

func TestInvestigationActions(t *testing.T) {
	s := twoDayCase()
	require.Equal(t, []string{"change_location", "gather_evidence", "interview_witness", "roll_dice"}, rules.ValidActions(s))

	err := rules.Validate(s, rules.StartTrial)
	require.True(t, apperr.HasCode(err, apperr.CodeTrialNotReady), "%v", err)
	ae, _ := apperr.As(err)
	require.Equal(t, rules.ValidActions(s), ae.Details["valid"])
	require.Equal(t, rules.StartTrial, ae.Details["action"])

	s.Gates[0].Status = domain.GateCompleted
	require.NoError(t, rules.Validate(s, rules.StartTrial))
	require.NoError(t, rules.Validate(s, rules.GatherEvidence))

	err = rules.Validate(s, rules.PressStatement)
	require.True(t, apperr.HasCode(err, apperr.CodeNoActiveSession), "%v", err)
	err = rules.Validate(s, rules.CallWitness)
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidPhase), "%v", err)
}

func TestTrialOnlyCaseIsReadyAtOnce(t *testing.T) {
	s := domain.NewCaseState()
	s.Gates = []domain.Gate{
		{ID: "trial_opening", Kind: domain.GateTrial, Status: domain.GatePending},
		{ID: "cross_examination", Kind: domain.GateTrial, Status: domain.GatePending},
		{ID: "verdict", Kind: domain.GateTrial, Status: domain.GatePending},
	}
	require.Contains(t, rules.ValidActions(s), rules.StartTrial)
}

func TestTrialActions(t *testing.T) {
	s := twoDayCase()
	s.Phase = domain.PhaseTrial
	s.Trial.Phase = domain.TrialOpening
	require.Equal(t, []string{"call_witness", "deliver_verdict", "record_testimony", "start_cross_examination"}, rules.ValidActions(s))
	require.True(t, apperr.HasCode(rules.Validate(s, rules.StartTrial), apperr.CodeInvalidPhase))
	require.True(t, apperr.HasCode(rules.Validate(s, rules.GatherEvidence), apperr.CodeInvalidPhase))

	s.Trial.Phase = domain.TrialCrossExamination
	s.Trial.Session = &domain.Session{Witness: "Nurse Hall", Status: domain.SessionActive}
	require.Equal(t, []string{"end_cross_examination", "present_evidence", "press_statement"}, rules.ValidActions(s))
	require.NoError(t, rules.Validate(s, rules.PresentEvidence))
	require.NoError(t, rules.Validate(s, rules.PressStatement))
	require.True(t, apperr.HasCode(rules.Validate(s, rules.CallWitness), apperr.CodeSessionActive))

	s.Trial.Session.Status = domain.SessionGameOver
	require.Equal(t, []string{"end_cross_examination"}, rules.ValidActions(s))
	err := rules.Validate(s, rules.PresentEvidence)
	require.True(t, apperr.IsGameOver(err), "%v", err)
	require.NoError(t, rules.Validate(s, rules.EndCrossExamination))
}

func TestClosedAndUnknown(t *testing.T) {
	s := twoDayCase()
	s.Status = domain.StatusClosed
	require.Empty(t, rules.ValidActions(s))
	require.True(t, apperr.HasCode(rules.Validate(s, rules.GatherEvidence), apperr.CodeInvalidPhase))

	err := rules.Validate(s, "bribe_judge")
	require.True(t, apperr.HasCode(err, apperr.CodeInvalidArgument))
	ae, _ := apperr.As(err)
	require.Equal(t, rules.Actions(), ae.Details["valid"])
}

func TestEveryListedActionValidates(t *testing.T) {
	require.IsIncreasing(t, rules.Actions())

	active := twoDayCase()
	active.Phase = domain.PhaseTrial
	active.Trial.Phase = domain.TrialCrossExamination
	active.Trial.Session = &domain.Session{Witness: "Nurse Hall", Status: domain.SessionActive}
	opening := twoDayCase()
	opening.Phase = domain.PhaseTrial
	opening.Trial.Phase = domain.TrialOpening

	for _, s := range []domain.CaseState{twoDayCase(), opening, active} {
		for _, action := range rules.ValidActions(s) {
			require.NoError(t, rules.Validate(s, action), action)
		}
	}
}
