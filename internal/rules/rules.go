// Package rules reports which player actions make sense in the current
// phase of a case.
package rules

import (
	"sort"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/gates"
)

// Action names accepted by Validate.
const (
	GatherEvidence        = "gather_evidence"
	InterviewWitness      = "interview_witness"
	ChangeLocation        = "change_location"
	RollDice              = "roll_dice"
	StartTrial            = "start_trial"
	RecordTestimony       = "record_testimony"
	CallWitness           = "call_witness"
	StartCrossExamination = "start_cross_examination"
	PressStatement        = "press_statement"
	PresentEvidence       = "present_evidence"
	EndCrossExamination   = "end_cross_examination"
	DeliverVerdict        = "deliver_verdict"
)

var known = func() []string {
	out := []string{
		CallWitness, ChangeLocation, DeliverVerdict, EndCrossExamination, GatherEvidence,
		InterviewWitness, PresentEvidence, PressStatement, RecordTestimony, RollDice,
		StartCrossExamination, StartTrial,
	}
	sort.Strings(out)
	return out
}()

// Actions lists every action name, sorted.
func Actions() []string {
	return append([]string(nil), known...)
}

// ValidActions returns the sorted actions allowed by s. A closed case allows
// nothing; a terminated session allows only ending it.
func ValidActions(s domain.CaseState) []string {
	var out []string
	switch {
	case s.Status == domain.StatusClosed:
		return []string{}
	case s.Trial.Session != nil && s.Trial.Session.GameOver():
		out = []string{EndCrossExamination}
	case s.Trial.Session != nil:
		out = []string{PressStatement, PresentEvidence, EndCrossExamination}
	case s.Trial.Started():
		out = []string{RecordTestimony, CallWitness, StartCrossExamination, DeliverVerdict}
	default:
		out = []string{GatherEvidence, InterviewWitness, ChangeLocation, RollDice}
		if gates.New(s.Gates, s.TrialTrigger).IsTrialReady() {
			out = append(out, StartTrial)
		}
	}
	sort.Strings(out)
	return out
}

// Validate returns nil when action is allowed by s. Otherwise the error names
// the reason and lists the valid alternatives.
func Validate(s domain.CaseState, action string) error {
	i := sort.SearchStrings(known, action)
	if i == len(known) || known[i] != action {
		return apperr.Validation(apperr.CodeInvalidArgument, "unknown action %q", action).
			WithValid(known)
	}
	valid := ValidActions(s)
	for _, a := range valid {
		if a == action {
			return nil
		}
	}
	return refusal(s, action).With("action", action).WithValid(valid)
}

func refusal(s domain.CaseState, action string) *apperr.Error {
	if s.Status == domain.StatusClosed {
		return apperr.Validation(apperr.CodeInvalidPhase, "case %s is closed", s.CaseID)
	}
	session := s.Trial.Session
	switch action {
	case StartTrial:
		if s.Trial.Started() {
			return apperr.Validation(apperr.CodeInvalidPhase, "trial already in progress")
		}
		return apperr.Validation(apperr.CodeTrialNotReady, "trial is not ready: %d of %d investigation gates completed",
			gates.New(s.Gates, s.TrialTrigger).CompletedInvestigation(), s.TrialTrigger)
	case PressStatement, PresentEvidence:
		if session != nil && session.GameOver() {
			return apperr.Terminated(session.Witness)
		}
		if session == nil {
			return apperr.Validation(apperr.CodeNoActiveSession, "no cross-examination in progress")
		}
	case EndCrossExamination:
		return apperr.Validation(apperr.CodeNoActiveSession, "no cross-examination in progress")
	case StartCrossExamination, CallWitness, RecordTestimony, DeliverVerdict:
		if session != nil {
			return apperr.Validation(apperr.CodeSessionActive, "cross-examination of %s in progress", session.Witness)
		}
		if !s.Trial.Started() {
			return apperr.Validation(apperr.CodeInvalidPhase, "trial has not started")
		}
	}
	return apperr.Validation(apperr.CodeInvalidPhase, "%s is not valid in the %s phase", action, s.Phase)
}
