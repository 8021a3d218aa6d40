// Package projection folds a case event log into a CaseState.
package projection

import (
	"encoding/json"
	"fmt"
	"time"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/events"
	"courtline/internal/gates"
	"courtline/internal/trial"
)

// Project folds every event, in order, starting from the empty state.
func Project(evts []events.Event) (domain.CaseState, error) {
	s := domain.NewCaseState()
	for _, e := range evts {
		if err := Apply(&s, e); err != nil {
			return domain.CaseState{}, err
		}
	}
	return s, nil
}

// ProjectUntil folds the prefix of evts ending with event id.
func ProjectUntil(evts []events.Event, id string) (domain.CaseState, error) {
	for i, e := range evts {
		if e.ID == id {
			return Project(evts[:i+1])
		}
	}
	return domain.CaseState{}, apperr.Validation(apperr.CodeInvalidArgument, "event %s not in log", id).With("event_id", id)
}

// Canonical is the serialized form used to compare projections byte for byte.
func Canonical(s domain.CaseState) ([]byte, error) {
	return json.Marshal(s)
}

// Apply folds one event into s. A failing event leaves s partially updated;
// callers apply to a clone when they need to keep the original.
func Apply(s *domain.CaseState, e events.Event) error {
	if !e.Kind.Valid() {
		return apperr.Validation(apperr.CodeUnknownEventKind, "unknown event kind %q", e.Kind)
	}
	if e.Kind != events.CaseCreated && s.CaseID == "" {
		return fmt.Errorf("event %s (%s) precedes case_created", e.ID, e.Kind)
	}
	at := Timestamp(e.Timestamp)
	if err := applyKind(s, e, at); err != nil && !apperr.IsAlreadyDone(err) {
		return fmt.Errorf("apply event %s (%s): %w", e.ID, e.Kind, err)
	}
	if (s.Trial.Session != nil) != (s.Trial.Phase == domain.TrialCrossExamination) {
		return fmt.Errorf("apply event %s (%s): session present=%t in trial phase %s", e.ID, e.Kind, s.Trial.Session != nil, s.Trial.Phase)
	}
	s.Metadata.EventCount++
	s.Metadata.LastUpdated = at
	s.Metadata.LastEventID = e.ID
	return nil
}

// Timestamp formats event times the way they appear in state.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func applyKind(s *domain.CaseState, e events.Event, at string) error {
	switch e.Kind {
	case events.CaseCreated:
		var p events.CaseCreatedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return applyCaseCreated(s, p, at)
	case events.CaseInitialized:
		var p events.CaseInitializedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		s.Status = domain.StatusActive
		if p.Location != "" {
			s.CurrentLocation = p.Location
		}
	case events.EvidenceAdded:
		var p events.EvidenceAddedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return applyEvidence(s, p, at)
	case events.CharacterMet:
		var p events.CharacterMetPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return applyCharacterMet(s, p, at)
	case events.CharacterTrustUpdated:
		var p events.CharacterTrustPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		c, ok := s.Characters[p.ID]
		if !ok {
			return unknownCharacter(s, p.ID)
		}
		c.TrustLevel = domain.ClampTrust(p.Level)
		s.Characters[p.ID] = c
	case events.CharacterInterviewed:
		var p events.CharacterInterviewedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		c, ok := s.Characters[p.ID]
		if !ok {
			return unknownCharacter(s, p.ID)
		}
		c.InterviewStatus = p.Status
		s.Characters[p.ID] = c
	case events.LocationChanged:
		var p events.LocationPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.To == "" {
			return apperr.Validation(apperr.CodeInvalidArgument, "location is required")
		}
		s.CurrentLocation = p.To
	case events.GateStarted, events.GateCompleted:
		var p events.GatePayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		c := gates.New(s.Gates, s.TrialTrigger)
		if e.Kind == events.GateStarted {
			return c.Start(p.Gate, at)
		}
		return c.Complete(p.Gate, at)
	case events.DiceRolled:
		var p events.DiceRolledPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		s.Dice = append(s.Dice, domain.DiceRoll{
			Action:        p.Action,
			Roll:          p.Roll,
			Modifiers:     p.Modifiers,
			ModifierTotal: p.ModifierTotal,
			Total:         p.Total,
			Difficulty:    p.Difficulty,
			Result:        p.Result,
			Description:   p.Description,
			Critical:      p.Critical,
			RolledAt:      at,
		})
		if n := len(s.Dice); n > domain.DiceHistoryLimit {
			s.Dice = append([]domain.DiceRoll{}, s.Dice[n-domain.DiceHistoryLimit:]...)
		}
	case events.CrimeEscalated:
		var p events.CrimeEscalatedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return applyEscalation(s, p, at)
	case events.TrialStarted:
		if err := trial.Begin(&s.Trial, at); err != nil {
			return err
		}
		s.Phase = domain.PhaseTrial
	case events.TestimonyRecorded:
		var p events.TestimonyPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return trial.RecordTestimony(&s.Trial, p.Witness, Statements(p.Statements), foldRules(0))
	case events.WitnessCalled:
		var p events.WitnessPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		return trial.CallWitness(&s.Trial, p.Witness)
	case events.CrossExaminationStarted:
		var p events.CrossExaminationStartedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		_, err := trial.Start(&s.Trial, p.Witness, foldRules(p.MaxPenalties), at)
		return err
	case events.StatementPressed:
		var p events.StatementPressedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		_, err := trial.Press(&s.Trial, p.Statement)
		return err
	case events.EvidencePresented:
		var p events.EvidencePresentedPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if p.Combination {
			_, err := trial.PresentCombination(&s.Trial, s.Evidence, p.Statement, p.Evidence, at)
			return err
		}
		if len(p.Evidence) != 1 {
			return apperr.Validation(apperr.CodeInvalidArgument, "single presentation carries %d pieces of evidence", len(p.Evidence))
		}
		_, err := trial.Present(&s.Trial, s.Evidence, p.Statement, p.Evidence[0], at)
		return err
	case events.CrossExaminationEnded:
		_, err := trial.End(&s.Trial, at)
		return err
	case events.VerdictReached:
		if err := trial.Verdict(&s.Trial); err != nil {
			return err
		}
		s.Status = domain.StatusClosed
	case events.SaveCreated, events.SaveRestored:
		// Recorded for the audit trail; state is unchanged.
	}
	return nil
}

// foldRules accepts any testimony already admitted when it was recorded; the
// statement count limits were checked before the event was appended.
func foldRules(maxPenalties int) trial.Rules {
	return trial.Rules{MaxPenalties: maxPenalties, MinStatements: 1, MaxStatements: 5}
}

func applyCaseCreated(s *domain.CaseState, p events.CaseCreatedPayload, at string) error {
	if s.CaseID != "" {
		return fmt.Errorf("case %s already created", s.CaseID)
	}
	if p.CaseID == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "case id is required")
	}
	kinds := make(map[string]string, len(p.Gates))
	ids := make([]string, 0, len(p.Gates))
	for _, g := range p.Gates {
		kinds[g.ID] = g.Kind
		ids = append(ids, g.ID)
	}
	gs, err := gates.Build(ids, func(id string) string { return kinds[id] })
	if err != nil {
		return err
	}
	s.CaseID = p.CaseID
	s.Title = p.Title
	s.Description = p.Description
	s.CaseLength = p.CaseLength
	s.TrialTrigger = p.Trigger
	s.Gates = gs
	s.Escalation.OriginalCrime = p.Crime
	s.Escalation.CurrentCrime = p.Crime
	s.Metadata.Created = at
	return nil
}

func applyEvidence(s *domain.CaseState, p events.EvidenceAddedPayload, at string) error {
	if p.ID == "" || p.Name == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "evidence id and name are required")
	}
	if _, ok := s.Evidence[p.ID]; ok {
		return apperr.Validation(apperr.CodeDuplicateEvidence, "evidence %s already collected", p.Name).With("evidence", p.ID)
	}
	s.Evidence[p.ID] = domain.Evidence{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Location:     p.Location,
		Significance: p.Significance,
		CollectedAt:  at,
	}
	return nil
}

func applyCharacterMet(s *domain.CaseState, p events.CharacterMetPayload, at string) error {
	if p.ID == "" || p.Name == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "character id and name are required")
	}
	if _, ok := s.Characters[p.ID]; ok {
		return apperr.Validation(apperr.CodeDuplicateName, "character %s already met", p.Name).With("character", p.Name)
	}
	if _, ok := s.CharacterByName(p.Name); ok {
		return apperr.Validation(apperr.CodeDuplicateName, "character %s already met", p.Name).With("character", p.Name)
	}
	if holder, ok := CriticalRoleHolder(*s, p.Role); ok {
		return apperr.Validation(apperr.CodeCriticalRoleConflict, "role %s is already held by %s", p.Role, holder.Name).
			With("role", p.Role).With("holder", holder.Name)
	}
	s.Characters[p.ID] = domain.Character{
		ID:              p.ID,
		Name:            p.Name,
		Role:            p.Role,
		Description:     p.Description,
		TrustLevel:      domain.ClampTrust(p.TrustLevel),
		InterviewStatus: domain.InterviewNone,
		MetAt:           at,
	}
	return nil
}

// CriticalRoleHolder returns the character already holding role, when role is
// one of the roles a case may only have once.
func CriticalRoleHolder(s domain.CaseState, role string) (domain.Character, bool) {
	if !domain.IsCriticalRole(role) {
		return domain.Character{}, false
	}
	want := domain.Slug(role)
	for _, c := range s.Characters {
		if domain.Slug(c.Role) == want {
			return c, true
		}
	}
	return domain.Character{}, false
}

func applyEscalation(s *domain.CaseState, p events.CrimeEscalatedPayload, at string) error {
	for _, g := range s.Escalation.CheckedGates {
		if g == p.Gate {
			return apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "escalation already checked at gate %s", p.Gate)
		}
	}
	s.Escalation.CheckedGates = append(s.Escalation.CheckedGates, p.Gate)
	if !p.Escalated {
		return nil
	}
	if s.Escalation.Escalated {
		return apperr.Validation(apperr.CodeInvalidArgument, "crime already escalated at gate %s", s.Escalation.Gate)
	}
	s.Escalation.Escalated = true
	s.Escalation.CurrentCrime = p.To
	s.Escalation.Gate = p.Gate
	s.Escalation.Narrative = p.Narrative
	s.Escalation.EscalatedAt = at
	return nil
}

func unknownCharacter(s *domain.CaseState, id string) error {
	valid := make([]string, 0, len(s.Characters))
	for k := range s.Characters {
		valid = append(valid, k)
	}
	return apperr.Validation(apperr.CodeUnknownCharacter, "character %s not met", id).With("character", id).WithValid(valid)
}

// Statements converts recorded testimony into domain statements.
func Statements(specs []events.StatementSpec) []domain.Statement {
	out := make([]domain.Statement, 0, len(specs))
	for _, sp := range specs {
		out = append(out, domain.Statement{
			ID:                    sp.ID,
			Text:                  sp.Text,
			IsLie:                 sp.IsLie,
			Critical:              sp.Critical,
			ContradictingEvidence: sp.ContradictingEvidence,
			Combinations:          sp.Combinations,
			PressResponse:         sp.PressResponse,
		})
	}
	return out
}
