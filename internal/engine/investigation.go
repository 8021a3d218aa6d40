package engine

import (
	"context"
	"sort"
	"strings"

	"courtline/internal/apperr"
	"courtline/internal/dice"
	"courtline/internal/domain"
	"courtline/internal/escalation"
	"courtline/internal/events"
	"courtline/internal/evidence"
	"courtline/internal/gates"
	"courtline/internal/projection"
)

// AddEvidence collects a new piece of evidence. A name already collected is
// refused with duplicate_evidence and nothing is recorded.
func (e Engine) AddEvidence(ctx context.Context, caseID, name, description, location string) (Outcome, error) {
	return e.run(ctx, caseID, "add_evidence", func(c *command) (Outcome, error) {
		p, err := evidence.Prepare(c.state, name, description, location)
		if err != nil {
			return Outcome{}, err
		}
		if _, err := c.append(events.EvidenceAdded, p); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "evidence_added", Message: "Evidence collected: " + p.Name, Data: c.state.Evidence[p.ID]}, nil
	})
}

// ListEvidence returns collected evidence, most significant first.
func (e Engine) ListEvidence(ctx context.Context, caseID string) ([]domain.Evidence, error) {
	var out []domain.Evidence
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		out = evidence.List(s)
		return nil
	})
	return out, err
}

func (e Engine) AssessEvidence(ctx context.Context, caseID string) (evidence.Readiness, error) {
	var out evidence.Readiness
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		out = evidence.Assess(s)
		return nil
	})
	return out, err
}

// CharacterInput describes a character met during the investigation.
type CharacterInput struct {
	Name        string
	Role        string
	Description string
	TrustLevel  int
}

// MeetCharacter records a new character. Names are unique and prosecutor,
// judge and client may each be held by one character only.
func (e Engine) MeetCharacter(ctx context.Context, caseID string, in CharacterInput) (Outcome, error) {
	return e.run(ctx, caseID, "meet_character", func(c *command) (Outcome, error) {
		name := strings.TrimSpace(in.Name)
		role := strings.TrimSpace(in.Role)
		if name == "" || role == "" {
			return Outcome{}, apperr.Validation(apperr.CodeInvalidArgument, "character name and role are required")
		}
		if holder, ok := projection.CriticalRoleHolder(c.state, role); ok {
			return Outcome{}, apperr.Validation(apperr.CodeCriticalRoleConflict, "role %s is already held by %s", role, holder.Name).
				With("role", role).With("holder", holder.Name)
		}
		p := events.CharacterMetPayload{
			ID:          domain.Slug(name),
			Name:        name,
			Role:        role,
			Description: strings.TrimSpace(in.Description),
			TrustLevel:  domain.ClampTrust(in.TrustLevel),
		}
		if _, err := c.append(events.CharacterMet, p); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "character_met", Message: "Met " + name + " (" + role + ")", Data: c.state.Characters[p.ID]}, nil
	})
}

func findCharacter(s domain.CaseState, ref string) (domain.Character, error) {
	if ch, ok := s.Characters[ref]; ok {
		return ch, nil
	}
	if ch, ok := s.Characters[domain.Slug(ref)]; ok {
		return ch, nil
	}
	if ch, ok := s.CharacterByName(ref); ok {
		return ch, nil
	}
	valid := make([]string, 0, len(s.Characters))
	for _, ch := range s.Characters {
		valid = append(valid, ch.Name)
	}
	return domain.Character{}, apperr.Validation(apperr.CodeUnknownCharacter, "character %s not met", ref).
		With("character", ref).WithValid(valid)
}

// UpdateTrust shifts a character's trust by delta, clamped to [-10, 10].
func (e Engine) UpdateTrust(ctx context.Context, caseID, character string, delta int) (Outcome, error) {
	return e.run(ctx, caseID, "update_trust", func(c *command) (Outcome, error) {
		ch, err := findCharacter(c.state, character)
		if err != nil {
			return Outcome{}, err
		}
		level := domain.ClampTrust(ch.TrustLevel + delta)
		if level == ch.TrustLevel {
			return Outcome{Data: ch}, apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "trust of %s already at %d", ch.Name, level).
				With("character", ch.Name)
		}
		if _, err := c.append(events.CharacterTrustUpdated, events.CharacterTrustPayload{ID: ch.ID, Delta: delta, Level: level}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "trust_updated", Message: ch.Name + " trust updated", Data: c.state.Characters[ch.ID]}, nil
	})
}

var interviewStatuses = []string{domain.InterviewNone, domain.InterviewStarted, domain.InterviewExhausted, domain.InterviewUncooperative}

// Interview sets a character's interview status; an empty status means
// interviewed.
func (e Engine) Interview(ctx context.Context, caseID, character, status string) (Outcome, error) {
	return e.run(ctx, caseID, "interview", func(c *command) (Outcome, error) {
		if status == "" {
			status = domain.InterviewStarted
		}
		known := false
		for _, s := range interviewStatuses {
			known = known || s == status
		}
		if !known {
			return Outcome{}, apperr.Validation(apperr.CodeInvalidArgument, "unknown interview status %q", status).WithValid(interviewStatuses)
		}
		ch, err := findCharacter(c.state, character)
		if err != nil {
			return Outcome{}, err
		}
		if ch.InterviewStatus == status {
			return Outcome{Data: ch}, apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "%s already %s", ch.Name, status).With("character", ch.Name)
		}
		if _, err := c.append(events.CharacterInterviewed, events.CharacterInterviewedPayload{ID: ch.ID, Status: status}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "interviewed", Message: ch.Name + " is " + status, Data: c.state.Characters[ch.ID]}, nil
	})
}

// Characters lists the characters met, sorted by name. With reveal set the
// hidden classification recorded for each character is filled in.
func (e Engine) Characters(ctx context.Context, caseID string, reveal bool) ([]domain.Character, error) {
	var out []domain.Character
	err := e.read(ctx, caseID, func(rt *caseRuntime, s domain.CaseState) error {
		for _, ch := range s.Characters {
			if reveal {
				if role, ok := rt.classifier.Lookup(ch.Name); ok {
					ch.Classification = role
				}
			}
			out = append(out, ch)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (e Engine) ChangeLocation(ctx context.Context, caseID, location string) (Outcome, error) {
	return e.run(ctx, caseID, "change_location", func(c *command) (Outcome, error) {
		to := strings.TrimSpace(location)
		if to == "" {
			return Outcome{}, apperr.Validation(apperr.CodeInvalidArgument, "location is required")
		}
		from := c.state.CurrentLocation
		if from == to {
			return Outcome{}, apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "already at %s", to).With("location", to)
		}
		if _, err := c.append(events.LocationChanged, events.LocationPayload{From: from, To: to}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "location_changed", Message: "Moved to " + to, Data: events.LocationPayload{From: from, To: to}}, nil
	})
}

// GateResult is the data of a gate command.
type GateResult struct {
	Gate       domain.Gate                   `json:"gate"`
	Progress   gates.Progress                `json:"progress"`
	Escalation *events.CrimeEscalatedPayload `json:"escalation,omitempty"`
}

func gateResult(s domain.CaseState, id string) GateResult {
	res := GateResult{Progress: gates.New(s.Gates, s.TrialTrigger).Progress()}
	if i := s.FindGate(id); i >= 0 {
		res.Gate = s.Gates[i]
	}
	return res
}

func (e Engine) StartGate(ctx context.Context, caseID, gate string) (Outcome, error) {
	return e.run(ctx, caseID, "start_gate", func(c *command) (Outcome, error) {
		if err := gates.New(c.state.Gates, c.state.TrialTrigger).Check(gate, false); err != nil {
			return Outcome{Data: gateResult(c.state, gate)}, err
		}
		if _, err := c.append(events.GateStarted, events.GatePayload{Gate: gate}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "gate_started", Message: "Gate " + gate + " started", Data: gateResult(c.state, gate)}, nil
	})
}

// CompleteGate completes a gate, starting it first when it is still
// pending. Completing an investigation gate may escalate the crime to
// murder. The trial_ready signal is raised by the completion that makes
// the case trial ready.
func (e Engine) CompleteGate(ctx context.Context, caseID, gate string) (Outcome, error) {
	return e.run(ctx, caseID, "complete_gate", func(c *command) (Outcome, error) {
		ctl := gates.New(c.state.Gates, c.state.TrialTrigger)
		if err := ctl.Check(gate, true); err != nil {
			return Outcome{Data: gateResult(c.state, gate)}, err
		}
		wasReady := ctl.IsTrialReady()
		if _, err := c.append(events.GateCompleted, events.GatePayload{Gate: gate}); err != nil {
			return Outcome{}, err
		}
		out := Outcome{OK: true, Code: "gate_completed", Message: "Gate " + gate + " completed"}
		res := gateResult(c.state, gate)
		if p, ok := escalation.Check(c.state, gate, func() int { return e.roller().D(20) }); ok {
			if _, err := c.append(events.CrimeEscalated, p); err != nil {
				return Outcome{}, err
			}
			res.Escalation = &p
			if p.Escalated {
				out.Signal = SignalCrimeEscalated
				out.Message += ". " + p.Narrative
			}
		}
		if !wasReady && res.Progress.TrialReady {
			out.Signal = SignalTrialReady
			out.Message += ". The case is ready for trial"
		}
		out.Data = res
		return out, nil
	})
}

// NextGate returns the first gate not yet completed.
func (e Engine) NextGate(ctx context.Context, caseID string) (domain.Gate, bool, error) {
	var (
		g  domain.Gate
		ok bool
	)
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		g, ok = gates.New(s.Gates, s.TrialTrigger).Next()
		return nil
	})
	return g, ok, err
}

func (e Engine) Progress(ctx context.Context, caseID string) (gates.Progress, error) {
	var p gates.Progress
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		p = gates.New(s.Gates, s.TrialTrigger).Progress()
		return nil
	})
	return p, err
}

// RollDice resolves an action with a d20 and records the roll.
func (e Engine) RollDice(ctx context.Context, caseID, action string, modifiers []string) (Outcome, error) {
	return e.run(ctx, caseID, "roll_dice", func(c *command) (Outcome, error) {
		roll, err := e.roller().Roll(action, modifiers)
		if err != nil {
			return Outcome{}, err
		}
		p := events.DiceRolledPayload{
			Action:        roll.Action,
			Roll:          roll.Roll,
			Modifiers:     roll.Modifiers,
			ModifierTotal: roll.ModifierTotal,
			Total:         roll.Total,
			Difficulty:    roll.Difficulty,
			Result:        roll.Result,
			Description:   roll.Description,
			Critical:      roll.Critical,
		}
		if _, err := c.append(events.DiceRolled, p); err != nil {
			return Outcome{}, err
		}
		roll.RolledAt = c.state.Metadata.LastUpdated
		out := Outcome{OK: true, Code: "dice_rolled", Message: roll.Description, Data: roll}
		if !dice.Succeeded(roll.Result) {
			out.Details = map[string]any{"result": roll.Result}
		}
		return out, nil
	})
}

// DiceHistory summarizes the rolls kept in state.
func (e Engine) DiceHistory(ctx context.Context, caseID string) ([]domain.DiceRoll, dice.Summary, error) {
	var (
		rolls []domain.DiceRoll
		stats dice.Summary
	)
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		rolls = append(rolls, s.Dice...)
		stats = dice.Summarize(s.Dice)
		return nil
	})
	return rolls, stats, err
}
