package engine

import (
	"context"
	"fmt"
	"strings"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/events"
	"courtline/internal/projection"
	"courtline/internal/rules"
	"courtline/internal/trial"
)

func (e Engine) StartTrial(ctx context.Context, caseID string) (Outcome, error) {
	return e.run(ctx, caseID, "start_trial", func(c *command) (Outcome, error) {
		if c.state.Trial.Started() {
			return Outcome{}, apperr.AlreadyDone(apperr.CodeAlreadyStarted, "trial already started")
		}
		if err := rules.Validate(c.state, rules.StartTrial); err != nil {
			return Outcome{}, err
		}
		if _, err := c.append(events.TrialStarted, struct{}{}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "trial_started", Message: "Court is now in session", Data: c.state.Trial}, nil
	})
}

// RecordTestimony stores the lettered statements a witness will defend.
// Recording again for the same witness replaces the earlier testimony.
func (e Engine) RecordTestimony(ctx context.Context, caseID, witness string, statements []events.StatementSpec) (Outcome, error) {
	return e.run(ctx, caseID, "record_testimony", func(c *command) (Outcome, error) {
		if err := rules.Validate(c.state, rules.RecordTestimony); err != nil {
			return Outcome{}, err
		}
		witness = strings.TrimSpace(witness)
		r := e.rules()
		if n := len(statements); n < r.MinStatements {
			return Outcome{}, apperr.Validation(apperr.CodeInsufficientStatements,
				"witness %s has %d statements, at least %d required", witness, n, r.MinStatements).
				With("witness", witness).With("available", n).With("required", r.MinStatements)
		}
		next := c.state.Clone()
		if err := trial.RecordTestimony(&next.Trial, witness, projection.Statements(statements), r); err != nil {
			return Outcome{}, err
		}
		if _, err := c.append(events.TestimonyRecorded, events.TestimonyPayload{Witness: witness, Statements: statements}); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			OK:      true,
			Code:    "testimony_recorded",
			Message: fmt.Sprintf("%d statements recorded for %s", len(statements), witness),
			Data:    c.state.Trial.Testimonies[trial.WitnessName(c.state.Trial, witness)],
		}, nil
	})
}

// Testimony returns the recorded statements of a witness, lies included.
func (e Engine) Testimony(ctx context.Context, caseID, witness string) ([]domain.Statement, error) {
	var out []domain.Statement
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		if st, ok := s.Trial.Testimonies[trial.WitnessName(s.Trial, witness)]; ok {
			out = st
			return nil
		}
		return apperr.Validation(apperr.CodeUnknownWitness, "no testimony recorded for %s", witness).
			With("witness", witness).WithValid(trial.Witnesses(s.Trial))
	})
	return out, err
}

func (e Engine) CallWitness(ctx context.Context, caseID, witness string) (Outcome, error) {
	return e.run(ctx, caseID, "call_witness", func(c *command) (Outcome, error) {
		if err := rules.Validate(c.state, rules.CallWitness); err != nil {
			return Outcome{}, err
		}
		next := c.state.Clone()
		if err := trial.CallWitness(&next.Trial, witness); err != nil {
			return Outcome{}, err
		}
		w := next.Trial.CurrentWitness
		if _, err := c.append(events.WitnessCalled, events.WitnessPayload{Witness: w}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "witness_called", Message: w + " takes the stand"}, nil
	})
}

// StartCrossExamination opens a session for witness, or for the witness on
// the stand when witness is empty.
func (e Engine) StartCrossExamination(ctx context.Context, caseID, witness string) (Outcome, error) {
	return e.run(ctx, caseID, "start_cross_examination", func(c *command) (Outcome, error) {
		if err := rules.Validate(c.state, rules.StartCrossExamination); err != nil {
			return Outcome{}, err
		}
		next := c.state.Clone()
		r := e.rules()
		s, err := trial.Start(&next.Trial, witness, r, e.stamp())
		if err != nil {
			return Outcome{}, err
		}
		p := events.CrossExaminationStartedPayload{Witness: s.Witness, MaxPenalties: s.MaxPenalties}
		if _, err := c.append(events.CrossExaminationStarted, p); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			OK:      true,
			Code:    "cross_examination_started",
			Message: fmt.Sprintf("Cross-examination of %s begins (%d statements)", s.Witness, len(s.Statements)),
			Data:    summarizeSession(c.state.Trial.Session),
		}, nil
	})
}

// Press asks the witness to elaborate. Pressing a statement again returns the
// same answer as a benign no-op.
func (e Engine) Press(ctx context.Context, caseID, statement string) (Outcome, error) {
	return e.run(ctx, caseID, "press_statement", func(c *command) (Outcome, error) {
		next := c.state.Clone()
		res, err := trial.Press(&next.Trial, statement)
		if err != nil {
			return Outcome{Data: res}, err
		}
		if _, err := c.append(events.StatementPressed, events.StatementPressedPayload{Statement: res.Statement}); err != nil {
			return Outcome{}, err
		}
		return Outcome{OK: true, Code: "statement_pressed", Message: res.Response, Data: res}, nil
	})
}

// Present challenges a statement with one piece of evidence. A wrong
// presentation is recorded and costs a penalty; reaching the session's
// penalty limit ends it in game over.
func (e Engine) Present(ctx context.Context, caseID, statement, evidenceRef string) (Outcome, error) {
	return e.present(ctx, caseID, statement, []string{evidenceRef}, false)
}

// PresentCombination challenges a statement with several pieces at once.
func (e Engine) PresentCombination(ctx context.Context, caseID, statement string, evidenceRefs []string) (Outcome, error) {
	return e.present(ctx, caseID, statement, evidenceRefs, true)
}

func (e Engine) present(ctx context.Context, caseID, statement string, refs []string, combination bool) (Outcome, error) {
	return e.run(ctx, caseID, "present_evidence", func(c *command) (Outcome, error) {
		next := c.state.Clone()
		var (
			res trial.PresentResult
			err error
		)
		at := e.stamp()
		if combination {
			res, err = trial.PresentCombination(&next.Trial, next.Evidence, statement, refs, at)
		} else {
			if len(refs) != 1 {
				return Outcome{}, apperr.Validation(apperr.CodeInvalidArgument, "present takes exactly one piece of evidence")
			}
			res, err = trial.Present(&next.Trial, next.Evidence, statement, refs[0], at)
		}
		if err != nil {
			return Outcome{Data: res}, err
		}
		p := events.EvidencePresentedPayload{Statement: res.Statement, Evidence: res.Evidence, Combination: combination}
		if _, err := c.append(events.EvidencePresented, p); err != nil {
			return Outcome{}, err
		}
		return presentOutcome(res), nil
	})
}

func presentOutcome(res trial.PresentResult) Outcome {
	out := Outcome{OK: res.Success, Message: res.Message, Data: res}
	switch {
	case res.Success && res.Victory.Achieved:
		out.Code = "contradiction"
		out.Signal = SignalVictory
		out.Message += " The witness's testimony has collapsed."
	case res.Success:
		out.Code = "contradiction"
		out.Signal = SignalObjection
	case res.GameOver:
		out.Code = "game_over"
		out.Signal = SignalGameOver
	default:
		out.Code = "penalty"
		out.Signal = SignalPenalty
	}
	return out
}

// CheckVictory reports the active session's victory condition.
func (e Engine) CheckVictory(ctx context.Context, caseID string) (trial.Victory, error) {
	var v trial.Victory
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		if s.Trial.Session == nil {
			return apperr.Validation(apperr.CodeNoActiveSession, "no cross-examination in progress")
		}
		v = trial.CheckVictory(s.Trial.Session)
		return nil
	})
	return v, err
}

// Session returns the active cross-examination, or nil.
func (e Engine) Session(ctx context.Context, caseID string) (*SessionSummary, error) {
	var sum *SessionSummary
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		sum = summarizeSession(s.Trial.Session)
		return nil
	})
	return sum, err
}

// EndCrossExamination archives the active session. It is the one session
// command still accepted after game over.
func (e Engine) EndCrossExamination(ctx context.Context, caseID string) (Outcome, error) {
	return e.run(ctx, caseID, "end_cross_examination", func(c *command) (Outcome, error) {
		next := c.state.Clone()
		rec, err := trial.End(&next.Trial, e.stamp())
		if err != nil {
			return Outcome{}, err
		}
		if _, err := c.append(events.CrossExaminationEnded, events.WitnessPayload{Witness: rec.Witness}); err != nil {
			return Outcome{}, err
		}
		out := Outcome{OK: true, Code: "cross_examination_ended", Data: rec}
		switch {
		case rec.Victory:
			out.Signal = SignalVictory
			out.Message = fmt.Sprintf("Cross-examination of %s ends in victory", rec.Witness)
		case rec.GameOver:
			out.Signal = SignalGameOver
			out.Message = fmt.Sprintf("Cross-examination of %s ended after %d penalties", rec.Witness, rec.PenaltyCount)
		default:
			out.Message = fmt.Sprintf("Cross-examination of %s ends without a breakthrough", rec.Witness)
		}
		return out, nil
	})
}

// Verdict closes the trial and the case.
func (e Engine) Verdict(ctx context.Context, caseID, verdict string) (Outcome, error) {
	return e.run(ctx, caseID, "deliver_verdict", func(c *command) (Outcome, error) {
		if c.state.Status == domain.StatusClosed {
			return Outcome{}, apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "case %s already closed", c.state.CaseID)
		}
		if err := rules.Validate(c.state, rules.DeliverVerdict); err != nil {
			return Outcome{}, err
		}
		verdict = strings.TrimSpace(verdict)
		if verdict == "" {
			return Outcome{}, apperr.Validation(apperr.CodeInvalidArgument, "verdict is required")
		}
		if _, err := c.append(events.VerdictReached, events.VerdictPayload{Verdict: verdict}); err != nil {
			return Outcome{}, err
		}
		return Outcome{
			OK:      true,
			Code:    "verdict_reached",
			Signal:  SignalCaseClosed,
			Message: "The court finds: " + verdict,
			Data:    events.VerdictPayload{Verdict: verdict},
		}, nil
	})
}
