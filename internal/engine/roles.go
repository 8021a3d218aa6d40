package engine

import (
	"context"
	"log/slog"

	"courtline/internal/apperr"
	"courtline/internal/classify"
	"courtline/internal/domain"
)

// Classification is the hidden role assigned to a character.
type Classification struct {
	Name        string                `json:"name"`
	Role        domain.Classification `json:"role"`
	Created     bool                  `json:"created"`
	RoleHint    string                `json:"role_hint,omitempty"`
	Probability float64               `json:"killer_probability"`
}

// Classify returns the hidden role of a character, assigning it on first
// reference. Asking again returns the recorded role as a benign no-op.
func (e Engine) Classify(ctx context.Context, caseID, name, roleHint string) (Outcome, error) {
	var out Outcome
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		role, created, err := rt.classifier.Classify(name, roleHint)
		if err != nil {
			return err
		}
		res := Classification{Name: name, Role: role, Created: created, RoleHint: roleHint, Probability: rt.classifier.WeightedProbability(roleHint)}
		if !created {
			out = OutcomeOf(apperr.AlreadyDone(apperr.CodeAlreadyClassified, "%s already classified", name).With("character", name))
			out.Data = res
			return nil
		}
		e.logger().DebugContext(ctx, "classified", slog.String("case_id", caseID), slog.String("character", name))
		out = Outcome{OK: true, Code: "classified", Message: name + " classified", Data: res}
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return OutcomeOf(err), err
		}
		return Outcome{}, err
	}
	return out, nil
}

// OverrideClassification sets a role by hand. The killer and conspirator
// limits still apply.
func (e Engine) OverrideClassification(ctx context.Context, caseID, name string, role domain.Classification) error {
	return e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		return rt.classifier.Override(name, role)
	})
}

// Classifications returns the registry of a case.
func (e Engine) Classifications(ctx context.Context, caseID string) (classify.Registry, error) {
	var reg classify.Registry
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		reg = rt.classifier.All()
		return nil
	})
	return reg, err
}

func (e Engine) ClassifierStats(ctx context.Context, caseID string) (classify.Stats, error) {
	var st classify.Stats
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		st = rt.classifier.Stats()
		return nil
	})
	return st, err
}

// KillerProbability is the first-stage probability for a role hint in this
// case.
func (e Engine) KillerProbability(ctx context.Context, caseID, roleHint string) (float64, error) {
	var p float64
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		p = rt.classifier.WeightedProbability(roleHint)
		return nil
	})
	return p, err
}

func (e Engine) ResetClassifications(ctx context.Context, caseID string) error {
	return e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		e.logger().WarnContext(ctx, "classifications reset", slog.String("case_id", caseID))
		return rt.classifier.Reset()
	})
}
