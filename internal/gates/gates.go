// Package gates tracks investigation and trial checkpoints. Statuses only
// advance pending -> in_progress -> completed.
package gates

import (
	"fmt"

	"courtline/internal/apperr"
	"courtline/internal/domain"
)

// Controller operates on the gate list of a case in place.
type Controller struct {
	Gates        []domain.Gate
	TriggerPoint int
}

// New wraps gates. The slice is mutated by Start and Complete.
func New(gates []domain.Gate, triggerPoint int) *Controller {
	return &Controller{Gates: gates, TriggerPoint: triggerPoint}
}

// Build creates pending gates from an ordered list of ids.
func Build(ids []string, kindOf func(string) string) ([]domain.Gate, error) {
	out := make([]domain.Gate, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			return nil, apperr.Validation(apperr.CodeInvalidArgument, "gate %s listed twice", id)
		}
		seen[id] = true
		kind := domain.GateKind(kindOf(id))
		if kind != domain.GateInvestigation && kind != domain.GateTrial {
			return nil, apperr.Validation(apperr.CodeUnknownGate, "gate %s has no investigation/trial classification", id)
		}
		out = append(out, domain.Gate{ID: id, Kind: kind, Status: domain.GatePending})
	}
	return out, nil
}

func (c *Controller) find(id string) (*domain.Gate, error) {
	for i := range c.Gates {
		if c.Gates[i].ID == id {
			return &c.Gates[i], nil
		}
	}
	return nil, c.unknown(id)
}

func (c *Controller) unknown(id string) error {
	valid := make([]string, 0, len(c.Gates))
	for _, g := range c.Gates {
		valid = append(valid, g.ID)
	}
	return apperr.Validation(apperr.CodeUnknownGate, "gate %s not found", id).With("gate", id).WithValid(valid)
}

// Check validates that id can be started (or completed, when complete is true)
// without changing anything.
func (c *Controller) Check(id string, complete bool) error {
	g, err := c.find(id)
	if err != nil {
		return err
	}
	switch {
	case g.Status == domain.GateCompleted:
		return apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "gate %s already completed", id).With("gate", id)
	case !complete && g.Status == domain.GateInProgress:
		return apperr.AlreadyDone(apperr.CodeAlreadyStarted, "gate %s already in progress", id).With("gate", id)
	}
	return nil
}

// Start moves a pending gate to in_progress.
func (c *Controller) Start(id, at string) error {
	if err := c.Check(id, false); err != nil {
		return err
	}
	g, _ := c.find(id)
	return transition(g, domain.GateInProgress, at)
}

// Complete moves a gate to completed. A pending gate is started implicitly.
// Completing an already completed gate returns an AlreadyDone error and
// changes nothing.
func (c *Controller) Complete(id, at string) error {
	if err := c.Check(id, true); err != nil {
		return err
	}
	g, _ := c.find(id)
	if g.Status == domain.GatePending {
		if err := transition(g, domain.GateInProgress, at); err != nil {
			return err
		}
	}
	return transition(g, domain.GateCompleted, at)
}

func transition(g *domain.Gate, to domain.GateStatus, at string) error {
	if to.Rank() != g.Status.Rank()+1 {
		return fmt.Errorf("invalid gate status transition %s -> %s", g.Status, to)
	}
	g.Status = to
	switch to {
	case domain.GateInProgress:
		g.StartedAt = at
	case domain.GateCompleted:
		g.CompletedAt = at
	}
	return nil
}

// Next returns the first gate, in case order, that is not completed.
func (c *Controller) Next() (domain.Gate, bool) {
	for _, g := range c.Gates {
		if g.Status != domain.GateCompleted {
			return g, true
		}
	}
	return domain.Gate{}, false
}

// Current returns the first in-progress gate.
func (c *Controller) Current() (domain.Gate, bool) {
	for _, g := range c.Gates {
		if g.Status == domain.GateInProgress {
			return g, true
		}
	}
	return domain.Gate{}, false
}

// CompletedInvestigation counts completed investigation gates.
func (c *Controller) CompletedInvestigation() int {
	n := 0
	for _, g := range c.Gates {
		if g.Kind == domain.GateInvestigation && g.Status == domain.GateCompleted {
			n++
		}
	}
	return n
}

// IsTrialReady reports whether enough investigation gates are completed for
// the trial to begin. Cases without investigation gates are ready at once.
func (c *Controller) IsTrialReady() bool {
	return c.CompletedInvestigation() >= c.TriggerPoint
}

// IsFinalInvestigation reports whether id is the last investigation gate.
func (c *Controller) IsFinalInvestigation(id string) bool {
	last := ""
	for _, g := range c.Gates {
		if g.Kind == domain.GateInvestigation {
			last = g.ID
		}
	}
	return last != "" && last == id
}

type Progress struct {
	Percent    int      `json:"percent"`
	Completed  []string `json:"completed"`
	InProgress []string `json:"in_progress"`
	Pending    []string `json:"pending"`
	Next       string   `json:"next,omitempty"`
	TrialReady bool     `json:"trial_ready"`
	TotalGates int      `json:"total_gates"`
	TriggerAt  int      `json:"trial_trigger_point"`
	InvestDone int      `json:"investigation_completed"`
}

// Progress summarizes gate status for status reports and save listings.
func (c *Controller) Progress() Progress {
	p := Progress{
		Completed:  []string{},
		InProgress: []string{},
		Pending:    []string{},
		TrialReady: c.IsTrialReady(),
		TotalGates: len(c.Gates),
		TriggerAt:  c.TriggerPoint,
		InvestDone: c.CompletedInvestigation(),
	}
	for _, g := range c.Gates {
		switch g.Status {
		case domain.GateCompleted:
			p.Completed = append(p.Completed, g.ID)
		case domain.GateInProgress:
			p.InProgress = append(p.InProgress, g.ID)
		default:
			p.Pending = append(p.Pending, g.ID)
		}
	}
	if len(c.Gates) > 0 {
		p.Percent = len(p.Completed) * 100 / len(c.Gates)
	}
	if next, ok := c.Next(); ok {
		p.Next = next.ID
	}
	return p
}
