// Package dice resolves uncertain investigation actions with a d20.
package dice

import (
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"courtline/internal/apperr"
	"courtline/internal/domain"
)

// Outcomes, from worst to best.
const (
	CriticalFailure = "critical_failure"
	BadFailure      = "bad_failure"
	Failure         = "failure"
	PartialSuccess  = "partial_success"
	Success         = "success"
	GreatSuccess    = "great_success"
	CriticalSuccess = "critical_success"
)

type tier struct {
	dc      int
	phrases []string
}

var tiers = []tier{
	{5, []string{"casual conversation", "simple question", "basic observation", "read document", "walk to location"}},
	{8, []string{"interview cooperative witness", "examine obvious evidence", "ask direct question", "search public area"}},
	{12, []string{"confront with evidence", "persuade reluctant witness", "search private area", "analyze complex evidence"}},
	{15, []string{"interrogate hostile witness", "break into location", "deceive authority figure", "solve complex puzzle"}},
	{18, []string{"get confession from killer", "access restricted area", "convince judge to break protocol", "uncover major conspiracy"}},
	{20, []string{"resurrect the dead", "time travel", "mind reading", "impossible physical feat"}},
}

var keywordDCs = []struct {
	dc    int
	words []string
}{
	{15, []string{"interrogate", "confront", "accuse"}},
	{12, []string{"persuade", "convince", "negotiate"}},
	{10, []string{"search", "investigate", "examine"}},
	{8, []string{"ask", "question", "interview"}},
}

// DefaultDC applies to actions matching no phrase or keyword.
const DefaultDC = 10

// Difficulty returns the DC for a free-form action description.
func Difficulty(action string) int {
	a := strings.ToLower(action)
	for _, t := range tiers {
		for _, p := range t.phrases {
			if strings.Contains(a, p) {
				return t.dc
			}
		}
	}
	for _, k := range keywordDCs {
		for _, w := range k.words {
			if strings.Contains(a, w) {
				return k.dc
			}
		}
	}
	return DefaultDC
}

var digits = regexp.MustCompile(`\d+`)

// Modifier converts one modifier label to its bonus. Signed numbers are taken
// literally; named labels like "advantage" or "evidence 2" map to fixed values.
func Modifier(label string) int {
	label = strings.TrimSpace(label)
	if strings.HasPrefix(label, "+") || strings.HasPrefix(label, "-") {
		if n, err := strconv.Atoi(label); err == nil {
			return n
		}
	}
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "disadvantage"):
		return -2
	case strings.Contains(l, "advantage"):
		return 2
	case strings.Contains(l, "evidence"):
		if m := digits.FindString(l); m != "" {
			n, _ := strconv.Atoi(m)
			if n > 3 {
				n = 3
			}
			return n
		}
		return 1
	case strings.Contains(l, "hostile"):
		return -2
	case strings.Contains(l, "friendly"):
		return 2
	case strings.Contains(l, "drunk"), strings.Contains(l, "tired"):
		return -1
	case strings.Contains(l, "prepared"), strings.Contains(l, "focused"):
		return 1
	}
	return 0
}

// ModifierTotal sums the labels.
func ModifierTotal(labels []string) int {
	total := 0
	for _, l := range labels {
		total += Modifier(l)
	}
	return total
}

// Resolve grades a roll against a DC. A natural 1 always fails and a natural
// 20 always succeeds.
func Resolve(roll, total, dc int) (outcome, description string) {
	switch {
	case roll == 1:
		return CriticalFailure, "Critical failure - something goes very wrong"
	case roll == 20:
		return CriticalSuccess, "Critical success - exceptional outcome with bonus information"
	case total >= dc+5:
		return GreatSuccess, "Great success - achieves goal with additional benefits"
	case total >= dc:
		return Success, "Success - achieves intended goal"
	case total >= dc-3:
		return PartialSuccess, "Partial success - limited success with complications"
	case total >= dc-7:
		return Failure, "Failure - action fails but no major consequences"
	}
	return BadFailure, "Bad failure - action fails with negative consequences"
}

// Succeeded reports whether an outcome counts as success.
func Succeeded(outcome string) bool {
	switch outcome {
	case PartialSuccess, Success, GreatSuccess, CriticalSuccess:
		return true
	}
	return false
}

// Roller draws dice. It is safe for concurrent use.
type Roller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller seeds a roller; equal seeds give equal sequences.
func NewRoller(seed int64) *Roller {
	return &Roller{rng: rand.New(rand.NewSource(seed))}
}

// NewTimeRoller seeds a roller from the clock.
func NewTimeRoller() *Roller {
	return NewRoller(time.Now().UnixNano())
}

// D returns a value in [1, sides].
func (r *Roller) D(sides int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(sides) + 1
}

// Roll resolves an action with a d20.
func (r *Roller) Roll(action string, modifiers []string) (domain.DiceRoll, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return domain.DiceRoll{}, apperr.Validation(apperr.CodeInvalidArgument, "action is required")
	}
	roll := r.D(20)
	mod := ModifierTotal(modifiers)
	dc := Difficulty(action)
	outcome, desc := Resolve(roll, roll+mod, dc)
	var labels []string
	if len(modifiers) > 0 {
		labels = append([]string{}, modifiers...)
	}
	return domain.DiceRoll{
		Action:        action,
		Roll:          roll,
		Modifiers:     labels,
		ModifierTotal: mod,
		Total:         roll + mod,
		Difficulty:    dc,
		Result:        outcome,
		Description:   desc,
		Critical:      roll == 1 || roll == 20,
	}, nil
}

var expr = regexp.MustCompile(`^(\d*)d(\d+)([+-]\d+)?$`)

// Expression is a parsed NdS+M dice expression.
type Expression struct {
	Count    int `json:"count"`
	Sides    int `json:"sides"`
	Modifier int `json:"modifier"`
}

// ParseExpression parses notation such as "2d6+3"; an empty string is 1d20.
func ParseExpression(s string) (Expression, error) {
	s = strings.ToLower(strings.ReplaceAll(s, " ", ""))
	if s == "" {
		return Expression{Count: 1, Sides: 20}, nil
	}
	m := expr.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, apperr.Validation(apperr.CodeInvalidArgument, "dice expression %q is not NdS+M", s)
	}
	e := Expression{Count: 1}
	if m[1] != "" {
		e.Count, _ = strconv.Atoi(m[1])
	}
	e.Sides, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		e.Modifier, _ = strconv.Atoi(m[3])
	}
	if e.Count < 1 || e.Count > 100 || e.Sides < 2 || e.Sides > 1000 {
		return Expression{}, apperr.Validation(apperr.CodeInvalidArgument, "dice expression %q out of range", s)
	}
	return e, nil
}

// ExpressionResult lists each die and the total.
type ExpressionResult struct {
	Expression
	Rolls []int `json:"rolls"`
	Total int   `json:"total"`
}

// RollExpression rolls a parsed expression.
func (r *Roller) RollExpression(e Expression) ExpressionResult {
	res := ExpressionResult{Expression: e, Rolls: make([]int, 0, e.Count)}
	for i := 0; i < e.Count; i++ {
		v := r.D(e.Sides)
		res.Rolls = append(res.Rolls, v)
		res.Total += v
	}
	res.Total += e.Modifier
	return res
}

// Summary describes a roll history.
type Summary struct {
	Rolls             int     `json:"rolls"`
	AverageRoll       float64 `json:"average_roll"`
	SuccessRate       float64 `json:"success_rate"`
	CriticalFailures  int     `json:"critical_failures"`
	CriticalSuccesses int     `json:"critical_successes"`
}

// Summarize computes a Summary over history.
func Summarize(history []domain.DiceRoll) Summary {
	st := Summary{Rolls: len(history)}
	if len(history) == 0 {
		return st
	}
	sum, ok := 0, 0
	for _, h := range history {
		sum += h.Roll
		if Succeeded(h.Result) {
			ok++
		}
		switch h.Roll {
		case 1:
			st.CriticalFailures++
		case 20:
			st.CriticalSuccesses++
		}
	}
	st.AverageRoll = float64(sum) / float64(len(history))
	st.SuccessRate = float64(ok) / float64(len(history))
	return st
}

func (e Expression) String() string {
	switch {
	case e.Modifier > 0:
		return fmt.Sprintf("%dd%d+%d", e.Count, e.Sides, e.Modifier)
	case e.Modifier < 0:
		return fmt.Sprintf("%dd%d%d", e.Count, e.Sides, e.Modifier)
	}
	return fmt.Sprintf("%dd%d", e.Count, e.Sides)
}
