// Package trial runs the cross-examination protocol: testimony, pressing,
// presenting evidence, penalties and victory.
package trial

import (
	"fmt"
	"sort"
	"strings"

	"courtline/internal/apperr"
	"courtline/internal/domain"
)

// Status is the cross-examination state derived from a TrialState.
type Status string

const (
	NotStarted    Status = "not_started"
	WitnessCalled Status = "witness_called"
	Active        Status = "active"
	GameOver      Status = "game_over"
	Ended         Status = "ended"
)

// StatusOf derives the cross-examination status.
func StatusOf(t domain.TrialState) Status {
	switch {
	case t.Session != nil && t.Session.GameOver():
		return GameOver
	case t.Session != nil:
		return Active
	case t.Phase == domain.TrialWitnessTestimony:
		return WitnessCalled
	case len(t.History) > 0:
		return Ended
	}
	return NotStarted
}

// Rules are the per-case limits for testimony and sessions.
type Rules struct {
	MaxPenalties  int
	MinStatements int
	MaxStatements int
}

// DefaultRules match the stock configuration.
var DefaultRules = Rules{MaxPenalties: 5, MinStatements: 3, MaxStatements: 5}

var statementIDs = []string{"A", "B", "C", "D", "E"}

// Begin moves the trial out of not_started.
func Begin(t *domain.TrialState, at string) error {
	if t.Started() {
		return apperr.AlreadyDone(apperr.CodeAlreadyStarted, "trial already started")
	}
	t.Phase = domain.TrialOpening
	t.StartedAt = at
	return nil
}

// RecordTestimony stores the lettered statements a witness will defend under
// cross-examination. Evidence references are normalized to evidence ids.
func RecordTestimony(t *domain.TrialState, witness string, statements []domain.Statement, rules Rules) error {
	witness = strings.TrimSpace(witness)
	if witness == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "witness is required")
	}
	if t.Session != nil && strings.EqualFold(t.Session.Witness, witness) {
		return apperr.Validation(apperr.CodeSessionActive, "cannot replace testimony of %s during cross-examination", witness).With("witness", witness)
	}
	if rules.MaxStatements > 0 && len(statements) > rules.MaxStatements {
		return apperr.Validation(apperr.CodeInvalidArgument, "witness %s has %d statements, at most %d allowed", witness, len(statements), rules.MaxStatements)
	}
	seen := map[string]bool{}
	out := make([]domain.Statement, 0, len(statements))
	for _, st := range statements {
		id := strings.ToUpper(strings.TrimSpace(st.ID))
		if !validStatementID(id) {
			return apperr.Validation(apperr.CodeInvalidArgument, "statement id %q must be one of A-E", st.ID).WithValid(statementIDs)
		}
		if seen[id] {
			return apperr.Validation(apperr.CodeInvalidArgument, "statement %s listed twice", id)
		}
		seen[id] = true
		st.ID = id
		st.Pressed = false
		st.Contradicted = false
		st.ContradictingEvidence = slugAll(st.ContradictingEvidence)
		if st.Combinations != nil {
			combos := make([][]string, 0, len(st.Combinations))
			for _, c := range st.Combinations {
				combos = append(combos, slugAll(c))
			}
			st.Combinations = combos
		}
		out = append(out, st)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	t.Testimonies[WitnessName(*t, witness)] = out
	return nil
}

// CallWitness puts a witness on the stand.
func CallWitness(t *domain.TrialState, witness string) error {
	if !t.Started() {
		return apperr.Validation(apperr.CodeInvalidPhase, "trial has not started")
	}
	if t.Session != nil {
		return apperr.Validation(apperr.CodeSessionActive, "cross-examination of %s is in progress", t.Session.Witness).With("witness", t.Session.Witness)
	}
	witness = strings.TrimSpace(witness)
	if witness == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "witness is required")
	}
	t.Phase = domain.TrialWitnessTestimony
	t.CurrentWitness = WitnessName(*t, witness)
	return nil
}

// Start opens a fresh cross-examination session for witness.
func Start(t *domain.TrialState, witness string, rules Rules, at string) (*domain.Session, error) {
	if !t.Started() {
		return nil, apperr.Validation(apperr.CodeInvalidPhase, "trial has not started")
	}
	if t.Session != nil {
		return nil, apperr.Validation(apperr.CodeSessionActive, "cross-examination of %s is in progress", t.Session.Witness).With("witness", t.Session.Witness)
	}
	witness = strings.TrimSpace(witness)
	if witness == "" {
		witness = t.CurrentWitness
	}
	if witness == "" {
		return nil, apperr.Validation(apperr.CodeUnknownWitness, "no witness called").WithValid(Witnesses(*t))
	}
	witness = WitnessName(*t, witness)
	statements := t.Testimonies[witness]
	minStatements := rules.MinStatements
	if minStatements < 1 {
		minStatements = DefaultRules.MinStatements
	}
	if len(statements) < minStatements {
		return nil, apperr.Validation(apperr.CodeInsufficientStatements,
			"witness %s has %d statements, at least %d required", witness, len(statements), minStatements).
			With("witness", witness).With("available", len(statements)).With("required", minStatements)
	}
	maxPenalties := rules.MaxPenalties
	if maxPenalties < 1 {
		maxPenalties = DefaultRules.MaxPenalties
	}
	s := &domain.Session{
		Witness:            witness,
		Status:             domain.SessionActive,
		Statements:         domain.Session{Statements: statements}.Clone().Statements,
		Presentations:      []domain.Presentation{},
		MaxPenalties:       maxPenalties,
		CriticalStatements: []string{},
		StartedAt:          at,
	}
	lies := 0
	var flagged, lying []string
	for i := range s.Statements {
		s.Statements[i].Pressed = false
		s.Statements[i].Contradicted = false
		if s.Statements[i].IsLie {
			lies++
			lying = append(lying, s.Statements[i].ID)
		}
		if s.Statements[i].Critical {
			flagged = append(flagged, s.Statements[i].ID)
		}
	}
	s.RequiredContradictions = lies / 2
	if s.RequiredContradictions < 1 {
		s.RequiredContradictions = 1
	}
	switch {
	case len(flagged) > 0:
		s.CriticalStatements = flagged
	case len(lying) > 0:
		s.CriticalStatements = lying
	}
	for i := range s.Statements {
		s.Statements[i].Critical = contains(s.CriticalStatements, s.Statements[i].ID)
	}
	t.Phase = domain.TrialCrossExamination
	t.CurrentWitness = witness
	t.Session = s
	return s, nil
}

// Witnesses lists witnesses with recorded testimony.
func Witnesses(t domain.TrialState) []string {
	out := make([]string, 0, len(t.Testimonies))
	for w := range t.Testimonies {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// WitnessName resolves w against the witnesses with recorded testimony,
// ignoring case. An unknown witness resolves to w trimmed.
func WitnessName(t domain.TrialState, w string) string {
	w = strings.TrimSpace(w)
	if _, ok := t.Testimonies[w]; ok {
		return w
	}
	for name := range t.Testimonies {
		if strings.EqualFold(name, w) {
			return name
		}
	}
	return w
}

func validStatementID(id string) bool {
	return contains(statementIDs, id)
}

func findStatement(s *domain.Session, id string) (*domain.Statement, error) {
	want := strings.ToUpper(strings.TrimSpace(id))
	for i := range s.Statements {
		if s.Statements[i].ID == want {
			return &s.Statements[i], nil
		}
	}
	valid := make([]string, 0, len(s.Statements))
	for _, st := range s.Statements {
		valid = append(valid, st.ID)
	}
	return nil, apperr.Validation(apperr.CodeUnknownStatement, "statement %s not found for witness %s", id, s.Witness).
		With("statement", id).WithValid(valid)
}

func slugAll(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if id := domain.Slug(r); id != "" && !contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func activeSession(t *domain.TrialState) (*domain.Session, error) {
	if t.Session == nil {
		return nil, apperr.Validation(apperr.CodeNoActiveSession, "no cross-examination in progress")
	}
	if t.Session.GameOver() {
		return nil, apperr.Terminated(t.Session.Witness)
	}
	return t.Session, nil
}

// PressResult is the information-only answer to a press.
type PressResult struct {
	Witness   string `json:"witness"`
	Statement string `json:"statement"`
	Response  string `json:"response"`
	Repeat    bool   `json:"repeat"`
}

// Press asks the witness to elaborate on a statement. Pressing twice returns
// the same clarification together with an AlreadyDone error.
func Press(t *domain.TrialState, statementID string) (PressResult, error) {
	s, err := activeSession(t)
	if err != nil {
		return PressResult{}, err
	}
	st, err := findStatement(s, statementID)
	if err != nil {
		return PressResult{}, err
	}
	res := PressResult{Witness: s.Witness, Statement: st.ID, Response: pressResponse(s.Witness, *st)}
	if st.Pressed {
		res.Repeat = true
		return res, apperr.AlreadyDone(apperr.CodeAlreadyPressed, "statement %s already pressed", st.ID).With("statement", st.ID)
	}
	st.Pressed = true
	return res, nil
}

func pressResponse(witness string, st domain.Statement) string {
	if st.PressResponse != "" {
		return st.PressResponse
	}
	return fmt.Sprintf("%s elaborates on statement %s: %q", witness, st.ID, st.Text)
}

// PresentResult describes the outcome of presenting evidence.
type PresentResult struct {
	Witness      string      `json:"witness"`
	Statement    string      `json:"statement"`
	Evidence     []string    `json:"evidence"`
	Success      bool        `json:"success"`
	PenaltyCount int         `json:"penalty_count"`
	Band         PenaltyBand `json:"penalty_band,omitempty"`
	Message      string      `json:"message"`
	GameOver     bool        `json:"game_over"`
	Victory      Victory     `json:"victory"`
}

// Present challenges a statement with one piece of collected evidence.
func Present(t *domain.TrialState, collected map[string]domain.Evidence, statementID, evidenceRef, at string) (PresentResult, error) {
	return present(t, collected, statementID, []string{evidenceRef}, false, at)
}

// PresentCombination challenges a statement with several pieces at once. It
// succeeds when a declared combination for the statement is covered, or when
// at least two of the pieces contradict the statement on their own.
func PresentCombination(t *domain.TrialState, collected map[string]domain.Evidence, statementID string, evidenceRefs []string, at string) (PresentResult, error) {
	if len(evidenceRefs) < 2 {
		return PresentResult{}, apperr.Validation(apperr.CodeInvalidArgument, "a combination needs at least two pieces of evidence")
	}
	return present(t, collected, statementID, evidenceRefs, true, at)
}

func present(t *domain.TrialState, collected map[string]domain.Evidence, statementID string, refs []string, combination bool, at string) (PresentResult, error) {
	s, err := activeSession(t)
	if err != nil {
		return PresentResult{}, err
	}
	st, err := findStatement(s, statementID)
	if err != nil {
		return PresentResult{}, err
	}
	ids, err := resolveEvidence(collected, refs)
	if err != nil {
		return PresentResult{}, err
	}
	res := PresentResult{Witness: s.Witness, Statement: st.ID, Evidence: ids}
	success := false
	if combination {
		success = combinationMatches(*st, ids)
	} else {
		success = st.Contradicts(ids[0])
	}
	if success && st.Contradicted {
		res.Success = true
		res.PenaltyCount = s.PenaltyCount
		res.Message = fmt.Sprintf("Statement %s has already been exposed.", st.ID)
		res.Victory = CheckVictory(s)
		return res, apperr.AlreadyDone(apperr.CodeAlreadyContradicted, "statement %s already contradicted", st.ID).With("statement", st.ID)
	}
	if success {
		st.Contradicted = true
		s.SuccessfulContradictions++
		res.Success = true
		res.Message = fmt.Sprintf("OBJECTION! The evidence contradicts statement %s.", st.ID)
	} else {
		s.FailedPresentations++
		applyPenalty(s)
		res.Band = Band(s.PenaltyCount)
		res.Message = PenaltyMessage(s.PenaltyCount, s.MaxPenalties)
	}
	res.PenaltyCount = s.PenaltyCount
	res.GameOver = s.GameOver()
	s.Presentations = append(s.Presentations, domain.Presentation{
		StatementID:  st.ID,
		Evidence:     ids,
		Combination:  combination,
		Success:      success,
		PenaltyCount: s.PenaltyCount,
		PresentedAt:  at,
	})
	res.Victory = CheckVictory(s)
	return res, nil
}

func resolveEvidence(collected map[string]domain.Evidence, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id := ""
		if _, ok := collected[ref]; ok {
			id = ref
		} else if _, ok := collected[domain.Slug(ref)]; ok {
			id = domain.Slug(ref)
		}
		if id == "" {
			valid := make([]string, 0, len(collected))
			for k := range collected {
				valid = append(valid, k)
			}
			return nil, apperr.Validation(apperr.CodeUnknownEvidence, "evidence %s has not been collected", ref).
				With("evidence", ref).WithValid(valid)
		}
		if !contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func combinationMatches(st domain.Statement, ids []string) bool {
	for _, combo := range st.Combinations {
		if len(combo) == 0 {
			continue
		}
		covered := true
		for _, need := range combo {
			if !contains(ids, need) {
				covered = false
				break
			}
		}
		if covered {
			return true
		}
	}
	hits := 0
	for _, id := range ids {
		if st.Contradicts(id) {
			hits++
		}
	}
	return hits >= 2
}

// Victory reports whether the session's victory condition holds.
type Victory struct {
	Achieved        bool     `json:"achieved"`
	Successful      int      `json:"successful_contradictions"`
	Required        int      `json:"required_contradictions"`
	CriticalExposed []string `json:"critical_exposed"`
}

// CheckVictory requires the contradiction threshold and at least one exposed
// critical statement.
func CheckVictory(s *domain.Session) Victory {
	v := Victory{Successful: s.SuccessfulContradictions, Required: s.RequiredContradictions, CriticalExposed: []string{}}
	for _, st := range s.Statements {
		if st.Contradicted && contains(s.CriticalStatements, st.ID) {
			v.CriticalExposed = append(v.CriticalExposed, st.ID)
		}
	}
	v.Achieved = v.Successful >= v.Required && len(v.CriticalExposed) > 0
	return v
}

// End archives the session into history and returns the trial to witness
// examination. It is the only command accepted after game over.
func End(t *domain.TrialState, at string) (domain.SessionRecord, error) {
	if t.Session == nil {
		return domain.SessionRecord{}, apperr.Validation(apperr.CodeNoActiveSession, "no cross-examination in progress")
	}
	s := t.Session
	rec := domain.SessionRecord{
		Witness:                  s.Witness,
		Victory:                  CheckVictory(s).Achieved,
		GameOver:                 s.GameOver(),
		SuccessfulContradictions: s.SuccessfulContradictions,
		FailedPresentations:      s.FailedPresentations,
		PenaltyCount:             s.PenaltyCount,
		Contradicted:             []string{},
		StartedAt:                s.StartedAt,
		EndedAt:                  at,
	}
	for _, st := range s.Statements {
		if st.Contradicted {
			rec.Contradicted = append(rec.Contradicted, st.ID)
		}
	}
	t.History = append(t.History, rec)
	if !contains(t.WitnessesExamined, s.Witness) {
		t.WitnessesExamined = append(t.WitnessesExamined, s.Witness)
	}
	t.Session = nil
	t.Phase = domain.TrialWitnessExamination
	return rec, nil
}

// Verdict closes the trial. A verdict cannot be reached mid-session.
func Verdict(t *domain.TrialState) error {
	if !t.Started() {
		return apperr.Validation(apperr.CodeInvalidPhase, "trial has not started")
	}
	if t.Session != nil {
		return apperr.Validation(apperr.CodeSessionActive, "cross-examination of %s is in progress", t.Session.Witness)
	}
	if t.Phase == domain.TrialVerdict {
		return apperr.AlreadyDone(apperr.CodeAlreadyCompleted, "verdict already reached")
	}
	t.Phase = domain.TrialVerdict
	return nil
}
