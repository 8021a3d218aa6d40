package domain

type TrialPhase string

const (
	TrialNotStarted         TrialPhase = "not_started"
	TrialOpening            TrialPhase = "opening"
	TrialWitnessTestimony   TrialPhase = "witness_testimony"
	TrialCrossExamination   TrialPhase = "cross_examination"
	TrialWitnessExamination TrialPhase = "witness_examination"
	TrialVerdict            TrialPhase = "verdict"
)

// Statement is one lettered claim made by a witness. Only Pressed and
// Contradicted change once a session has started.
type Statement struct {
	ID                    string     `json:"id"`
	Text                  string     `json:"text"`
	IsLie                 bool       `json:"is_lie"`
	Critical              bool       `json:"critical"`
	Pressed               bool       `json:"pressed"`
	Contradicted          bool       `json:"contradicted"`
	ContradictingEvidence []string   `json:"contradicting_evidence"`
	Combinations          [][]string `json:"combinations,omitempty"`
	PressResponse         string     `json:"press_response,omitempty"`
}

// Contradicts reports whether evidence id is listed against the statement.
func (s Statement) Contradicts(evidenceID string) bool {
	for _, id := range s.ContradictingEvidence {
		if id == evidenceID {
			return true
		}
	}
	return false
}

type Presentation struct {
	StatementID  string   `json:"statement_id"`
	Evidence     []string `json:"evidence"`
	Combination  bool     `json:"combination"`
	Success      bool     `json:"success"`
	PenaltyCount int      `json:"penalty_count"`
	PresentedAt  string   `json:"presented_at" format:"date-time"`
}

type SessionStatus string

const (
	SessionActive   SessionStatus = "active"
	SessionGameOver SessionStatus = "game_over"
)

// Session is an active cross-examination of a single witness.
type Session struct {
	Witness                  string         `json:"witness"`
	Status                   SessionStatus  `json:"status" enum:"active,game_over"`
	Statements               []Statement    `json:"statements"`
	Presentations            []Presentation `json:"evidence_presented"`
	SuccessfulContradictions int            `json:"successful_contradictions"`
	FailedPresentations      int            `json:"failed_presentations"`
	PenaltyCount             int            `json:"penalty_count"`
	MaxPenalties             int            `json:"max_penalties"`
	RequiredContradictions   int            `json:"required_contradictions"`
	CriticalStatements       []string       `json:"critical_statements"`
	StartedAt                string         `json:"started_at" format:"date-time"`
}

// GameOver reports whether the session has been terminated by penalties.
func (s *Session) GameOver() bool {
	return s.Status == SessionGameOver
}

// SessionRecord is the archived outcome of an ended cross-examination.
type SessionRecord struct {
	Witness                  string   `json:"witness"`
	Victory                  bool     `json:"victory"`
	GameOver                 bool     `json:"game_over"`
	SuccessfulContradictions int      `json:"successful_contradictions"`
	FailedPresentations      int      `json:"failed_presentations"`
	PenaltyCount             int      `json:"penalty_count"`
	Contradicted             []string `json:"contradicted_statements"`
	StartedAt                string   `json:"started_at" format:"date-time"`
	EndedAt                  string   `json:"ended_at" format:"date-time"`
}

type TrialState struct {
	Phase             TrialPhase             `json:"trial_phase" enum:"not_started,opening,witness_testimony,cross_examination,witness_examination,verdict"`
	StartedAt         string                 `json:"started_at,omitempty" format:"date-time"`
	CurrentWitness    string                 `json:"current_witness,omitempty"`
	WitnessesExamined []string               `json:"witnesses_examined"`
	Testimonies       map[string][]Statement `json:"testimonies"`
	History           []SessionRecord        `json:"cross_examination_history"`
	Session           *Session               `json:"session,omitempty"`
}

// NewTrialState returns a trial that has not started.
func NewTrialState() TrialState {
	return TrialState{
		Phase:             TrialNotStarted,
		WitnessesExamined: []string{},
		Testimonies:       map[string][]Statement{},
		History:           []SessionRecord{},
	}
}

// Started reports whether the trial is in progress.
func (t TrialState) Started() bool {
	return t.Phase != TrialNotStarted
}
