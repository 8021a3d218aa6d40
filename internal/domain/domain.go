package domain

import (
	"strings"
	"unicode"
)

type Phase string

const (
	PhaseInvestigation Phase = "investigation"
	PhaseTrial         Phase = "trial"
)

type CaseStatus string

const (
	StatusCreated CaseStatus = "created"
	StatusActive  CaseStatus = "active"
	StatusClosed  CaseStatus = "closed"
)

type GateKind string

const (
	GateInvestigation GateKind = "investigation"
	GateTrial         GateKind = "trial"
)

type GateStatus string

const (
	GatePending    GateStatus = "pending"
	GateInProgress GateStatus = "in_progress"
	GateCompleted  GateStatus = "completed"
)

// Rank orders gate statuses so transitions can be checked for monotonicity.
func (s GateStatus) Rank() int {
	switch s {
	case GatePending:
		return 0
	case GateInProgress:
		return 1
	case GateCompleted:
		return 2
	}
	return -1
}

type Gate struct {
	ID          string     `json:"id"`
	Kind        GateKind   `json:"kind" enum:"investigation,trial"`
	Status      GateStatus `json:"status" enum:"pending,in_progress,completed"`
	StartedAt   string     `json:"started_at,omitempty" format:"date-time"`
	CompletedAt string     `json:"completed_at,omitempty" format:"date-time"`
}

type Evidence struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Location     string `json:"location,omitempty"`
	Significance int    `json:"significance"`
	CollectedAt  string `json:"collected_at" format:"date-time"`
}

type Classification string

const (
	Killer      Classification = "killer"
	Conspirator Classification = "conspirator"
	RedHerring  Classification = "red_herring"
)

// Valid reports whether c is one of the three hidden roles.
func (c Classification) Valid() bool {
	return c == Killer || c == Conspirator || c == RedHerring
}

const (
	TrustMin = -10
	TrustMax = 10
)

const (
	InterviewNone          = "not_interviewed"
	InterviewStarted       = "interviewed"
	InterviewExhausted     = "exhausted"
	InterviewUncooperative = "uncooperative"
)

type Character struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Role            string         `json:"role"`
	Description     string         `json:"description,omitempty"`
	TrustLevel      int            `json:"trust_level"`
	InterviewStatus string         `json:"interview_status"`
	MetAt           string         `json:"met_at" format:"date-time"`
	Classification  Classification `json:"classification,omitempty"`
}

// CriticalRoles may be held by at most one character per case.
var CriticalRoles = []string{"prosecutor", "judge", "client"}

// IsCriticalRole reports whether role is one of CriticalRoles (case-insensitive).
func IsCriticalRole(role string) bool {
	r := strings.ToLower(strings.TrimSpace(role))
	for _, c := range CriticalRoles {
		if r == c {
			return true
		}
	}
	return false
}

// ClampTrust bounds a trust level to [TrustMin, TrustMax].
func ClampTrust(v int) int {
	if v < TrustMin {
		return TrustMin
	}
	if v > TrustMax {
		return TrustMax
	}
	return v
}

// Slug derives a stable id from a display name: lowercase, spaces and dashes
// become underscores, anything else non-alphanumeric is dropped.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r == ' ' || r == '-':
			b.WriteRune('_')
		case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}

type DiceRoll struct {
	Action        string   `json:"action"`
	Roll          int      `json:"roll"`
	Modifiers     []string `json:"modifiers,omitempty"`
	ModifierTotal int      `json:"modifier_total"`
	Total         int      `json:"total"`
	Difficulty    int      `json:"difficulty"`
	Result        string   `json:"result"`
	Description   string   `json:"description"`
	Critical      bool     `json:"critical"`
	RolledAt      string   `json:"rolled_at" format:"date-time"`
}

// DiceHistoryLimit bounds the rolls kept in CaseState.
const DiceHistoryLimit = 20

type Escalation struct {
	OriginalCrime string   `json:"original_crime"`
	CurrentCrime  string   `json:"current_crime"`
	Escalated     bool     `json:"escalated"`
	Gate          string   `json:"gate,omitempty"`
	Narrative     string   `json:"narrative,omitempty"`
	EscalatedAt   string   `json:"escalated_at,omitempty" format:"date-time"`
	CheckedGates  []string `json:"checked_gates,omitempty"`
}

type Metadata struct {
	EventCount  int    `json:"event_count"`
	Created     string `json:"created,omitempty" format:"date-time"`
	LastUpdated string `json:"last_updated,omitempty" format:"date-time"`
	LastEventID string `json:"last_event_id,omitempty"`
}

// CaseState is derived from the event log and never edited by hand.
type CaseState struct {
	CaseID          string               `json:"case_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description,omitempty"`
	Phase           Phase                `json:"phase" enum:"investigation,trial"`
	Status          CaseStatus           `json:"status" enum:"created,active,closed"`
	CaseLength      int                  `json:"case_length"`
	TrialTrigger    int                  `json:"trial_trigger_point"`
	CurrentLocation string               `json:"current_location"`
	Gates           []Gate               `json:"gates"`
	Evidence        map[string]Evidence  `json:"evidence"`
	Characters      map[string]Character `json:"characters"`
	Trial           TrialState           `json:"trial"`
	Dice            []DiceRoll           `json:"dice,omitempty"`
	Escalation      Escalation           `json:"escalation"`
	Metadata        Metadata             `json:"metadata"`
}

// DefaultLocation is where every case starts.
const DefaultLocation = "law_office"

// NewCaseState returns the empty state every projection starts from.
func NewCaseState() CaseState {
	return CaseState{
		Phase:           PhaseInvestigation,
		Status:          StatusCreated,
		CurrentLocation: DefaultLocation,
		Gates:           []Gate{},
		Evidence:        map[string]Evidence{},
		Characters:      map[string]Character{},
		Trial:           NewTrialState(),
	}
}

// FindGate returns the index of gate id, or -1.
func (s CaseState) FindGate(id string) int {
	for i, g := range s.Gates {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// GateIDs lists gate ids in case order.
func (s CaseState) GateIDs() []string {
	out := make([]string, 0, len(s.Gates))
	for _, g := range s.Gates {
		out = append(out, g.ID)
	}
	return out
}

// CharacterByName finds a character by case-insensitive name.
func (s CaseState) CharacterByName(name string) (Character, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, c := range s.Characters {
		if strings.ToLower(c.Name) == want {
			return c, true
		}
	}
	return Character{}, false
}

// EvidenceByRef resolves an evidence id or display name.
func (s CaseState) EvidenceByRef(ref string) (Evidence, bool) {
	if ev, ok := s.Evidence[ref]; ok {
		return ev, true
	}
	if ev, ok := s.Evidence[Slug(ref)]; ok {
		return ev, true
	}
	return Evidence{}, false
}

// EvidenceIDs lists collected evidence ids.
func (s CaseState) EvidenceIDs() []string {
	out := make([]string, 0, len(s.Evidence))
	for id := range s.Evidence {
		out = append(out, id)
	}
	return out
}
