package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the closed set of facts a case log can record.
type Kind string

const (
	CaseCreated             Kind = "case_created"
	CaseInitialized         Kind = "case_initialized"
	EvidenceAdded           Kind = "evidence_added"
	CharacterMet            Kind = "character_met"
	CharacterTrustUpdated   Kind = "character_trust_updated"
	CharacterInterviewed    Kind = "character_interviewed"
	LocationChanged         Kind = "location_changed"
	GateStarted             Kind = "gate_started"
	GateCompleted           Kind = "gate_completed"
	DiceRolled              Kind = "dice_rolled"
	CrimeEscalated          Kind = "crime_escalated"
	TrialStarted            Kind = "trial_started"
	TestimonyRecorded       Kind = "testimony_recorded"
	WitnessCalled           Kind = "witness_called"
	CrossExaminationStarted Kind = "cross_examination_started"
	StatementPressed        Kind = "statement_pressed"
	EvidencePresented       Kind = "evidence_presented"
	CrossExaminationEnded   Kind = "cross_examination_ended"
	VerdictReached          Kind = "verdict_reached"
	SaveCreated             Kind = "save_created"
	SaveRestored            Kind = "save_restored"
)

var kinds = map[Kind]bool{
	CaseCreated: true, CaseInitialized: true, EvidenceAdded: true, CharacterMet: true,
	CharacterTrustUpdated: true, CharacterInterviewed: true, LocationChanged: true,
	GateStarted: true, GateCompleted: true, DiceRolled: true, CrimeEscalated: true,
	TrialStarted: true, TestimonyRecorded: true, WitnessCalled: true,
	CrossExaminationStarted: true, StatementPressed: true, EvidencePresented: true,
	CrossExaminationEnded: true, VerdictReached: true, SaveCreated: true, SaveRestored: true,
}

// Valid reports whether k belongs to the closed set of kinds.
func (k Kind) Valid() bool {
	return kinds[k]
}

// Kinds lists every known kind.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	return out
}

// Payload is the JSON object attached to an event.
type Payload map[string]any

// Event is an immutable fact in a case log.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Payload   Payload   `json:"payload"`
}

// PayloadOf converts a typed payload into its JSON object form, so in-memory
// events look exactly like events read back from disk.
func PayloadOf(v any) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("event payload must be an object: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// Decode unmarshals the payload into a typed struct.
func (e Event) Decode(v any) error {
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Kind, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Kind, err)
	}
	return nil
}

// Typed payloads, one per kind.

type GateSpec struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type CaseCreatedPayload struct {
	CaseID      string     `json:"case_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CaseLength  int        `json:"case_length"`
	Trigger     int        `json:"trial_trigger_point"`
	Gates       []GateSpec `json:"gates"`
	Crime       string     `json:"crime,omitempty"`
}

type CaseInitializedPayload struct {
	Location string `json:"location,omitempty"`
}

type EvidenceAddedPayload struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Location     string `json:"location,omitempty"`
	Significance int    `json:"significance"`
}

type CharacterMetPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Description string `json:"description,omitempty"`
	TrustLevel  int    `json:"trust_level"`
}

type CharacterTrustPayload struct {
	ID    string `json:"id"`
	Delta int    `json:"delta"`
	Level int    `json:"level"`
}

type CharacterInterviewedPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type LocationPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type GatePayload struct {
	Gate string `json:"gate"`
}

type DiceRolledPayload struct {
	Action        string   `json:"action"`
	Roll          int      `json:"roll"`
	Modifiers     []string `json:"modifiers,omitempty"`
	ModifierTotal int      `json:"modifier_total"`
	Total         int      `json:"total"`
	Difficulty    int      `json:"difficulty"`
	Result        string   `json:"result"`
	Description   string   `json:"description"`
	Critical      bool     `json:"critical"`
}

type CrimeEscalatedPayload struct {
	Gate      string `json:"gate"`
	From      string `json:"from"`
	To        string `json:"to"`
	Escalated bool   `json:"escalated"`
	Roll      int    `json:"roll,omitempty"`
	Narrative string `json:"narrative,omitempty"`
}

type StatementSpec struct {
	ID                    string     `json:"id"`
	Text                  string     `json:"text"`
	IsLie                 bool       `json:"is_lie"`
	Critical              bool       `json:"critical,omitempty"`
	ContradictingEvidence []string   `json:"contradicting_evidence"`
	Combinations          [][]string `json:"combinations,omitempty"`
	PressResponse         string     `json:"press_response,omitempty"`
}

type TestimonyPayload struct {
	Witness    string          `json:"witness"`
	Statements []StatementSpec `json:"statements"`
}

type WitnessPayload struct {
	Witness string `json:"witness"`
}

type CrossExaminationStartedPayload struct {
	Witness      string `json:"witness"`
	MaxPenalties int    `json:"max_penalties"`
}

type StatementPressedPayload struct {
	Statement string `json:"statement"`
}

type EvidencePresentedPayload struct {
	Statement   string   `json:"statement"`
	Evidence    []string `json:"evidence"`
	Combination bool     `json:"combination"`
}

type VerdictPayload struct {
	Verdict string `json:"verdict"`
}

type SavePayload struct {
	Name string `json:"name"`
}
