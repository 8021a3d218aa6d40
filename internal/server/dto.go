package server

import (
	"encoding/json"

	"courtline/internal/domain"
	"courtline/internal/events"
)

// Request payloads

type CreateCaseRequest struct {
	ID          *string `json:"id,omitempty"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	CaseLength  int     `json:"case_length,omitempty" enum:"1,2,3"`
	Location    *string `json:"location,omitempty"`
}

type AddEvidenceRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Location    *string `json:"location,omitempty"`
}

type MeetCharacterRequest struct {
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	Description *string `json:"description,omitempty"`
	TrustLevel  int     `json:"trust_level,omitempty" minimum:"-10" maximum:"10"`
}

type TrustRequest struct {
	Delta int `json:"delta"`
}

type InterviewRequest struct {
	Status string `json:"status,omitempty" enum:"not_interviewed,interviewed,exhausted,uncooperative"`
}

type LocationRequest struct {
	Location string `json:"location"`
}

type TestimonyRequest struct {
	Witness    string                 `json:"witness"`
	Statements []events.StatementSpec `json:"statements"`
}

type WitnessRequest struct {
	Witness string `json:"witness,omitempty"`
}

type PressRequest struct {
	Statement string `json:"statement" example:"B"`
}

type PresentRequest struct {
	Statement string `json:"statement" example:"B"`
	Evidence  string `json:"evidence" example:"security-log"`
}

type PresentCombinationRequest struct {
	Statement string   `json:"statement" example:"C"`
	Evidence  []string `json:"evidence" minItems:"2"`
}

type VerdictRequest struct {
	Verdict string `json:"verdict"`
}

type ClassifyRequest struct {
	Name     string `json:"name"`
	RoleHint string `json:"role_hint,omitempty"`
}

type OverrideClassificationRequest struct {
	Name string `json:"name"`
	Role string `json:"role" enum:"killer,conspirator,red_herring"`
}

type SaveRequest struct {
	Name string `json:"name" example:"before_trial"`
}

type CleanupSavesRequest struct {
	Keep *int `json:"keep,omitempty" minimum:"0"`
}

type DiceRequest struct {
	Action    string   `json:"action" example:"search"`
	Modifiers []string `json:"modifiers,omitempty"`
}

type MemberRequest struct {
	ActorID string `json:"actor_id"`
	Role    string `json:"role" enum:"player,gm"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// Responses

type CaseResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	CaseLength  int               `json:"case_length"`
	Status      domain.CaseStatus `json:"status" enum:"created,active,closed"`
	CreatedBy   string            `json:"created_by"`
	CreatedAt   string            `json:"created_at" format:"date-time"`
	UpdatedAt   string            `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	CaseID     string          `json:"case_id"`
	Kind       string          `json:"kind"`
	TS         string          `json:"ts" format:"date-time"`
	Payload    json.RawMessage `json:"payload"`
	PayloadRaw string          `json:"payload_raw,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	Key       string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	ActorID     string   `json:"actor_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type GateResponse struct {
	Gate domain.Gate `json:"gate"`
	Done bool        `json:"done"`
}

type paginatedCases struct {
	Items      []CaseResponse `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func caseResponse(c domain.CaseRecord) CaseResponse {
	return CaseResponse{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		CaseLength:  c.CaseLength,
		Status:      c.Status,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func eventResponse(e domain.IndexedEvent) EventResponse {
	payload, raw := decodePayload(e.Payload)
	return EventResponse{
		Seq:        e.Seq,
		ID:         e.ID,
		CaseID:     e.CaseID,
		Kind:       e.Kind,
		TS:         e.TS,
		Payload:    payload,
		PayloadRaw: raw,
	}
}

func apiKeyResponse(k domain.APIKey, plain string) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt, Key: plain}
}

// decodePayload returns a mirrored payload as JSON, or as raw text when the
// stored value does not parse.
func decodePayload(raw string) (json.RawMessage, string) {
	if raw == "" {
		return json.RawMessage("{}"), ""
	}
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw), ""
	}
	return json.RawMessage("{}"), raw
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func strValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
