package courtlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Courtline HTTP API client bound to one case.
type Client struct {
	BaseURL     string
	CaseID      string
	APIKey      string
	BearerToken string
	PlayerID    string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL, caseID string) *Client {
	return &Client{
		BaseURL: baseURL,
		CaseID:  caseID,
		Timeout: 10 * time.Second,
	}
}

// Case is the catalog record of a case.
type Case struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CaseLength  int    `json:"case_length"`
	Status      string `json:"status"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Outcome is the result of a game command. OK is false for rejected
// presentations, which are not transport errors.
type Outcome struct {
	OK      bool           `json:"ok"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Signal  string         `json:"signal"`
	EventID string         `json:"event_id"`
	Data    map[string]any `json:"data"`
	Details map[string]any `json:"details"`
}

// Status is the case scoreboard (partial).
type Status struct {
	CaseID       string   `json:"case_id"`
	Phase        string   `json:"phase"`
	Status       string   `json:"status"`
	TrialPhase   string   `json:"trial_phase"`
	Evidence     int      `json:"evidence"`
	Characters   int      `json:"characters"`
	ValidActions []string `json:"valid_actions"`
	EventCount   int      `json:"event_count"`
}

// Statement is one line of testimony as recorded by a game master.
type Statement struct {
	ID                    string     `json:"id"`
	Text                  string     `json:"text"`
	IsLie                 bool       `json:"is_lie"`
	Critical              bool       `json:"critical,omitempty"`
	ContradictingEvidence []string   `json:"contradicting_evidence"`
	Combinations          [][]string `json:"combinations,omitempty"`
	PressResponse         string     `json:"press_response,omitempty"`
}

// Event represents a log entry.
type Event struct {
	Seq     int64          `json:"seq"`
	ID      string         `json:"id"`
	CaseID  string         `json:"case_id"`
	Kind    string         `json:"kind"`
	TS      string         `json:"ts"`
	Payload map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// CreateCase opens a case; an empty CaseID on the client is filled from the
// response.
func (c *Client) CreateCase(ctx context.Context, title string, length int) (Case, error) {
	body := map[string]any{"title": title, "case_length": length}
	if c.CaseID != "" {
		body["id"] = c.CaseID
	}
	var resp Case
	if err := c.do(ctx, http.MethodPost, "v0/cases", body, &resp); err != nil {
		return resp, err
	}
	if c.CaseID == "" {
		c.CaseID = resp.ID
	}
	return resp, nil
}

// GetCase fetches the catalog record of the bound case.
func (c *Client) GetCase(ctx context.Context) (Case, error) {
	var resp Case
	err := c.do(ctx, http.MethodGet, c.casePath(""), nil, &resp)
	return resp, err
}

// Status returns the scoreboard of the bound case.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var resp Status
	err := c.do(ctx, http.MethodGet, c.casePath("status"), nil, &resp)
	return resp, err
}

// AddEvidence records a piece of evidence.
func (c *Client) AddEvidence(ctx context.Context, name, description string) (Outcome, error) {
	return c.command(ctx, "evidence", map[string]any{"name": name, "description": description})
}

// MeetCharacter introduces a character with a public role.
func (c *Client) MeetCharacter(ctx context.Context, name, role string) (Outcome, error) {
	return c.command(ctx, "characters", map[string]any{"name": name, "role": role})
}

// CompleteGate completes an investigation gate.
func (c *Client) CompleteGate(ctx context.Context, gate string) (Outcome, error) {
	return c.command(ctx, fmt.Sprintf("gates/%s/complete", url.PathEscape(gate)), nil)
}

func (c *Client) StartTrial(ctx context.Context) (Outcome, error) {
	return c.command(ctx, "trial/start", nil)
}

// RecordTestimony stores a witness's statements. Requires the gm role.
func (c *Client) RecordTestimony(ctx context.Context, witness string, statements []Statement) (Outcome, error) {
	for i := range statements {
		if statements[i].ContradictingEvidence == nil {
			statements[i].ContradictingEvidence = []string{}
		}
	}
	return c.command(ctx, "testimony", map[string]any{"witness": witness, "statements": statements})
}

func (c *Client) CallWitness(ctx context.Context, witness string) (Outcome, error) {
	return c.command(ctx, "trial/witness", map[string]any{"witness": witness})
}

// StartCrossExamination starts on witness, or on the witness on the stand
// when witness is empty.
func (c *Client) StartCrossExamination(ctx context.Context, witness string) (Outcome, error) {
	body := map[string]any{}
	if witness != "" {
		body["witness"] = witness
	}
	return c.command(ctx, "cross-examination", body)
}

func (c *Client) Press(ctx context.Context, statement string) (Outcome, error) {
	return c.command(ctx, "cross-examination/press", map[string]any{"statement": statement})
}

// Present shows one piece of evidence against a statement.
func (c *Client) Present(ctx context.Context, statement, evidence string) (Outcome, error) {
	return c.command(ctx, "cross-examination/present", map[string]any{"statement": statement, "evidence": evidence})
}

// PresentCombination shows several pieces of evidence together.
func (c *Client) PresentCombination(ctx context.Context, statement string, evidence []string) (Outcome, error) {
	return c.command(ctx, "cross-examination/present-combination", map[string]any{"statement": statement, "evidence": evidence})
}

func (c *Client) EndCrossExamination(ctx context.Context) (Outcome, error) {
	return c.command(ctx, "cross-examination/end", nil)
}

// Verdict closes the case.
func (c *Client) Verdict(ctx context.Context, verdict string) (Outcome, error) {
	return c.command(ctx, "verdict", map[string]any{"verdict": verdict})
}

// Classify returns the hidden role of a character. Players only learn that
// a role exists; game masters get the role itself in Data.
func (c *Client) Classify(ctx context.Context, name, roleHint string) (Outcome, error) {
	return c.command(ctx, "classifications", map[string]any{"name": name, "role_hint": roleHint})
}

func (c *Client) CreateSave(ctx context.Context, name string) (Outcome, error) {
	return c.command(ctx, "saves", map[string]any{"name": name})
}

func (c *Client) RestoreSave(ctx context.Context, name string) (Outcome, error) {
	return c.command(ctx, fmt.Sprintf("saves/%s/restore", url.PathEscape(name)), nil)
}

// Events returns recent events, newest first.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := c.casePath("events")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) command(ctx context.Context, p string, body any) (Outcome, error) {
	var resp Outcome
	err := c.do(ctx, http.MethodPost, c.casePath(p), body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader = http.NoBody
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.PlayerID != "":
		req.Header.Set("X-Player-Id", c.PlayerID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) casePath(p string) string {
	id := url.PathEscape(c.CaseID)
	if p == "" {
		return fmt.Sprintf("v0/cases/%s", id)
	}
	return fmt.Sprintf("v0/cases/%s/%s", id, strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
