package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"courtline/internal/apperr"
	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/escalation"
	"courtline/internal/events"
	"courtline/internal/gates"
	"courtline/internal/projection"
	"courtline/internal/repo"
	"courtline/internal/rules"
	"courtline/internal/trial"
)

// CaseCreateOptions are parameters for opening a case.
type CaseCreateOptions struct {
	ID          string
	Title       string
	Description string
	CaseLength  int
	Location    string
	ActorID     string
}

func validCaseID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func crimeOf(rec domain.CaseRecord) string {
	return escalation.DetectCrime(rec.Title + " " + rec.Description)
}

// CreateCase registers a case in the catalog and writes its opening events.
// The creating actor becomes the case's game master.
func (e Engine) CreateCase(ctx context.Context, opts CaseCreateOptions) (domain.CaseRecord, error) {
	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		return domain.CaseRecord{}, apperr.Validation(apperr.CodeInvalidArgument, "title is required")
	}
	if opts.CaseLength == 0 && e.Config != nil {
		opts.CaseLength = e.Config.Case.DefaultLength
	}
	id := opts.ID
	if id == "" {
		id = e.newCaseID(opts.Title)
	}
	if !validCaseID(id) {
		return domain.CaseRecord{}, apperr.Validation(apperr.CodeInvalidArgument, "case id %q may only contain a-z, 0-9, '-' and '_'", id)
	}
	if opts.ActorID == "" {
		opts.ActorID = "local-user"
	}
	now := e.stamp()
	rec := domain.CaseRecord{
		ID:          id,
		Title:       opts.Title,
		Description: strings.TrimSpace(opts.Description),
		CaseLength:  opts.CaseLength,
		Status:      domain.StatusCreated,
		Dir:         e.caseDir(id),
		CreatedBy:   opts.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	created, err := e.openingPayload(rec)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	if _, err := e.Repo.GetCase(ctx, id); err == nil {
		return domain.CaseRecord{}, apperr.Validation(apperr.CodeDuplicateName, "case %s already exists", id).With("case_id", id)
	}
	if entries, err := os.ReadDir(rec.Dir); err == nil && len(entries) > 0 {
		return domain.CaseRecord{}, fmt.Errorf("case directory %s is not empty", rec.Dir)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCaseTx(ctx, tx, rec); err != nil {
		return domain.CaseRecord{}, fmt.Errorf("insert case: %w", err)
	}
	if err := e.Repo.AssignRole(ctx, tx, id, opts.ActorID, auth.RoleGM, now); err != nil {
		return domain.CaseRecord{}, fmt.Errorf("assign game master: %w", err)
	}
	rt, err := e.openRuntime(rec)
	if err != nil {
		return domain.CaseRecord{}, err
	}
	location := strings.TrimSpace(opts.Location)
	if location == "" {
		location = domain.DefaultLocation
	}
	c := &command{e: e, ctx: ctx, tx: tx, rt: rt, state: domain.NewCaseState()}
	if _, err := c.append(events.CaseCreated, created); err != nil {
		return domain.CaseRecord{}, err
	}
	if _, err := c.append(events.CaseInitialized, events.CaseInitializedPayload{Location: location}); err != nil {
		return domain.CaseRecord{}, err
	}
	rec.Status = c.state.Status
	if err := e.Repo.UpdateCaseStatusTx(ctx, tx, id, rec.Status, now); err != nil {
		return domain.CaseRecord{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.CaseRecord{}, err
	}
	rt.rec = rec
	e.cases.mu.Lock()
	e.cases.open[id] = rt
	e.cases.mu.Unlock()
	e.logger().InfoContext(ctx, "case created", slog.String("case_id", id), slog.Int("case_length", rec.CaseLength),
		slog.String("crime", created.Crime))
	return rec, nil
}

func (e Engine) GetCase(ctx context.Context, id string) (domain.CaseRecord, error) {
	rec, err := e.Repo.GetCase(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return rec, fmt.Errorf("case %s: %w", id, repo.ErrNotFound)
	}
	return rec, err
}

func (e Engine) ListCases(ctx context.Context, f repo.CaseFilters) ([]domain.CaseRecord, error) {
	return e.Repo.ListCases(ctx, f)
}

// DeleteCase removes a case from the catalog and deletes its directory.
func (e Engine) DeleteCase(ctx context.Context, id string) error {
	rec, err := e.GetCase(ctx, id)
	if err != nil {
		return err
	}
	e.cases.mu.Lock()
	rt := e.cases.open[id]
	delete(e.cases.open, id)
	e.cases.mu.Unlock()
	if rt != nil {
		rt.mu.Lock()
		defer rt.mu.Unlock()
	}
	if err := e.Repo.DeleteCase(ctx, id); err != nil {
		return err
	}
	if err := os.RemoveAll(rec.Dir); err != nil {
		return fmt.Errorf("remove case directory: %w", err)
	}
	return nil
}

// State returns the full projected state of a case.
func (e Engine) State(ctx context.Context, caseID string) (domain.CaseState, error) {
	var out domain.CaseState
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		out = s
		return nil
	})
	return out, err
}

// StatementView is a statement as the player sees it.
type StatementView struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	Pressed      bool   `json:"pressed"`
	Contradicted bool   `json:"contradicted"`
}

// SessionSummary describes the active cross-examination.
type SessionSummary struct {
	Witness      string            `json:"witness"`
	GameOver     bool              `json:"game_over"`
	PenaltyCount int               `json:"penalty_count"`
	MaxPenalties int               `json:"max_penalties"`
	PenaltyBand  trial.PenaltyBand `json:"penalty_band"`
	Victory      trial.Victory     `json:"victory"`
	Statements   []StatementView   `json:"statements"`
}

func summarizeSession(s *domain.Session) *SessionSummary {
	if s == nil {
		return nil
	}
	sum := &SessionSummary{
		Witness:      s.Witness,
		GameOver:     s.GameOver(),
		PenaltyCount: s.PenaltyCount,
		MaxPenalties: s.MaxPenalties,
		PenaltyBand:  trial.Band(s.PenaltyCount),
		Victory:      trial.CheckVictory(s),
		Statements:   make([]StatementView, 0, len(s.Statements)),
	}
	for _, st := range s.Statements {
		sum.Statements = append(sum.Statements, StatementView{ID: st.ID, Text: st.Text, Pressed: st.Pressed, Contradicted: st.Contradicted})
	}
	return sum
}

// Status is the summary shown by `courtline status` and GET /cases/{id}/status.
type Status struct {
	CaseID       string            `json:"case_id"`
	Title        string            `json:"title"`
	CaseLength   int               `json:"case_length"`
	Phase        domain.Phase      `json:"phase"`
	Status       domain.CaseStatus `json:"status"`
	Location     string            `json:"location"`
	Progress     gates.Progress    `json:"progress"`
	TrialPhase   domain.TrialPhase `json:"trial_phase"`
	CrossExam    trial.Status      `json:"cross_examination"`
	Session      *SessionSummary   `json:"session,omitempty"`
	Evidence     int               `json:"evidence"`
	Characters   int               `json:"characters"`
	Crime        string            `json:"crime"`
	Escalated    bool              `json:"escalated"`
	ValidActions []string          `json:"valid_actions"`
	EventCount   int               `json:"event_count"`
	LastEventID  string            `json:"last_event_id,omitempty"`
}

func (e Engine) Status(ctx context.Context, caseID string) (Status, error) {
	var st Status
	err := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		st = statusOf(s)
		return nil
	})
	return st, err
}

func statusOf(s domain.CaseState) Status {
	return Status{
		CaseID:       s.CaseID,
		Title:        s.Title,
		CaseLength:   s.CaseLength,
		Phase:        s.Phase,
		Status:       s.Status,
		Location:     s.CurrentLocation,
		Progress:     gates.New(s.Gates, s.TrialTrigger).Progress(),
		TrialPhase:   s.Trial.Phase,
		CrossExam:    trial.StatusOf(s.Trial),
		Session:      summarizeSession(s.Trial.Session),
		Evidence:     len(s.Evidence),
		Characters:   len(s.Characters),
		Crime:        s.Escalation.CurrentCrime,
		Escalated:    s.Escalation.Escalated,
		ValidActions: rules.ValidActions(s),
		EventCount:   s.Metadata.EventCount,
		LastEventID:  s.Metadata.LastEventID,
	}
}

// ValidateAction checks whether action may be taken now.
func (e Engine) ValidateAction(ctx context.Context, caseID, action string) (Outcome, error) {
	var err error
	rerr := e.read(ctx, caseID, func(_ *caseRuntime, s domain.CaseState) error {
		err = rules.Validate(s, action)
		return nil
	})
	if rerr != nil {
		return Outcome{}, rerr
	}
	if err != nil {
		return OutcomeOf(err), err
	}
	return Outcome{OK: true, Code: "valid", Message: fmt.Sprintf("%s is valid now", action)}, nil
}

// CaseLog returns the case log after sinceID, or all of it.
func (e Engine) CaseLog(ctx context.Context, caseID, sinceID string) ([]events.Event, error) {
	var out []events.Event
	err := e.read(ctx, caseID, func(rt *caseRuntime, _ domain.CaseState) error {
		evts, err := rt.log.EventsSince(sinceID)
		out = evts
		return err
	})
	return out, err
}

// StateAt replays the case up to and including event id.
func (e Engine) StateAt(ctx context.Context, caseID, eventID string) (domain.CaseState, error) {
	evts, err := e.CaseLog(ctx, caseID, "")
	if err != nil {
		return domain.CaseState{}, err
	}
	return projection.ProjectUntil(evts, eventID)
}

// AddMember grants actorID a role on a case.
func (e Engine) AddMember(ctx context.Context, caseID, actorID, role string) error {
	if _, err := e.GetCase(ctx, caseID); err != nil {
		return err
	}
	if strings.TrimSpace(actorID) == "" {
		return apperr.Validation(apperr.CodeInvalidArgument, "actor id is required")
	}
	if !auth.ValidRole(role) {
		return apperr.Validation(apperr.CodeInvalidArgument, "unknown role %q", role).WithValid([]string{auth.RolePlayer, auth.RoleGM})
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.AssignRole(ctx, tx, caseID, actorID, role, e.stamp()); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) RemoveMember(ctx context.Context, caseID, actorID, role string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.RevokeRole(ctx, tx, caseID, actorID, role); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) Members(ctx context.Context, caseID string) ([]domain.Member, error) {
	return e.Repo.ListMembers(ctx, caseID)
}

// LatestEvents reads the catalog mirror, newest first.
func (e Engine) LatestEvents(ctx context.Context, f repo.EventFilters) ([]domain.IndexedEvent, error) {
	return e.Repo.LatestEvents(ctx, f)
}

// EventsAfter reads the catalog mirror in order, after a sequence cursor.
func (e Engine) EventsAfter(ctx context.Context, f repo.EventFilters) ([]domain.IndexedEvent, error) {
	return e.Repo.EventsAfter(ctx, f)
}

// CreateAPIKey issues a key for actorID. The plain secret is only returned
// here.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if strings.TrimSpace(actorID) == "" {
		return domain.APIKey{}, "", apperr.Validation(apperr.CodeInvalidArgument, "actor id is required")
	}
	key, secret, err := repo.NewAPIKey(actorID, strings.TrimSpace(name), e.stamp())
	if err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	e.logger().InfoContext(ctx, "api key created", slog.String("actor_id", actorID), slog.String("key_id", key.ID))
	return key, secret, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, actorID string) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, actorID)
}

// RevokeAPIKey deletes one of actorID's keys. Keys of other actors read as
// not found.
func (e Engine) RevokeAPIKey(ctx context.Context, actorID, keyID string) error {
	keys, err := e.Repo.ListAPIKeys(ctx, actorID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.ID == keyID {
			return e.Repo.DeleteAPIKey(ctx, keyID)
		}
	}
	return fmt.Errorf("api key %s: %w", keyID, repo.ErrNotFound)
}
