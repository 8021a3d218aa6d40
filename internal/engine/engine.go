package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"courtline/internal/apperr"
	"courtline/internal/atomicfile"
	"courtline/internal/classify"
	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/dice"
	"courtline/internal/domain"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/logging"
	"courtline/internal/projection"
	"courtline/internal/repo"
	"courtline/internal/snapshot"
	"courtline/internal/trial"
)

// Engine is the command facade over the case logs. Copies share the open
// case runtimes, so one Engine value may be handed to the CLI and the server.
type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Auth      auth.Service
	Config    *config.Config
	Workspace string
	Now       func() time.Time
	NewID     func() string
	Roller    *dice.Roller
	Logger    *slog.Logger

	cases *caseSet
}

func New(conn *sql.DB, cfg *config.Config, workspace string) Engine {
	r := repo.Repo{DB: conn}
	return Engine{
		DB:        conn,
		Repo:      r,
		Events:    events.Writer{DB: conn},
		Auth:      auth.Service{Repo: r},
		Config:    cfg,
		Workspace: workspace,
		Now:       time.Now,
		Roller:    dice.NewTimeRoller(),
		Logger:    logging.New("engine"),
		cases:     &caseSet{open: map[string]*caseRuntime{}},
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) stamp() string {
	return projection.Timestamp(e.now())
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) roller() *dice.Roller {
	if e.Roller != nil {
		return e.Roller
	}
	return dice.NewTimeRoller()
}

func (e Engine) rules() trial.Rules {
	if e.Config == nil {
		return trial.DefaultRules
	}
	cx := e.Config.CrossExamination
	return trial.Rules{MaxPenalties: cx.MaxPenalties, MinStatements: cx.MinStatements, MaxStatements: cx.MaxStatements}
}

// Outcome is the structured result of a command: success or failure, a
// machine-readable reason code and any narrative signal.
type Outcome struct {
	OK      bool           `json:"ok"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Signal  string         `json:"signal,omitempty"`
	EventID string         `json:"event_id,omitempty"`
	Data    any            `json:"data,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Narrative signals.
const (
	SignalObjection      = "objection"
	SignalPenalty        = "penalty"
	SignalGameOver       = "game_over"
	SignalVictory        = "victory_achieved"
	SignalTrialReady     = "trial_ready"
	SignalCrimeEscalated = "crime_escalated"
	SignalAlreadyDone    = "already_done"
	SignalCaseClosed     = "case_closed"
)

// OutcomeOf describes a failed command. AlreadyDone errors are reported as
// benign successes.
func OutcomeOf(err error) Outcome {
	ae, ok := apperr.As(err)
	if !ok {
		return Outcome{OK: false, Code: "internal", Message: err.Error()}
	}
	out := Outcome{Code: string(ae.Code), Message: ae.Message, Details: ae.Details}
	switch ae.Kind {
	case apperr.KindAlreadyDone:
		out.OK = true
		out.Code = string(apperr.KindAlreadyDone)
		out.Signal = SignalAlreadyDone
		out.Details = withReason(ae.Details, ae.Code)
	case apperr.KindGameOver:
		out.Signal = SignalGameOver
	}
	return out
}

func withReason(details map[string]any, code apperr.Code) map[string]any {
	out := map[string]any{"reason": string(code)}
	for k, v := range details {
		out[k] = v
	}
	return out
}

type caseSet struct {
	mu   sync.Mutex
	open map[string]*caseRuntime
}

// caseRuntime holds what the engine keeps open for one case. mu serializes
// every command on the case.
type caseRuntime struct {
	mu         sync.Mutex
	rec        domain.CaseRecord
	log        *events.Log
	projector  projection.Projector
	classifier *classify.Service
	saves      snapshot.Manager
}

func (e Engine) caseDir(id string) string {
	return filepath.Join(db.CasesDir(e.Workspace), id)
}

func logPath(dir string) string      { return filepath.Join(dir, "events.json") }
func registryPath(dir string) string { return filepath.Join(dir, "classifications.dat") }
func savesDir(dir string) string     { return filepath.Join(dir, "saves") }

// runtime returns the open runtime of a case, opening it on first use.
func (e Engine) runtime(ctx context.Context, caseID string) (*caseRuntime, error) {
	if e.cases == nil {
		return nil, errors.New("engine not initialised; use engine.New")
	}
	e.cases.mu.Lock()
	defer e.cases.mu.Unlock()
	if rt, ok := e.cases.open[caseID]; ok {
		return rt, nil
	}
	rec, err := e.Repo.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("case %s: %w", caseID, repo.ErrNotFound)
		}
		return nil, err
	}
	rt, err := e.openRuntime(rec)
	if err != nil {
		return nil, err
	}
	e.cases.open[caseID] = rt
	return rt, nil
}

func (e Engine) openRuntime(rec domain.CaseRecord) (*caseRuntime, error) {
	lg := e.logger().With(slog.String("case_id", rec.ID))
	log := events.Open(logPath(rec.Dir), events.Options{Now: e.now, NewID: e.NewID, Logger: lg})
	if err := log.Recovered(); err != nil {
		lg.Warn("event log unreadable, case restarts from its catalog entry", slog.Any("error", err))
	}
	cfg := config.Default().Classifier
	if e.Config != nil {
		cfg = e.Config.Classifier
	}
	svc, err := classify.New(classify.FileStore{Path: registryPath(rec.Dir), Now: e.now}, cfg, rec.CaseLength, lg)
	if err != nil {
		return nil, err
	}
	return &caseRuntime{
		rec:        rec,
		log:        log,
		classifier: svc,
		saves:      snapshot.Manager{Dir: savesDir(rec.Dir), Now: e.now},
	}, nil
}

// state projects the case. A log that cannot be folded is moved aside and the
// case restarts from its catalog entry; a partial state is never returned.
func (e Engine) state(ctx context.Context, rt *caseRuntime) (domain.CaseState, error) {
	if rt.log.Len() > 0 {
		s, err := rt.projector.State(rt.log.Events())
		if err == nil {
			return s, nil
		}
		moved, qerr := atomicfile.Quarantine(rt.log.Path(), e.now().Format("20060102T150405"))
		e.logger().WarnContext(ctx, "event log cannot be replayed, starting a fresh case",
			slog.String("case_id", rt.rec.ID), slog.String("moved_to", moved), slog.Any("error", err))
		if qerr != nil {
			return domain.CaseState{}, fmt.Errorf("quarantine event log: %w", qerr)
		}
		if err := rt.log.Replace(nil); err != nil {
			return domain.CaseState{}, err
		}
		rt.projector.Invalidate()
	}
	if err := e.reseed(ctx, rt); err != nil {
		return domain.CaseState{}, err
	}
	return rt.projector.State(rt.log.Events())
}

// reseed writes the opening events of a case whose log is empty.
func (e Engine) reseed(ctx context.Context, rt *caseRuntime) error {
	created, err := e.openingPayload(rt.rec)
	if err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Reindex(ctx, tx, rt.rec.ID, nil); err != nil {
		return err
	}
	c := &command{e: e, ctx: ctx, tx: tx, rt: rt, state: domain.NewCaseState()}
	if _, err := c.append(events.CaseCreated, created); err != nil {
		return err
	}
	if _, err := c.append(events.CaseInitialized, events.CaseInitializedPayload{Location: domain.DefaultLocation}); err != nil {
		return err
	}
	return tx.Commit()
}

func (e Engine) openingPayload(rec domain.CaseRecord) (events.CaseCreatedPayload, error) {
	cfg := e.Config
	if cfg == nil {
		cfg = config.Default()
	}
	cl, err := cfg.Length(rec.CaseLength)
	if err != nil {
		valid := make([]string, 0, len(cfg.CaseLengths))
		for _, n := range cfg.Lengths() {
			valid = append(valid, strconv.Itoa(n))
		}
		return events.CaseCreatedPayload{}, apperr.Validation(apperr.CodeInvalidCaseLength, "invalid case length %d", rec.CaseLength).
			With("case_length", rec.CaseLength).WithValid(valid)
	}
	specs := make([]events.GateSpec, 0, len(cl.Gates))
	for _, g := range cl.Gates {
		specs = append(specs, events.GateSpec{ID: g, Kind: cfg.GateKind(g)})
	}
	return events.CaseCreatedPayload{
		CaseID:      rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		CaseLength:  rec.CaseLength,
		Trigger:     cl.TrialTriggerPoint,
		Gates:       specs,
		Crime:       crimeOf(rec),
	}, nil
}

// command is one serialized command on a case. Events appended through it are
// checked against the projected state first, written to the case log and
// mirrored into the catalog inside tx.
type command struct {
	e        Engine
	ctx      context.Context
	tx       *sql.Tx
	rt       *caseRuntime
	state    domain.CaseState
	appended []events.Event
}

// append validates payload against the current state and records it.
func (c *command) append(kind events.Kind, payload any) (events.Event, error) {
	p, err := events.PayloadOf(payload)
	if err != nil {
		return events.Event{}, err
	}
	next := c.state.Clone()
	pending := events.Event{ID: "pending", Timestamp: c.e.now(), Kind: kind, Payload: p}
	if err := projection.Apply(&next, pending); err != nil {
		return events.Event{}, err
	}
	evt, err := c.rt.log.Append(kind, p)
	if err != nil {
		return events.Event{}, err
	}
	if err := c.e.Events.Append(c.ctx, c.tx, c.rt.rec.ID, evt); err != nil {
		return events.Event{}, fmt.Errorf("index event %s: %w", evt.ID, err)
	}
	c.appended = append(c.appended, evt)
	s, err := c.rt.projector.State(c.rt.log.Events())
	if err != nil {
		return events.Event{}, err
	}
	c.state = s
	return evt, nil
}

// run executes fn under the case lock. Domain errors become failed outcomes
// and are returned alongside them; AlreadyDone is a successful no-op.
func (e Engine) run(ctx context.Context, caseID, name string, fn func(c *command) (Outcome, error)) (Outcome, error) {
	rt, err := e.runtime(ctx, caseID)
	if err != nil {
		return Outcome{}, err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	ctx = logging.WithAttrs(ctx, slog.String("case_id", caseID), slog.String("command", name))

	s, err := e.state(ctx, rt)
	if err != nil {
		return Outcome{}, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, err
	}
	defer tx.Rollback()

	c := &command{e: e, ctx: ctx, tx: tx, rt: rt, state: s}
	out, err := fn(c)
	if err == nil {
		if len(c.appended) > 0 {
			if out.EventID == "" {
				out.EventID = c.appended[len(c.appended)-1].ID
			}
			if c.state.Status != rt.rec.Status {
				if err := e.Repo.UpdateCaseStatusTx(ctx, tx, caseID, c.state.Status, e.stamp()); err != nil {
					return Outcome{}, err
				}
				rt.rec.Status = c.state.Status
			}
		}
		if err := tx.Commit(); err != nil {
			return Outcome{}, err
		}
		e.logger().DebugContext(ctx, "command applied", slog.Int("events", len(c.appended)), slog.String("signal", out.Signal))
		return out, nil
	}
	// Events already in the log stay canonical; keep their catalog rows too.
	if len(c.appended) > 0 {
		if cerr := tx.Commit(); cerr != nil {
			return Outcome{}, errors.Join(err, cerr)
		}
	}
	if apperr.IsAlreadyDone(err) {
		done := OutcomeOf(err)
		if out.Data != nil {
			done.Data = out.Data
		}
		return done, nil
	}
	if _, ok := apperr.As(err); ok {
		e.logger().InfoContext(ctx, "command refused", slog.Any("error", err))
		failed := OutcomeOf(err)
		if out.Data != nil {
			failed.Data = out.Data
		}
		return failed, err
	}
	return Outcome{}, err
}

// read projects the case under its lock without opening a transaction.
func (e Engine) read(ctx context.Context, caseID string, fn func(rt *caseRuntime, s domain.CaseState) error) error {
	rt, err := e.runtime(ctx, caseID)
	if err != nil {
		return err
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	s, err := e.state(ctx, rt)
	if err != nil {
		return err
	}
	return fn(rt, s)
}

func (e Engine) newCaseID(title string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(title+"|"+e.stamp())).String()
}
