package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/dice"
	"courtline/internal/engine"
	"courtline/internal/logging"
	"courtline/internal/migrate"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	engine engine.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = migrate.Migrate(context.Background(), conn)
	require.NoError(t, err)
	e := engine.New(conn, config.Default(), workspace)
	e.Now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	e.Roller = dice.NewRoller(11)
	e.Logger = logging.Discard()
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:         testSecret,
			AllowPlayerHeader: true,
			Logger:            logging.StdLogger(logging.Discard(), 0),
		},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, engine: e}
}

func asPlayer(id string) map[string]string {
	return map[string]string{"X-Player-Id": id}
}

func doJSON(t *testing.T, srv *testServer, method, path string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, data
}

type outcomeBody struct {
	OK      bool           `json:"ok"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Signal  string         `json:"signal"`
	Data    map[string]any `json:"data"`
	Details map[string]any `json:"details"`
}

type errorBody struct {
	Error apiErrorBody `json:"error"`
}

func post(t *testing.T, srv *testServer, path string, body any, headers map[string]string) outcomeBody {
	t.Helper()
	res, data := doJSON(t, srv, http.MethodPost, path, body, headers)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var out outcomeBody
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func statement(id, text string, lie bool, contradicts ...string) map[string]any {
	if contradicts == nil {
		contradicts = []string{}
	}
	return map[string]any{"id": id, "text": text, "is_lie": lie, "contradicting_evidence": contradicts}
}

// openCourtroom opens a one-day case as gm-1 and starts cross-examining the
// curator.
func openCourtroom(t *testing.T, srv *testServer, caseID string) {
	t.Helper()
	gm := asPlayer("gm-1")
	res, data := doJSON(t, srv, http.MethodPost, "/v0/cases", map[string]any{
		"id":          caseID,
		"title":       "The Museum Theft",
		"case_length": 1,
	}, gm)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	base := "/v0/cases/" + caseID
	post(t, srv, base+"/evidence", map[string]any{"name": "Security Log", "description": "Door opened at nine"}, gm)
	post(t, srv, base+"/evidence", map[string]any{"name": "Ticket Stub", "description": "Evening admission"}, gm)
	post(t, srv, base+"/trial/start", nil, gm)
	out := post(t, srv, base+"/testimony", map[string]any{
		"witness": "Curator Vance",
		"statements": []any{
			statement("A", "I locked the gallery at six.", false),
			statement("B", "Nobody came back that evening.", true, "Security Log"),
			statement("C", "I went straight home.", false),
		},
	}, gm)
	require.True(t, out.OK, out.Message)
	post(t, srv, base+"/trial/witness", map[string]any{"witness": "Curator Vance"}, gm)
	out = post(t, srv, base+"/cross-examination", map[string]any{}, gm)
	require.Equal(t, "cross_examination_started", out.Code)
}

func TestHealthIsOpen(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv, http.MethodGet, "/v0/health", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, data := doJSON(t, srv, http.MethodGet, "/v0/cases", nil, nil)
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	var body errorBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "unauthorized", body.Error.Code)
}

func TestCrossExaminationOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	openCourtroom(t, srv, "museum")
	gm := asPlayer("gm-1")
	base := "/v0/cases/museum"

	out := post(t, srv, base+"/cross-examination/present", map[string]any{"statement": "A", "evidence": "Ticket Stub"}, gm)
	assert.False(t, out.OK)
	assert.Equal(t, "penalty", out.Code)
	assert.EqualValues(t, 1, out.Data["penalty_count"])

	out = post(t, srv, base+"/cross-examination/present", map[string]any{"statement": "b", "evidence": "security_log"}, gm)
	assert.True(t, out.OK)
	assert.Equal(t, "contradiction", out.Code)

	res, data := doJSON(t, srv, http.MethodPost, base+"/cross-examination/present", map[string]any{"statement": "Z", "evidence": "Ticket Stub"}, gm)
	require.Equal(t, http.StatusUnprocessableEntity, res.StatusCode, string(data))
	var apiErr errorBody
	require.NoError(t, json.Unmarshal(data, &apiErr))
	assert.Equal(t, "unknown_statement", apiErr.Error.Code)
	assert.ElementsMatch(t, []any{"A", "B", "C"}, apiErr.Error.Details["valid"])

	out = post(t, srv, base+"/cross-examination/press", map[string]any{"statement": "C"}, gm)
	assert.Equal(t, "statement_pressed", out.Code)
	out = post(t, srv, base+"/cross-examination/press", map[string]any{"statement": "C"}, gm)
	assert.True(t, out.OK)
	assert.Equal(t, "already_done", out.Code)

	out = post(t, srv, base+"/cross-examination/end", nil, gm)
	assert.Equal(t, "cross_examination_ended", out.Code)
	out = post(t, srv, base+"/verdict", map[string]any{"verdict": "guilty"}, gm)
	assert.Equal(t, "case_closed", out.Signal)

	res, data = doJSON(t, srv, http.MethodGet, base, nil, gm)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var rec CaseResponse
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "closed", string(rec.Status))
}

func TestPenaltyLimitTerminatesSession(t *testing.T) {
	srv := newTestServer(t)
	openCourtroom(t, srv, "strikes")
	gm := asPlayer("gm-1")
	path := "/v0/cases/strikes/cross-examination/present"
	for i := 1; i <= 5; i++ {
		out := post(t, srv, path, map[string]any{"statement": "A", "evidence": "Ticket Stub"}, gm)
		require.False(t, out.OK)
		require.EqualValues(t, i, out.Data["penalty_count"])
	}
	res, data := doJSON(t, srv, http.MethodPost, path, map[string]any{"statement": "B", "evidence": "Security Log"}, gm)
	require.Equal(t, http.StatusConflict, res.StatusCode, string(data))
	var apiErr errorBody
	require.NoError(t, json.Unmarshal(data, &apiErr))
	assert.Equal(t, "session_terminated", apiErr.Error.Code)

	out := post(t, srv, "/v0/cases/strikes/cross-examination/end", nil, gm)
	assert.Equal(t, "game_over", out.Signal)
}

func TestPlayersCannotSeeHiddenRoles(t *testing.T) {
	srv := newTestServer(t)
	gm := asPlayer("gm-1")
	player := asPlayer("player-1")
	res, data := doJSON(t, srv, http.MethodPost, "/v0/cases", map[string]any{"id": "manor", "title": "Death at the Manor"}, gm)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	res, _ = doJSON(t, srv, http.MethodGet, "/v0/cases/manor/status", nil, player)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, data = doJSON(t, srv, http.MethodPost, "/v0/cases/manor/members", map[string]any{"actor_id": "player-1", "role": "player"}, gm)
	require.Equal(t, http.StatusNoContent, res.StatusCode, string(data))

	out := post(t, srv, "/v0/cases/manor/classifications", map[string]any{"name": "Lord Ashby", "role_hint": "landlord"}, player)
	assert.Equal(t, "classified", out.Code)
	assert.NotContains(t, out.Data, "role")

	res, _ = doJSON(t, srv, http.MethodGet, "/v0/cases/manor/classifications", nil, player)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res, _ = doJSON(t, srv, http.MethodGet, "/v0/cases/manor/characters?reveal=true", nil, player)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, data = doJSON(t, srv, http.MethodGet, "/v0/cases/manor/classifications", nil, gm)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var reg map[string]string
	require.NoError(t, json.Unmarshal(data, &reg))
	assert.Contains(t, []string{"killer", "conspirator", "red_herring"}, reg["Lord Ashby"])
}

func TestAPIKeyAndDevToken(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv, http.MethodPost, "/v0/me/api-keys", map[string]any{"name": "laptop"}, asPlayer("gm-1"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	var key APIKeyResponse
	require.NoError(t, json.Unmarshal(data, &key))
	require.NotEmpty(t, key.Key)

	res, data = doJSON(t, srv, http.MethodGet, "/v0/me", nil, map[string]string{"X-Api-Key": key.Key})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var who WhoAmIResponse
	require.NoError(t, json.Unmarshal(data, &who))
	assert.Equal(t, "gm-1", who.ActorID)

	res, _ = doJSON(t, srv, http.MethodGet, "/v0/me", nil, map[string]string{"X-Api-Key": "cl_bogus"})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, data = doJSON(t, srv, http.MethodPost, "/v0/auth/dev/login", map[string]any{"actor_id": "narrator", "roles": []string{"gm"}}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(data, &login))

	res, data = doJSON(t, srv, http.MethodPost, "/v0/cases", map[string]any{"id": "harbor", "title": "The Harbor Murder"}, asPlayer("gm-1"))
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	res, data = doJSON(t, srv, http.MethodGet, "/v0/cases/harbor/state", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))

	res, _ = doJSON(t, srv, http.MethodDelete, "/v0/me/api-keys/"+key.ID, nil, asPlayer("someone-else"))
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestEventsPagination(t *testing.T) {
	srv := newTestServer(t)
	gm := asPlayer("gm-1")
	res, data := doJSON(t, srv, http.MethodPost, "/v0/cases", map[string]any{"id": "docks", "title": "The Docks"}, gm)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))
	for _, name := range []string{"Rope", "Lantern", "Ledger"} {
		post(t, srv, "/v0/cases/docks/evidence", map[string]any{"name": name, "description": "found on the pier"}, gm)
	}

	var kinds []string
	cursor := ""
	for page := 0; page < 5; page++ {
		path := "/v0/cases/docks/events?limit=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		res, data := doJSON(t, srv, http.MethodGet, path, nil, gm)
		require.Equal(t, http.StatusOK, res.StatusCode, string(data))
		var body paginatedEvents
		require.NoError(t, json.Unmarshal(data, &body))
		for _, evt := range body.Items {
			kinds = append(kinds, evt.Kind)
		}
		if body.NextCursor == "" {
			break
		}
		cursor = body.NextCursor
	}
	assert.Equal(t, []string{"evidence_added", "evidence_added", "evidence_added", "case_initialized", "case_created"}, kinds)

	res, _ = doJSON(t, srv, http.MethodGet, "/v0/cases/docks/events?cursor=abc", nil, gm)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestWebhookDeliversNewEvents(t *testing.T) {
	srv := newTestServer(t)
	gm := asPlayer("gm-1")
	res, data := doJSON(t, srv, http.MethodPost, "/v0/cases", map[string]any{"id": "pier", "title": "The Pier"}, gm)
	require.Equal(t, http.StatusCreated, res.StatusCode, string(data))

	var (
		mu       sync.Mutex
		received []string
		cases    []string
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt EventResponse
		_ = json.NewDecoder(r.Body).Decode(&evt)
		mu.Lock()
		received = append(received, r.Header.Get("X-Courtline-Event"))
		cases = append(cases, evt.CaseID)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	ctx := context.Background()
	d := newWebhookDispatcher(srv.engine, []config.WebhookConfig{{URL: hook.URL, Events: []string{"evidence_added"}}})
	d.dispatchAll(ctx)
	require.Empty(t, received)

	post(t, srv, "/v0/cases/pier/evidence", map[string]any{"name": "Knife", "description": "Bloodstained"}, gm)
	post(t, srv, "/v0/cases/pier/location", map[string]any{"location": "Warehouse"}, gm)
	d.dispatchAll(ctx)
	d.dispatchAll(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"evidence_added"}, received)
	assert.Equal(t, []string{"pier"}, cases)
}

func TestOpenAPIDocumentIsOpenAndSecured(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv, http.MethodGet, "/v0/openapi.json", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode, string(data))
	var doc struct {
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc.Components.SecuritySchemes, "bearerAuth")
	assert.Contains(t, doc.Components.SecuritySchemes, "playerHeader")

	type operation struct {
		Security  []map[string][]string `json:"security"`
		Responses map[string]any        `json:"responses"`
	}
	var health, present operation
	require.NoError(t, json.Unmarshal(doc.Paths["/v0/health"]["get"], &health))
	require.NoError(t, json.Unmarshal(doc.Paths["/v0/cases/{case_id}/cross-examination/present"]["post"], &present))
	assert.Empty(t, health.Security)
	assert.NotEmpty(t, present.Security)
	assert.Contains(t, present.Responses, "default")

	res, data = doJSON(t, srv, http.MethodGet, "/docs", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(data), "/v0/openapi.json")
}
