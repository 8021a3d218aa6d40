package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"courtline/internal/apperr"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"unknown_statement"`
	Message string         `json:"message" example:"statement Z not in testimony (valid: A, B, C)"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"valid\":[\"A\",\"B\",\"C\"]}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

var commandErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

// New returns an HTTP handler exposing the Courtline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return requestError(status, msg, errs)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		return requestError(status, msg, errs)
	}

	router := chi.NewRouter()
	router.Use(captureBody)
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Courtline API", "0.3.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath, cfg.Auth.AllowPlayerHeader)
	registerHealth(group)
	registerCases(group, cfg.Engine)
	registerInvestigation(group, cfg.Engine)
	registerTrial(group, cfg.Engine)
	registerClassifications(group, cfg.Engine)
	registerSaves(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerMembers(group, cfg.Engine)
	registerMe(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath, cfg.Auth.AllowPlayerHeader)

	return router, nil
}

const maxBodyBytes = 1 << 20

// captureBody buffers the request body so handlers can tell an absent body
// from an empty object.
func captureBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil {
			r.Body = http.NoBody
		}
		buf, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondStatusError(w, newAPIError(http.StatusRequestEntityTooLarge, "body_too_large", err.Error(), nil))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(buf))
		ctx := context.WithValue(r.Context(), requestKey{}, r)
		ctx = context.WithValue(ctx, bodyBytesKey{}, buf)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestError reports schema and parameter failures. Validation problems
// are the caller's fault and map to 400 rather than huma's 422.
func requestError(status int, msg string, errs []error) huma.StatusError {
	if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
		status = http.StatusBadRequest
	}
	var details map[string]any
	if len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, err := range errs {
			msgs = append(msgs, err.Error())
		}
		details = map[string]any{"errors": msgs}
	}
	return newAPIError(status, "", msg, details)
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if ae, ok := apperr.As(err); ok {
		return domainError(ae)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "already exists"), strings.Contains(lowered, "multiple cases"):
		return newAPIError(http.StatusConflict, "conflict", msg, nil)
	case strings.Contains(lowered, "belongs to case"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func domainError(ae *apperr.Error) huma.StatusError {
	code := string(ae.Code)
	switch ae.Kind {
	case apperr.KindGameOver:
		return newAPIError(http.StatusConflict, code, ae.Message, ae.Details)
	case apperr.KindAlreadyDone:
		return newAPIError(http.StatusConflict, string(apperr.KindAlreadyDone), ae.Message, ae.Details)
	case apperr.KindCorrupt:
		return newAPIError(http.StatusUnprocessableEntity, code, ae.Message, ae.Details)
	}
	switch ae.Code {
	case apperr.CodeInvalidArgument:
		return newAPIError(http.StatusBadRequest, code, ae.Message, ae.Details)
	case apperr.CodeDuplicateName, apperr.CodeDuplicateEvidence, apperr.CodeCriticalRoleConflict, apperr.CodeSessionActive:
		return newAPIError(http.StatusConflict, code, ae.Message, ae.Details)
	case apperr.CodeUnknownSave:
		return newAPIError(http.StatusNotFound, code, ae.Message, ae.Details)
	default:
		return newAPIError(http.StatusUnprocessableEntity, code, ae.Message, ae.Details)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requirePermission checks perm for the caller on caseID. Permissions carried
// in a token apply to every case; otherwise case membership decides.
func requirePermission(ctx context.Context, e engine.Engine, caseID, perm string) error {
	principal, authErr := principalFromRequest(ctx)
	if authErr != nil {
		return authErr
	}
	if _, err := e.GetCase(ctx, caseID); err != nil {
		return err
	}
	if slices.Contains(principal.Permissions, perm) {
		return nil
	}
	if slices.Contains(auth.Permissions(principal.Roles), perm) {
		return nil
	}
	return e.Auth.Require(ctx, caseID, principal.ActorID, perm)
}

// allowed reports whether the caller holds perm without failing the request.
func allowed(ctx context.Context, e engine.Engine, caseID, perm string) bool {
	return requirePermission(ctx, e, caseID, perm) == nil
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

type outcomeOutput struct {
	Body engine.Outcome `json:"body"`
}

// outcomeResult renders a command outcome. Failed outcomes that carry no
// error (a wrong presentation) are still 200: the penalty is the result.
func outcomeResult(out engine.Outcome, err error) (*outcomeOutput, error) {
	if err != nil {
		return nil, handleError(err)
	}
	return &outcomeOutput{Body: out}, nil
}

func requireBody(ctx context.Context) huma.StatusError {
	if len(bodyBytes(ctx)) == 0 {
		return newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
	}
	return nil
}

func bodyBytes(ctx context.Context) []byte {
	if buf, ok := ctx.Value(bodyBytesKey{}).([]byte); ok {
		return buf
	}
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return nil
	}
	data, _ := io.ReadAll(req.Body)
	return data
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid cursor")
	}
	return parts[0], parts[1], nil
}

func composeCursor(ts, id string) string {
	return ts + "|" + id
}
