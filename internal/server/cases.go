package server

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/events"
	"courtline/internal/repo"
	"courtline/internal/snapshot"
)

func registerCases(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/cases",
		Summary:       "Open a case",
		Description:   "The caller becomes the case's game master.",
		DefaultStatus: http.StatusCreated,
		Errors:        commandErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body CaseResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.CreateCase(ctx, engine.CaseCreateOptions{
			ID:          strValue(input.Body.ID),
			Title:       input.Body.Title,
			Description: strValue(input.Body.Description),
			CaseLength:  input.Body.CaseLength,
			Location:    strValue(input.Body.Location),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CaseResponse `json:"body"`
		}{Body: caseResponse(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "List cases",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"created,active,closed"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedCases `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		ts, id, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.ListCases(ctx, repo.CaseFilters{
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: ts,
			CursorID:        id,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedCases{Items: []CaseResponse{}}
		if len(items) > limit {
			last := items[limit-1]
			resp.NextCursor = composeCursor(last.CreatedAt, last.ID)
			items = items[:limit]
		}
		for _, c := range items {
			resp.Items = append(resp.Items, caseResponse(c))
		}
		return &struct {
			Body paginatedCases `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}",
		Summary:     "Get case",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body CaseResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		rec, err := e.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CaseResponse `json:"body"`
		}{Body: caseResponse(rec)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-case",
		Method:      http.MethodDelete,
		Path:        "/cases/{case_id}",
		Summary:     "Delete case and its files",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseAdmin); err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "case-status",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/status",
		Summary:     "Case status, progress and valid actions",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body engine.Status `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		st, err := e.Status(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.Status `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "case-state",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/state",
		Summary:     "Full projected state",
		Description: "Includes lies and hidden roles. With at, the log is replayed up to and including that event.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		At     string `query:"at"`
	}) (*struct {
		Body domain.CaseState `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseAdmin); err != nil {
			return nil, handleError(err)
		}
		var (
			s   domain.CaseState
			err error
		)
		if input.At != "" {
			s, err = e.StateAt(ctx, input.CaseID, input.At)
		} else {
			s, err = e.State(ctx, input.CaseID)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CaseState `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "validate-action",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/actions/{action}",
		Summary:     "Check whether an action is valid now",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Action string `path:"action"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		out, err := e.ValidateAction(ctx, input.CaseID, input.Action)
		if err != nil && out.Code != "" {
			// An invalid action is an answer, not a failure.
			return &outcomeOutput{Body: out}, nil
		}
		return outcomeResult(out, err)
	})

	huma.Register(api, huma.Operation{
		OperationID: "verify-case",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/verify",
		Summary:     "Replay the log and compare with the live projection",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body engine.ReplayReport `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseVerify); err != nil {
			return nil, handleError(err)
		}
		rep, err := e.VerifyReplay(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ReplayReport `json:"body"`
		}{Body: rep}, nil
	})
}

func registerSaves(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-save",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/saves",
		Summary:     "Save the case under a name",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string      `path:"case_id"`
		Body   SaveRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermSaveManage); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.CreateSave(ctx, input.CaseID, input.Body.Name))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-saves",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/saves",
		Summary:     "List saves, newest first",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body []snapshot.Meta `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermSaveManage); err != nil {
			return nil, handleError(err)
		}
		saves, err := e.ListSaves(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []snapshot.Meta `json:"body"`
		}{Body: nonNilSlice(saves)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-save",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/saves/{name}/restore",
		Summary:     "Restore a save",
		Description: "The current case is backed up first unless auto backups are disabled.",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Name   string `path:"name"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermSaveRestore); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.RestoreSave(ctx, input.CaseID, input.Name))
	})

	huma.Register(api, huma.Operation{
		OperationID: "cleanup-saves",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/saves/cleanup",
		Summary:     "Delete all but the newest saves",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string              `path:"case_id"`
		Body   CleanupSavesRequest `json:"body" required:"false"`
	}) (*struct {
		Body map[string][]string `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermSaveManage); err != nil {
			return nil, handleError(err)
		}
		keep := -1
		if input.Body.Keep != nil {
			keep = *input.Body.Keep
		}
		deleted, err := e.CleanupSaves(ctx, input.CaseID, keep)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string][]string `json:"body"`
		}{Body: map[string][]string{"deleted": nonNilSlice(deleted)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-save",
		Method:      http.MethodDelete,
		Path:        "/cases/{case_id}/saves/{name}",
		Summary:     "Delete a save",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Name   string `path:"name"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermSaveManage); err != nil {
			return nil, handleError(err)
		}
		if err := e.DeleteSave(ctx, input.CaseID, input.Name); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/events",
		Summary:     "List recent events, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Kind   string `query:"kind"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermEventsRead); err != nil {
			return nil, handleError(err)
		}
		if input.Kind != "" && !events.Kind(input.Kind).Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown event kind", map[string]any{"kind": input.Kind})
		}
		limit := normalizeLimit(input.Limit)
		var cursor int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil || parsed <= 0 {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursor = parsed
		}
		items, err := e.LatestEvents(ctx, repo.EventFilters{CaseID: input.CaseID, Kind: input.Kind, Limit: limit + 1, Cursor: cursor})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].Seq)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "case-log",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/log",
		Summary:     "Read the case event log in order",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Since  string `query:"since"`
	}) (*struct {
		Body []events.Event `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermEventsRead); err != nil {
			return nil, handleError(err)
		}
		evts, err := e.CaseLog(ctx, input.CaseID, input.Since)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []events.Event `json:"body"`
		}{Body: nonNilSlice(evts)}, nil
	})
}

func registerMembers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/members",
		Summary:     "List case members",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body []domain.Member `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		members, err := e.Members(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Member `json:"body"`
		}{Body: nonNilSlice(members)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-member",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/members",
		Summary:     "Grant a role on the case",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string        `path:"case_id"`
		Body   MemberRequest `json:"body"`
	}) (*struct{}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermMembersManage); err != nil {
			return nil, handleError(err)
		}
		if err := e.AddMember(ctx, input.CaseID, input.Body.ActorID, input.Body.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-member",
		Method:      http.MethodDelete,
		Path:        "/cases/{case_id}/members/{actor_id}/{role}",
		Summary:     "Revoke a role on the case",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID  string `path:"case_id"`
		ActorID string `path:"actor_id"`
		Role    string `path:"role" enum:"player,gm"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermMembersManage); err != nil {
			return nil, handleError(err)
		}
		if err := e.RemoveMember(ctx, input.CaseID, input.ActorID, input.Role); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		perms := principal.Permissions
		if len(perms) == 0 {
			perms = auth.Permissions(principal.Roles)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			Roles:       nonNilSlice(principal.Roles),
			Permissions: nonNilSlice(perms),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "case-permissions",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/me/permissions",
		Summary:     "Current actor roles on a case",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		roles, err := e.Auth.ActorRoles(ctx, input.CaseID, principal.ActorID)
		if err != nil {
			return nil, handleError(err)
		}
		roles = append(roles, principal.Roles...)
		perms := auth.Permissions(roles)
		for _, p := range principal.Permissions {
			if !slices.Contains(perms, p) {
				perms = append(perms, p)
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			ActorID:     principal.ActorID,
			Roles:       nonNilSlice(roles),
			Permissions: nonNilSlice(perms),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/me/api-keys",
		Summary:       "Issue an API key for the current actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body" required:"false"`
	}) (*struct {
		Body APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, secret, err := e.CreateAPIKey(ctx, actorID, input.Body.Name)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyResponse `json:"body"`
		}{Body: apiKeyResponse(key, secret)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/me/api-keys",
		Summary:     "List the current actor's API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []APIKeyResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]APIKeyResponse, 0, len(keys))
		for _, k := range keys {
			out = append(out, apiKeyResponse(k, ""))
		}
		return &struct {
			Body []APIKeyResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revoke-api-key",
		Method:      http.MethodDelete,
		Path:        "/me/api-keys/{key_id}",
		Summary:     "Revoke one of the current actor's API keys",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		KeyID string `path:"key_id"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RevokeAPIKey(ctx, actorID, input.KeyID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		actor := strings.TrimSpace(input.Body.ActorID)
		if actor == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		for _, r := range input.Body.Roles {
			if !auth.ValidRole(r) {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown role", map[string]any{"role": r})
			}
		}
		token, err := signDevToken(authCfg.JWTSecret, actor, input.Body.Roles, input.Body.Permissions)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
