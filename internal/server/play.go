package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"courtline/internal/classify"
	"courtline/internal/dice"
	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/engine/auth"
	"courtline/internal/evidence"
	"courtline/internal/gates"
	"courtline/internal/trial"
)

func registerInvestigation(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "add-evidence",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/evidence",
		Summary:     "Collect a piece of evidence",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string             `path:"case_id"`
		Body   AddEvidenceRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.AddEvidence(ctx, input.CaseID, input.Body.Name, input.Body.Description, strValue(input.Body.Location)))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-evidence",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/evidence",
		Summary:     "Evidence collected so far, in collection order",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body []domain.Evidence `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListEvidence(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Evidence `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assess-evidence",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/evidence/assessment",
		Summary:     "How well the evidence supports going to trial",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body evidence.Readiness `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermEvidenceAssessment); err != nil {
			return nil, handleError(err)
		}
		r, err := e.AssessEvidence(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body evidence.Readiness `json:"body"`
		}{Body: r}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "meet-character",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/characters",
		Summary:     "Meet a character",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string               `path:"case_id"`
		Body   MeetCharacterRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.MeetCharacter(ctx, input.CaseID, engine.CharacterInput{
			Name:        input.Body.Name,
			Role:        input.Body.Role,
			Description: strValue(input.Body.Description),
			TrustLevel:  input.Body.TrustLevel,
		}))
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-characters",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/characters",
		Summary:     "Characters met so far",
		Description: "reveal=true adds hidden roles and needs classification.read.",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Reveal bool   `query:"reveal"`
	}) (*struct {
		Body []domain.Character `json:"body"`
	}, error) {
		perm := auth.PermCaseRead
		if input.Reveal {
			perm = auth.PermClassifyRead
		}
		if err := requirePermission(ctx, e, input.CaseID, perm); err != nil {
			return nil, handleError(err)
		}
		items, err := e.Characters(ctx, input.CaseID, input.Reveal)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Character `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-trust",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/characters/{character}/trust",
		Summary:     "Shift a character's trust",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID    string       `path:"case_id"`
		Character string       `path:"character"`
		Body      TrustRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.UpdateTrust(ctx, input.CaseID, input.Character, input.Body.Delta))
	})

	huma.Register(api, huma.Operation{
		OperationID: "interview-character",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/characters/{character}/interview",
		Summary:     "Record an interview",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID    string           `path:"case_id"`
		Character string           `path:"character"`
		Body      InterviewRequest `json:"body" required:"false"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.Interview(ctx, input.CaseID, input.Character, input.Body.Status))
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-location",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/location",
		Summary:     "Move to a location",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string          `path:"case_id"`
		Body   LocationRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.ChangeLocation(ctx, input.CaseID, input.Body.Location))
	})

	huma.Register(api, huma.Operation{
		OperationID: "gate-progress",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/gates",
		Summary:     "Gate progress",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body gates.Progress `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		p, err := e.Progress(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body gates.Progress `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "next-gate",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/gates/next",
		Summary:     "First gate not yet completed",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body GateResponse `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		g, ok, err := e.NextGate(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body GateResponse `json:"body"`
		}{Body: GateResponse{Gate: g, Done: !ok}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-gate",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/gates/{gate}/start",
		Summary:     "Start a gate",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Gate   string `path:"gate"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.StartGate(ctx, input.CaseID, input.Gate))
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-gate",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/gates/{gate}/complete",
		Summary:     "Complete a gate",
		Description: "Completing the final investigation gate may escalate the crime and make the trial ready.",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
		Gate   string `path:"gate"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.CompleteGate(ctx, input.CaseID, input.Gate))
	})

	huma.Register(api, huma.Operation{
		OperationID: "roll-dice",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/dice",
		Summary:     "Roll a d20 skill check",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string      `path:"case_id"`
		Body   DiceRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.RollDice(ctx, input.CaseID, input.Body.Action, input.Body.Modifiers))
	})

	huma.Register(api, huma.Operation{
		OperationID: "dice-history",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/dice",
		Summary:     "Roll history and success rate",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body struct {
			Rolls []domain.DiceRoll `json:"rolls"`
			Stats dice.Summary      `json:"stats"`
		} `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		rolls, stats, err := e.DiceHistory(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Rolls []domain.DiceRoll `json:"rolls"`
				Stats dice.Summary      `json:"stats"`
			} `json:"body"`
		}{}
		out.Body.Rolls = nonNilSlice(rolls)
		out.Body.Stats = stats
		return out, nil
	})
}

func registerTrial(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "start-trial",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/trial/start",
		Summary:     "Open the trial",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.StartTrial(ctx, input.CaseID))
	})

	huma.Register(api, huma.Operation{
		OperationID: "record-testimony",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/testimony",
		Summary:     "Record a witness's statements",
		Description: "Statements carry their lies and contradicting evidence, so only the game master may author them.",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string           `path:"case_id"`
		Body   TestimonyRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermTestimonyWrite); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.RecordTestimony(ctx, input.CaseID, input.Body.Witness, input.Body.Statements))
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-testimony",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/testimony/{witness}",
		Summary:     "Recorded statements of a witness, lies included",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID  string `path:"case_id"`
		Witness string `path:"witness"`
	}) (*struct {
		Body []domain.Statement `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermTestimonyWrite); err != nil {
			return nil, handleError(err)
		}
		st, err := e.Testimony(ctx, input.CaseID, input.Witness)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Statement `json:"body"`
		}{Body: nonNilSlice(st)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "call-witness",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/trial/witness",
		Summary:     "Call a witness to the stand",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string         `path:"case_id"`
		Body   WitnessRequest `json:"body" required:"false"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.CallWitness(ctx, input.CaseID, input.Body.Witness))
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-cross-examination",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/cross-examination",
		Summary:     "Start cross-examining a witness",
		Description: "An empty witness cross-examines the witness on the stand.",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string         `path:"case_id"`
		Body   WitnessRequest `json:"body" required:"false"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.StartCrossExamination(ctx, input.CaseID, input.Body.Witness))
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-cross-examination",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/cross-examination",
		Summary:     "Active cross-examination",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body struct {
			Active  bool                   `json:"active"`
			Session *engine.SessionSummary `json:"session,omitempty"`
		} `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		sum, err := e.Session(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Active  bool                   `json:"active"`
				Session *engine.SessionSummary `json:"session,omitempty"`
			} `json:"body"`
		}{}
		out.Body.Active = sum != nil
		out.Body.Session = sum
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "press-statement",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/cross-examination/press",
		Summary:     "Press a statement",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string       `path:"case_id"`
		Body   PressRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.Press(ctx, input.CaseID, input.Body.Statement))
	})

	huma.Register(api, huma.Operation{
		OperationID: "present-evidence",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/cross-examination/present",
		Summary:     "Present evidence against a statement",
		Description: "A wrong presentation returns ok=false with a penalty. Once the penalty limit is reached every session command fails with session_terminated until the session is ended.",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string         `path:"case_id"`
		Body   PresentRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.Present(ctx, input.CaseID, input.Body.Statement, input.Body.Evidence))
	})

	huma.Register(api, huma.Operation{
		OperationID: "present-combination",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/cross-examination/present-combination",
		Summary:     "Present several pieces of evidence at once",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string                    `path:"case_id"`
		Body   PresentCombinationRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.PresentCombination(ctx, input.CaseID, input.Body.Statement, input.Body.Evidence))
	})

	huma.Register(api, huma.Operation{
		OperationID: "check-victory",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/cross-examination/victory",
		Summary:     "Victory condition of the active session",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body trial.Victory `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCaseRead); err != nil {
			return nil, handleError(err)
		}
		v, err := e.CheckVictory(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body trial.Victory `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "end-cross-examination",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/cross-examination/end",
		Summary:     "End the active cross-examination",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*outcomeOutput, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.EndCrossExamination(ctx, input.CaseID))
	})

	huma.Register(api, huma.Operation{
		OperationID: "deliver-verdict",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/verdict",
		Summary:     "Deliver the verdict and close the case",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string         `path:"case_id"`
		Body   VerdictRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermCasePlay); err != nil {
			return nil, handleError(err)
		}
		return outcomeResult(e.Verdict(ctx, input.CaseID, input.Body.Verdict))
	})
}

func registerClassifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "classify-character",
		Method:      http.MethodPost,
		Path:        "/cases/{case_id}/classifications",
		Summary:     "Assign a hidden role on first reference",
		Description: "The assigned role is only returned to callers holding classification.read.",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string          `path:"case_id"`
		Body   ClassifyRequest `json:"body"`
	}) (*outcomeOutput, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermClassify); err != nil {
			return nil, handleError(err)
		}
		out, err := e.Classify(ctx, input.CaseID, input.Body.Name, input.Body.RoleHint)
		if err != nil {
			return nil, handleError(err)
		}
		if c, ok := out.Data.(engine.Classification); ok && !allowed(ctx, e, input.CaseID, auth.PermClassifyRead) {
			out.Data = map[string]any{"name": c.Name, "created": c.Created}
		}
		return &outcomeOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-classifications",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/classifications",
		Summary:     "Hidden roles assigned so far",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body classify.Registry `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermClassifyRead); err != nil {
			return nil, handleError(err)
		}
		reg, err := e.Classifications(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		if reg == nil {
			reg = classify.Registry{}
		}
		return &struct {
			Body classify.Registry `json:"body"`
		}{Body: reg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "override-classification",
		Method:      http.MethodPut,
		Path:        "/cases/{case_id}/classifications",
		Summary:     "Set a hidden role by hand",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string                        `path:"case_id"`
		Body   OverrideClassificationRequest `json:"body"`
	}) (*struct{}, error) {
		if err := requireBody(ctx); err != nil {
			return nil, err
		}
		if err := requirePermission(ctx, e, input.CaseID, auth.PermClassifyOverride); err != nil {
			return nil, handleError(err)
		}
		if err := e.OverrideClassification(ctx, input.CaseID, input.Body.Name, domain.Classification(input.Body.Role)); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reset-classifications",
		Method:      http.MethodDelete,
		Path:        "/cases/{case_id}/classifications",
		Summary:     "Forget every hidden role",
		Errors:      commandErrors,
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct{}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermClassifyOverride); err != nil {
			return nil, handleError(err)
		}
		if err := e.ResetClassifications(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "classification-stats",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/classifications/stats",
		Summary:     "Counts per hidden role",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID string `path:"case_id"`
	}) (*struct {
		Body classify.Stats `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermClassifyRead); err != nil {
			return nil, handleError(err)
		}
		st, err := e.ClassifierStats(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body classify.Stats `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "killer-probability",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/classifications/probability",
		Summary:     "First-stage killer probability for a role hint",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CaseID   string `path:"case_id"`
		RoleHint string `query:"role_hint"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		if err := requirePermission(ctx, e, input.CaseID, auth.PermClassifyRead); err != nil {
			return nil, handleError(err)
		}
		p, err := e.KillerProbability(ctx, input.CaseID, input.RoleHint)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: map[string]any{"role_hint": input.RoleHint, "probability": p}}, nil
	})
}
