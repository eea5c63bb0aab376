package gateway

import (
	"context"
	"strings"

	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/hooks"
)

// workflowView is the payload of every workflow method.
type workflowView struct {
	Steps      []domain.Step     `json:"steps"`
	Unresolved []domain.AgentKey `json:"unresolved"`
}

func (rc *RequestContext) workflow() workflowView {
	sess := rc.Client.Session
	return workflowView{Steps: nonNil(sess.Steps()), Unresolved: nonNil(sess.Unresolved())}
}

// mutated persists the session after a successful change.
func (rc *RequestContext) mutated() {
	rc.Server.persist(rc.Client.Session)
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// --- catalog ---

func (s *Server) rpcCatalogList(rc *RequestContext) {
	rc.Respond(map[string]any{"agents": rc.Client.Session.Catalog()})
}

type catalogAddParams struct {
	Role      string `json:"role"`
	Goal      string `json:"goal"`
	Backstory string `json:"backstory"`
	Emoji     string `json:"emoji"`
}

func (s *Server) rpcCatalogAdd(rc *RequestContext) {
	var p catalogAddParams
	if !rc.bind(&p) {
		return
	}
	key, err := rc.Client.Session.AddCustomAgent(p.Role, p.Goal, p.Backstory, p.Emoji)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	rc.Respond(map[string]any{"key": key})
}

type keyParams struct {
	Key domain.AgentKey `json:"key"`
}

func (s *Server) rpcCatalogResolve(rc *RequestContext) {
	var p keyParams
	if !rc.bind(&p) {
		return
	}
	def, err := rc.Client.Session.Resolve(p.Key)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.Respond(map[string]any{"key": p.Key, "definition": def})
}

// --- workflow ---

func (s *Server) rpcWorkflowGet(rc *RequestContext) {
	rc.Respond(rc.workflow())
}

func (s *Server) rpcWorkflowAppend(rc *RequestContext) {
	var p keyParams
	if !rc.bind(&p) {
		return
	}
	if strings.TrimSpace(string(p.Key)) == "" {
		rc.RespondError(CodeInvalidParams, "key is required")
		return
	}
	if _, err := rc.Client.Session.Append(p.Key); err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	rc.Respond(rc.workflow())
}

type positionParams struct {
	Position *int `json:"position"`
}

func (s *Server) rpcWorkflowRemove(rc *RequestContext) {
	var p positionParams
	if !rc.bind(&p) {
		return
	}
	if p.Position == nil {
		rc.RespondError(CodeInvalidParams, "position is required")
		return
	}
	if err := rc.Client.Session.Remove(*p.Position); err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	rc.Respond(rc.workflow())
}

type moveParams struct {
	From *int `json:"from"`
	To   *int `json:"to"`
}

func (s *Server) rpcWorkflowMove(rc *RequestContext) {
	var p moveParams
	if !rc.bind(&p) {
		return
	}
	if p.From == nil || p.To == nil {
		rc.RespondError(CodeInvalidParams, "from and to are required")
		return
	}
	if err := rc.Client.Session.Move(*p.From, *p.To); err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	rc.Respond(rc.workflow())
}

func (s *Server) rpcWorkflowClear(rc *RequestContext) {
	rc.Client.Session.Clear()
	rc.mutated()
	rc.Respond(rc.workflow())
}

// --- templates ---

func (s *Server) rpcTemplateList(rc *RequestContext) {
	rc.Respond(map[string]any{"templates": s.templates.List()})
}

type templateLoadParams struct {
	Name string `json:"name"`
}

func (s *Server) rpcTemplateLoad(rc *RequestContext) {
	var p templateLoadParams
	if !rc.bind(&p) {
		return
	}
	if p.Name == "" {
		rc.RespondError(CodeInvalidParams, "name is required")
		return
	}
	sess := rc.Client.Session
	t, err := sess.LoadTemplate(p.Name)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	s.emit(context.Background(), hooks.EventTemplateLoaded, map[string]any{
		hooks.KeySession:  sess.ID(),
		hooks.KeyTemplate: t.Name,
	})
	rc.Respond(map[string]any{
		"template": t.Name,
		"workflow": rc.workflow(),
		"tasks":    nonNil(sess.Tasks()),
	})
}

// --- tasks ---

func (s *Server) rpcTaskList(rc *RequestContext) {
	rc.Respond(map[string]any{"tasks": nonNil(rc.Client.Session.Tasks())})
}

type taskUpdateParams struct {
	Position       *int   `json:"position"`
	Description    string `json:"description"`
	ExpectedOutput string `json:"expectedOutput"`
}

func (s *Server) rpcTaskUpdate(rc *RequestContext) {
	var p taskUpdateParams
	if !rc.bind(&p) {
		return
	}
	if p.Position == nil {
		rc.RespondError(CodeInvalidParams, "position is required")
		return
	}
	task, err := rc.Client.Session.EditTask(*p.Position, p.Description, p.ExpectedOutput)
	if err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	rc.Respond(map[string]any{"task": task})
}

// --- model & credential ---

func (s *Server) rpcModelGet(rc *RequestContext) {
	rc.Respond(map[string]any{
		"model":        rc.Client.Session.Model(),
		"models":       domain.Models,
		"minMaxTokens": domain.MinMaxTokens,
		"maxMaxTokens": domain.MaxMaxTokens,
	})
}

type modelSetParams struct {
	Model       *domain.ModelName `json:"model"`
	Temperature *float64          `json:"temperature"`
	MaxTokens   *int              `json:"maxTokens"`
}

// rpcModelSet overlays the given fields on the current settings.
func (s *Server) rpcModelSet(rc *RequestContext) {
	var p modelSetParams
	if !rc.bind(&p) {
		return
	}
	m := rc.Client.Session.Model()
	if p.Model != nil {
		m.Model = *p.Model
	}
	if p.Temperature != nil {
		m.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		m.MaxTokens = *p.MaxTokens
	}
	if err := rc.Client.Session.SetModel(m); err != nil {
		rc.Fail(err)
		return
	}
	rc.mutated()
	rc.Respond(map[string]any{"model": m})
}

type credentialParams struct {
	APIKey string `json:"apiKey"`
}

// rpcCredentialSet stores the key on the session only; it is never
// persisted or echoed back.
func (s *Server) rpcCredentialSet(rc *RequestContext) {
	var p credentialParams
	if !rc.bind(&p) {
		return
	}
	rc.Client.Session.SetCredential(p.APIKey)
	rc.Respond(map[string]any{"hasCredential": rc.Client.Session.Credential() != ""})
}
