package crew

import (
	"encoding/json"
	"strings"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

type templateMap map[string]domain.Template

func (m templateMap) Get(name string) (domain.Template, bool) {
	t, ok := m[name]
	return t, ok
}

func testTemplates() templateMap {
	return templateMap{
		"Content Team": {
			Name:   "Content Team",
			Agents: []domain.AgentKey{"✍️ Redator Conteúdo", "🔍 Especialista SEO"},
			Tasks:  []string{"Pesquisar tópicos relevantes para SEO", "Escrever artigo otimizado"},
		},
		"Data Team": {
			Name:   "Data Team",
			Agents: []domain.AgentKey{"📊 Analista Dados", "📈 Cientista Dados"},
			Tasks:  []string{"Coletar e limpar dados", "Criar modelo preditivo"},
		},
		"Lopsided": {
			Name:   "Lopsided",
			Agents: []domain.AgentKey{"🔍 Pesquisador", "📊 Analista"},
			Tasks:  []string{"one", "two", "three"},
		},
		"Wide": {
			Name:   "Wide",
			Agents: []domain.AgentKey{"🔍 Pesquisador", "📊 Analista", "🔍 Pesquisador"},
			Tasks:  []string{"only"},
		},
		"Ghost": {
			Name:   "Ghost",
			Agents: []domain.AgentKey{"👻 Nobody"},
			Tasks:  []string{"haunt"},
		},
	}
}

func testPredefined() *Predefined {
	agents := DefaultAgents()
	for _, k := range []domain.AgentKey{"✍️ Redator Conteúdo", "🔍 Especialista SEO", "📊 Analista Dados", "📈 Cientista Dados"} {
		agents = append(agents, domain.TemplateAgent{
			Key:        k,
			Definition: domain.AgentDefinition{Role: strings.SplitN(string(k), " ", 2)[1], Goal: "goal of " + string(k)},
		})
	}
	return NewPredefined(agents...)
}

func newTestSession(mode ResolutionMode) *Session {
	return NewSession(Options{Mode: mode, Predefined: testPredefined(), Templates: testTemplates()})
}

func taskContents(tasks []domain.TaskRecord) []domain.TaskRecord {
	out := make([]domain.TaskRecord, len(tasks))
	for i, t := range tasks {
		out[i] = domain.TaskRecord{
			StepID:         boolID(t.Bound()),
			Description:    t.Description,
			ExpectedOutput: t.ExpectedOutput,
			AgentKey:       t.AgentKey,
		}
	}
	return out
}

func boolID(bound bool) string {
	if bound {
		return "bound"
	}
	return ""
}

func snapshotText(snap Snapshot) string {
	data, err := json.Marshal(snap)
	if err != nil {
		panic(err)
	}
	return string(data)
}
