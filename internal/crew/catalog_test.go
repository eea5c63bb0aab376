package crew

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

func TestDefaultAgents(t *testing.T) {
	agents := DefaultAgents()
	require.Len(t, agents, 2)
	assert.Equal(t, domain.AgentKey("🔍 Pesquisador"), agents[0].Key)
	assert.Equal(t, "Pesquisador Sênior", agents[0].Definition.Role)
	assert.Equal(t, domain.AgentKey("📊 Analista"), agents[1].Key)
	assert.Equal(t, "Analista de Dados", agents[1].Definition.Role)
}

func TestPredefinedFirstWins(t *testing.T) {
	p := NewPredefined(
		domain.TemplateAgent{Key: "a", Definition: domain.AgentDefinition{Role: "first"}},
		domain.TemplateAgent{Key: "b", Definition: domain.AgentDefinition{Role: "b"}},
		domain.TemplateAgent{Key: "a", Definition: domain.AgentDefinition{Role: "second"}},
	)
	assert.Equal(t, []domain.AgentKey{"a", "b"}, p.Keys())
	def, ok := p.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "first", def.Role)
}

func TestPredefinedReplaceReachesExistingCatalogs(t *testing.T) {
	p := NewPredefined(DefaultAgents()...)
	c := NewCatalog(p)
	_, err := c.AddCustom(domain.AgentDefinition{Role: "Mine", Goal: "g"})
	require.NoError(t, err)

	revisor := domain.TemplateAgent{Key: "🧪 Revisor", Definition: domain.AgentDefinition{Role: "Revisor", Goal: "Review"}}
	p.Replace(append(DefaultAgents(), revisor)...)

	def, err := c.Resolve("🧪 Revisor")
	require.NoError(t, err)
	assert.Equal(t, "Revisor", def.Role)
	entries := c.Entries()
	require.Len(t, entries, 4)
	assert.True(t, entries[2].Predefined)
	assert.Equal(t, domain.AgentKey("Mine"), entries[3].Key)

	p.Replace(DefaultAgents()...)
	_, err = c.Resolve("🧪 Revisor")
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestNilPredefined(t *testing.T) {
	var p *Predefined
	assert.Equal(t, 0, p.Len())
	assert.Nil(t, p.Keys())
	_, ok := p.Lookup("x")
	assert.False(t, ok)
}

func TestCatalogAddCustomAndResolve(t *testing.T) {
	c := NewCatalog(NewPredefined(DefaultAgents()...))

	key, err := c.AddCustom(domain.AgentDefinition{Role: "Revisor", Goal: "Revisar", Backstory: "Editor", Emoji: "🎨"})
	require.NoError(t, err)
	assert.Equal(t, domain.AgentKey("🎨 Revisor"), key)

	def, err := c.Resolve(key)
	require.NoError(t, err)
	assert.Equal(t, "Revisar", def.Goal)
	assert.Equal(t, "Editor", def.Backstory)
}

func TestCatalogAddCustomRejectsBlank(t *testing.T) {
	c := NewCatalog(nil)

	_, err := c.AddCustom(domain.AgentDefinition{Role: " ", Goal: "g"})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "role", ve.Field)

	_, err = c.AddCustom(domain.AgentDefinition{Role: "r", Goal: ""})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "goal", ve.Field)

	assert.Empty(t, c.Entries())
}

func TestCatalogOverwriteKeepsOrder(t *testing.T) {
	c := NewCatalog(nil)
	_, _ = c.AddCustom(domain.AgentDefinition{Role: "A", Goal: "1", Emoji: "🧠"})
	_, _ = c.AddCustom(domain.AgentDefinition{Role: "B", Goal: "1", Emoji: "🧠"})
	_, _ = c.AddCustom(domain.AgentDefinition{Role: "A", Goal: "2", Emoji: "🧠"})

	entries := c.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AgentKey("🧠 A"), entries[0].Key)
	assert.Equal(t, "2", entries[0].Definition.Goal)
	assert.Equal(t, domain.AgentKey("🧠 B"), entries[1].Key)
}

func TestCatalogEntriesOrder(t *testing.T) {
	c := NewCatalog(NewPredefined(DefaultAgents()...))
	_, _ = c.AddCustom(domain.AgentDefinition{Role: "Z", Goal: "g", Emoji: "🤖"})

	entries := c.Entries()
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Predefined)
	assert.True(t, entries[1].Predefined)
	assert.False(t, entries[2].Predefined)
	assert.Equal(t, domain.AgentKey("🤖 Z"), entries[2].Key)
}

func TestCatalogPredefinedShadowsCustom(t *testing.T) {
	c := NewCatalog(NewPredefined(domain.TemplateAgent{
		Key:        "🧠 Planner",
		Definition: domain.AgentDefinition{Role: "Planner", Goal: "predefined"},
	}))
	_, err := c.AddCustom(domain.AgentDefinition{Role: "Planner", Goal: "custom", Emoji: "🧠"})
	require.NoError(t, err)

	def, err := c.Resolve("🧠 Planner")
	require.NoError(t, err)
	assert.Equal(t, "predefined", def.Goal)
}

func TestCatalogResolveMissing(t *testing.T) {
	c := NewCatalog(nil)
	_, err := c.Resolve("nobody")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "agent", nf.Kind)
	assert.Equal(t, "nobody", nf.Key)
}

func TestCatalogClearCustom(t *testing.T) {
	c := NewCatalog(NewPredefined(DefaultAgents()...))
	_, _ = c.AddCustom(domain.AgentDefinition{Role: "X", Goal: "g"})
	c.ClearCustom()

	assert.Len(t, c.Entries(), 2)
	assert.Empty(t, c.Custom())
	_, ok := c.Lookup("X")
	assert.False(t, ok)
}
