package crew

import (
	"slices"
	"sync/atomic"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// DefaultAgents returns the agents every catalog starts with.
func DefaultAgents() []domain.TemplateAgent {
	return []domain.TemplateAgent{
		{
			Key: "🔍 Pesquisador",
			Definition: domain.AgentDefinition{
				Role:      "Pesquisador Sênior",
				Goal:      "Realizar pesquisas detalhadas em bases técnicas",
				Backstory: "Expert com 10+ anos em pesquisa acadêmica",
				Emoji:     "🔍",
			},
		},
		{
			Key: "📊 Analista",
			Definition: domain.AgentDefinition{
				Role:      "Analista de Dados",
				Goal:      "Analisar e interpretar dados complexos",
				Backstory: "Especialista em análise quantitativa",
				Emoji:     "📊",
			},
		},
	}
}

// Predefined is the read-only partition of the catalog, shared by every
// session. Replace swaps the whole set at once when the templates file
// changes; readers always see one complete set.
type Predefined struct {
	set atomic.Pointer[agentSet]
}

type agentSet struct {
	keys []domain.AgentKey
	defs map[domain.AgentKey]domain.AgentDefinition
}

// newAgentSet keeps the first definition of a repeated key.
func newAgentSet(agents []domain.TemplateAgent) *agentSet {
	set := &agentSet{defs: make(map[domain.AgentKey]domain.AgentDefinition, len(agents))}
	for _, a := range agents {
		if _, ok := set.defs[a.Key]; ok {
			continue
		}
		set.keys = append(set.keys, a.Key)
		set.defs[a.Key] = a.Definition
	}
	return set
}

// NewPredefined builds the predefined partition. When a key repeats, the
// first definition wins.
func NewPredefined(agents ...domain.TemplateAgent) *Predefined {
	p := &Predefined{}
	p.Replace(agents...)
	return p
}

// Replace installs a new agent set. Keys missing from it stop resolving.
func (p *Predefined) Replace(agents ...domain.TemplateAgent) {
	p.set.Store(newAgentSet(agents))
}

func (p *Predefined) current() *agentSet {
	if p == nil {
		return &agentSet{}
	}
	if set := p.set.Load(); set != nil {
		return set
	}
	return &agentSet{}
}

// Lookup returns the definition stored under key.
func (p *Predefined) Lookup(key domain.AgentKey) (domain.AgentDefinition, bool) {
	def, ok := p.current().defs[key]
	return def, ok
}

// Keys returns the predefined keys in insertion order.
func (p *Predefined) Keys() []domain.AgentKey {
	return slices.Clone(p.current().keys)
}

// Len returns the number of predefined agents.
func (p *Predefined) Len() int {
	return len(p.current().keys)
}

// Catalog combines the shared predefined agents with a session's custom
// agents. It is not safe for concurrent use; Session serializes access.
type Catalog struct {
	predefined  *Predefined
	custom      map[domain.AgentKey]domain.AgentDefinition
	customOrder []domain.AgentKey
}

// NewCatalog returns a catalog with an empty custom partition.
func NewCatalog(predefined *Predefined) *Catalog {
	return &Catalog{
		predefined: predefined,
		custom:     make(map[domain.AgentKey]domain.AgentDefinition),
	}
}

// AddCustom validates def and stores it under its display key. An existing
// custom agent with the same key is replaced and keeps its position.
func (c *Catalog) AddCustom(def domain.AgentDefinition) (domain.AgentKey, error) {
	if err := def.Validate(); err != nil {
		return "", err
	}
	key := def.DisplayKey()
	if _, ok := c.custom[key]; !ok {
		c.customOrder = append(c.customOrder, key)
	}
	c.custom[key] = def
	return key, nil
}

// Lookup resolves key against the predefined partition, then the custom one.
func (c *Catalog) Lookup(key domain.AgentKey) (domain.AgentDefinition, bool) {
	if def, ok := c.predefined.Lookup(key); ok {
		return def, true
	}
	def, ok := c.custom[key]
	return def, ok
}

// Resolve is Lookup with a NotFoundError on a miss.
func (c *Catalog) Resolve(key domain.AgentKey) (domain.AgentDefinition, error) {
	if def, ok := c.Lookup(key); ok {
		return def, nil
	}
	return domain.AgentDefinition{}, &domain.NotFoundError{Kind: "agent", Key: string(key)}
}

// Entries lists predefined agents in startup order, then custom agents in
// first-insert order.
func (c *Catalog) Entries() []domain.CatalogEntry {
	set := c.predefined.current()
	out := make([]domain.CatalogEntry, 0, len(set.keys)+len(c.customOrder))
	for _, k := range set.keys {
		out = append(out, domain.CatalogEntry{Key: k, Definition: set.defs[k], Predefined: true})
	}
	for _, k := range c.customOrder {
		out = append(out, domain.CatalogEntry{Key: k, Definition: c.custom[k]})
	}
	return out
}

// Custom returns the custom partition in first-insert order.
func (c *Catalog) Custom() []domain.TemplateAgent {
	out := make([]domain.TemplateAgent, 0, len(c.customOrder))
	for _, k := range c.customOrder {
		out = append(out, domain.TemplateAgent{Key: k, Definition: c.custom[k]})
	}
	return out
}

// ClearCustom empties the custom partition.
func (c *Catalog) ClearCustom() {
	c.custom = make(map[domain.AgentKey]domain.AgentDefinition)
	c.customOrder = nil
}
