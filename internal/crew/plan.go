package crew

import "github.com/soyeahso/crewbuilder/internal/domain"

// PlannedAgent is one distinct agent key of a plan. Definition is only
// meaningful when Resolved is true.
type PlannedAgent struct {
	Key        domain.AgentKey
	Definition domain.AgentDefinition
	Resolved   bool
}

// Plan is an immutable capture of a session, ordered the way the generator
// and executor emit it.
type Plan struct {
	Agents []PlannedAgent
	Tasks  []domain.TaskRecord
	Model  domain.ModelConfig
	Mode   ResolutionMode
}

// Empty reports whether the plan has neither agents nor tasks.
func (p Plan) Empty() bool { return len(p.Agents) == 0 && len(p.Tasks) == 0 }

// FirstUnresolved returns the first agent key that does not resolve.
func (p Plan) FirstUnresolved() (domain.AgentKey, bool) {
	for _, a := range p.Agents {
		if !a.Resolved {
			return a.Key, true
		}
	}
	return "", false
}
