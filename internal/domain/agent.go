package domain

import "strings"

// AgentKey identifies an agent in the catalog and in workflow steps.
type AgentKey string

// AgentDefinition describes an agent's persona. Definitions are immutable
// once stored; edits replace the whole value.
type AgentDefinition struct {
	Role      string `json:"role" yaml:"role" toml:"role"`
	Goal      string `json:"goal" yaml:"goal" toml:"goal"`
	Backstory string `json:"backstory,omitempty" yaml:"backstory,omitempty" toml:"backstory"`
	Emoji     string `json:"emoji,omitempty" yaml:"emoji,omitempty" toml:"emoji"`
}

// DisplayKey returns the catalog key a custom agent is stored under:
// emoji and role joined by a single space, or just the role.
func (d AgentDefinition) DisplayKey() AgentKey {
	if d.Emoji == "" {
		return AgentKey(d.Role)
	}
	return AgentKey(d.Emoji + " " + d.Role)
}

// Validate checks the fields a definition cannot go without.
func (d AgentDefinition) Validate() error {
	if strings.TrimSpace(d.Role) == "" {
		return &ValidationError{Field: "role", Message: "role must not be blank"}
	}
	if strings.TrimSpace(d.Goal) == "" {
		return &ValidationError{Field: "goal", Message: "goal must not be blank"}
	}
	return nil
}

// CatalogEntry is one row of the catalog listing.
type CatalogEntry struct {
	Key        AgentKey        `json:"key"`
	Definition AgentDefinition `json:"definition"`
	Predefined bool            `json:"predefined"`
}
