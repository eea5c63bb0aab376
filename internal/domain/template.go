package domain

// Template is a named preset of workflow keys and task descriptions.
// Definitions carries agents the template introduces to the catalog.
type Template struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Agents      []AgentKey      `json:"agents"`
	Tasks       []string        `json:"tasks"`
	Definitions []TemplateAgent `json:"definitions,omitempty"`
}

// TemplateAgent is an agent definition published by a template.
type TemplateAgent struct {
	Key        AgentKey        `json:"key"`
	Definition AgentDefinition `json:"definition"`
}
