package domain

// Step is one position in the workflow.
type Step struct {
	ID       string   `json:"id"`
	AgentKey AgentKey `json:"agentKey"`
}

// TaskRecord is a unit of work assigned to an agent. StepID is empty for
// tasks that are not bound to a workflow step.
type TaskRecord struct {
	ID             string   `json:"id"`
	StepID         string   `json:"stepId,omitempty"`
	Description    string   `json:"description"`
	ExpectedOutput string   `json:"expectedOutput"`
	AgentKey       AgentKey `json:"agentKey"`
}

// Bound reports whether the task belongs to a workflow step.
func (t TaskRecord) Bound() bool { return t.StepID != "" }
