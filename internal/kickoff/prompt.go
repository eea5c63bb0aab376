package kickoff

import (
	"fmt"
	"strings"
)

// BuildSystemPrompt renders an agent's persona as a system prompt.
func BuildSystemPrompt(a *Agent) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are %s.\n", a.Role)
	if a.Goal != "" {
		fmt.Fprintf(&b, "Your personal goal is: %s\n", a.Goal)
	}
	if a.Backstory != "" {
		fmt.Fprintf(&b, "Background: %s\n", a.Backstory)
	}

	b.WriteString("\n")
	b.WriteString("Guidelines:\n")
	b.WriteString("- Work only on the task you are given.\n")
	b.WriteString("- Answer with the final result, not a plan for producing it.\n")

	return b.String()
}

// BuildTaskPrompt renders a task and the outputs of the tasks before it.
func BuildTaskPrompt(t *Task, previous []TaskOutput) string {
	var b strings.Builder

	b.WriteString("Current task: ")
	b.WriteString(t.Description)
	b.WriteString("\n")

	if t.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\nThis is the expected criteria for your final answer: %s\n", t.ExpectedOutput)
	}

	if len(previous) > 0 {
		b.WriteString("\nThis is the context you're working with:\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "\n## %s (%s)\n%s\n", p.Description, p.AgentRole, p.Output)
		}
	}

	return b.String()
}
