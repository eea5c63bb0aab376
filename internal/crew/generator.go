package crew

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

// APIKeyPlaceholder is written in place of the real credential.
const APIKeyPlaceholder = "SUA_CHAVE_AQUI"

// GenerateOptions tunes code generation. Zero values use the plan's mode
// and Crew verbosity 2.
type GenerateOptions struct {
	Mode    ResolutionMode
	Verbose int
}

// reservedIdents are names the generated program already binds.
var reservedIdents = map[string]bool{
	"os": true, "Agent": true, "Task": true, "Crew": true, "ChatGroq": true,
	"llm_config": true, "crew": true, "result": true, "print": true,
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// Generate renders plan as a crewAI Python program. The output is text
// only and never contains the session credential. Identical plans produce
// identical output.
func Generate(plan Plan, opts GenerateOptions) (string, error) {
	mode := opts.Mode
	if mode == "" {
		mode = plan.Mode
	}
	verbose := opts.Verbose
	if verbose == 0 {
		verbose = 2
	}

	if mode == Strict {
		if key, ok := plan.FirstUnresolved(); ok {
			return "", &domain.NotFoundError{Kind: "agent", Key: string(key)}
		}
	}

	idents := assignIdentifiers(plan.Agents)

	var b strings.Builder
	b.WriteString("import os\n\n")
	b.WriteString("from crewai import Agent, Task, Crew\n")
	b.WriteString("from langchain_groq import ChatGroq\n\n")
	b.WriteString("# Configuração Inicial\n")
	fmt.Fprintf(&b, "llm_config = {\"model\": %s, \"temperature\": %s, \"max_tokens\": %d}\n\n",
		pyString(string(plan.Model.Model)), pyFloat(plan.Model.Temperature), plan.Model.MaxTokens)
	fmt.Fprintf(&b, "os.environ[\"GROQ_API_KEY\"] = %s\n\n", pyString(APIKeyPlaceholder))

	var declared []string
	for _, a := range plan.Agents {
		if !a.Resolved {
			continue
		}
		id := idents[a.Key]
		declared = append(declared, id)
		fmt.Fprintf(&b, "%s = Agent(\n", id)
		fmt.Fprintf(&b, "    role=%s,\n", pyString(a.Definition.Role))
		fmt.Fprintf(&b, "    goal=%s,\n", pyString(a.Definition.Goal))
		fmt.Fprintf(&b, "    backstory=%s,\n", pyString(a.Definition.Backstory))
		b.WriteString("    llm=ChatGroq(**llm_config),\n")
		b.WriteString("    verbose=True\n")
		b.WriteString(")\n\n")
	}

	b.WriteString("# Tasks\n")
	taskNames := make([]string, len(plan.Tasks))
	for i, t := range plan.Tasks {
		taskNames[i] = fmt.Sprintf("task_%d", i)
		fmt.Fprintf(&b, "%s = Task(\n", taskNames[i])
		fmt.Fprintf(&b, "    description=%s,\n", pyString(t.Description))
		if id, ok := idents[t.AgentKey]; ok {
			fmt.Fprintf(&b, "    agent=%s,\n", id)
		} else {
			fmt.Fprintf(&b, "    agent=None,  # unresolved agent: %s\n", pyString(string(t.AgentKey)))
		}
		fmt.Fprintf(&b, "    expected_output=%s\n", pyString(t.ExpectedOutput))
		b.WriteString(")\n\n")
	}

	b.WriteString("crew = Crew(\n")
	fmt.Fprintf(&b, "    agents=[%s],\n", strings.Join(declared, ", "))
	fmt.Fprintf(&b, "    tasks=[%s],\n", strings.Join(taskNames, ", "))
	fmt.Fprintf(&b, "    verbose=%d\n", verbose)
	b.WriteString(")\n\n")
	b.WriteString("result = crew.kickoff()\n")
	b.WriteString("print(result)\n")

	return b.String(), nil
}

// assignIdentifiers maps each resolved agent key to a unique Python
// identifier derived from its role.
func assignIdentifiers(agents []PlannedAgent) map[domain.AgentKey]string {
	out := make(map[domain.AgentKey]string, len(agents))
	taken := make(map[string]bool)
	for _, a := range agents {
		if !a.Resolved {
			continue
		}
		base := Identifier(a.Definition.Role)
		id := base
		for n := 2; taken[id] || reservedIdents[id] || isTaskName(id); n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		taken[id] = true
		out[a.Key] = id
	}
	return out
}

// Identifier turns a role into a Python identifier: every rune that is not
// a letter, digit or underscore becomes an underscore.
func Identifier(role string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(role) {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	id := b.String()
	if id == "" {
		return "agent"
	}
	if first := []rune(id)[0]; unicode.IsDigit(first) {
		id = "agent_" + id
	}
	return id
}

func isTaskName(id string) bool {
	rest, ok := strings.CutPrefix(id, "task_")
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.Atoi(rest)
	return err == nil
}

// pyString quotes s as a double-quoted Python literal. Go's quoting escapes
// are a subset of Python's string escapes.
func pyString(s string) string {
	return strconv.Quote(s)
}

func pyFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
