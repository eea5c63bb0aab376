package crew

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/soyeahso/crewbuilder/internal/domain"
)

var propertyKeys = []domain.AgentKey{"🔍 Pesquisador", "📊 Analista", "✍️ Redator Conteúdo", "unknown_key"}

// mutate applies a random sequence of session operations.
func mutate(t *rapid.T, s *Session) {
	n := rapid.IntRange(0, 15).Draw(t, "ops")
	for i := 0; i < n; i++ {
		switch rapid.IntRange(0, 5).Draw(t, "op") {
		case 0:
			_, _ = s.Append(rapid.SampledFrom(propertyKeys).Draw(t, "key"))
		case 1:
			_, _ = s.AddCustomAgent(
				rapid.StringMatching(`[A-Za-z][A-Za-z ]{0,12}`).Draw(t, "role"),
				rapid.StringMatching(`[a-z]{1,10}`).Draw(t, "goal"),
				"", "🧠")
		case 2:
			_ = s.Remove(rapid.IntRange(0, 5).Draw(t, "remove"))
		case 3:
			_ = s.Move(rapid.IntRange(0, 5).Draw(t, "from"), rapid.IntRange(0, 5).Draw(t, "to"))
		case 4:
			_, _ = s.EditTask(rapid.IntRange(0, 5).Draw(t, "edit"), rapid.StringMatching(`[a-z ]{0,10}`).Draw(t, "desc"), "")
		case 5:
			_, _ = s.LoadTemplate(rapid.SampledFrom([]string{"Content Team", "Data Team", "Lopsided", "Missing"}).Draw(t, "template"))
		}
	}
}

func TestPropertyCustomAgentRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSession(Lenient)
		role := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 ]{0,20}`).Draw(t, "role")
		goal := rapid.StringMatching(`[A-Za-z][a-z ]{0,30}`).Draw(t, "goal")
		backstory := rapid.StringMatching(`[a-z ]{0,30}`).Draw(t, "backstory")
		emoji := rapid.SampledFrom([]string{"🧠", "🤖", "🎨", "💡", "🔧", "🦉"}).Draw(t, "emoji")

		key, err := s.AddCustomAgent(role, goal, backstory, emoji)
		require.NoError(t, err)
		require.Equal(t, domain.AgentKey(emoji+" "+role), key)

		def, err := s.Resolve(key)
		require.NoError(t, err)
		require.Equal(t, role, def.Role)
		require.Equal(t, goal, def.Goal)
		require.Equal(t, backstory, def.Backstory)
	})
}

func TestPropertyBlankRejectedWithoutMutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSession(Lenient)
		mutate(t, s)
		before := s.Snapshot()

		blank := rapid.StringMatching(`[ \t\n]{0,4}`).Draw(t, "blank")
		filled := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "filled")
		if rapid.Bool().Draw(t, "blankRole") {
			_, err := s.AddCustomAgent(blank, filled, "", "🤖")
			require.Error(t, err)
		} else {
			_, err := s.AddCustomAgent(filled, blank, "", "🤖")
			require.Error(t, err)
		}
		require.Equal(t, before, s.Snapshot())
	})
}

func TestPropertyLoadTemplateIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSession(Lenient)
		mutate(t, s)
		name := rapid.SampledFrom([]string{"Content Team", "Data Team", "Lopsided"}).Draw(t, "name")

		_, err := s.LoadTemplate(name)
		require.NoError(t, err)
		keys1 := keysOf(s.Steps())
		tasks1 := taskContents(s.Tasks())

		_, err = s.LoadTemplate(name)
		require.NoError(t, err)
		require.Equal(t, keys1, keysOf(s.Steps()))
		require.Equal(t, tasks1, taskContents(s.Tasks()))
	})
}

func TestPropertyClearEmpties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSession(Lenient)
		mutate(t, s)
		s.Clear()

		require.Empty(t, s.Steps())
		require.Empty(t, s.Tasks())
		require.Empty(t, s.Snapshot().Custom)
	})
}

func TestPropertyEveryStepHasOneTask(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSession(Lenient)
		mutate(t, s)

		steps := s.Steps()
		tasks := s.Tasks()
		bound := 0
		for _, task := range tasks {
			if task.Bound() {
				require.Equal(t, steps[bound].ID, task.StepID, "bound tasks follow step order")
				require.Equal(t, steps[bound].AgentKey, task.AgentKey)
				bound++
			}
		}
		require.Equal(t, len(steps), bound)
	})
}

func TestPropertyGenerateEmitsEachTaskOnce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := newTestSession(Lenient)
		mutate(t, s)

		plan := s.Plan()
		code, err := Generate(plan, GenerateOptions{})
		require.NoError(t, err)

		for i := range plan.Tasks {
			require.Equal(t, 1, strings.Count(code, fmt.Sprintf("task_%d = Task(", i)))
		}
		require.NotContains(t, code, fmt.Sprintf("task_%d = Task(", len(plan.Tasks)))

		resolved := 0
		for _, a := range plan.Agents {
			if a.Resolved {
				resolved++
			}
		}
		require.Equal(t, resolved, strings.Count(code, " = Agent("))
	})
}

func keysOf(steps []domain.Step) []domain.AgentKey {
	out := make([]domain.AgentKey, len(steps))
	for i, s := range steps {
		out[i] = s.AgentKey
	}
	return out
}
