package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/crewbuilder/internal/config"
	"github.com/soyeahso/crewbuilder/internal/crew"
	"github.com/soyeahso/crewbuilder/internal/domain"
	"github.com/soyeahso/crewbuilder/internal/logging"
	"github.com/soyeahso/crewbuilder/internal/store"
	"github.com/soyeahso/crewbuilder/internal/version"
)

// runCLI executes the root command in a fresh CREWBUILDER_HOME and returns
// stdout and stderr.
func runCLI(t *testing.T, home string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("CREWBUILDER_HOME", home)
	t.Setenv("GROQ_API_KEY", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "silent"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestVersionCmd(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "crewbuilder "))

	out, _, err = runCLI(t, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", out)
}

func TestDBVersionCmd(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "db", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "SQLite version: 3."), out)
}

func TestDBSessionsMissingDatabase(t *testing.T) {
	_, _, err := runCLI(t, t.TempDir(), "db", "sessions")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no session database")
}

func TestDBSessionsDelete(t *testing.T) {
	home := t.TempDir()
	dbPath := config.PathsAt(home).Sessions
	require.NoError(t, os.MkdirAll(filepath.Dir(dbPath), 0o700))

	db, err := store.Open(dbPath, logging.Nop())
	require.NoError(t, err)
	sessions := store.NewSQLiteSessionStore(db)
	now := time.Now().UTC()
	for _, id := range []string{"keep", "drop"} {
		require.NoError(t, sessions.Save(context.Background(), crew.Snapshot{ID: id, CreatedAt: now, UpdatedAt: now}))
	}
	require.NoError(t, sessions.Close())

	out, _, err := runCLI(t, home, "db", "sessions", "--delete", "drop")
	require.NoError(t, err)
	assert.Equal(t, "deleted drop\n", out)

	out, _, err = runCLI(t, home, "db", "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "keep")
	assert.NotContains(t, out, "drop")
}

func TestTemplateList(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "template", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Content Team")
	assert.Contains(t, out, "Data Team")
}

func TestTemplateListIncludesFileTemplates(t *testing.T) {
	home := t.TempDir()
	writeFile(t, filepath.Join(home, "templates.toml"), `
[[template]]
name = "Review Team"
description = "Two-pass review"
agents = ["🦉 Coruja"]
tasks = ["Revisar", "Aprovar"]

[[template.agent]]
role = "Coruja"
goal = "Revisar com cuidado"
emoji = "🦉"
`)

	out, _, err := runCLI(t, home, "template", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Review Team")

	out, _, err = runCLI(t, home, "template", "show", "Review Team")
	require.NoError(t, err)
	assert.Contains(t, out, "🦉 Coruja (Coruja: Revisar com cuidado)")
	assert.Contains(t, out, "2. Aprovar -> 🦉 Coruja")
}

func TestTemplateShow(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "template", "show", "Data Team")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Coletar e limpar dados -> 📊 Analista Dados")
	assert.Contains(t, out, "2. Criar modelo preditivo -> 📈 Cientista Dados")

	_, _, err = runCLI(t, t.TempDir(), "template", "show", "Nope")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "template", nf.Kind)
}

func TestGenerateFromTemplate(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "generate", "--template", "Content Team")
	require.NoError(t, err)
	assert.Contains(t, out, "from crewai import Agent, Task, Crew")
	assert.Contains(t, out, `role="Redator de Conteúdo"`)
	assert.Contains(t, out, `description="Escrever artigo otimizado"`)
	assert.Contains(t, out, crew.APIKeyPlaceholder)
}

func TestGenerateAgentsToFile(t *testing.T) {
	home := t.TempDir()
	target := filepath.Join(home, "crew.py")

	_, stderr, err := runCLI(t, home, "generate", "-a", "🔍 Pesquisador", "-a", "📊 Analista", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, stderr, "wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), `role="Pesquisador Sênior"`)
	assert.Contains(t, string(data), "tasks=[task_0, task_1]")
}

func TestGenerateStrictRejectsUnknownAgent(t *testing.T) {
	_, _, err := runCLI(t, t.TempDir(), "generate", "--mode", "strict", "-a", "👻 Nobody")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "👻 Nobody", nf.Key)

	_, _, err = runCLI(t, t.TempDir(), "generate", "--mode", "sloppy")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestGenerateFromCrewFile(t *testing.T) {
	home := t.TempDir()
	file := filepath.Join(home, "crew.yaml")
	writeFile(t, file, `
model: {model: gemma-7b-it, temperature: 0.2, maxTokens: 2048}
agents:
  - {role: Revisor, goal: Revisar textos, backstory: Editor, emoji: "🧪"}
workflow: ["🔍 Pesquisador", "🧪 Revisor"]
tasks:
  - {position: 1, description: Revisar o rascunho, expectedOutput: Texto revisado}
`)

	out, _, err := runCLI(t, home, "generate", "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, `"model": "gemma-7b-it"`)
	assert.Contains(t, out, `role="Revisor"`)
	assert.Contains(t, out, `description="Revisar o rascunho"`)
}

func TestConfigSetGetUnset(t *testing.T) {
	home := t.TempDir()

	out, _, err := runCLI(t, home, "config", "set", "gateway.port", "19000")
	require.NoError(t, err)
	assert.Equal(t, "Set gateway.port = 19000\n", out)

	out, _, err = runCLI(t, home, "config", "get", "gateway.port")
	require.NoError(t, err)
	assert.Equal(t, "19000\n", out)

	out, _, err = runCLI(t, home, "config", "get", "gateway")
	require.NoError(t, err)
	assert.Equal(t, "port: 19000\n", out)

	_, _, err = runCLI(t, home, "config", "unset", "gateway.port")
	require.NoError(t, err)
	_, _, err = runCLI(t, home, "config", "get", "gateway.port")
	assert.Error(t, err)

	out, _, err = runCLI(t, home, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "config.yaml")+"\n", out)
}

func TestStatusCmd(t *testing.T) {
	out, _, err := runCLI(t, t.TempDir(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Config:    not found (using defaults)")
	assert.Contains(t, out, "Gateway:   port=18790 bind=loopback")
	assert.Contains(t, out, "apiKey=missing")
	assert.Contains(t, out, "Templates: Content Team, Data Team")
	assert.NotContains(t, out, "Validation issues")
}

func fakeGroq(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "mixtral-8x7b-32768",
			"choices": []map[string]any{{
				"message": map[string]string{"role": "assistant", "content": "# Relatório\n\nresposta " + string(rune('0'+n))},
			}},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 4},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestRunCmd(t *testing.T) {
	var calls atomic.Int32
	ts := fakeGroq(t, &calls)
	home := t.TempDir()
	writeFile(t, filepath.Join(home, "config.yaml"), "llm:\n  provider: groq\n  apiKey: gsk-test\n  baseUrl: "+ts.URL+"\n")

	out, stderr, err := runCLI(t, home, "run", "--template", "Data Team")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "# Relatório\n\nresposta 2\n", out)
	assert.Contains(t, stderr, "[1/2] running...")
	assert.Contains(t, stderr, "[2/2] Cientista de Dados done")

	out, _, err = runCLI(t, home, "run", "--template", "Data Team", "--render", "--style", "notty")
	require.NoError(t, err)
	assert.Contains(t, out, "Relatório")
	assert.Contains(t, out, "resposta 4")
	assert.NotEqual(t, "# Relatório\n\nresposta 4\n", out)
}

func TestRunCmdMissingKey(t *testing.T) {
	_, _, err := runCLI(t, t.TempDir(), "run", "--template", "Data Team")
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "apiKey", ve.Field)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := renderMarkdown("**bold** text", "notty", 80)
	require.NoError(t, err)
	assert.Contains(t, out, "bold")
	assert.NotEqual(t, "**bold** text", out)
}
