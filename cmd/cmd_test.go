// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/clickpilot/internal/observability"
	"github.com/xkilldash9x/clickpilot/internal/workflow"
)

const dryPlan = `
setup:
  - kind: visit_url
    url: https://portal.example/login
  - kind: type_text
    secret: username
  - kind: type_key
    key: Enter
per_client:
  - kind: visit_url
    url: "{{ .PortalURL }}"
teardown:
  - kind: click_by_dom
    prompt: Log out
`

// resetForTest isolates each command execution.
func resetForTest(t *testing.T) {
	t.Helper()
	cfgFile = ""
	observability.ResetForTest()
	t.Cleanup(observability.ResetForTest)
	t.Setenv("CLICKPILOT_LOGGER_LEVEL", "error")
	t.Setenv("CLICKPILOT_RUN_DIR", t.TempDir())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersion(t *testing.T) {
	resetForTest(t)
	out, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)

	out, err = executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, Version)
}

func TestPlanValidate(t *testing.T) {
	resetForTest(t)
	plan := writeFile(t, "plan.yaml", dryPlan)

	out, err := executeCommand(t, "plan", "validate", "--plan", plan, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "visit_url https://portal.example/login")
	assert.Contains(t, out, "type_text secret=username")
	assert.Contains(t, out, "Plan OK: 4 steps, 0 clients.")
}

func TestPlanValidate_Invalid(t *testing.T) {
	resetForTest(t)
	plan := writeFile(t, "plan.yaml", "setup:\n  - kind: visit_url\n")

	_, err := executeCommand(t, "plan", "validate", "--plan", plan, "--dry-run")
	require.Error(t, err)
	assert.Equal(t, workflow.ErrCodePlanInvalid, workflow.CodeOf(err))
}

func TestRun_RequiresPlan(t *testing.T) {
	resetForTest(t)
	_, err := executeCommand(t, "run", "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "plan" not set`)
}

func TestRun_RequiresSheetWhenLive(t *testing.T) {
	resetForTest(t)
	plan := writeFile(t, "plan.yaml", dryPlan)
	_, err := executeCommand(t, "run", "--plan", plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "records.sheets_id is required")
}

func TestRun_DryRun(t *testing.T) {
	resetForTest(t)
	plan := writeFile(t, "plan.yaml", dryPlan)
	summary := filepath.Join(t.TempDir(), "summary.json")

	_, err := executeCommand(t, "run", "--plan", plan, "--dry-run", "--format", "json", "--output", summary)
	require.NoError(t, err)

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &report))
	assert.EqualValues(t, 4, report["steps"])
	assert.Equal(t, "completed", report["outcome"])

	archived, err := filepath.Glob(filepath.Join(os.Getenv("CLICKPILOT_RUN_DIR"), "run-*", "report.json"))
	require.NoError(t, err)
	assert.Len(t, archived, 1)
}

func TestRun_DryRunAbort(t *testing.T) {
	resetForTest(t)
	plan := writeFile(t, "plan.yaml", "setup:\n  - kind: abort\n    reason: maintenance window\n")
	summary := filepath.Join(t.TempDir(), "summary.txt")

	_, err := executeCommand(t, "run", "--plan", plan, "--dry-run", "--output", summary)
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrAbortProgram)

	data, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), "maintenance window")
}

func TestGetConfigFromContext_Missing(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.EqualError(t, err, "configuration not loaded")
}
