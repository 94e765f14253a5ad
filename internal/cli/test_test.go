package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adultsScenario = `name: adults
specs: ../specs
predicate: adults
captures:
  min: 21
expect:
  filters:
    - {property: age, operator: ">", value: 21}
  where:
    sql: age > ?
    params: [21]
`

const wrongScenario = `name: wrong
specs: ../specs
predicate: adults
expect:
  where:
    sql: age >= ?
    params: [18]
`

const statusScenario = `name: status
specs: ../specs
predicate: status
expect:
  where:
    sql: status = ?
    params: [1]
`

// writeScenarios lays out root/specs and root/scenarios and returns the
// scenarios directory.
func writeScenarios(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	root := t.TempDir()
	specs := filepath.Join(root, "specs")
	require.NoError(t, os.MkdirAll(specs, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(specs, "entities.cue"), []byte(entitiesCUE), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(specs, "predicates.cue"), []byte(predicatesCUE), 0644))

	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandPassing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"adults.yaml": adultsScenario,
		"status.yaml": statusScenario,
	})

	out, err := execute(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")
	assert.Contains(t, out, "✓ status")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestTestCommandFailing(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"adults.yaml": adultsScenario,
		"wrong.yaml":  wrongScenario,
	})

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	wrong := resp.Data.Scenarios[1]
	assert.Equal(t, "wrong", wrong.Name)
	assert.False(t, wrong.Pass)
	assert.Contains(t, wrong.Errors, "where.sql: expected age >= ?, got age > ?")
}

func TestTestCommandFilter(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"adults.yaml": adultsScenario,
		"wrong.yaml":  wrongScenario,
	})

	out, err := execute(t, "test", dir, "--filter", "adu*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.NotContains(t, out, "wrong")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := writeScenarios(t, map[string]string{
		"broken.yaml": "name: broken\nspecs: ../specs\n",
	})

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandGolden(t *testing.T) {
	dir := writeScenarios(t, map[string]string{"adults.yaml": adultsScenario})
	golden := filepath.Join(dir, "golden", "adults.golden")

	out, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults (golden updated)")

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scenario: adults\n")
	assert.Contains(t, string(data), "filter: age > 21\n")

	_, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("scenario: adults\nfilter: age > 18\n"), 0644))
	out, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "golden file mismatch")
}
