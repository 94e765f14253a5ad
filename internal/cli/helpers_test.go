package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const entitiesCUE = `package specs

entity: Named: {
	attributes: ["name"]
}

entity: User: {
	attributes: ["id", "age", "active", "status", "address.city"]
	embedded: ["address"]
	extends: ["Named"]
}

constants: "app.Status": {
	ACTIVE: 1
}
`

const predicatesCUE = `package specs

predicate: adults: {
	entity: "User"
	param:  "e"
	type:   "User"
	body:   "e.age > min"
	captures: {
		min: 18
	}
}

predicate: search: {
	entity: "User"
	param:  "u"
	type:   "Named"
	body:   "contains(u.name, needle) || u.age >= 65"
	captures: {
		needle: "ann"
	}
}

predicate: status: {
	entity: "User"
	param:  "e"
	type:   "User"
	imports: {
		S: "app.Status"
	}
	body: "e.status == S.ACTIVE"
}
`

const badPredicateCUE = `package specs

predicate: nickname: {
	entity: "User"
	param:  "e"
	type:   "User"
	body:   "e.nickname == \"x\""
}
`

// writeSpecs creates a spec directory holding the given files.
func writeSpecs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func validSpecs(t *testing.T) string {
	return writeSpecs(t, map[string]string{
		"entities.cue":   entitiesCUE,
		"predicates.cue": predicatesCUE,
	})
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "wherefn.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("cache:\n  backend: memory\nlog:\n  level: error\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--no-color", "--config", cfg}, args...))
	err := cmd.Execute()
	return buf.String(), err
}
