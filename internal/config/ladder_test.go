package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgirmay/timetabled/internal/cpsat"
)

func writeLadderFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ladder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadLadder_EmptyPathReturnsNil(t *testing.T) {
	ladder, err := LoadLadder("")
	require.NoError(t, err)
	assert.Nil(t, ladder)
}

func TestLoadLadder_MissingFileReturnsNil(t *testing.T) {
	ladder, err := LoadLadder(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Nil(t, ladder)
}

func TestLoadLadder_ParsesStrategiesInOrder(t *testing.T) {
	path := writeLadderFile(t, `
strategies:
  - name: "Full Solve"
    student_priority: "ALL"
    timeout: "45s"
    constraint_budget: 20000
    enforce_students: true
  - name: "Minimal"
    student_priority: "LOW"
    timeout: "5s"
    constraint_budget: 1000
    enforce_students: false
`)

	ladder, err := LoadLadder(path)
	require.NoError(t, err)
	require.Len(t, ladder, 2)
	assert.Equal(t, "Full Solve", ladder[0].Name)
	assert.Equal(t, cpsat.PriorityAll, ladder[0].StudentPriority)
	assert.Equal(t, 45*time.Second, ladder[0].Timeout)
	assert.Equal(t, "Minimal", ladder[1].Name)
	assert.False(t, ladder[1].EnforceStudents)
}

func TestLoadLadder_RejectsInvalidTimeout(t *testing.T) {
	path := writeLadderFile(t, `
strategies:
  - name: "Bad"
    student_priority: "ALL"
    timeout: "not-a-duration"
    constraint_budget: 100
    enforce_students: true
`)

	_, err := LoadLadder(path)
	assert.Error(t, err)
}

func TestLoadLadder_RejectsEmptyStrategyList(t *testing.T) {
	path := writeLadderFile(t, "strategies: []\n")

	_, err := LoadLadder(path)
	assert.Error(t, err)
}
