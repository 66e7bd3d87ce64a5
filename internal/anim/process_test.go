package anim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerrizor/ckb/internal/infrastructure/logging"
)

// collectLines drains p until want shows up or the deadline passes.
func collectLines(t *testing.T, p child, want string) []string {
	t.Helper()
	var lines []string
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		lines = append(lines, p.drain()...)
		for _, l := range lines {
			if l == want {
				return lines
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %q in %v", want, lines)
	return nil
}

func TestProcessRoundTrip(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	path := writeScript(t, dir, "renderer", `echo "begin frame"
echo "argb a ff112233"
echo "end frame"
cat > /dev/null
`)

	p, err := startProcess(path, logging.NewNop())
	require.NoError(t, err)

	lines := collectLines(t, p, "end frame")
	assert.Contains(t, lines, "begin frame")
	assert.Contains(t, lines, "argb a ff112233")

	p.writeLine("frame 0.5") // the fixture just swallows input

	p.closeWait(time.Second)
	// A closed pipe always surfaces as an end-of-run marker
	assert.Contains(t, p.drain(), "end run")
}

func TestProcessSilentExitIsEndRun(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	path := writeScript(t, dir, "quitter", `exit 0
`)

	p, err := startProcess(path, logging.NewNop())
	require.NoError(t, err)
	collectLines(t, p, "end run")
}

func TestProcessKillDoesNotBlock(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	path := writeScript(t, dir, "sleeper", `sleep 30
`)

	p, err := startProcess(path, logging.NewNop())
	require.NoError(t, err)

	start := time.Now()
	p.kill()
	assert.Less(t, time.Since(start), 500*time.Millisecond, "kill must detach the wait")
}

func TestStartProcessMissingExecutable(t *testing.T) {
	_, err := startProcess("/nonexistent/animation", logging.NewNop())
	assert.Error(t, err)
}
