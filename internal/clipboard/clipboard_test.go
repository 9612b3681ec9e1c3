package clipboard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyWritesStdin(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "clipboard.txt")

	err := Copy(context.Background(), []string{scriptPath, outputPath}, "[00:00] meeting transcript")
	require.NoError(t, err)

	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.Equal(t, "[00:00] meeting transcript", string(data))
}

func TestCopySkipsEmptyText(t *testing.T) {
	scriptPath := writeStdinCaptureScript(t)
	outputPath := filepath.Join(t.TempDir(), "clipboard.txt")

	err := Copy(context.Background(), []string{scriptPath, outputPath}, "")
	require.NoError(t, err)

	_, statErr := os.Stat(outputPath)
	require.Error(t, statErr)
	require.True(t, os.IsNotExist(statErr))
}

func TestCopyRejectsEmptyArgv(t *testing.T) {
	err := Copy(context.Background(), nil, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "argv cannot be empty")
}

func TestCopyReturnsCommandFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fail.sh")
	script := "#!/usr/bin/env bash\nset -euo pipefail\ncat > /dev/null\nexit 1\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))

	err := Copy(context.Background(), []string{path}, "payload")
	require.Error(t, err)
	require.Contains(t, err.Error(), "wait for")
}

func writeStdinCaptureScript(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "capture-stdin.sh")
	script := `#!/usr/bin/env bash
set -euo pipefail
cat > "$1"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}
