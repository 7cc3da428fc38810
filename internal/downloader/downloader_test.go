package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewExecRequiresBinary(t *testing.T) {
	t.Parallel()

	_, err := NewExec(Config{}, zap.NewNop())
	require.Error(t, err)
}

func TestExecFetchSuccessWritesDestination(t *testing.T) {
	t.Parallel()

	dest := filepath.Join(t.TempDir(), "out.jpg")
	// sh receives: $0=--tile-cache, $1=<cacheDir>, $2=<url>, $3=<dest>.
	client, err := NewExec(Config{
		Binary:    "sh",
		ExtraArgs: []string{"-c", `printf img > "$3"`},
	}, zap.NewNop())
	require.NoError(t, err)

	err = client.Fetch(context.Background(), "https://example.com/zoomify/a", dest, t.TempDir())
	require.NoError(t, err)

	data, readErr := os.ReadFile(dest)
	require.NoError(t, readErr)
	require.Equal(t, "img", string(data))
}

func TestExecFetchNonZeroExitCarriesStderr(t *testing.T) {
	t.Parallel()

	client, err := NewExec(Config{
		Binary:    "sh",
		ExtraArgs: []string{"-c", `echo "tile fetch: 404" >&2; exit 3`},
	}, zap.NewNop())
	require.NoError(t, err)

	err = client.Fetch(context.Background(), "https://example.com/zoomify/a", "/dev/null", "")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.ExitCode)
	require.Equal(t, "tile fetch: 404", exitErr.Stderr())
	require.Contains(t, exitErr.Error(), "tile fetch: 404")
}

func TestExecFetchTimeout(t *testing.T) {
	t.Parallel()

	client, err := NewExec(Config{
		Binary:    "sh",
		ExtraArgs: []string{"-c", "sleep 5"},
		Timeout:   50 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	err = client.Fetch(context.Background(), "https://example.com/zoomify/a", "/dev/null", "")
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestExecFetchValidatesArguments(t *testing.T) {
	t.Parallel()

	client, err := NewExec(Config{Binary: "true"}, zap.NewNop())
	require.NoError(t, err)

	require.Error(t, client.Fetch(context.Background(), "", "/tmp/out", ""))
	require.Error(t, client.Fetch(context.Background(), "https://example.com", "", ""))
}
