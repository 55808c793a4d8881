package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/batchscribe/internal/settings"
	"github.com/stretchr/testify/require"
)

func TestScanReportsPendingAndFinishedFiles(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	in := audioDir(t)
	out := t.TempDir()
	writeFile(t, filepath.Join(out, "b.vtt"), []byte("WEBVTT\n"))

	stdout, err := app.run(t, "scan", in, "-o", out, "-f", "vtt")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "new "))
	require.Contains(t, lines[0], filepath.Join(out, "a.vtt"))
	require.True(t, strings.HasPrefix(lines[1], "done"))
	require.Contains(t, lines[1], filepath.Join(in, "b.ogg"))
	require.Equal(t, "2 files, 1 to transcribe", lines[2])

	require.Empty(t, app.engine.sources())
	require.NoFileExists(t, app.config)
}

func TestScanUsesSavedInputsAndRecursion(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	in := audioDir(t)

	s := settings.Default()
	s.InputPaths = []string{in}
	s.OutputDir = t.TempDir()
	s.IncludeSubfolders = true
	require.NoError(t, settings.Save(app.config, s))

	stdout, err := app.run(t, "scan")
	require.NoError(t, err)
	require.Contains(t, stdout, filepath.Join(in, "sub", "c.flac"))
	require.Contains(t, stdout, "3 files, 3 to transcribe")
}

func TestScanRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	_, err := app.run(t, "scan", audioDir(t), "-f", "docx")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown output format")
}
