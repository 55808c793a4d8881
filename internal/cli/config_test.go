package cli

import (
	"strings"
	"testing"

	"github.com/fmueller/batchscribe/internal/settings"
	"github.com/stretchr/testify/require"
)

func TestConfigSetGetRoundTrip(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	_, err := app.run(t, "config", "set", "beam-size", "8")
	require.NoError(t, err)
	_, err = app.run(t, "config", "set", "language", "fr")
	require.NoError(t, err)

	stdout, err := app.run(t, "config", "get", "beam_size")
	require.NoError(t, err)
	require.Equal(t, "8\n", stdout)

	saved := app.saved(t)
	require.Equal(t, 8, saved.BeamSize)
	require.Equal(t, "fr", saved.Language)
}

func TestConfigSetRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	_, err := app.run(t, "config", "set", "temperature", "3")
	require.Error(t, err)
	require.Contains(t, err.Error(), "temperature")

	_, err = app.run(t, "config", "set", "fp16", "maybe")
	require.Error(t, err)

	_, err = app.run(t, "config", "set", "colour", "blue")
	require.ErrorIs(t, err, settings.ErrUnknownKey)

	require.NoFileExists(t, app.config)
}

func TestConfigShowListsEveryKey(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	stdout, err := app.run(t, "config", "show")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, len(settings.Keys()))
	require.Contains(t, stdout, "model = small\n")
	require.Contains(t, stdout, "language = Auto\n")
}

func TestConfigResetRestoresDefaults(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)
	s := settings.Default()
	s.Model = "tiny"
	s.InputPaths = []string{"/music"}
	require.NoError(t, settings.Save(app.config, s))

	_, err := app.run(t, "config", "reset")
	require.NoError(t, err)

	saved := app.saved(t)
	require.Equal(t, settings.DefaultModel, saved.Model)
	require.Empty(t, saved.InputPaths)
}

func TestConfigPathAndPresets(t *testing.T) {
	t.Parallel()

	app := newTestApp(t)

	stdout, err := app.run(t, "config", "path")
	require.NoError(t, err)
	require.Equal(t, app.config+"\n", stdout)

	stdout, err = app.run(t, "config", "presets")
	require.NoError(t, err)
	require.Contains(t, stdout, "accurate  temperature=0.2 beam_size=10 best_of=1")
}
