package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/fmueller/batchscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  []whisper.TranscriptionRequest
	failOn map[string]error
	during func(req whisper.TranscriptionRequest)
}

func (f *fakeEngine) Transcribe(ctx context.Context, req whisper.TranscriptionRequest) (transcript.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.during != nil {
		f.during(req)
	}
	if err := ctx.Err(); err != nil {
		return transcript.Result{}, err
	}
	if err, ok := f.failOn[filepath.Base(req.AudioPath)]; ok {
		return transcript.Result{}, err
	}
	return transcript.Result{Text: "text of " + filepath.Base(req.AudioPath)}, nil
}

func (f *fakeEngine) sources() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, filepath.Base(c.AudioPath))
	}
	return out
}

func threeFiles(t *testing.T) string {
	t.Helper()

	in := t.TempDir()
	for _, name := range []string{"one.mp3", "two.wav", "three.ogg"} {
		touch(t, filepath.Join(in, name))
	}
	return in
}

func TestRunTranscribesEveryFile(t *testing.T) {
	t.Parallel()

	in := threeFiles(t)
	out := filepath.Join(t.TempDir(), "nested", "out")
	engine := &fakeEngine{}

	runner := NewRunner(engine, Options{
		Inputs:    []string{in},
		OutputDir: out,
		Format:    transcript.FormatTXT,
		Request:   whisper.TranscriptionRequest{ModelPath: "m.bin", Task: whisper.TaskTranslate, BeamSize: 7},
	})

	var progress []int
	runner.OnFileDone = func(done, total int, _ Outcome) {
		require.Equal(t, 3, total)
		progress = append(progress, done)
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, report.Total)
	require.Equal(t, 3, report.Count(StatusDone))
	require.False(t, report.Aborted)
	require.NotEmpty(t, report.ID)
	require.Equal(t, []int{1, 2, 3}, progress)
	require.Equal(t, []string{"one.mp3", "three.ogg", "two.wav"}, engine.sources())

	for _, call := range engine.calls {
		require.Equal(t, "m.bin", call.ModelPath)
		require.Equal(t, whisper.TaskTranslate, call.Task)
		require.Equal(t, 7, call.BeamSize)
	}

	content, err := os.ReadFile(filepath.Join(out, "two.txt"))
	require.NoError(t, err)
	require.Equal(t, "text of two.wav\n", string(content))

	leftovers, err := filepath.Glob(filepath.Join(out, ".*.part"))
	require.NoError(t, err)
	require.Empty(t, leftovers)
}

func TestRunSkipsFilesWithExistingOutput(t *testing.T) {
	t.Parallel()

	in := threeFiles(t)
	out := t.TempDir()
	existing := filepath.Join(out, "two.srt")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o644))

	engine := &fakeEngine{}
	report, err := NewRunner(engine, Options{Inputs: []string{in}, OutputDir: out, Format: transcript.FormatSRT}).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"one.mp3", "three.ogg"}, engine.sources())
	require.Equal(t, 1, report.Count(StatusSkipped))
	require.Equal(t, 3, report.Processed())

	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	require.Equal(t, "keep me", string(content))
}

func TestStopFinishesCurrentFileThenStops(t *testing.T) {
	t.Parallel()

	in := threeFiles(t)
	out := t.TempDir()
	engine := &fakeEngine{}

	runner := NewRunner(engine, Options{Inputs: []string{in}, OutputDir: out})
	engine.during = func(req whisper.TranscriptionRequest) {
		if filepath.Base(req.AudioPath) == "one.mp3" {
			runner.Stop()
			runner.Stop()
		}
	}

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Aborted)
	require.True(t, runner.Stopped())
	require.Equal(t, []string{"one.mp3"}, engine.sources())
	require.Equal(t, 1, report.Count(StatusDone))
	require.Equal(t, 2, report.Count(StatusCanceled))
	require.FileExists(t, filepath.Join(out, "one.txt"))
	require.NoFileExists(t, filepath.Join(out, "three.txt"))
}

func TestStopBeforeRunProcessesNothing(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{}
	runner := NewRunner(engine, Options{Inputs: []string{threeFiles(t)}, OutputDir: t.TempDir()})
	runner.Stop()

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, engine.sources())
	require.Equal(t, 3, report.Count(StatusCanceled))
}

func TestContextCancelInterruptsBatch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &fakeEngine{during: func(whisper.TranscriptionRequest) { cancel() }}
	out := t.TempDir()
	report, err := NewRunner(engine, Options{Inputs: []string{threeFiles(t)}, OutputDir: out}).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, engine.sources(), 1)
	require.Equal(t, 3, report.Count(StatusCanceled))
	require.NoFileExists(t, filepath.Join(out, "one.txt"))
}

func TestRunContinuesPastFailuresAndReportsThem(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{failOn: map[string]error{"one.mp3": errors.New("decoder exploded")}}
	out := t.TempDir()
	report, err := NewRunner(engine, Options{Inputs: []string{threeFiles(t)}, OutputDir: out}).Run(context.Background())

	require.ErrorIs(t, err, ErrFilesFailed)
	require.Contains(t, err.Error(), "one.mp3")
	require.Len(t, engine.sources(), 3)
	require.Equal(t, 2, report.Count(StatusDone))
	require.Equal(t, 1, report.Count(StatusFailed))
	require.NoFileExists(t, filepath.Join(out, "one.txt"))

	for _, o := range report.Outcomes {
		if o.Status == StatusFailed {
			require.Equal(t, "decoder exploded", o.Error)
		}
	}
}

func TestRunWithoutInputs(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(&fakeEngine{}, Options{OutputDir: t.TempDir()}).Run(context.Background())
	require.ErrorIs(t, err, ErrNoInputs)
}

func TestRunWithNoAudioFiles(t *testing.T) {
	t.Parallel()

	in := t.TempDir()
	touch(t, filepath.Join(in, "notes.txt"))
	out := filepath.Join(t.TempDir(), "out")

	engine := &fakeEngine{}
	report, err := NewRunner(engine, Options{Inputs: []string{in}, OutputDir: out}).Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Total)
	require.Empty(t, engine.sources())
	require.NoDirExists(t, out)
}

func TestRunRequiresOutputDir(t *testing.T) {
	t.Parallel()

	_, err := NewRunner(&fakeEngine{}, Options{Inputs: []string{threeFiles(t)}}).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "output directory")
}

func TestRunRejectsOutputPathThatIsAFile(t *testing.T) {
	t.Parallel()

	notDir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(notDir, []byte("file"), 0o644))

	engine := &fakeEngine{}
	report, err := NewRunner(engine, Options{Inputs: []string{threeFiles(t)}, OutputDir: notDir}).Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a directory")
	require.NotErrorIs(t, err, ErrFilesFailed)
	require.Empty(t, engine.sources())
	require.Empty(t, report.Outcomes)
}

func TestReportSummaryAndWrite(t *testing.T) {
	t.Parallel()

	report := Report{
		ID:    "run-1",
		Total: 4,
		Outcomes: []Outcome{
			{Source: "a", Status: StatusDone},
			{Source: "b", Status: StatusSkipped},
			{Source: "c", Status: StatusFailed, Error: "boom"},
			{Source: "d", Status: StatusCanceled},
		},
	}
	require.Equal(t, "2/4 files: 1 transcribed, 1 skipped, 1 failed, 1 canceled", report.Summary())
	require.Equal(t, []string{"c"}, report.Failed())

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, WriteReport(path, report))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(content), `"error": "boom"`))
}
