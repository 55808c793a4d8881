package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/fmueller/batchscribe/internal/whisper"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoInputs    = errors.New("no input files or folders selected")
	ErrFilesFailed = errors.New("some files failed to transcribe")
)

type Options struct {
	Inputs    []string
	OutputDir string
	Recursive bool
	Format    transcript.Format
	// Request is copied for every file with AudioPath filled in.
	Request whisper.TranscriptionRequest
	Logger  *zap.Logger
}

// Runner transcribes a batch of files one at a time. Stop may be called from
// any goroutine; the file in progress still completes.
type Runner struct {
	engine  whisper.Engine
	opts    Options
	stopped atomic.Bool
	now     func() time.Time

	OnFileStart func(index, total int, source string)
	OnFileDone  func(done, total int, outcome Outcome)
}

func NewRunner(engine whisper.Engine, opts Options) *Runner {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Format == "" {
		opts.Format = transcript.FormatTXT
	}
	return &Runner{engine: engine, opts: opts, now: time.Now}
}

func (r *Runner) Stop() {
	if r.stopped.CompareAndSwap(false, true) {
		r.opts.Logger.Warn("abort requested; finishing current file, then stopping")
	}
}

func (r *Runner) Stopped() bool {
	return r.stopped.Load()
}

// Run gathers the inputs and processes them in order. A cooperative stop
// ends the batch without error; per-file failures are collected and
// reported as ErrFilesFailed once every file has been attempted.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	log := r.opts.Logger
	report := Report{ID: uuid.NewString(), StartedAt: r.now()}
	log = log.With(zap.String("run", report.ID))

	if len(r.opts.Inputs) == 0 {
		return report, ErrNoInputs
	}

	files, gatherErr := Gather(r.opts.Inputs, r.opts.Recursive)
	if gatherErr != nil {
		for _, line := range strings.Split(gatherErr.Error(), "\n") {
			log.Warn("skipping unreadable input", zap.String("detail", line))
		}
	}

	report.Total = len(files)
	if len(files) == 0 {
		log.Warn("no supported audio files found")
		report.FinishedAt = r.now()
		return report, nil
	}

	if err := ensureDir(r.opts.OutputDir, log); err != nil {
		return report, err
	}

	log.Info("starting batch transcription",
		zap.Int("files", len(files)),
		zap.String("output_dir", r.opts.OutputDir),
		zap.String("format", string(r.opts.Format)),
		zap.Bool("recursive", r.opts.Recursive),
	)

	for i, source := range files {
		if r.stopped.Load() || ctx.Err() != nil {
			report.Aborted = true
			for _, rest := range files[i:] {
				report.Outcomes = append(report.Outcomes, Outcome{
					Source: rest,
					Output: OutputPath(r.opts.OutputDir, rest, r.opts.Format),
					Status: StatusCanceled,
				})
			}
			log.Warn("transcription aborted", zap.Int("remaining", len(files)-i))
			break
		}

		if r.OnFileStart != nil {
			r.OnFileStart(i, len(files), source)
		}

		outcome := r.process(ctx, source, log)
		report.Outcomes = append(report.Outcomes, outcome)

		if r.OnFileDone != nil {
			r.OnFileDone(i+1, len(files), outcome)
		}
	}

	report.FinishedAt = r.now()

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch interrupted: %w", err)
	}
	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("%w: %s", ErrFilesFailed, strings.Join(failed, ", "))
	}

	if !report.Aborted {
		log.Info("all files processed",
			zap.Int("done", report.Count(StatusDone)),
			zap.Int("skipped", report.Count(StatusSkipped)),
			zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
		)
	}
	return report, nil
}

func (r *Runner) process(ctx context.Context, source string, log *zap.Logger) Outcome {
	outcome := Outcome{
		Source: source,
		Output: OutputPath(r.opts.OutputDir, source, r.opts.Format),
	}

	if _, err := os.Stat(outcome.Output); err == nil {
		log.Info("skipping, already transcribed", zap.String("file", source), zap.String("output", outcome.Output))
		outcome.Status = StatusSkipped
		return outcome
	}

	log.Info("processing", zap.String("file", source))
	started := r.now()

	req := r.opts.Request
	req.AudioPath = source
	result, err := r.engine.Transcribe(ctx, req)
	if err == nil {
		err = writeAtomic(outcome.Output, r.opts.Format, result)
	}
	outcome.Elapsed = r.now().Sub(started)

	if err != nil {
		outcome.Err = err
		outcome.Error = err.Error()
		outcome.Status = StatusFailed
		if ctx.Err() != nil {
			outcome.Status = StatusCanceled
		}
		log.Error("transcription failed", zap.String("file", source), zap.Duration("elapsed", outcome.Elapsed), zap.Error(err))
		return outcome
	}

	outcome.Status = StatusDone
	log.Info("saved output", zap.String("output", outcome.Output), zap.Duration("elapsed", outcome.Elapsed))
	return outcome
}

func ensureDir(dir string, log *zap.Logger) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("output directory is required")
	}
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("output directory %s is not a directory", dir)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	log.Info("created output directory", zap.String("path", dir))
	return nil
}

// writeAtomic renders result next to path and renames it into place, so an
// interrupted write never leaves a partial transcript that a later run would
// treat as done.
func writeAtomic(path string, format transcript.Format, result transcript.Result) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create transcript file: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := transcript.Write(tmp, format, result); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close transcript file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("move transcript into place: %w", err)
	}

	success = true
	return nil
}
