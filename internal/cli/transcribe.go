package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fmueller/batchscribe/internal/batch"
	"github.com/fmueller/batchscribe/internal/download"
	"github.com/fmueller/batchscribe/internal/settings"
	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/fmueller/batchscribe/internal/whisper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type batchFlags struct {
	outputDir       string
	recursive       bool
	model           string
	language        string
	task            string
	format          string
	temperature     float64
	bestOf          int
	beamSize        int
	fp16            bool
	verboseDecoding bool
	preset          string
	sound           bool
	save            bool
	report          string
}

func newTranscribeCmd(app *appState) *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "transcribe [paths...]",
		Short: "Transcribe audio files and folders",
		Long:  "Transcribe audio files and every supported file in the given folders.\nWithout paths the saved input paths are used again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runBatch(cmd, flags, args)
		},
	}

	bindBatchFlags(cmd, flags)
	bindModelFlags(cmd, app)
	bindSilenceFlags(cmd, app)
	return cmd
}

func bindBatchFlags(cmd *cobra.Command, f *batchFlags) {
	d := settings.Default()
	fs := cmd.Flags()

	fs.StringVarP(&f.outputDir, "output-dir", "o", "", "Directory for transcripts (default: saved output dir)")
	fs.BoolVarP(&f.recursive, "recursive", "r", d.IncludeSubfolders, "Include subfolders of input folders")
	fs.StringVar(&f.model, "model", d.Model, fmt.Sprintf("Model name (%s) or path to a model file", strings.Join(whisper.ModelChoices(), ", ")))
	fs.StringVar(&f.language, "language", d.Language, "Spoken language code, or Auto to detect it")
	fs.StringVar(&f.task, "task", d.Task, "transcribe or translate (to English)")
	fs.StringVarP(&f.format, "format", "f", d.OutputFormat, fmt.Sprintf("Output format (%s)", strings.Join(formatNames(), ", ")))
	fs.Float64Var(&f.temperature, "temperature", d.Temperature, "Sampling temperature (0.0-1.0)")
	fs.IntVar(&f.bestOf, "best-of", d.BestOf, "Candidates when sampling")
	fs.IntVar(&f.beamSize, "beam-size", d.BeamSize, "Beam search width")
	fs.BoolVar(&f.fp16, "fp16", d.FP16, "Use half precision on the GPU; false forces CPU")
	fs.BoolVar(&f.verboseDecoding, "verbose-decoding", d.Verbose, "Stream engine progress to the log")
	fs.StringVar(&f.preset, "preset", "", fmt.Sprintf("Decoding preset (%s); explicit flags win", strings.Join(settings.PresetNames(), ", ")))
	fs.BoolVar(&f.sound, "sound", d.SoundOnComplete, "Beep and notify when the batch completes")
	fs.BoolVar(&f.save, "save", true, "Save the effective settings for the next run")
	fs.StringVar(&f.report, "report", "", "Write a JSON run report to this file")
}

// applyBatchFlags layers the flags the user actually set over s. A preset is
// applied first so explicit decoding flags override it.
func applyBatchFlags(fs *pflag.FlagSet, s settings.Settings, f *batchFlags) (settings.Settings, error) {
	if fs.Changed("preset") {
		if err := s.ApplyPreset(f.preset); err != nil {
			return s, err
		}
	}

	if fs.Changed("output-dir") {
		s.OutputDir = f.outputDir
	}
	if fs.Changed("recursive") {
		s.IncludeSubfolders = f.recursive
	}
	if fs.Changed("model") {
		s.Model = f.model
	}
	if fs.Changed("language") {
		s.Language = f.language
	}
	if fs.Changed("task") {
		s.Task = strings.ToLower(strings.TrimSpace(f.task))
	}
	if fs.Changed("format") {
		format, err := transcript.ParseFormat(f.format)
		if err != nil {
			return s, err
		}
		s.OutputFormat = string(format)
	}
	if fs.Changed("temperature") {
		s.Temperature = f.temperature
	}
	if fs.Changed("best-of") {
		s.BestOf = f.bestOf
	}
	if fs.Changed("beam-size") {
		s.BeamSize = f.beamSize
	}
	if fs.Changed("fp16") {
		s.FP16 = f.fp16
	}
	if fs.Changed("verbose-decoding") {
		s.Verbose = f.verboseDecoding
	}
	if fs.Changed("sound") {
		s.SoundOnComplete = f.sound
	}
	return s, nil
}

func (a *appState) runBatch(cmd *cobra.Command, flags *batchFlags, args []string) error {
	s, err := applyBatchFlags(cmd.Flags(), a.settings, flags)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		s.InputPaths = absPaths(args)
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	if len(s.InputPaths) == 0 {
		return batch.ErrNoInputs
	}
	format, err := s.Format()
	if err != nil {
		return err
	}

	if flags.save {
		a.persist(s)
	}

	// Nothing to do means no reason to fetch a model or locate the engine.
	if files, _ := batch.Gather(s.InputPaths, s.IncludeSubfolders); len(files) == 0 {
		a.log().Warn("no supported audio files found", zap.Strings("inputs", s.InputPaths))
		return nil
	}

	engine, modelPath, err := a.engineFn(cmd.Context(), s)
	if err != nil {
		return err
	}

	a.log().Info("settings",
		zap.String("model", s.Model),
		zap.String("language", s.Language),
		zap.String("task", s.Task),
		zap.Float64("temperature", s.Temperature),
		zap.Int("best_of", s.BestOf),
		zap.Int("beam_size", s.BeamSize),
		zap.Bool("fp16", s.FP16),
	)

	runner := batch.NewRunner(engine, batch.Options{
		Inputs:    s.InputPaths,
		OutputDir: s.OutputDir,
		Recursive: s.IncludeSubfolders,
		Format:    format,
		Logger:    a.log(),
		Request: whisper.TranscriptionRequest{
			ModelPath:   modelPath,
			Language:    s.EngineLanguage(),
			Task:        whisper.Task(s.Task),
			Temperature: s.Temperature,
			BestOf:      s.BestOf,
			BeamSize:    s.BeamSize,
			FP16:        s.FP16,
			Verbose:     s.Verbose,
		},
	})

	progress := newBatchProgress(a.progressEnabled())
	runner.OnFileStart = progress.start
	runner.OnFileDone = progress.done

	ctx, stopWatching := a.watchInterrupts(cmd.Context(), runner)
	report, runErr := runner.Run(ctx)
	stopWatching()
	progress.finish()

	if report.Total > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
	}

	if flags.report != "" {
		if err := batch.WriteReport(flags.report, report); err != nil {
			a.log().Warn("could not write run report", zap.String("path", flags.report), zap.Error(err))
		}
	}

	if s.SoundOnComplete && !report.Aborted && report.Total > 0 && !errors.Is(runErr, context.Canceled) {
		if err := a.notifier.Completed(report.Summary()); err != nil {
			a.log().Debug("completion notification failed", zap.Error(err))
		}
	}

	return runErr
}

// prepareEngine resolves the configured model, downloading it when allowed,
// and locates the engine executable.
func (a *appState) prepareEngine(ctx context.Context, s settings.Settings) (whisper.Engine, string, error) {
	model, err := a.ensureModelAvailable(ctx, s.Model)
	if err != nil {
		return nil, "", err
	}

	engine, err := whisper.NewBundledEngine(a.log())
	if err != nil {
		return nil, "", err
	}

	return &gatedEngine{
		next:          engine,
		silenceGate:   a.silenceGate,
		thresholdDBFS: a.silenceDBFS,
		logger:        a.log(),
	}, model.Path, nil
}

func (a *appState) ensureModelAvailable(ctx context.Context, modelRef string) (whisper.ResolvedModel, error) {
	modelDir, err := a.modelStorageDir()
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	resolved, err := whisper.ResolveModel(modelRef, modelDir)
	if err != nil {
		return whisper.ResolvedModel{}, err
	}

	if !resolved.NeedsDownload {
		return resolved, nil
	}

	if !a.autoDownload {
		return whisper.ResolvedModel{}, fmt.Errorf("model %q is missing at %s; run `batchscribe setup --model %s` or use --auto-download=true", resolved.Name, resolved.Path, resolved.Name)
	}

	a.log().Info("model not found, downloading", zap.String("model", resolved.Name), zap.String("destination", resolved.Path))
	if err := download.DownloadFile(ctx, download.Options{
		URL:            resolved.URL,
		Destination:    resolved.Path,
		ExpectedSHA256: resolved.SHA256,
		ChecksumURL:    resolved.SHA256URL,
		NoProgress:     a.noProgress,
		Logger:         a.log(),
	}); err != nil {
		return whisper.ResolvedModel{}, fmt.Errorf("download model %q: %w", resolved.Name, err)
	}

	resolved.NeedsDownload = false
	return resolved, nil
}

// absPaths makes selections independent of the working directory so saved
// inputs stay valid across runs.
func absPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func formatNames() []string {
	formats := transcript.Formats()
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	return names
}
