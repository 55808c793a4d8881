package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fmueller/batchscribe/internal/logging"
	"github.com/fmueller/batchscribe/internal/notify"
	"github.com/fmueller/batchscribe/internal/platform"
	"github.com/fmueller/batchscribe/internal/settings"
	"github.com/fmueller/batchscribe/internal/version"
	"github.com/fmueller/batchscribe/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	configPath   string
	modelDir     string
	autoDownload bool
	silenceGate  bool
	silenceDBFS  float64

	logger       *zap.Logger
	settingsPath string
	settings     settings.Settings

	engineFn func(ctx context.Context, s settings.Settings) (whisper.Engine, string, error)
	notifier *notify.Notifier
	signals  signalSource
}

func newAppState() *appState {
	app := &appState{
		autoDownload: true,
		silenceGate:  true,
		silenceDBFS:  -65,
		notifier:     notify.New(),
		signals:      osSignals{},
	}
	app.engineFn = app.prepareEngine
	return app
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newRootCmd(app *appState) *cobra.Command {
	flags := &batchFlags{}

	cmd := &cobra.Command{
		Use:           "batchscribe",
		Short:         "Batch-transcribe audio files with a whisper engine",
		Long:          "Transcribe every audio file in the selected files and folders, writing one transcript per input.\nRun without a subcommand to repeat the last batch with the saved inputs and settings.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runBatch(cmd, flags, nil)
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	cmd.PersistentFlags().BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	cmd.PersistentFlags().StringVar(&app.configPath, "config", app.configPath, "Settings file (.json, .yaml); defaults to ~/.batchscribe.json or $BATCHSCRIBE_CONFIG")

	bindBatchFlags(cmd, flags)
	bindModelFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newScanCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	cmd.Flags().BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
}

func bindSilenceFlags(cmd *cobra.Command, app *appState) {
	cmd.Flags().BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Skip the engine for near-silent WAV input")
	cmd.Flags().Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

// init builds the logger and loads the settings file. A missing or broken
// settings file falls back to defaults.
func (a *appState) init() error {
	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger

	path, err := platform.ResolveSettingsPath(a.configPath)
	if err != nil {
		a.log().Debug("settings file unavailable; using defaults", zap.Error(err))
		a.settings = settings.Default()
		return nil
	}

	a.settingsPath = path
	s, err := settings.Read(path)
	if err != nil {
		a.log().Debug("settings not fully loaded", zap.String("path", path), zap.Error(err))
	}
	a.settings = s
	return nil
}

// persist saves s; a failure is only logged.
func (a *appState) persist(s settings.Settings) {
	if a.settingsPath == "" {
		return
	}
	if err := settings.Save(a.settingsPath, s); err != nil {
		a.log().Warn("could not save settings", zap.String("path", a.settingsPath), zap.Error(err))
		return
	}
	a.log().Debug("settings saved", zap.String("path", a.settingsPath))
}

func (a *appState) modelStorageDir() (string, error) {
	dir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create model directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
