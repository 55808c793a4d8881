package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const consoleTimeLayout = "2006-01-02 15:04:05"

type Options struct {
	Verbose bool
	JSON    bool
}

// New builds the process logger. Console output carries a wall-clock
// timestamp on every line; JSON output uses the production encoder.
func New(opts Options) (*zap.Logger, error) {
	return Config(opts).Build()
}

func Config(opts Options) zap.Config {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	var cfg zap.Config
	if opts.JSON {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(consoleTimeLayout)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeCaller = nil
	}

	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = !opts.Verbose
	cfg.Sampling = nil

	return cfg
}
