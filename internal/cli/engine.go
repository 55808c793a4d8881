package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fmueller/batchscribe/internal/audio"
	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/fmueller/batchscribe/internal/whisper"
	"go.uber.org/zap"
)

// gatedEngine wraps the real engine: silent WAV files never reach it, and
// blank-audio markers are stripped from what comes back.
type gatedEngine struct {
	next          whisper.Engine
	silenceGate   bool
	thresholdDBFS float64
	logger        *zap.Logger
}

func (g *gatedEngine) Transcribe(ctx context.Context, req whisper.TranscriptionRequest) (transcript.Result, error) {
	if g.silenceGate && strings.EqualFold(filepath.Ext(req.AudioPath), ".wav") {
		silent, metrics, err := audio.IsSilentWAV(req.AudioPath, g.thresholdDBFS)
		switch {
		case err != nil:
			g.log().Debug("silence gate skipped", zap.String("file", req.AudioPath), zap.Error(err))
		case silent:
			g.log().Warn(noSpeechHint(),
				zap.String("file", req.AudioPath),
				zap.Float64("rms_dbfs", metrics.RMSdBFS),
				zap.Float64("peak_dbfs", metrics.PeakdBFS),
				zap.Float64("threshold_dbfs", g.thresholdDBFS),
			)
			return transcript.Result{}, nil
		}
	}

	result, err := g.next.Transcribe(ctx, req)
	if err != nil {
		return transcript.Result{}, err
	}

	result = dropBlankSegments(result)
	if isBlankTranscript(result.FullText()) {
		g.log().Warn(noSpeechHint(), zap.String("file", req.AudioPath))
	}
	return result, nil
}

func (g *gatedEngine) log() *zap.Logger {
	if g.logger == nil {
		return zap.NewNop()
	}
	return g.logger
}
