package whisper

import (
	"context"

	"github.com/fmueller/batchscribe/internal/transcript"
)

type Task string

const (
	TaskTranscribe Task = "transcribe"
	TaskTranslate  Task = "translate"
)

// TranscriptionRequest carries the decoding parameters handed to the engine
// for one audio file. An empty Language means auto detection.
type TranscriptionRequest struct {
	AudioPath   string
	ModelPath   string
	Language    string
	Task        Task
	Temperature float64
	BestOf      int
	BeamSize    int
	FP16        bool
	Verbose     bool
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (transcript.Result, error)
}
