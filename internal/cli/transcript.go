package cli

import (
	"regexp"
	"strings"

	"github.com/fmueller/batchscribe/internal/transcript"
)

const blankAudioToken = "[BLANK_AUDIO]"

var blankAudioPattern = regexp.MustCompile(`(?i)\[BLANK_AUDIO\]`)

func isBlankTranscript(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, blankAudioToken)
}

// dropBlankSegments removes the engine's silence markers so they never end
// up in subtitles or plain text. Text is rebuilt from the kept segments.
func dropBlankSegments(result transcript.Result) transcript.Result {
	if len(result.Segments) == 0 {
		result.Text = strings.Join(strings.Fields(blankAudioPattern.ReplaceAllString(result.Text, " ")), " ")
		return result
	}

	kept := make([]transcript.Segment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		if isBlankTranscript(seg.Text) {
			continue
		}
		kept = append(kept, seg)
	}

	result.Segments = kept
	result.Text = transcript.Result{Segments: kept}.FullText()
	return result
}

func noSpeechHint() string {
	return "No speech detected. Check that the file contains audible speech and that --language matches it."
}
