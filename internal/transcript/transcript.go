package transcript

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Format string

const (
	FormatTXT  Format = "txt"
	FormatSRT  Format = "srt"
	FormatVTT  Format = "vtt"
	FormatTSV  Format = "tsv"
	FormatJSON Format = "json"
)

func Formats() []Format {
	return []Format{FormatTXT, FormatSRT, FormatVTT, FormatTSV, FormatJSON}
}

func ParseFormat(value string) (Format, error) {
	normalized := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(value)), "."))
	for _, f := range Formats() {
		if f == normalized {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w %q (expected one of txt, srt, vtt, tsv, json)", ErrUnknownFormat, value)
}

// Extension is the file suffix, without the dot, written for this format.
func (f Format) Extension() string {
	return string(f)
}

type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type Result struct {
	Language string
	Text     string
	Segments []Segment
}

// FullText returns Text when the engine supplied it, otherwise the joined
// segment texts.
func (r Result) FullText() string {
	if strings.TrimSpace(r.Text) != "" {
		return strings.TrimSpace(r.Text)
	}

	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
