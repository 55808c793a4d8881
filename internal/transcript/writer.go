package transcript

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

type jsonSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type jsonDocument struct {
	Text     string        `json:"text"`
	Language string        `json:"language,omitempty"`
	Segments []jsonSegment `json:"segments"`
}

// Write renders result in the given format.
func Write(w io.Writer, format Format, result Result) error {
	bw := bufio.NewWriter(w)

	var err error
	switch format {
	case FormatTXT:
		err = writeTXT(bw, result)
	case FormatSRT:
		err = writeCues(bw, result, ",", false)
	case FormatVTT:
		err = writeCues(bw, result, ".", true)
	case FormatTSV:
		err = writeTSV(bw, result)
	case FormatJSON:
		err = writeJSON(bw, result)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return err
	}

	return bw.Flush()
}

func writeTXT(w *bufio.Writer, result Result) error {
	text := result.FullText()
	if text == "" {
		return nil
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func writeCues(w *bufio.Writer, result Result, msSep string, vtt bool) error {
	if vtt {
		if _, err := fmt.Fprint(w, "WEBVTT\n\n"); err != nil {
			return err
		}
	}

	index := 0
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		index++

		if !vtt {
			if _, err := fmt.Fprintf(w, "%d\n", index); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s --> %s\n%s\n\n", formatTimestamp(seg.Start, msSep), formatTimestamp(seg.End, msSep), cueText(text)); err != nil {
			return err
		}
	}
	return nil
}

func writeTSV(w *bufio.Writer, result Result) error {
	if _, err := fmt.Fprint(w, "start\tend\ttext\n"); err != nil {
		return err
	}
	for _, seg := range result.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		text = strings.ReplaceAll(text, "\t", " ")
		text = strings.ReplaceAll(text, "\n", " ")
		if _, err := fmt.Fprintf(w, "%d\t%d\t%s\n", seg.Start.Milliseconds(), seg.End.Milliseconds(), text); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w *bufio.Writer, result Result) error {
	doc := jsonDocument{
		Text:     result.FullText(),
		Language: result.Language,
		Segments: make([]jsonSegment, 0, len(result.Segments)),
	}
	for i, seg := range result.Segments {
		doc.Segments = append(doc.Segments, jsonSegment{
			ID:    i,
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  seg.Text,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// cueText keeps "-->" out of cue payloads, which would end the cue early.
func cueText(text string) string {
	return strings.ReplaceAll(text, "-->", "->")
}

func formatTimestamp(d time.Duration, msSep string) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1_000
	ms -= seconds * 1_000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, seconds, msSep, ms)
}
