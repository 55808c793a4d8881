package transcript

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleResult() Result {
	return Result{
		Language: "en",
		Segments: []Segment{
			{Start: 0, End: 1500 * time.Millisecond, Text: " Hello there."},
			{Start: 1500 * time.Millisecond, End: 3723*time.Second + 45*time.Millisecond, Text: " General\tKenobi."},
			{Start: 4 * time.Second, End: 5 * time.Second, Text: "   "},
		},
	}
}

func render(t *testing.T, format Format, result Result) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, format, result))
	return buf.String()
}

func TestWriteTXTJoinsSegments(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Hello there. General\tKenobi.\n", render(t, FormatTXT, sampleResult()))
}

func TestWriteTXTPrefersEngineText(t *testing.T) {
	t.Parallel()

	result := sampleResult()
	result.Text = "  engine text  "
	require.Equal(t, "engine text\n", render(t, FormatTXT, result))
}

func TestWriteTXTEmptyResult(t *testing.T) {
	t.Parallel()

	require.Empty(t, render(t, FormatTXT, Result{}))
}

func TestWriteSRT(t *testing.T) {
	t.Parallel()

	expected := "1\n00:00:00,000 --> 00:00:01,500\nHello there.\n\n" +
		"2\n00:00:01,500 --> 01:02:03,045\nGeneral\tKenobi.\n\n"
	require.Equal(t, expected, render(t, FormatSRT, sampleResult()))
}

func TestWriteVTT(t *testing.T) {
	t.Parallel()

	expected := "WEBVTT\n\n" +
		"00:00:00.000 --> 00:00:01.500\nHello there.\n\n" +
		"00:00:01.500 --> 01:02:03.045\nGeneral\tKenobi.\n\n"
	require.Equal(t, expected, render(t, FormatVTT, sampleResult()))
}

func TestWriteTSV(t *testing.T) {
	t.Parallel()

	expected := "start\tend\ttext\n0\t1500\tHello there.\n1500\t3723045\tGeneral Kenobi.\n"
	require.Equal(t, expected, render(t, FormatTSV, sampleResult()))
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var doc jsonDocument
	require.NoError(t, json.Unmarshal([]byte(render(t, FormatJSON, sampleResult())), &doc))
	require.Equal(t, "en", doc.Language)
	require.Equal(t, "Hello there. General\tKenobi.", doc.Text)
	require.Len(t, doc.Segments, 3)
	require.InDelta(t, 1.5, doc.Segments[0].End, 1e-9)
}

func TestWriteUnknownFormat(t *testing.T) {
	t.Parallel()

	err := Write(&bytes.Buffer{}, Format("docx"), sampleResult())
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestCueTextEscapesArrow(t *testing.T) {
	t.Parallel()

	result := Result{Segments: []Segment{{End: time.Second, Text: "a --> b"}}}
	require.Contains(t, render(t, FormatSRT, result), "a -> b")
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  Format
	}{
		{input: "txt", want: FormatTXT},
		{input: "SRT", want: FormatSRT},
		{input: ".vtt", want: FormatVTT},
		{input: " tsv ", want: FormatTSV},
		{input: "json", want: FormatJSON},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("docx")
	require.ErrorIs(t, err, ErrUnknownFormat)
}
