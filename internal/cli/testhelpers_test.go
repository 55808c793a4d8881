package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/fmueller/batchscribe/internal/notify"
	"github.com/fmueller/batchscribe/internal/settings"
	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/fmueller/batchscribe/internal/whisper"
	"github.com/stretchr/testify/require"
)

// runCommand runs the real root command against a throwaway settings file.
func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "settings.json")))

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type stubEngine struct {
	mu     sync.Mutex
	calls  []whisper.TranscriptionRequest
	result transcript.Result
	err    error
}

func (s *stubEngine) Transcribe(_ context.Context, req whisper.TranscriptionRequest) (transcript.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.err != nil {
		return transcript.Result{}, s.err
	}
	if s.result.Text == "" && len(s.result.Segments) == 0 {
		return transcript.Result{Text: "heard " + filepath.Base(req.AudioPath)}, nil
	}
	return s.result, nil
}

func (s *stubEngine) sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, filepath.Base(c.AudioPath))
	}
	return out
}

type testApp struct {
	*appState
	engine      *stubEngine
	config      string
	prepares    int
	completions []string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ta := &testApp{
		appState: newAppState(),
		engine:   &stubEngine{},
		config:   filepath.Join(t.TempDir(), "settings.json"),
	}
	ta.engineFn = func(context.Context, settings.Settings) (whisper.Engine, string, error) {
		ta.prepares++
		return ta.engine, "model.bin", nil
	}
	ta.notifier = &notify.Notifier{
		Notify: func(_, message string) error {
			ta.completions = append(ta.completions, message)
			return nil
		},
	}
	ta.signals = &fakeSignals{}
	return ta
}

func (ta *testApp) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(ta.appState)
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--config", ta.config, "--no-progress"))

	err := cmd.Execute()
	return out.String(), err
}

func (ta *testApp) saved(t *testing.T) settings.Settings {
	t.Helper()

	s, err := settings.Read(ta.config)
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, path string, content []byte) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}
