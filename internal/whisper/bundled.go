package whisper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/fmueller/batchscribe/internal/platform"
	"github.com/fmueller/batchscribe/internal/transcript"
	"go.uber.org/zap"
)

const enginePathEnv = "BATCHSCRIBE_WHISPER_PATH"

type BundledEngine struct {
	Executable string
	Logger     *zap.Logger
}

func NewBundledEngine(logger *zap.Logger) (*BundledEngine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if override := strings.TrimSpace(os.Getenv(enginePathEnv)); override != "" {
		if err := ensureExecutable(override); err != nil {
			return nil, fmt.Errorf("%s is not executable: %w", enginePathEnv, err)
		}
		return &BundledEngine{Executable: override, Logger: logger}, nil
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve batchscribe executable path: %w", err)
	}

	enginePath, err := ResolveEnginePath(self, exec.LookPath)
	if err != nil {
		return nil, err
	}

	return &BundledEngine{Executable: enginePath, Logger: logger}, nil
}

// ResolveEnginePath looks for whisper-cli next to the batchscribe binary
// first and falls back to a PATH lookup.
func ResolveEnginePath(selfExecutable string, lookPath func(string) (string, error)) (string, error) {
	for _, candidate := range EnginePathCandidates(selfExecutable) {
		if err := ensureExecutable(candidate); err == nil {
			return candidate, nil
		}
	}

	if lookPath != nil {
		if found, err := lookPath(engineBinaryName()); err == nil {
			return found, nil
		}
	}

	return "", fmt.Errorf("whisper engine not found near %s or on PATH; install whisper-cli or set %s", selfExecutable, enginePathEnv)
}

func EnginePathCandidates(selfExecutable string) []string {
	binDir := filepath.Dir(selfExecutable)
	engineName := engineBinaryName()
	host := platform.CurrentRuntime()
	hostTarget := host.OS + "_" + host.Arch

	return []string{
		filepath.Join(binDir, "..", "libexec", "whisper", engineName),
		filepath.Join(binDir, "libexec", "whisper", engineName),
		filepath.Join(binDir, "packaging", "whisper", hostTarget, engineName),
		filepath.Join(binDir, engineName),
	}
}

func (b *BundledEngine) Transcribe(ctx context.Context, req TranscriptionRequest) (transcript.Result, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return transcript.Result{}, errors.New("audio path is required")
	}
	if strings.TrimSpace(req.ModelPath) == "" {
		return transcript.Result{}, errors.New("model path is required")
	}

	if err := ensureExecutable(b.Executable); err != nil {
		return transcript.Result{}, fmt.Errorf("whisper engine missing or not executable: %w", err)
	}

	workDir, err := os.MkdirTemp("", "batchscribe-")
	if err != nil {
		return transcript.Result{}, fmt.Errorf("create engine work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outBase := filepath.Join(workDir, "result")
	args := BuildArgs(req, outBase)

	logger := b.logger()
	cmd := exec.CommandContext(ctx, b.Executable, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if req.Verbose {
		lw := newLineLogger(logger.With(zap.String("audio", filepath.Base(req.AudioPath))))
		defer lw.Close()
		cmd.Stdout = lw
	} else {
		cmd.Stdout = io.Discard
	}

	logger.Debug("running whisper engine", zap.String("engine", b.Executable), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		errText := strings.TrimSpace(stderr.String())
		if isMissingSharedLibraryError(errText) {
			return transcript.Result{}, fmt.Errorf("whisper engine at %s is missing required shared libraries (%s); rebuild whisper-cli with BUILD_SHARED_LIBS=OFF", b.Executable, errText)
		}
		if isIllegalInstructionError(errText) || isIllegalInstructionError(err.Error()) {
			return transcript.Result{}, fmt.Errorf("whisper engine crashed with an illegal CPU instruction; "+
				"set %s to a whisper-cli binary built for your CPU", enginePathEnv)
		}
		return transcript.Result{}, fmt.Errorf("whisper transcribe failed: %w (%s)", err, lastLines(errText, 5))
	}

	content, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return transcript.Result{}, fmt.Errorf("read whisper output: %w", err)
	}

	return ParseEngineOutput(content)
}

// BuildArgs maps a request onto whisper-cli flags. Output is always requested
// as JSON so every transcript format can be rendered from segments.
func BuildArgs(req TranscriptionRequest, outBase string) []string {
	args := []string{"-m", req.ModelPath, "-f", req.AudioPath, "-oj", "-of", outBase}

	lang := strings.TrimSpace(req.Language)
	if lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}
	if req.Task == TaskTranslate {
		args = append(args, "-tr")
	}

	args = append(args, "-tp", strconv.FormatFloat(req.Temperature, 'f', -1, 64))
	if req.BestOf > 0 {
		args = append(args, "-bo", strconv.Itoa(req.BestOf))
	}
	if req.BeamSize > 0 {
		args = append(args, "-bs", strconv.Itoa(req.BeamSize))
	}
	if !req.FP16 {
		args = append(args, "-ng")
	}
	if !req.Verbose {
		args = append(args, "-np")
	}

	return args
}

type engineOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func ParseEngineOutput(content []byte) (transcript.Result, error) {
	var out engineOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return transcript.Result{}, fmt.Errorf("parse whisper output: %w", err)
	}

	result := transcript.Result{
		Language: out.Result.Language,
		Segments: make([]transcript.Segment, 0, len(out.Transcription)),
	}
	for _, entry := range out.Transcription {
		result.Segments = append(result.Segments, transcript.Segment{
			Start: time.Duration(entry.Offsets.From) * time.Millisecond,
			End:   time.Duration(entry.Offsets.To) * time.Millisecond,
			Text:  strings.TrimSpace(entry.Text),
		})
	}
	result.Text = result.FullText()

	return result, nil
}

func (b *BundledEngine) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// lineLogger forwards live decoding output, one log entry per line.
type lineLogger struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func newLineLogger(logger *zap.Logger) *lineLogger {
	pr, pw := io.Pipe()
	l := &lineLogger{pw: pw, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				logger.Info(line)
			}
		}
		_, _ = io.Copy(io.Discard, pr)
	}()

	return l
}

func (l *lineLogger) Write(p []byte) (int, error) {
	return l.pw.Write(p)
}

func (l *lineLogger) Close() error {
	err := l.pw.Close()
	<-l.done
	return err
}

func engineBinaryName() string {
	if runtime.GOOS == "windows" {
		return "whisper-cli.exe"
	}
	return "whisper-cli"
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}

func lastLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func isMissingSharedLibraryError(stderr string) bool {
	value := strings.ToLower(strings.TrimSpace(stderr))
	if value == "" {
		return false
	}

	for _, pattern := range []string{
		"error while loading shared libraries",
		"cannot open shared object file",
		"dyld: library not loaded",
		"image not found",
	} {
		if strings.Contains(value, pattern) {
			return true
		}
	}

	return false
}

func isIllegalInstructionError(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "illegal instruction")
}
