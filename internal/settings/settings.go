package settings

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fmueller/batchscribe/internal/platform"
	"github.com/fmueller/batchscribe/internal/transcript"
	"github.com/fmueller/batchscribe/internal/whisper"
)

var (
	ErrUnknownKey    = errors.New("unknown setting")
	ErrUnknownPreset = errors.New("unknown preset")
)

// Setting keys as stored in the settings file.
const (
	KeyModel             = "model"
	KeyLanguage          = "language"
	KeyTask              = "task"
	KeyOutputFormat      = "output_format"
	KeyTemperature       = "temperature"
	KeyBestOf            = "best_of"
	KeyBeamSize          = "beam_size"
	KeyFP16              = "fp16"
	KeyVerbose           = "verbose"
	KeyInputPaths        = "input_paths"
	KeyOutputDir         = "output_dir"
	KeyIncludeSubfolders = "include_subfolders"
	KeyAutoScroll        = "auto_scroll"
	KeySoundOnComplete   = "sound_on_complete"
)

const (
	DefaultModel        = "small"
	DefaultLanguage     = "Auto"
	DefaultTask         = "transcribe"
	DefaultOutputFormat = "txt"
	DefaultTemperature  = 0.0
	DefaultBestOf       = 5
	DefaultBeamSize     = 5
)

// Settings is the flat record persisted between runs.
type Settings struct {
	Model             string   `json:"model" yaml:"model"`
	Language          string   `json:"language" yaml:"language"`
	Task              string   `json:"task" yaml:"task"`
	OutputFormat      string   `json:"output_format" yaml:"output_format"`
	Temperature       float64  `json:"temperature" yaml:"temperature"`
	BestOf            int      `json:"best_of" yaml:"best_of"`
	BeamSize          int      `json:"beam_size" yaml:"beam_size"`
	FP16              bool     `json:"fp16" yaml:"fp16"`
	Verbose           bool     `json:"verbose" yaml:"verbose"`
	InputPaths        []string `json:"input_paths" yaml:"input_paths"`
	OutputDir         string   `json:"output_dir" yaml:"output_dir"`
	IncludeSubfolders bool     `json:"include_subfolders" yaml:"include_subfolders"`
	AutoScroll        bool     `json:"auto_scroll" yaml:"auto_scroll"`
	SoundOnComplete   bool     `json:"sound_on_complete" yaml:"sound_on_complete"`
}

func Default() Settings {
	return Settings{
		Model:           DefaultModel,
		Language:        DefaultLanguage,
		Task:            DefaultTask,
		OutputFormat:    DefaultOutputFormat,
		Temperature:     DefaultTemperature,
		BestOf:          DefaultBestOf,
		BeamSize:        DefaultBeamSize,
		Verbose:         true,
		InputPaths:      []string{},
		OutputDir:       platform.DefaultOutputDir(),
		AutoScroll:      true,
		SoundOnComplete: true,
	}
}

// Keys lists every setting in file order.
func Keys() []string {
	return []string{
		KeyModel, KeyLanguage, KeyTask, KeyOutputFormat, KeyTemperature,
		KeyBestOf, KeyBeamSize, KeyFP16, KeyVerbose, KeyInputPaths,
		KeyOutputDir, KeyIncludeSubfolders, KeyAutoScroll, KeySoundOnComplete,
	}
}

type Preset struct {
	Name        string
	Temperature float64
	BeamSize    int
	BestOf      int
}

var presets = []Preset{
	{Name: "fast", Temperature: 0.3, BeamSize: 1, BestOf: 1},
	{Name: "balanced", Temperature: 0.3, BeamSize: 5, BestOf: 1},
	{Name: "accurate", Temperature: 0.2, BeamSize: 10, BestOf: 1},
}

func Presets() []Preset {
	out := make([]Preset, len(presets))
	copy(out, presets)
	return out
}

func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.Name)
	}
	return names
}

func (s *Settings) ApplyPreset(name string) error {
	for _, p := range presets {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			s.Temperature = p.Temperature
			s.BeamSize = p.BeamSize
			s.BestOf = p.BestOf
			return nil
		}
	}
	return fmt.Errorf("%w %q (expected one of %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
}

// EngineLanguage maps "Auto" onto the empty language that asks the engine
// to detect it.
func (s Settings) EngineLanguage() string {
	lang := strings.TrimSpace(s.Language)
	if lang == "" || strings.EqualFold(lang, "auto") {
		return ""
	}
	return strings.ToLower(lang)
}

func (s Settings) Format() (transcript.Format, error) {
	return transcript.ParseFormat(s.OutputFormat)
}

func (s Settings) Validate() error {
	var errs []error

	if strings.TrimSpace(s.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	} else if err := whisper.CheckModelRef(s.Model); err != nil {
		errs = append(errs, err)
	}
	switch s.Task {
	case "transcribe", "translate":
	default:
		errs = append(errs, fmt.Errorf("task must be transcribe or translate, got %q", s.Task))
	}
	if _, err := s.Format(); err != nil {
		errs = append(errs, err)
	}
	if s.Temperature < 0 || s.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature must be within 0.0..1.0, got %v", s.Temperature))
	}
	if s.BestOf < 1 {
		errs = append(errs, fmt.Errorf("best_of must be at least 1, got %d", s.BestOf))
	}
	if s.BeamSize < 1 {
		errs = append(errs, fmt.Errorf("beam_size must be at least 1, got %d", s.BeamSize))
	}

	return errors.Join(errs...)
}

// Get renders a single setting the way Set accepts it.
func (s Settings) Get(key string) (string, error) {
	switch normalizeKey(key) {
	case KeyModel:
		return s.Model, nil
	case KeyLanguage:
		return s.Language, nil
	case KeyTask:
		return s.Task, nil
	case KeyOutputFormat:
		return s.OutputFormat, nil
	case KeyTemperature:
		return strconv.FormatFloat(s.Temperature, 'f', -1, 64), nil
	case KeyBestOf:
		return strconv.Itoa(s.BestOf), nil
	case KeyBeamSize:
		return strconv.Itoa(s.BeamSize), nil
	case KeyFP16:
		return strconv.FormatBool(s.FP16), nil
	case KeyVerbose:
		return strconv.FormatBool(s.Verbose), nil
	case KeyInputPaths:
		return strings.Join(s.InputPaths, string(filepath.ListSeparator)), nil
	case KeyOutputDir:
		return s.OutputDir, nil
	case KeyIncludeSubfolders:
		return strconv.FormatBool(s.IncludeSubfolders), nil
	case KeyAutoScroll:
		return strconv.FormatBool(s.AutoScroll), nil
	case KeySoundOnComplete:
		return strconv.FormatBool(s.SoundOnComplete), nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
}

// Set parses value for key. input_paths takes an OS path list.
func (s *Settings) Set(key, value string) error {
	return s.apply(normalizeKey(key), value)
}

func (s *Settings) apply(key string, value any) error {
	var err error
	switch key {
	case KeyModel:
		s.Model, err = asString(value)
	case KeyLanguage:
		s.Language, err = asString(value)
	case KeyTask:
		s.Task, err = asString(value)
	case KeyOutputFormat:
		s.OutputFormat, err = asString(value)
	case KeyTemperature:
		s.Temperature, err = asFloat(value)
	case KeyBestOf:
		s.BestOf, err = asInt(value)
	case KeyBeamSize:
		s.BeamSize, err = asInt(value)
	case KeyFP16:
		s.FP16, err = asBool(value)
	case KeyVerbose:
		s.Verbose, err = asBool(value)
	case KeyInputPaths:
		s.InputPaths, err = asPaths(value)
	case KeyOutputDir:
		s.OutputDir, err = asString(value)
	case KeyIncludeSubfolders:
		s.IncludeSubfolders, err = asBool(value)
	case KeyAutoScroll:
		s.AutoScroll, err = asBool(value)
	case KeySoundOnComplete:
		s.SoundOnComplete, err = asBool(value)
	default:
		return fmt.Errorf("%w %q", ErrUnknownKey, key)
	}
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(key)), "-", "_")
}

func asString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func asFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
}

func asInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, fmt.Errorf("expected integer, got %v", v)
		}
		return int(v), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(v))
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}

func asBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	default:
		return false, fmt.Errorf("expected boolean, got %T", value)
	}
}

func asPaths(value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return []string{}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected path string, got %T", item)
			}
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []string:
		return append([]string{}, v...), nil
	case string:
		out := []string{}
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of paths, got %T", value)
	}
}
