package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

const (
	wavFormatPCM = 1
	bufferFrames = 4096
)

type SilenceMetrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
	Duration time.Duration
}

// IsSilentWAV reports whether the WAV file at path stays below thresholdDBFS.
// Peaks may exceed the threshold by 6 dB before the file counts as audible.
func IsSilentWAV(path string, thresholdDBFS float64) (bool, SilenceMetrics, error) {
	metrics, err := AnalyzeWAV(path)
	if err != nil {
		return false, SilenceMetrics{}, err
	}

	if metrics.Samples == 0 {
		return true, metrics, nil
	}

	if math.IsInf(metrics.RMSdBFS, -1) && math.IsInf(metrics.PeakdBFS, -1) {
		return true, metrics, nil
	}

	peakGate := thresholdDBFS + 6
	return metrics.RMSdBFS <= thresholdDBFS && metrics.PeakdBFS <= peakGate, metrics, nil
}

func AnalyzeWAV(path string) (SilenceMetrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return SilenceMetrics{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return SilenceMetrics{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return SilenceMetrics{}, fmt.Errorf("%w: audio format %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	scale, offset, err := sampleScale(int(dec.BitDepth))
	if err != nil {
		return SilenceMetrics{}, err
	}

	format := dec.Format()
	buf := &goaudio.IntBuffer{Format: format, Data: make([]int, bufferFrames*max(format.NumChannels, 1))}

	var (
		peak       float64
		sumSquares float64
		samples    int64
	)
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			return SilenceMetrics{}, fmt.Errorf("read wav samples: %w", err)
		}
		if n == 0 {
			break
		}

		for _, raw := range buf.Data[:n] {
			value := float64(raw-offset) / scale
			if abs := math.Abs(value); abs > peak {
				peak = abs
			}
			sumSquares += value * value
		}
		samples += int64(n)

		if err != nil {
			break
		}
	}

	metrics := SilenceMetrics{Samples: samples}
	if rate := int64(format.SampleRate) * int64(max(format.NumChannels, 1)); rate > 0 {
		metrics.Duration = time.Duration(samples) * time.Second / time.Duration(rate)
	}

	if samples == 0 {
		metrics.RMSdBFS = math.Inf(-1)
		metrics.PeakdBFS = math.Inf(-1)
		return metrics, nil
	}

	metrics.RMSdBFS = amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples)))
	metrics.PeakdBFS = amplitudeToDBFS(peak)
	return metrics, nil
}

// sampleScale returns the full-scale divisor and the zero offset for integer
// PCM at the given bit depth. 8-bit PCM is unsigned and centered on 128.
func sampleScale(bitDepth int) (float64, int, error) {
	switch bitDepth {
	case 8:
		return 128.0, 128, nil
	case 16:
		return 32768.0, 0, nil
	case 24:
		return 8388608.0, 0, nil
	case 32:
		return 2147483648.0, 0, nil
	default:
		return 0, 0, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bitDepth)
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
