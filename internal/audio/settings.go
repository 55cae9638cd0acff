// Package audio provides waveform decoding, normalization, encoding and analysis
// for voice-cloning datasets.
package audio

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Defaults shared by every normalization path.
const (
	DEFAULT_SAMPLE_RATE          = 24000
	DEFAULT_MAX_DURATION_SECONDS = 15
	DEFAULT_TARGET_RMS           = 0.1
)

// Validation limits.
const (
	MAX_SAMPLE_RATE = 192000
	MAX_TARGET_RMS  = 1.0
)

const (
	ERR_FMT_SAMPLE_RATE_RANGE  = "%w: sample rate must be between 1 and %d Hz, got %d"
	ERR_FMT_MAX_DURATION       = "%w: max duration must be positive, got %s"
	ERR_FMT_TARGET_RMS_RANGE   = "%w: target rms must be in (0, %.1f], got %f"
	ERR_FMT_UNSUPPORTED_FORMAT = "%w: %q"
)

// Common errors for the audio package.
var (
	ErrInvalidSettings   = errors.New("invalid audio settings")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyAudio        = errors.New("audio contains no samples")
)

// Format represents a supported audio container.
type Format string

const (
	FORMAT_WAV Format = "wav"
	FORMAT_MP3 Format = "mp3"
	FORMAT_M4A Format = "m4a"
	FORMAT_OGG Format = "ogg"
)

// FormatOf returns the container implied by the file extension.
func FormatOf(path string) Format {
	return Format(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
}

// Settings controls normalization. It replaces the rate, duration and level
// literals that used to be repeated in every script.
type Settings struct {
	SampleRate     int
	MaxDuration    time.Duration
	TargetRMS      float64
	RemoveDCOffset bool
}

// DefaultSettings returns 24 kHz, 15 s, 0.1 RMS without DC-offset removal.
func DefaultSettings() Settings {
	return Settings{
		SampleRate:     DEFAULT_SAMPLE_RATE,
		MaxDuration:    DEFAULT_MAX_DURATION_SECONDS * time.Second,
		TargetRMS:      DEFAULT_TARGET_RMS,
		RemoveDCOffset: false,
	}
}

// MaxSamples is the truncation length at the target rate.
func (s Settings) MaxSamples() int {
	return int(s.MaxDuration.Seconds() * float64(s.SampleRate))
}

// Validate checks that the settings are usable.
func (s Settings) Validate() error {
	if s.SampleRate <= 0 || s.SampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(ERR_FMT_SAMPLE_RATE_RANGE, ErrInvalidSettings, MAX_SAMPLE_RATE, s.SampleRate)
	}

	if s.MaxDuration <= 0 {
		return fmt.Errorf(ERR_FMT_MAX_DURATION, ErrInvalidSettings, s.MaxDuration)
	}

	if s.TargetRMS <= 0 || s.TargetRMS > MAX_TARGET_RMS {
		return fmt.Errorf(ERR_FMT_TARGET_RMS_RANGE, ErrInvalidSettings, MAX_TARGET_RMS, s.TargetRMS)
	}

	return nil
}

// Waveform is a mono signal with amplitudes nominally in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform.
func (w Waveform) Duration() time.Duration {
	return time.Duration(w.Seconds() * float64(time.Second))
}

// Seconds returns the length of the waveform in seconds.
func (w Waveform) Seconds() float64 {
	if w.SampleRate <= 0 {
		return 0
	}

	return float64(len(w.Samples)) / float64(w.SampleRate)
}
