package audio

import (
	"fmt"
	"math"

	"github.com/book-expert/logger"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Log messages.
const (
	logFmtProcessing = "Processing audio: %s"
	logFmtOriginal   = "Original: %dHz, %.2fs"
	logFmtResampled  = "Resampled to: %dHz"
	logFmtTrimmed    = "Trimmed to: %.2fs"
	logFmtSilent     = "Input is silent, RMS scaling skipped: %s"
	logFmtSaved      = "Saved normalized audio: %s"
)

// RMS returns the root-mean-square amplitude, or 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}

	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}

// Normalize resamples, truncates, optionally removes DC offset, and scales the
// waveform to the target RMS. Silent input is returned unscaled. The input
// waveform is not modified.
func Normalize(waveform Waveform, settings Settings) Waveform {
	samples := Resample(waveform.Samples, waveform.SampleRate, settings.SampleRate)

	maxSamples := settings.MaxSamples()
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}

	if settings.RemoveDCOffset && len(samples) > 0 {
		floats.AddConst(-stat.Mean(samples, nil), samples)
	}

	rms := RMS(samples)
	if rms > 0 {
		floats.Scale(settings.TargetRMS/rms, samples)
	}

	return Waveform{Samples: samples, SampleRate: settings.SampleRate}
}

// Normalizer applies Normalize to files on disk.
type Normalizer struct {
	settings Settings
	log      *logger.Logger
}

// NewNormalizer validates the settings and returns a Normalizer.
func NewNormalizer(settings Settings, log *logger.Logger) (*Normalizer, error) {
	err := settings.Validate()
	if err != nil {
		return nil, err
	}

	return &Normalizer{settings: settings, log: log}, nil
}

// Settings returns the settings the normalizer was built with.
func (n *Normalizer) Settings() Settings {
	return n.settings
}

// ProcessFile decodes inputPath, normalizes it and writes outputPath. A missing
// input yields core.ErrMissingPrecondition; undecodable input yields
// core.ErrDecode carrying the decoder's message.
func (n *Normalizer) ProcessFile(inputPath, outputPath string) (Waveform, error) {
	n.log.Info(logFmtProcessing, inputPath)

	original, err := Decode(inputPath)
	if err != nil {
		return Waveform{}, err
	}

	n.log.Info(logFmtOriginal, original.SampleRate, original.Seconds())

	normalized := Normalize(original, n.settings)

	if original.SampleRate != n.settings.SampleRate {
		n.log.Info(logFmtResampled, n.settings.SampleRate)
	}

	if resampledLength(len(original.Samples), original.SampleRate, n.settings.SampleRate) > len(normalized.Samples) {
		n.log.Info(logFmtTrimmed, normalized.Seconds())
	}

	if RMS(normalized.Samples) == 0 {
		n.log.Warn(logFmtSilent, inputPath)
	}

	err = Encode(outputPath, normalized)
	if err != nil {
		return Waveform{}, fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	n.log.Info(logFmtSaved, outputPath)

	return normalized, nil
}
