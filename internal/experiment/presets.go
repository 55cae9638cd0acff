package experiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

// Preset is a named set of sampling parameters.
type Preset struct {
	Name   string
	Params core.SamplingParams
}

// PresetResult is one preset applied to one text.
type PresetResult struct {
	Preset string `json:"preset"`
	Generation
}

// DefaultPresets returns the Conservative, Creative and Focused presets.
func DefaultPresets() []Preset {
	return []Preset{
		{Name: "Conservative", Params: core.SamplingParams{Temperature: 0.7, TopK: 50, RepetitionPenalty: 1.1}},
		{Name: "Creative", Params: core.SamplingParams{Temperature: 0.9, TopK: 100, RepetitionPenalty: 1.05}},
		{Name: "Focused", Params: core.SamplingParams{Temperature: 0.5, TopK: 20, RepetitionPenalty: 1.15}},
	}
}

// FindPreset looks a preset up by case-insensitive name.
func FindPreset(name string) (Preset, bool) {
	for _, preset := range DefaultPresets() {
		if strings.EqualFold(preset.Name, name) {
			return preset, true
		}
	}

	return Preset{}, false
}

// DefaultPresetTexts are the sentences synthesized by RunPresets.
func DefaultPresetTexts() []string {
	return []string{
		"Hello, this is a test of my voice cloning system.",
		"The weather is beautiful today, don't you think?",
		"I'm excited to see how well this voice cloning works!",
		"Technology keeps advancing at an incredible pace.",
	}
}

// PresetFileName returns output_<preset>_<n>.wav, n being 1-indexed.
func PresetFileName(preset string, n int) string {
	return fmt.Sprintf("output_%s_%d.wav", strings.ToLower(preset), n)
}

// RunPresets clones the voice in referenceAudio with every preset over every
// text. An empty referenceAudio uses the model's default speaker; a named one
// must exist.
func (r *Runner) RunPresets(
	ctx context.Context,
	referenceAudio string,
	presets []Preset,
	texts []string,
) ([]PresetResult, error) {
	if referenceAudio != "" && !fsutil.Exists(referenceAudio) {
		return nil, core.MissingPrecondition(referenceAudio, "run preprocess first")
	}

	err := r.ensureOutputDir()
	if err != nil {
		return nil, err
	}

	results := make([]PresetResult, 0, len(presets)*len(texts))

	for _, preset := range presets {
		err = preset.Params.Validate()
		if err != nil {
			return nil, fmt.Errorf("preset %s: %w", preset.Name, err)
		}

		r.log.Info("Testing %s configuration", preset.Name)

		for i, text := range texts {
			req := core.SynthesisRequest{Text: text, ReferenceAudio: referenceAudio, Params: preset.Params}

			generation, genErr := r.generate(ctx, req, PresetFileName(preset.Name, i+1))
			if genErr != nil {
				return nil, genErr
			}

			generation.Text = text
			results = append(results, PresetResult{Preset: preset.Name, Generation: generation})
		}
	}

	return results, nil
}
