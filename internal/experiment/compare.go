package experiment

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
)

// ComparisonResultsFile is written into the output directory by Compare.
const ComparisonResultsFile = "comparison_results.json"

// ComparisonEntry is one generated comparison sample.
type ComparisonEntry struct {
	Text       string  `json:"text"`
	OutputFile string  `json:"output_file"`
	Similarity float64 `json:"similarity,omitempty"`
	Rating     string  `json:"rating,omitempty"`
}

// Comparison is the comparison_results.json document.
type Comparison struct {
	ComparisonDate   time.Time         `json:"comparison_date"`
	TestTexts        []string          `json:"test_texts"`
	ZeroShotResults  []ComparisonEntry `json:"zero_shot_results"`
	FinetunedResults []ComparisonEntry `json:"finetuned_results"`
}

// DefaultComparisonTexts are the sentences synthesized by Compare.
func DefaultComparisonTexts() []string {
	return []string{
		"This is a comparison test of voice quality.",
		"How well does the fine-tuned model perform?",
		"The goal is natural-sounding speech.",
		"Lightning AI provides excellent GPU resources.",
	}
}

// CompareOptions configures a zero-shot versus fine-tuned comparison.
type CompareOptions struct {
	Texts  []string
	Params core.SamplingParams
	// ReferenceAudio is passed to both models and, when set, every output is
	// scored against it.
	ReferenceAudio string
}

// Compare synthesizes every text with the zero-shot runner and, when finetuned
// is non-nil, with the fine-tuned one. Failed generations are logged and left
// out of the document. Results go to comparison_results.json in the zero-shot
// runner's output directory.
func Compare(ctx context.Context, zeroShot, finetuned *Runner, opts CompareOptions) (*Comparison, error) {
	var reference *audio.Waveform

	if opts.ReferenceAudio != "" {
		waveform, err := audio.Decode(opts.ReferenceAudio)
		if err != nil {
			return nil, err
		}

		reference = &waveform
	}

	runners := []*Runner{zeroShot}
	if finetuned != nil {
		runners = append(runners, finetuned)
	}

	for _, runner := range runners {
		err := runner.ensureOutputDir()
		if err != nil {
			return nil, err
		}
	}

	comparison := &Comparison{
		ComparisonDate:   time.Now(),
		TestTexts:        opts.Texts,
		ZeroShotResults:  []ComparisonEntry{},
		FinetunedResults: []ComparisonEntry{},
	}

	if finetuned == nil {
		zeroShot.log.Warn("Fine-tuned model not found, comparing zero-shot only")
	}

	for i, text := range opts.Texts {
		req := core.SynthesisRequest{Text: text, ReferenceAudio: opts.ReferenceAudio, Params: opts.Params}

		entry, ok, err := zeroShot.compareOne(ctx, req, fmt.Sprintf("zero_shot_test_%d.wav", i+1), reference)
		if err != nil {
			return nil, err
		}

		if ok {
			comparison.ZeroShotResults = append(comparison.ZeroShotResults, entry)
		}

		if finetuned == nil {
			continue
		}

		entry, ok, err = finetuned.compareOne(ctx, req, fmt.Sprintf("finetuned_test_%d.wav", i+1), reference)
		if err != nil {
			return nil, err
		}

		if ok {
			comparison.FinetunedResults = append(comparison.FinetunedResults, entry)
		}
	}

	err := writeJSON(filepath.Join(zeroShot.outputDir, ComparisonResultsFile), comparison)
	if err != nil {
		return nil, err
	}

	return comparison, nil
}

func (r *Runner) compareOne(
	ctx context.Context,
	req core.SynthesisRequest,
	fileName string,
	reference *audio.Waveform,
) (ComparisonEntry, bool, error) {
	generation, err := r.generate(ctx, req, fileName)
	if err != nil || !generation.Success {
		return ComparisonEntry{}, false, err
	}

	entry := ComparisonEntry{Text: req.Text, OutputFile: generation.OutputFile}
	if reference == nil {
		return entry, true, nil
	}

	score, err := scoreAgainst(*reference, generation.OutputFile)
	if err != nil {
		r.log.Warn("Could not score %s: %v", generation.OutputFile, err)

		return entry, true, nil
	}

	entry.Similarity = score.Similarity
	entry.Rating = score.Rating

	return entry, true, nil
}
