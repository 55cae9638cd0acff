// Package experiment drives the external voice model with different sampling
// parameters and records what came out.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

const (
	filePermissions = 0o600
	jsonIndent      = "  "
)

// Generation is the outcome of one synthesis call.
type Generation struct {
	Text           string              `json:"text,omitempty"`
	Parameters     core.SamplingParams `json:"parameters"`
	OutputFile     string              `json:"output_file,omitempty"`
	GenerationTime float64             `json:"generation_time"`
	Success        bool                `json:"success"`
	Error          string              `json:"error,omitempty"`
}

// Runner synthesizes requests one at a time and stores the audio under a
// single output directory.
type Runner struct {
	synth     core.Synthesizer
	outputDir string
	log       *logger.Logger
	since     func(time.Time) time.Duration
}

// NewRunner creates a Runner writing into outputDir.
func NewRunner(synth core.Synthesizer, outputDir string, log *logger.Logger) *Runner {
	return &Runner{
		synth:     synth,
		outputDir: outputDir,
		log:       log,
		since:     time.Since,
	}
}

// OutputDir returns the directory generated files are written to.
func (r *Runner) OutputDir() string {
	return r.outputDir
}

// generate runs one request and writes its audio to fileName. Model failures
// are recorded in the Generation rather than returned; only a cancelled
// context aborts.
func (r *Runner) generate(ctx context.Context, req core.SynthesisRequest, fileName string) (Generation, error) {
	result := Generation{Parameters: req.Params}

	err := ctx.Err()
	if err != nil {
		return result, fmt.Errorf("experiment interrupted: %w", err)
	}

	start := time.Now()
	audioData, err := r.synth.Synthesize(ctx, req)
	result.GenerationTime = r.since(start).Seconds()

	if err != nil {
		result.Error = err.Error()
		r.log.Error("Generation failed for %s: %v", fileName, err)

		if ctx.Err() != nil {
			return result, fmt.Errorf("experiment interrupted: %w", ctx.Err())
		}

		return result, nil
	}

	outputPath := filepath.Join(r.outputDir, fileName)

	err = os.WriteFile(outputPath, audioData, filePermissions)
	if err != nil {
		result.Error = err.Error()
		r.log.Error("Failed to write %s: %v", outputPath, err)

		return result, nil
	}

	result.OutputFile = outputPath
	result.Success = true
	r.log.Info("Generated %s in %.2fs", outputPath, result.GenerationTime)

	return result, nil
}

func (r *Runner) ensureOutputDir() error {
	return fsutil.EnsureDir(r.outputDir)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", jsonIndent)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	err = os.WriteFile(path, append(data, '\n'), filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
