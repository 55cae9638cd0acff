package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"

	"github.com/book-expert/voiceprep/internal/core"
)

const (
	defaultBinary  = "chatllm"
	defaultVoice   = "default"
	tempFilePrefix = "voice-output-*.wav"
)

var (
	// ErrModelPathEmpty indicates that the model path is empty.
	ErrModelPathEmpty = errors.New("model path cannot be empty")
	// ErrSnacModelPathEmpty indicates that the SNAC model path is empty.
	ErrSnacModelPathEmpty = errors.New("snac model path cannot be empty")
	// ErrGPULayersNegative indicates a negative GPU layer count.
	ErrGPULayersNegative = errors.New("n_gpu_layers must be non-negative")
)

// CommandOptions configures the model binary.
type CommandOptions struct {
	BinaryPath    string
	ModelPath     string
	SnacModelPath string
	GPULayers     int
}

// CommandSynthesizer implements core.Synthesizer by running the model binary
// and reading the WAV it exports.
type CommandSynthesizer struct {
	opts CommandOptions
	log  *logger.Logger
}

// NewCommandSynthesizer validates opts and returns a CommandSynthesizer.
func NewCommandSynthesizer(opts CommandOptions, log *logger.Logger) (*CommandSynthesizer, error) {
	if opts.ModelPath == "" {
		return nil, ErrModelPathEmpty
	}

	if opts.SnacModelPath == "" {
		return nil, ErrSnacModelPathEmpty
	}

	if opts.GPULayers < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrGPULayersNegative, opts.GPULayers)
	}

	if opts.BinaryPath == "" {
		opts.BinaryPath = defaultBinary
	}

	return &CommandSynthesizer{opts: opts, log: log}, nil
}

// Args builds the command line for req, exporting to outputPath.
func (s *CommandSynthesizer) Args(req core.SynthesisRequest, outputPath string) []string {
	voice := req.Voice
	if voice == "" {
		voice = defaultVoice
	}

	args := []string{
		"-m", s.opts.ModelPath,
		"--snac_model", s.opts.SnacModelPath,
		"-p", fmt.Sprintf("{%s}: %s", voice, req.Text),
		"--tts_export", outputPath,
		"--seed", strconv.Itoa(req.Params.Seed),
		"-ngl", strconv.Itoa(s.opts.GPULayers),
		"--temp", fmt.Sprintf("%.2f", req.Params.Temperature),
	}

	if req.Params.TopK > 0 {
		args = append(args, "--top_k", strconv.Itoa(req.Params.TopK))
	}

	if req.Params.TopP > 0 {
		args = append(args, "--top_p", fmt.Sprintf("%.2f", req.Params.TopP))
	}

	if req.Params.RepetitionPenalty > 0 {
		args = append(args, "--repetition_penalty", fmt.Sprintf("%.2f", req.Params.RepetitionPenalty))
	}

	return args
}

// Synthesize implements core.Synthesizer. The binary has no cloning input, so a
// reference recording is ignored with a warning.
func (s *CommandSynthesizer) Synthesize(ctx context.Context, req core.SynthesisRequest) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	if req.ReferenceAudio != "" {
		s.log.Warn("Reference audio %s ignored by %s", req.ReferenceAudio, s.opts.BinaryPath)
	}

	tempFile, err := os.CreateTemp("", tempFilePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for voice output: %w", err)
	}

	_ = tempFile.Close()

	defer func() {
		removeErr := os.Remove(tempFile.Name())
		if removeErr != nil {
			s.log.Warn("Failed to remove temp file '%s': %v", tempFile.Name(), removeErr)
		}
	}()

	// #nosec G204 -- binary comes from configuration, parameters are validated
	cmd := exec.CommandContext(ctx, s.opts.BinaryPath, s.Args(req, tempFile.Name())...)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("%w: %s execution failed: %w - output: %s",
			core.ErrExternalDependency, s.opts.BinaryPath, err, string(output))
	}

	audioData, err := os.ReadFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data from temp file: %w", err)
	}

	if len(audioData) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrExternalDependency, ErrEmptyAudio)
	}

	return audioData, nil
}
