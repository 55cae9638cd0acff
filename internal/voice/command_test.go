package voice_test

import (
	"context"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/voice"
)

func TestNewCommandSynthesizer_Validation(t *testing.T) {
	t.Parallel()

	_, err := voice.NewCommandSynthesizer(voice.CommandOptions{SnacModelPath: "snac"}, nil)
	require.ErrorIs(t, err, voice.ErrModelPathEmpty)

	_, err = voice.NewCommandSynthesizer(voice.CommandOptions{ModelPath: "model"}, nil)
	require.ErrorIs(t, err, voice.ErrSnacModelPathEmpty)

	_, err = voice.NewCommandSynthesizer(
		voice.CommandOptions{ModelPath: "model", SnacModelPath: "snac", GPULayers: -1}, nil)
	require.ErrorIs(t, err, voice.ErrGPULayersNegative)
}

func TestCommandSynthesizer_Args(t *testing.T) {
	t.Parallel()

	synth, err := voice.NewCommandSynthesizer(
		voice.CommandOptions{ModelPath: "orpheus.bin", SnacModelPath: "snac.bin", GPULayers: 20}, nil)
	require.NoError(t, err)

	args := synth.Args(core.SynthesisRequest{
		Text:   "Good morning.",
		Voice:  "tara",
		Params: core.SamplingParams{Temperature: 0.5, TopK: 20, RepetitionPenalty: 1.15, Seed: 7},
	}, "/tmp/out.wav")

	assert.Equal(t, []string{
		"-m", "orpheus.bin",
		"--snac_model", "snac.bin",
		"-p", "{tara}: Good morning.",
		"--tts_export", "/tmp/out.wav",
		"--seed", "7",
		"-ngl", "20",
		"--temp", "0.50",
		"--top_k", "20",
		"--repetition_penalty", "1.15",
	}, args)

	defaults := synth.Args(core.SynthesisRequest{Text: "Hi."}, "out.wav")
	assert.Contains(t, defaults, "{default}: Hi.")
	assert.NotContains(t, defaults, "--top_k")
}

func TestCommandSynthesizer_BinaryFailure(t *testing.T) {
	t.Parallel()

	log, err := logger.New(t.TempDir(), "voice-test.log")
	require.NoError(t, err)
	defer log.Close()

	synth, err := voice.NewCommandSynthesizer(voice.CommandOptions{
		BinaryPath:    "/nonexistent/voiceprep-model-binary",
		ModelPath:     "m",
		SnacModelPath: "s",
	}, log)
	require.NoError(t, err)

	_, err = synth.Synthesize(context.Background(), core.SynthesisRequest{Text: "Hello."})
	require.ErrorIs(t, err, core.ErrExternalDependency)

	_, err = synth.Synthesize(context.Background(), core.SynthesisRequest{})
	require.ErrorIs(t, err, voice.ErrTextEmpty)
}
