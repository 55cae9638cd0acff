// Package core defines the shared interfaces, request types and error kinds used
// across the voiceprep packages.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// SamplingParams are the generation controls passed through to the voice model.
// They are opaque to voiceprep beyond range validation.
type SamplingParams struct {
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p,omitempty"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	MaxNewTokens      int     `json:"max_new_tokens,omitempty"`
	Seed              int     `json:"seed,omitempty"`
}

// SynthesisRequest holds everything the voice model needs for one generation.
type SynthesisRequest struct {
	Text string
	// ReferenceAudio is an optional path to a speaker sample used for cloning.
	ReferenceAudio string
	Voice          string
	Params         SamplingParams
}

// Synthesizer is the external voice model. Implementations return WAV bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error)
}
