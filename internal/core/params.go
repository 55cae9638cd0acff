package core

import (
	"errors"
	"fmt"
)

var (
	// ErrTemperatureRange indicates a negative temperature.
	ErrTemperatureRange = errors.New("temperature must be >= 0.0")
	// ErrTopKRange indicates a negative top_k.
	ErrTopKRange = errors.New("top_k must be non-negative")
	// ErrTopPRange indicates that top_p is outside [0.0, 1.0].
	ErrTopPRange = errors.New("top_p must be between 0.0 and 1.0")
	// ErrRepetitionPenaltyRange indicates a penalty below 1.0, which would reward repetition.
	ErrRepetitionPenaltyRange = errors.New("repetition penalty must be >= 1.0")
	// ErrMaxNewTokensRange indicates a negative token budget.
	ErrMaxNewTokensRange = errors.New("max_new_tokens must be non-negative")
)

// Validate checks the ranges the voice model accepts. Zero values mean "use the
// model default" and are accepted, except for the repetition penalty, where 0
// is also treated as unset.
func (p SamplingParams) Validate() error {
	if p.Temperature < 0 {
		return fmt.Errorf("%w: got %f", ErrTemperatureRange, p.Temperature)
	}

	if p.TopK < 0 {
		return fmt.Errorf("%w: got %d", ErrTopKRange, p.TopK)
	}

	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("%w: got %f", ErrTopPRange, p.TopP)
	}

	if p.RepetitionPenalty != 0 && p.RepetitionPenalty < 1 {
		return fmt.Errorf("%w: got %f", ErrRepetitionPenaltyRange, p.RepetitionPenalty)
	}

	if p.MaxNewTokens < 0 {
		return fmt.Errorf("%w: got %d", ErrMaxNewTokensRange, p.MaxNewTokens)
	}

	return nil
}
