package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/core"
)

func TestSamplingParams_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  core.SamplingParams
		wantErr error
	}{
		{name: "zero values", params: core.SamplingParams{}},
		{
			name:   "typical",
			params: core.SamplingParams{Temperature: 0.7, TopK: 50, TopP: 0.9, RepetitionPenalty: 1.1, MaxNewTokens: 125},
		},
		{name: "negative temperature", params: core.SamplingParams{Temperature: -0.1}, wantErr: core.ErrTemperatureRange},
		{name: "negative top_k", params: core.SamplingParams{TopK: -1}, wantErr: core.ErrTopKRange},
		{name: "top_p above one", params: core.SamplingParams{TopP: 1.5}, wantErr: core.ErrTopPRange},
		{
			name:    "penalty below one",
			params:  core.SamplingParams{RepetitionPenalty: 0.9},
			wantErr: core.ErrRepetitionPenaltyRange,
		},
		{name: "negative tokens", params: core.SamplingParams{MaxNewTokens: -5}, wantErr: core.ErrMaxNewTokensRange},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := testCase.params.Validate()
			if testCase.wantErr == nil {
				assert.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}
