package audio_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/audio"
)

func TestAnalyze(t *testing.T) {
	t.Parallel()

	stats, err := audio.Analyze(audio.Waveform{Samples: []float64{1, -1, 1, -1}, SampleRate: 4})
	require.NoError(t, err)

	assert.InDelta(t, 0, stats.Mean, 1e-12)
	assert.InDelta(t, 1, stats.RMS, 1e-12)
	assert.InDelta(t, 1, stats.Max, 1e-12)
	assert.InDelta(t, -1, stats.Min, 1e-12)
	assert.InDelta(t, 1, stats.ZeroCrossingRate, 1e-12)
	assert.InDelta(t, 1, stats.DurationSeconds, 1e-12)
	assert.InDelta(t, 1, stats.Std, 1e-12)

	_, err = audio.Analyze(audio.Waveform{SampleRate: 24000})
	require.ErrorIs(t, err, audio.ErrEmptyAudio)
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	reference := sine(220, 0.3, 0, 24000, 1)

	same, err := audio.Similarity(reference, reference)
	require.NoError(t, err)
	assert.InDelta(t, 1, same, 1e-9)

	louder := sine(220, 0.6, 0, 48000, 1)
	scaled, err := audio.Similarity(reference, louder)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	noise := make([]float64, 24000)
	for i := range noise {
		noise[i] = rng.Float64()*2 - 1
	}

	different, err := audio.Similarity(reference, audio.Waveform{Samples: noise, SampleRate: 24000})
	require.NoError(t, err)

	assert.Greater(t, scaled, different)

	_, err = audio.Similarity(reference, audio.Waveform{SampleRate: 24000})
	require.ErrorIs(t, err, audio.ErrEmptyAudio)
}

func TestSpectralFeatures_ShortInputIsPadded(t *testing.T) {
	t.Parallel()

	features, err := audio.SpectralFeatures(sine(1000, 0.5, 0, 24000, 0.01))
	require.NoError(t, err)
	assert.Len(t, features, 15)
}

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1, audio.CosineSimilarity([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.InDelta(t, 0, audio.CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.Zero(t, audio.CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, audio.CosineSimilarity([]float64{1}, []float64{1, 1}))
}

func TestRate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, audio.RatingExcellent, audio.Rate(0.81))
	assert.Equal(t, audio.RatingGood, audio.Rate(0.8))
	assert.Equal(t, audio.RatingGood, audio.Rate(0.61))
	assert.Equal(t, audio.RatingNeedsImprovement, audio.Rate(0.6))
}
