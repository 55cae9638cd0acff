package experiment_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/experiment"
)

var errMockSynthesis = errors.New("mock synthesis error")

const (
	referenceHz = 220.0
	otherHz     = 3000.0
)

func toneWAV(t *testing.T, hz float64) []byte {
	t.Helper()

	samples := make([]float64, audio.DEFAULT_SAMPLE_RATE/2)
	for i := range samples {
		samples[i] = 0.3 * math.Sin(2*math.Pi*hz*float64(i)/audio.DEFAULT_SAMPLE_RATE)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	require.NoError(t, audio.Encode(path, audio.Waveform{Samples: samples, SampleRate: audio.DEFAULT_SAMPLE_RATE}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return data
}

type mockSynthesizer struct {
	mu       sync.Mutex
	requests []core.SynthesisRequest
	fail     func(core.SynthesisRequest) bool
	audioFor func(core.SynthesisRequest) []byte
}

func (m *mockSynthesizer) Synthesize(_ context.Context, req core.SynthesisRequest) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if m.fail != nil && m.fail(req) {
		return nil, errMockSynthesis
	}

	return m.audioFor(req), nil
}

func newMock(t *testing.T) *mockSynthesizer {
	t.Helper()

	data := toneWAV(t, referenceHz)

	return &mockSynthesizer{audioFor: func(core.SynthesisRequest) []byte { return data }}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "experiment-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func TestSweep_FileNameAndParams(t *testing.T) {
	t.Parallel()

	sweeps := experiment.DefaultSweeps()
	require.Len(t, sweeps, 3)

	assert.Equal(t, "experiment_temperature_test_temperature_0.3.wav", sweeps[0].FileName(0.3))
	assert.Equal(t, "experiment_top_k_test_top_k_10.wav", sweeps[1].FileName(10))
	assert.Equal(t, "experiment_repetition_penalty_test_repetition_penalty_1.0.wav", sweeps[2].FileName(1.0))
	assert.Equal(t, "experiment_repetition_penalty_test_repetition_penalty_1.05.wav", sweeps[2].FileName(1.05))

	params, err := sweeps[1].Params(75)
	require.NoError(t, err)
	assert.Equal(t, core.SamplingParams{Temperature: 0.7, TopK: 75, RepetitionPenalty: 1.1}, params)

	_, err = experiment.Sweep{Name: "x", Variable: "volume"}.Params(1)
	require.ErrorIs(t, err, experiment.ErrUnknownVariable)

	_, err = experiment.Sweep{Name: "x", Variable: experiment.VariableRepetitionPenalty}.Params(0.5)
	require.ErrorIs(t, err, core.ErrRepetitionPenaltyRange)
}

func TestRunSweeps(t *testing.T) {
	t.Parallel()

	mock := newMock(t)
	mock.fail = func(req core.SynthesisRequest) bool { return req.Params.Temperature == 0.9 }

	outputDir := filepath.Join(t.TempDir(), "outputs")
	runner := experiment.NewRunner(mock, outputDir, newTestLogger(t))

	results, err := runner.RunSweeps(context.Background(), experiment.DefaultSweepText, experiment.DefaultSweeps())
	require.NoError(t, err)
	require.Len(t, mock.requests, 15)
	assert.Equal(t, experiment.DefaultSweepText, mock.requests[0].Text)

	temperature := results["temperature_test"]
	require.Len(t, temperature, 5)
	assert.True(t, temperature[0].Success)
	assert.Equal(t, filepath.Join(outputDir, "experiment_temperature_test_temperature_0.3.wav"), temperature[0].OutputFile)
	assert.FileExists(t, temperature[0].OutputFile)
	assert.False(t, temperature[3].Success)
	assert.Contains(t, temperature[3].Error, "mock synthesis error")
	assert.Empty(t, temperature[3].OutputFile)
	assert.GreaterOrEqual(t, temperature[0].GenerationTime, 0.0)

	assert.Len(t, results["top_k_test"], 5)
	assert.Len(t, results["repetition_penalty_test"], 5)

	loaded, err := experiment.LoadSweepResults(filepath.Join(outputDir, experiment.SweepResultsFile))
	require.NoError(t, err)
	assert.Equal(t, results["top_k_test"][4].Parameters, loaded["top_k_test"][4].Parameters)
	assert.False(t, loaded["temperature_test"][3].Success)
}

func TestRunSweeps_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := experiment.NewRunner(newMock(t), t.TempDir(), newTestLogger(t))

	_, err := runner.RunSweeps(ctx, "text", experiment.DefaultSweeps())
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadSweepResults_Missing(t *testing.T) {
	t.Parallel()

	_, err := experiment.LoadSweepResults(filepath.Join(t.TempDir(), experiment.SweepResultsFile))
	require.ErrorIs(t, err, core.ErrMissingPrecondition)
}

func TestRunPresets(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reference := filepath.Join(dir, "reference.wav")
	require.NoError(t, os.WriteFile(reference, toneWAV(t, referenceHz), 0o600))

	mock := newMock(t)
	runner := experiment.NewRunner(mock, filepath.Join(dir, "outputs"), newTestLogger(t))

	results, err := runner.RunPresets(context.Background(), reference, experiment.DefaultPresets(),
		experiment.DefaultPresetTexts())
	require.NoError(t, err)
	require.Len(t, results, 12)

	assert.Equal(t, "Conservative", results[0].Preset)
	assert.Equal(t, filepath.Join(dir, "outputs", "output_conservative_1.wav"), results[0].OutputFile)
	assert.Equal(t, "Focused", results[11].Preset)
	assert.Equal(t, filepath.Join(dir, "outputs", "output_focused_4.wav"), results[11].OutputFile)
	assert.Equal(t, experiment.DefaultPresetTexts()[3], results[11].Text)

	for _, req := range mock.requests {
		assert.Equal(t, reference, req.ReferenceAudio)
	}

	assert.Equal(t, core.SamplingParams{Temperature: 0.9, TopK: 100, RepetitionPenalty: 1.05}, mock.requests[4].Params)
}

func TestRunPresets_MissingReference(t *testing.T) {
	t.Parallel()

	runner := experiment.NewRunner(newMock(t), t.TempDir(), newTestLogger(t))

	_, err := runner.RunPresets(context.Background(), filepath.Join(t.TempDir(), "absent.wav"),
		experiment.DefaultPresets(), experiment.DefaultPresetTexts())
	require.ErrorIs(t, err, core.ErrMissingPrecondition)
}

func TestFindPreset(t *testing.T) {
	t.Parallel()

	preset, ok := experiment.FindPreset("focused")
	require.True(t, ok)
	assert.Equal(t, 20, preset.Params.TopK)

	_, ok = experiment.FindPreset("loud")
	assert.False(t, ok)
}

func TestCompare(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	outputDir := filepath.Join(dir, "outputs")
	reference := filepath.Join(dir, "reference.wav")
	require.NoError(t, os.WriteFile(reference, toneWAV(t, referenceHz), 0o600))

	zeroShot := newMock(t)
	zeroShot.fail = func(req core.SynthesisRequest) bool {
		return req.Text == experiment.DefaultComparisonTexts()[1]
	}

	finetuned := newMock(t)
	log := newTestLogger(t)

	comparison, err := experiment.Compare(context.Background(),
		experiment.NewRunner(zeroShot, outputDir, log),
		experiment.NewRunner(finetuned, outputDir, log),
		experiment.CompareOptions{
			Texts:          experiment.DefaultComparisonTexts(),
			Params:         core.SamplingParams{Temperature: 0.7, TopK: 50, RepetitionPenalty: 1.1},
			ReferenceAudio: reference,
		})
	require.NoError(t, err)

	require.Len(t, comparison.ZeroShotResults, 3)
	require.Len(t, comparison.FinetunedResults, 4)
	assert.Equal(t, filepath.Join(outputDir, "zero_shot_test_1.wav"), comparison.ZeroShotResults[0].OutputFile)
	assert.Equal(t, filepath.Join(outputDir, "zero_shot_test_3.wav"), comparison.ZeroShotResults[1].OutputFile)
	assert.Equal(t, filepath.Join(outputDir, "finetuned_test_4.wav"), comparison.FinetunedResults[3].OutputFile)
	assert.InDelta(t, 1.0, comparison.FinetunedResults[0].Similarity, 1e-6)
	assert.Equal(t, audio.RatingExcellent, comparison.FinetunedResults[0].Rating)

	assert.FileExists(t, filepath.Join(outputDir, experiment.ComparisonResultsFile))
}

func TestCompare_WithoutFinetuned(t *testing.T) {
	t.Parallel()

	outputDir := t.TempDir()

	comparison, err := experiment.Compare(context.Background(),
		experiment.NewRunner(newMock(t), outputDir, newTestLogger(t)), nil,
		experiment.CompareOptions{Texts: experiment.DefaultComparisonTexts()})
	require.NoError(t, err)

	assert.Len(t, comparison.ZeroShotResults, 4)
	assert.Empty(t, comparison.FinetunedResults)
	assert.Zero(t, comparison.ZeroShotResults[0].Similarity)
	assert.NoFileExists(t, filepath.Join(outputDir, "finetuned_test_1.wav"))
}

func TestBestParametersAndReport(t *testing.T) {
	t.Parallel()

	matching := toneWAV(t, referenceHz)
	other := toneWAV(t, otherHz)

	mock := &mockSynthesizer{audioFor: func(req core.SynthesisRequest) []byte {
		if req.Params.Temperature == 0.5 || req.Params.TopK == 25 || req.Params.RepetitionPenalty == 1.15 {
			return matching
		}

		return other
	}}

	dir := t.TempDir()
	runner := experiment.NewRunner(mock, dir, newTestLogger(t))
	sweeps := experiment.DefaultSweeps()

	results, err := runner.RunSweeps(context.Background(), "text", sweeps)
	require.NoError(t, err)

	referencePath := filepath.Join(dir, "reference.wav")
	require.NoError(t, os.WriteFile(referencePath, matching, 0o600))

	reference, err := audio.Decode(referencePath)
	require.NoError(t, err)

	best := experiment.BestParameters(reference, sweeps, results)
	assert.InDelta(t, 0.5, best.BestTemperature, 1e-9)
	assert.Equal(t, 25, best.BestTopK)
	assert.InDelta(t, 1.15, best.BestRepetitionPenalty, 1e-9)

	score, err := experiment.ScoreFiles(referencePath, results["temperature_test"][1].OutputFile)
	require.NoError(t, err)
	assert.Equal(t, audio.RatingExcellent, score.Rating)

	report := experiment.NewReport("orpheus-3b-0.1-ft", &score, best)
	assert.True(t, report.TestResults.ZeroShotCloning.Success)
	assert.InDelta(t, score.Similarity, report.TestResults.ZeroShotCloning.QualityScore, 1e-12)
	assert.Len(t, report.NextSteps, 4)

	reportPath := filepath.Join(dir, experiment.ReportFile)
	require.NoError(t, experiment.WriteReport(reportPath, report))
	assert.FileExists(t, reportPath)
}

func TestBestParameters_Defaults(t *testing.T) {
	t.Parallel()

	best := experiment.BestParameters(audio.Waveform{}, experiment.DefaultSweeps(), experiment.SweepResults{})
	assert.InDelta(t, 0.7, best.BestTemperature, 1e-9)
	assert.Equal(t, 50, best.BestTopK)
	assert.InDelta(t, 1.1, best.BestRepetitionPenalty, 1e-9)

	report := experiment.NewReport("orpheus", nil, best)
	assert.False(t, report.TestResults.ZeroShotCloning.Success)
}
