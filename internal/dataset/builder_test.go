package dataset_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/dataset"
	"github.com/book-expert/voiceprep/internal/transcript"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "dataset-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	return log
}

func writeTone(t *testing.T, path string, sampleRate int, seconds, offset float64) {
	t.Helper()

	samples := make([]float64, int(float64(sampleRate)*seconds))
	for i := range samples {
		samples[i] = offset + 0.3*math.Sin(2*math.Pi*220*float64(i)/float64(sampleRate))
	}

	require.NoError(t, audio.Encode(path, audio.Waveform{Samples: samples, SampleRate: sampleRate}))
}

type fixture struct {
	root  string
	paths dataset.Paths
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	root := t.TempDir()
	paths := dataset.Paths{
		InputDir:       filepath.Join(root, "voice_samples"),
		ProcessedDir:   filepath.Join(root, "processed_samples"),
		TranscriptsDir: filepath.Join(root, "transcripts"),
		MetadataPath:   filepath.Join(root, "dataset_metadata.json"),
	}
	require.NoError(t, os.MkdirAll(paths.InputDir, 0o750))

	return fixture{root: root, paths: paths}
}

func (f fixture) builder(t *testing.T) *dataset.Builder {
	t.Helper()

	settings := audio.DefaultSettings()
	settings.RemoveDCOffset = true

	normalizer, err := audio.NewNormalizer(settings, newTestLogger(t))
	require.NoError(t, err)

	return dataset.NewBuilder(f.paths, normalizer, newTestLogger(t))
}

func TestBuild_NumbersInSortedOrder(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	writeTone(t, filepath.Join(fx.paths.InputDir, "b.wav"), 44100, 1.0, 0)
	writeTone(t, filepath.Join(fx.paths.InputDir, "a.wav"), 16000, 0.5, 0)

	result, err := fx.builder(t).Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Failures)

	records := result.Metadata.ProcessedFiles
	require.Len(t, records, 2)
	assert.Equal(t, "sample_001", records[0].ID)
	assert.Equal(t, "a.wav", records[0].OriginalFile)
	assert.Equal(t, "sample_001.wav", records[0].ProcessedFile)
	assert.Equal(t, "sample_001.txt", records[0].TranscriptFile)
	assert.InDelta(t, 0.5, records[0].Duration, 1e-3)
	assert.Equal(t, "b.wav", records[1].OriginalFile)
	assert.Equal(t, "sample_002.wav", records[1].ProcessedFile)
	assert.InDelta(t, 1.0, records[1].Duration, 1e-3)

	processed, err := audio.Decode(filepath.Join(fx.paths.ProcessedDir, "sample_002.wav"))
	require.NoError(t, err)
	assert.Equal(t, audio.DEFAULT_SAMPLE_RATE, processed.SampleRate)
	assert.InDelta(t, audio.DEFAULT_TARGET_RMS, audio.RMS(processed.Samples), 1e-3)

	content, err := os.ReadFile(filepath.Join(fx.paths.TranscriptsDir, "sample_001.txt"))
	require.NoError(t, err)
	assert.Equal(t, transcript.PlaceholderText("a.wav", records[0].Duration), string(content))

	loaded, err := dataset.LoadMetadata(fx.paths.MetadataPath)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.TotalSamples)
	assert.Equal(t, records, loaded.ProcessedFiles)
	assert.InDelta(t, 1.5, loaded.TotalDuration(), 2e-3)
	assert.False(t, loaded.Created.IsZero())
}

func TestBuild_RemovesDCOffset(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	writeTone(t, filepath.Join(fx.paths.InputDir, "offset.wav"), audio.DEFAULT_SAMPLE_RATE, 0.5, 0.2)

	_, err := fx.builder(t).Build(context.Background())
	require.NoError(t, err)

	processed, err := audio.Decode(filepath.Join(fx.paths.ProcessedDir, "sample_001.wav"))
	require.NoError(t, err)

	var sum float64
	for _, sample := range processed.Samples {
		sum += sample
	}

	assert.InDelta(t, 0, sum/float64(len(processed.Samples)), 1e-3)
}

func TestBuild_SkipsFailedItemsAndLeavesGap(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	writeTone(t, filepath.Join(fx.paths.InputDir, "a.wav"), audio.DEFAULT_SAMPLE_RATE, 0.2, 0)
	require.NoError(t, os.WriteFile(filepath.Join(fx.paths.InputDir, "b.wav"), []byte("not a wav"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(fx.paths.InputDir, "c.M4A"), []byte("m4a"), 0o600))
	writeTone(t, filepath.Join(fx.paths.InputDir, "d.wav"), audio.DEFAULT_SAMPLE_RATE, 0.2, 0)
	require.NoError(t, os.WriteFile(filepath.Join(fx.paths.InputDir, "notes.txt"), []byte("skip"), 0o600))

	result, err := fx.builder(t).Build(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Failures, 2)
	assert.Equal(t, "b.wav", result.Failures[0].File)
	require.ErrorIs(t, result.Failures[0], core.ErrItemFailed)
	require.ErrorIs(t, result.Failures[0], core.ErrDecode)
	assert.Equal(t, "c.M4A", result.Failures[1].File)
	require.ErrorIs(t, result.Failures[1], audio.ErrUnsupportedFormat)

	require.Len(t, result.Metadata.ProcessedFiles, 2)
	assert.Equal(t, "sample_001", result.Metadata.ProcessedFiles[0].ID)
	assert.Equal(t, "sample_004", result.Metadata.ProcessedFiles[1].ID)
	assert.Equal(t, 2, result.Metadata.TotalSamples)

	assert.NoFileExists(t, filepath.Join(fx.paths.ProcessedDir, "sample_002.wav"))
	assert.NoFileExists(t, filepath.Join(fx.paths.TranscriptsDir, "sample_002.txt"))
}

func TestBuild_KeepsExistingTranscripts(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	writeTone(t, filepath.Join(fx.paths.InputDir, "a.wav"), audio.DEFAULT_SAMPLE_RATE, 0.2, 0)
	require.NoError(t, os.MkdirAll(fx.paths.TranscriptsDir, 0o750))

	existing := "This transcript was written by hand."
	transcriptPath := filepath.Join(fx.paths.TranscriptsDir, "sample_001.txt")
	require.NoError(t, os.WriteFile(transcriptPath, []byte(existing), 0o600))

	_, err := fx.builder(t).Build(context.Background())
	require.NoError(t, err)

	content, err := os.ReadFile(transcriptPath)
	require.NoError(t, err)
	assert.Equal(t, existing, string(content))
}

func TestBuild_FailsWithoutInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(t *testing.T, paths dataset.Paths)
		wantErr error
	}{
		{
			name: "absent directory",
			prepare: func(t *testing.T, paths dataset.Paths) {
				t.Helper()
				require.NoError(t, os.Remove(paths.InputDir))
			},
			wantErr: core.ErrMissingPrecondition,
		},
		{
			name: "no audio files",
			prepare: func(t *testing.T, paths dataset.Paths) {
				t.Helper()
				require.NoError(t, os.WriteFile(filepath.Join(paths.InputDir, "readme.md"), []byte("x"), 0o600))
			},
			wantErr: dataset.ErrNoAudioFiles,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			testCase.prepare(t, fx.paths)

			result, err := fx.builder(t).Build(context.Background())
			require.ErrorIs(t, err, testCase.wantErr)
			require.ErrorIs(t, err, core.ErrMissingPrecondition)
			assert.Nil(t, result)

			assert.NoFileExists(t, fx.paths.MetadataPath)
			assert.NoDirExists(t, fx.paths.ProcessedDir)
			assert.NoDirExists(t, fx.paths.TranscriptsDir)
		})
	}
}

func TestLoadMetadata_Missing(t *testing.T) {
	t.Parallel()

	_, err := dataset.LoadMetadata(filepath.Join(t.TempDir(), "dataset_metadata.json"))
	require.ErrorIs(t, err, core.ErrMissingPrecondition)
	assert.Contains(t, err.Error(), "run build-dataset first")
}

func TestLoadMetadata_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "dataset_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := dataset.LoadMetadata(path)
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrMissingPrecondition)
}

func TestSampleID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sample_001", dataset.SampleID(1))
	assert.Equal(t, "sample_042", dataset.SampleID(42))
	assert.Equal(t, "sample_1000", dataset.SampleID(1000))
}
