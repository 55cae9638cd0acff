package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
	"github.com/book-expert/voiceprep/internal/transcript"
)

const (
	sampleIDFormat     = "sample_%03d"
	processedExt       = ".wav"
	transcriptExt      = ".txt"
	hintAddRecordings  = "add recordings to process"
	logFmtFound        = "Found %d audio files in %s"
	logFmtProcessingN  = "Processing %d/%d: %s"
	logFmtItemFailed   = "Failed to process %s: %v"
	logFmtTemplate     = "Created transcript template %s"
	logFmtBuildSummary = "Processed %d of %d samples, metadata written to %s"
)

// ErrNoAudioFiles is returned when the input directory holds no supported recordings.
var ErrNoAudioFiles = errors.New("no audio files found")

// Paths locates the inputs and outputs of a batch run.
type Paths struct {
	InputDir       string
	ProcessedDir   string
	TranscriptsDir string
	MetadataPath   string
}

// Result is the outcome of a batch run.
type Result struct {
	Metadata *Metadata
	Failures []*core.ItemError
}

// Builder normalizes every recording in a directory into numbered samples.
type Builder struct {
	paths      Paths
	normalizer *audio.Normalizer
	log        *logger.Logger
	now        func() time.Time
}

// NewBuilder creates a Builder. The normalizer's settings decide the output
// format; batch runs conventionally enable DC offset removal.
func NewBuilder(paths Paths, normalizer *audio.Normalizer, log *logger.Logger) *Builder {
	return &Builder{
		paths:      paths,
		normalizer: normalizer,
		log:        log,
		now:        time.Now,
	}
}

// SampleID returns the identifier of the n-th (1-indexed) sample.
func SampleID(n int) string {
	return fmt.Sprintf(sampleIDFormat, n)
}

// Build processes the recordings in sorted order. Sample numbers follow the
// position in the sorted input list, so a failed item leaves a gap. The run
// fails only when the input directory is absent or empty, and then nothing is
// written.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	names, err := b.collectInputs()
	if err != nil {
		return nil, err
	}

	b.log.Info(logFmtFound, len(names), b.paths.InputDir)

	for _, dir := range []string{b.paths.ProcessedDir, b.paths.TranscriptsDir} {
		err = fsutil.EnsureDir(dir)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{Metadata: &Metadata{ProcessedFiles: []Record{}}}

	for i, name := range names {
		err = ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("dataset build interrupted: %w", err)
		}

		b.log.Info(logFmtProcessingN, i+1, len(names), name)

		record, itemErr := b.processOne(SampleID(i+1), name)
		if itemErr != nil {
			b.log.Error(logFmtItemFailed, name, itemErr)
			result.Failures = append(result.Failures, core.NewItemError(name, itemErr))

			continue
		}

		result.Metadata.ProcessedFiles = append(result.Metadata.ProcessedFiles, record)
	}

	result.Metadata.Created = b.now()
	result.Metadata.TotalSamples = len(result.Metadata.ProcessedFiles)

	err = WriteMetadata(b.paths.MetadataPath, result.Metadata)
	if err != nil {
		return nil, err
	}

	b.log.Info(logFmtBuildSummary, result.Metadata.TotalSamples, len(names), b.paths.MetadataPath)

	return result, nil
}

func (b *Builder) collectInputs() ([]string, error) {
	if !fsutil.IsDir(b.paths.InputDir) {
		return nil, core.MissingPrecondition(b.paths.InputDir, hintAddRecordings)
	}

	names, err := fsutil.ListFiles(b.paths.InputDir, fsutil.IsAudioFile)
	if err != nil {
		return nil, err
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %w in %s", core.ErrMissingPrecondition, ErrNoAudioFiles, b.paths.InputDir)
	}

	return names, nil
}

func (b *Builder) processOne(id, name string) (Record, error) {
	processedName := id + processedExt
	transcriptName := id + transcriptExt

	waveform, err := b.normalizer.ProcessFile(
		filepath.Join(b.paths.InputDir, name),
		filepath.Join(b.paths.ProcessedDir, processedName),
	)
	if err != nil {
		return Record{}, err
	}

	transcriptPath := filepath.Join(b.paths.TranscriptsDir, transcriptName)
	if !fsutil.Exists(transcriptPath) {
		template := transcript.PlaceholderText(name, waveform.Seconds())

		err = os.WriteFile(transcriptPath, []byte(template), filePermissions)
		if err != nil {
			return Record{}, fmt.Errorf("failed to write transcript template: %w", err)
		}

		b.log.Info(logFmtTemplate, transcriptPath)
	}

	return Record{
		ID:             id,
		OriginalFile:   name,
		ProcessedFile:  processedName,
		TranscriptFile: transcriptName,
		Duration:       waveform.Seconds(),
	}, nil
}
