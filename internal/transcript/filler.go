package transcript

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

const (
	transcriptPermissions = 0o600
	audioExt              = ".wav"
)

// ErrEmptyTranscription is returned when the transcriber produced no text.
var ErrEmptyTranscription = errors.New("transcription is empty")

// FillResult lists what a Fill run changed.
type FillResult struct {
	Filled   []string
	Kept     []string
	Failures []*core.ItemError
}

// Filler replaces placeholder transcripts with machine transcriptions of the
// matching processed audio.
type Filler struct {
	transcriber    Transcriber
	audioDir       string
	transcriptsDir string
	log            *logger.Logger
}

// NewFiller creates a Filler reading audio from audioDir and writing transcripts
// into transcriptsDir.
func NewFiller(transcriber Transcriber, audioDir, transcriptsDir string, log *logger.Logger) *Filler {
	return &Filler{
		transcriber:    transcriber,
		audioDir:       audioDir,
		transcriptsDir: transcriptsDir,
		log:            log,
	}
}

// Fill transcribes every transcript that is empty or still holds the placeholder.
// Hand-written transcripts are never overwritten. Per-file failures are
// collected and do not stop the run.
func (f *Filler) Fill(ctx context.Context) (*FillResult, error) {
	if !fsutil.IsDir(f.transcriptsDir) {
		return nil, core.MissingPrecondition(f.transcriptsDir, "run build-dataset first")
	}

	names, err := fsutil.ListFiles(f.transcriptsDir, fsutil.IsTranscriptFile)
	if err != nil {
		return nil, err
	}

	result := &FillResult{}

	for _, name := range names {
		err = ctx.Err()
		if err != nil {
			return result, fmt.Errorf("transcription interrupted: %w", err)
		}

		path := filepath.Join(f.transcriptsDir, name)

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			result.Failures = append(result.Failures, core.NewItemError(name, readErr))

			continue
		}

		if !needsFill(string(content)) {
			result.Kept = append(result.Kept, name)

			continue
		}

		fillErr := f.fillOne(ctx, name, path)
		if fillErr != nil {
			f.log.Error("Failed to transcribe %s: %v", name, fillErr)
			result.Failures = append(result.Failures, core.NewItemError(name, fillErr))

			continue
		}

		f.log.Info("Transcribed %s", name)
		result.Filled = append(result.Filled, name)
	}

	return result, nil
}

func (f *Filler) fillOne(ctx context.Context, name, transcriptPath string) error {
	audioPath := filepath.Join(f.audioDir, fsutil.ReplaceExt(name, audioExt))
	if !fsutil.Exists(audioPath) {
		return core.MissingPrecondition(audioPath, "")
	}

	text, err := f.transcriber.TranscribeFile(ctx, audioPath)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyTranscription
	}

	err = os.WriteFile(transcriptPath, []byte(text+"\n"), transcriptPermissions)
	if err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}

	return nil
}

func needsFill(content string) bool {
	trimmed := strings.TrimSpace(content)

	return trimmed == "" || strings.Contains(trimmed, PlaceholderMarker)
}
