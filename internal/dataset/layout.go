package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

const (
	layoutAudioDir       = "audio"
	layoutTranscriptsDir = "transcripts"
	layoutProcessedDir   = "processed"
	layoutManifestName   = "metadata.json"
	layoutDatasetName    = "Personal Voice Dataset"
	layoutDescription    = "Voice samples for fine-tuning"
	layoutSpeakerID      = "user_voice"
	layoutQualityUnrated = "unrated"
)

// Layout is the voice_dataset directory tree used for fine-tuning.
type Layout struct {
	Root           string
	AudioDir       string
	TranscriptsDir string
	ProcessedDir   string
}

// DatasetInfo summarizes a Layout.
type DatasetInfo struct {
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	SampleRate    int     `json:"sample_rate"`
	TotalSamples  int     `json:"total_samples"`
	TotalDuration float64 `json:"total_duration"`
	SpeakerID     string  `json:"speaker_id"`
}

// LayoutSample is one entry of the layout manifest. Paths are relative to Root.
type LayoutSample struct {
	ID             string  `json:"id"`
	AudioFile      string  `json:"audio_file"`
	TranscriptFile string  `json:"transcript_file"`
	Duration       float64 `json:"duration"`
	Quality        string  `json:"quality"`
}

// Manifest is the metadata.json document at the root of a Layout.
type Manifest struct {
	DatasetInfo DatasetInfo    `json:"dataset_info"`
	Samples     []LayoutSample `json:"samples"`
}

// NewLayout returns the layout rooted at root.
func NewLayout(root string) Layout {
	return Layout{
		Root:           root,
		AudioDir:       filepath.Join(root, layoutAudioDir),
		TranscriptsDir: filepath.Join(root, layoutTranscriptsDir),
		ProcessedDir:   filepath.Join(root, layoutProcessedDir),
	}
}

// Create makes every directory of the layout. Existing directories are kept.
func (l Layout) Create() error {
	for _, dir := range []string{l.Root, l.AudioDir, l.TranscriptsDir, l.ProcessedDir} {
		err := fsutil.EnsureDir(dir)
		if err != nil {
			return err
		}
	}

	return nil
}

// ManifestPath returns the location of the layout manifest.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.Root, layoutManifestName)
}

// Import copies the processed samples and transcripts of a batch run into the
// layout, keeping their sample ids.
func (l Layout) Import(metadata *Metadata, processedDir, transcriptsDir string) error {
	for _, record := range metadata.ProcessedFiles {
		err := copyFile(
			filepath.Join(processedDir, record.ProcessedFile),
			filepath.Join(l.AudioDir, record.ProcessedFile),
		)
		if err != nil {
			return err
		}

		src := filepath.Join(transcriptsDir, record.TranscriptFile)
		if !fsutil.Exists(src) {
			continue
		}

		err = copyFile(src, filepath.Join(l.TranscriptsDir, record.TranscriptFile))
		if err != nil {
			return err
		}
	}

	return nil
}

// WriteManifest scans the audio directory and writes metadata.json describing
// every sample found there.
func (l Layout) WriteManifest(sampleRate int) (*Manifest, error) {
	names, err := fsutil.ListFiles(l.AudioDir, fsutil.IsAudioFile)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		DatasetInfo: DatasetInfo{
			Name:        layoutDatasetName,
			Description: layoutDescription,
			SampleRate:  sampleRate,
			SpeakerID:   layoutSpeakerID,
		},
		Samples: []LayoutSample{},
	}

	for _, name := range names {
		waveform, decodeErr := audio.Decode(filepath.Join(l.AudioDir, name))
		if decodeErr != nil {
			return nil, decodeErr
		}

		transcriptName := fsutil.ReplaceExt(name, transcriptExt)
		manifest.Samples = append(manifest.Samples, LayoutSample{
			ID:             fsutil.ReplaceExt(name, ""),
			AudioFile:      filepath.Join(layoutAudioDir, name),
			TranscriptFile: filepath.Join(layoutTranscriptsDir, transcriptName),
			Duration:       waveform.Seconds(),
			Quality:        layoutQualityUnrated,
		})
		manifest.DatasetInfo.TotalDuration += waveform.Seconds()
	}

	manifest.DatasetInfo.TotalSamples = len(manifest.Samples)

	err = writeJSON(l.ManifestPath(), manifest)
	if err != nil {
		return nil, err
	}

	return manifest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	_, err = io.Copy(out, in)
	closeErr := out.Close()

	if err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", dst, closeErr)
	}

	return nil
}
