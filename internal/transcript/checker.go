// Package transcript checks, templates and fills the per-sample transcript files
// of a voice dataset.
package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

// PlaceholderMarker is written into templates and marks a transcript as unfinished.
const PlaceholderMarker = "[Replace with your actual transcription]"

const (
	// ReadyThreshold is the fraction of valid transcripts required before training.
	ReadyThreshold = 0.8
	minWords       = 3
	templateFormat = "# Transcript for %s\n# Duration: %.2fs\n\n%s"
)

// PlaceholderText is the template written for a freshly processed sample.
func PlaceholderText(originalFile string, durationSeconds float64) string {
	return fmt.Sprintf(templateFormat, originalFile, durationSeconds, PlaceholderMarker)
}

// IsValid reports whether content is a finished transcript: non-empty, more
// than three words, and free of the placeholder marker.
func IsValid(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.Contains(trimmed, PlaceholderMarker) {
		return false
	}

	return len(strings.Fields(trimmed)) > minWords
}

// Report is the result of scanning a transcript directory.
type Report struct {
	Dir                string
	Total              int
	Valid              int
	NeedsTranscription []string
}

// Fraction returns Valid/Total, or 0 for an empty directory.
func (r *Report) Fraction() float64 {
	if r.Total == 0 {
		return 0
	}

	return float64(r.Valid) / float64(r.Total)
}

// Ready reports whether at least 80% of the transcripts are valid. Zero
// transcripts count as not ready, so an empty directory never starts training
// even though "0 of 0 valid" is vacuously complete.
func (r *Report) Ready() bool {
	return r.Total > 0 && r.Fraction() >= ReadyThreshold
}

// Check scans dir for *.txt transcripts without modifying anything.
func Check(dir string) (*Report, error) {
	if !fsutil.IsDir(dir) {
		return nil, core.MissingPrecondition(dir, "run build-dataset to create transcript templates")
	}

	names, err := fsutil.ListFiles(dir, fsutil.IsTranscriptFile)
	if err != nil {
		return nil, err
	}

	report := &Report{Dir: dir, Total: len(names)}

	for _, name := range names {
		content, readErr := os.ReadFile(filepath.Join(dir, name))
		if readErr != nil {
			return nil, fmt.Errorf("failed to read transcript %s: %w", name, readErr)
		}

		if IsValid(string(content)) {
			report.Valid++

			continue
		}

		report.NeedsTranscription = append(report.NeedsTranscription, name)
	}

	return report, nil
}
