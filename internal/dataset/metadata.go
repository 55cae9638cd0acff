// Package dataset turns a directory of raw voice recordings into a numbered,
// normalized training dataset and publishes it.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/voiceprep/internal/core"
)

const (
	filePermissions = 0o600
	dirPermissions  = 0o750
	jsonIndent      = "  "
	hintBuildFirst  = "run build-dataset first"
)

// Record describes one processed sample.
type Record struct {
	ID             string  `json:"id"`
	OriginalFile   string  `json:"original_file"`
	ProcessedFile  string  `json:"processed_file"`
	TranscriptFile string  `json:"transcript_file"`
	Duration       float64 `json:"duration"`
}

// Metadata is the dataset_metadata.json document. It is regenerated wholesale
// by every batch run.
type Metadata struct {
	Created        time.Time `json:"created"`
	TotalSamples   int       `json:"total_samples"`
	ProcessedFiles []Record  `json:"processed_files"`
}

// TotalDuration sums the duration of every record, in seconds.
func (m *Metadata) TotalDuration() float64 {
	var total float64
	for _, record := range m.ProcessedFiles {
		total += record.Duration
	}

	return total
}

// WriteMetadata writes metadata as indented JSON.
func WriteMetadata(path string, metadata *Metadata) error {
	return writeJSON(path, metadata)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", jsonIndent)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)

	err = os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	err = os.WriteFile(path, append(data, '\n'), filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// LoadMetadata reads a metadata document. A missing file is a missing precondition.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, core.MissingPrecondition(path, hintBuildFirst)
		}

		return nil, fmt.Errorf("failed to read metadata %s: %w", path, err)
	}

	var metadata Metadata

	err = json.Unmarshal(data, &metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata %s: %w", path, err)
	}

	return &metadata, nil
}
