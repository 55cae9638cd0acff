package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/voiceprep/internal/core"
)

const chunkFileFormat = "chunk_%04d.wav"

// ErrNoChunksFound is returned for a chunks file holding no text.
var ErrNoChunksFound = errors.New("no chunks found")

// ReadChunks parses a JSON array of strings.
func ReadChunks(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, core.MissingPrecondition(path, "")
		}

		return nil, fmt.Errorf("failed to read chunks file: %w", err)
	}

	var chunks []string

	err = json.Unmarshal(data, &chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chunks file %s: %w", path, err)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoChunksFound, path)
	}

	return chunks, nil
}

// Speak synthesizes a single text into fileName under the output directory.
// Unlike the experiment runs, a model failure is returned.
func (r *Runner) Speak(ctx context.Context, req core.SynthesisRequest, fileName string) (Generation, error) {
	err := r.ensureOutputDir()
	if err != nil {
		return Generation{}, err
	}

	generation, err := r.generate(ctx, req, fileName)
	if err != nil {
		return generation, err
	}

	generation.Text = req.Text
	if !generation.Success {
		return generation, fmt.Errorf("%w: %s", core.ErrExternalDependency, generation.Error)
	}

	return generation, nil
}

// SpeakChunks synthesizes every chunk in order into chunk_0001.wav,
// chunk_0002.wav and so on. Failed chunks are recorded and skipped.
func (r *Runner) SpeakChunks(ctx context.Context, chunks []string, template core.SynthesisRequest) ([]Generation, error) {
	err := r.ensureOutputDir()
	if err != nil {
		return nil, err
	}

	results := make([]Generation, 0, len(chunks))

	for i, chunk := range chunks {
		req := template
		req.Text = chunk

		generation, genErr := r.generate(ctx, req, fmt.Sprintf(chunkFileFormat, i+1))
		if genErr != nil {
			return nil, genErr
		}

		generation.Text = chunk
		results = append(results, generation)
		r.log.Info("Processed chunk %d/%d", i+1, len(chunks))
	}

	return results, nil
}

// ChunkPath returns the output path of the n-th (1-indexed) chunk.
func (r *Runner) ChunkPath(n int) string {
	return filepath.Join(r.outputDir, fmt.Sprintf(chunkFileFormat, n))
}
