package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
)

const (
	keyAudioPrefix       = "audio"
	keyTranscriptsPrefix = "transcripts"
	metadataKeyName      = "dataset_metadata.json"
)

// EventPublisher sends an event payload on a subject. *nats.Conn satisfies it.
type EventPublisher interface {
	Publish(subject string, data []byte) error
}

// Publisher uploads a built dataset to an object store and announces it.
type Publisher struct {
	store   core.ObjectStore
	events  EventPublisher
	subject string
	log     *logger.Logger
}

// NewPublisher creates a Publisher announcing on subject.
func NewPublisher(store core.ObjectStore, eventPublisher EventPublisher, subject string, log *logger.Logger) *Publisher {
	return &Publisher{
		store:   store,
		events:  eventPublisher,
		subject: subject,
		log:     log,
	}
}

// Publish uploads every processed sample, its transcript when present, and the
// metadata document under the name prefix, then publishes a DatasetBuiltEvent.
func (p *Publisher) Publish(
	ctx context.Context,
	name string,
	metadata *Metadata,
	paths Paths,
) (*core.DatasetBuiltEvent, error) {
	event := &core.DatasetBuiltEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
		},
		MetadataKey:  path.Join(name, metadataKeyName),
		SampleKeys:   make([]string, 0, len(metadata.ProcessedFiles)),
		TotalSamples: metadata.TotalSamples,
	}

	for _, record := range metadata.ProcessedFiles {
		key := path.Join(name, keyAudioPrefix, record.ProcessedFile)

		err := p.uploadFile(ctx, key, filepath.Join(paths.ProcessedDir, record.ProcessedFile))
		if err != nil {
			return nil, err
		}

		event.SampleKeys = append(event.SampleKeys, key)

		transcriptPath := filepath.Join(paths.TranscriptsDir, record.TranscriptFile)
		if !fsutil.Exists(transcriptPath) {
			p.log.Warn("Transcript missing for %s, not uploaded", record.ID)

			continue
		}

		err = p.uploadFile(ctx, path.Join(name, keyTranscriptsPrefix, record.TranscriptFile), transcriptPath)
		if err != nil {
			return nil, err
		}
	}

	metadataData, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	err = p.store.Upload(ctx, event.MetadataKey, metadataData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrExternalDependency, err)
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dataset event: %w", err)
	}

	err = p.events.Publish(p.subject, eventData)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to publish on %s: %w", core.ErrExternalDependency, p.subject, err)
	}

	p.log.Info("Published dataset %s with %d samples (workflow %s)", name, event.TotalSamples, event.Header.WorkflowID)

	return event, nil
}

func (p *Publisher) uploadFile(ctx context.Context, key, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	err = p.store.Upload(ctx, key, data)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrExternalDependency, err)
	}

	return nil
}
