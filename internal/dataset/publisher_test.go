package dataset_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voiceprep/internal/audio"
	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/dataset"
	"github.com/book-expert/voiceprep/internal/objectstore"
)

var errMockPublish = errors.New("mock publish error")

type failingPublisher struct{}

func (failingPublisher) Publish(string, []byte) error {
	return errMockPublish
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Download(_ context.Context, key string) ([]byte, error) {
	return m.objects[key], nil
}

func (m *memoryStore) Upload(_ context.Context, key string, data []byte) error {
	m.objects[key] = data

	return nil
}

func buildTwoSamples(t *testing.T) (fixture, *dataset.Result) {
	t.Helper()

	fx := newFixture(t)
	writeTone(t, filepath.Join(fx.paths.InputDir, "a.wav"), audio.DEFAULT_SAMPLE_RATE, 0.1, 0)
	writeTone(t, filepath.Join(fx.paths.InputDir, "b.wav"), audio.DEFAULT_SAMPLE_RATE, 0.1, 0)

	result, err := fx.builder(t).Build(context.Background())
	require.NoError(t, err)

	return fx, result
}

func TestPublisher_PublishOverNATS(t *testing.T) {
	t.Parallel()

	fx, result := buildTwoSamples(t)

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)
	defer natsServer.Shutdown()

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	require.NoError(t, err)
	defer natsConnection.Close()

	ctx := context.Background()

	store, err := objectstore.New(ctx, natsConnection, "VOICE_DATASETS")
	require.NoError(t, err)

	sub, err := natsConnection.SubscribeSync("voice.dataset.built")
	require.NoError(t, err)

	publisher := dataset.NewPublisher(store, natsConnection, "voice.dataset.built", newTestLogger(t))

	event, err := publisher.Publish(ctx, "alice", result.Metadata, fx.paths)
	require.NoError(t, err)
	assert.Equal(t, "alice/dataset_metadata.json", event.MetadataKey)
	assert.Equal(t, []string{"alice/audio/sample_001.wav", "alice/audio/sample_002.wav"}, event.SampleKeys)
	assert.Equal(t, 2, event.TotalSamples)
	assert.NotEmpty(t, event.Header.WorkflowID)

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var received core.DatasetBuiltEvent
	require.NoError(t, json.Unmarshal(msg.Data, &received))
	assert.Equal(t, event.Header.WorkflowID, received.Header.WorkflowID)
	assert.Equal(t, event.SampleKeys, received.SampleKeys)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"alice/audio/sample_001.wav",
		"alice/audio/sample_002.wav",
		"alice/dataset_metadata.json",
		"alice/transcripts/sample_001.txt",
		"alice/transcripts/sample_002.txt",
	}, keys)

	metadataData, err := store.Download(ctx, event.MetadataKey)
	require.NoError(t, err)

	var metadata dataset.Metadata
	require.NoError(t, json.Unmarshal(metadataData, &metadata))
	assert.Equal(t, result.Metadata.ProcessedFiles, metadata.ProcessedFiles)
}

func TestPublisher_PublishFailure(t *testing.T) {
	t.Parallel()

	fx, result := buildTwoSamples(t)
	store := &memoryStore{objects: map[string][]byte{}}

	publisher := dataset.NewPublisher(store, failingPublisher{}, "subject", newTestLogger(t))

	_, err := publisher.Publish(context.Background(), "bob", result.Metadata, fx.paths)
	require.ErrorIs(t, err, core.ErrExternalDependency)
	require.ErrorIs(t, err, errMockPublish)
	assert.Contains(t, store.objects, "bob/audio/sample_001.wav")
}
