// Package worker provides a NATS worker that synthesizes speech for text
// processed upstream.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/fsutil"
	"github.com/book-expert/voiceprep/internal/textnorm"
)

const (
	handleMessageTimeout = 5 * time.Minute
	defaultVoice         = "default"
	referenceExt         = ".wav"
)

var (
	// ErrUnsupportedVoice indicates that no reference recording exists for the voice.
	ErrUnsupportedVoice = errors.New("unsupported voice")
	// ErrTextEmpty indicates the downloaded text holds nothing to synthesize.
	ErrTextEmpty = errors.New("text is empty")
)

// NatsWorker listens for synthesis jobs on a NATS subject and processes them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	textStore      core.ObjectStore
	audioStore     core.ObjectStore
	synth          core.Synthesizer
	referenceDir   string
	log            *logger.Logger
}

// Options wires a NatsWorker.
type Options struct {
	Subject    string
	TextStore  core.ObjectStore
	AudioStore core.ObjectStore
	Synth      core.Synthesizer
	// ReferenceDir holds <voice>.wav recordings used to clone named voices.
	ReferenceDir string
	Log          *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(natsConnection *nats.Conn, opts Options) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        opts.Subject,
		textStore:      opts.TextStore,
		audioStore:     opts.AudioStore,
		synth:          opts.Synth,
		referenceDir:   opts.ReferenceDir,
		log:            opts.Log,
	}
}

// Run subscribes and blocks until ctx is done, then drains the subscription.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for synthesis jobs on %s", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal event: %v", err)

		return
	}

	audioKey, err := w.process(ctx, &event)
	if err != nil {
		w.log.Error("Failed to process synthesis job for workflow %s: %v", event.Header.WorkflowID, err)

		return
	}

	reply := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.respond(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", event.Header.WorkflowID, err)
	}
}

// process downloads the text, synthesizes it and uploads <uuid>.wav.
func (w *NatsWorker) process(ctx context.Context, event *events.TextProcessedEvent) (string, error) {
	req, err := w.buildRequest(event)
	if err != nil {
		return "", err
	}

	textData, err := w.textStore.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf("failed to download text data for key '%s': %w", event.TextKey, err)
	}

	req.Text = textnorm.Normalize(string(textData))
	if req.Text == "" {
		return "", fmt.Errorf("%w: key '%s'", ErrTextEmpty, event.TextKey)
	}

	audioData, err := w.synth.Synthesize(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to synthesize speech: %w", err)
	}

	audioKey := uuid.NewString() + referenceExt

	err = w.audioStore.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	w.log.Info("Synthesized page %d/%d of workflow %s into %s",
		event.PageNumber, event.TotalPages, event.Header.WorkflowID, audioKey)

	return audioKey, nil
}

// buildRequest validates the sampling parameters and resolves the voice.
func (w *NatsWorker) buildRequest(event *events.TextProcessedEvent) (core.SynthesisRequest, error) {
	params := core.SamplingParams{
		Temperature:       event.Temperature,
		TopP:              event.TopP,
		RepetitionPenalty: event.RepetitionPenalty,
		Seed:              event.Seed,
	}

	err := params.Validate()
	if err != nil {
		return core.SynthesisRequest{}, err
	}

	reference, err := w.ResolveVoice(event.Voice)
	if err != nil {
		return core.SynthesisRequest{}, err
	}

	return core.SynthesisRequest{ReferenceAudio: reference, Voice: event.Voice, Params: params}, nil
}

// ResolveVoice maps a voice name to its reference recording. The empty name and
// "default" select the model's own speaker and resolve to "".
func (w *NatsWorker) ResolveVoice(voice string) (string, error) {
	if voice == "" || voice == defaultVoice {
		return "", nil
	}

	if voice != filepath.Base(voice) || strings.HasPrefix(voice, ".") {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedVoice, voice)
	}

	reference := filepath.Join(w.referenceDir, voice+referenceExt)
	if !fsutil.Exists(reference) {
		return "", fmt.Errorf("%w: '%s'", ErrUnsupportedVoice, voice)
	}

	return reference, nil
}

func (w *NatsWorker) respond(msg *nats.Msg, reply *events.AudioChunkCreatedEvent) error {
	replyData, err := json.Marshal(reply)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}
