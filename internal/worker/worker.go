// Package worker provides a NATS worker that runs synthesis jobs through the
// dispatcher.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-gateway/internal/core"
)

const handleMessageTimeout = 150 * time.Second

// Static errors.
var (
	// ErrMissingJobID indicates a job event without a job id.
	ErrMissingJobID = errors.New("job id cannot be empty")
	// ErrMissingTextKey indicates a job event without a text key.
	ErrMissingTextKey = errors.New("text key cannot be empty")
	// ErrUnknownEmotionMode indicates an unrecognized emotion_mode value.
	ErrUnknownEmotionMode = errors.New("unknown emotion mode")
)

// NatsWorker listens for synthesis jobs on a NATS subject and dispatches them.
// It shares the HTTP path's dispatcher, so the two surfaces enforce identical
// validation and error taxonomy.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	store          core.ObjectStore
	dispatcher     core.Dispatcher
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	store core.ObjectStore,
	dispatcher core.Dispatcher,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		store:          store,
		dispatcher:     dispatcher,
		log:            log,
	}
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

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

	job, err := parseAndValidateJob(msg)
	if err != nil {
		w.log.Error("Failed to parse and validate job: %v", err)

		return
	}

	reply := w.processJob(ctx, job)

	err = w.publishReply(msg, reply)
	if err != nil {
		w.log.Error("Failed to publish reply for job %s: %v", job.JobID, err)
	}
}

// processJob downloads the job inputs, dispatches the synthesis, and uploads
// the audio. Dispatch failures become a structured reply, never a retry.
func (w *NatsWorker) processJob(ctx context.Context, job *SynthesisJobEvent) *SynthesisCompletedEvent {
	reply := &SynthesisCompletedEvent{
		JobID:     job.JobID,
		Timestamp: time.Now().UTC(),
		EngineID:  job.EngineID,
		AudioKey:  "",
		MIMEType:  "",
		ErrorKind: "",
		Error:     "",
	}

	request, err := w.buildRequest(ctx, job)
	if err != nil {
		return failedReply(reply, err)
	}

	result, err := w.dispatcher.Dispatch(ctx, *request)
	if err != nil {
		w.log.Error("Dispatch failed for job %s: %v", job.JobID, err)

		return failedReply(reply, err)
	}

	audioKey := uuid.NewString() + extensionForMIME(result.MIMEType)

	err = w.store.Upload(ctx, audioKey, result.Audio)
	if err != nil {
		return failedReply(reply, fmt.Errorf("failed to upload audio for job '%s': %w", job.JobID, err))
	}

	if job.CleanupInputs {
		w.cleanupInputs(ctx, job)
	}

	reply.AudioKey = audioKey
	reply.MIMEType = result.MIMEType

	return reply
}

// buildRequest materializes the job's blob keys into a SynthesisRequest.
func (w *NatsWorker) buildRequest(ctx context.Context, job *SynthesisJobEvent) (*core.SynthesisRequest, error) {
	textData, err := w.store.Download(ctx, job.TextKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download text for key '%s': %w", job.TextKey, err)
	}

	request := &core.SynthesisRequest{
		EngineID:  job.EngineID,
		Text:      string(textData),
		Voice:     nil,
		Reference: nil,
		Emotion:   nil,
	}

	if job.ReferenceKey != "" {
		referenceData, downloadErr := w.store.Download(ctx, job.ReferenceKey)
		if downloadErr != nil {
			return nil, fmt.Errorf("failed to download reference audio for key '%s': %w", job.ReferenceKey, downloadErr)
		}

		request.Reference = &core.ReferenceAudio{
			Data:     referenceData,
			Filename: job.ReferenceKey,
		}
	} else {
		request.Voice = &core.VoiceSelector{Name: job.Voice}
	}

	emotion, err := w.buildEmotion(ctx, job)
	if err != nil {
		return nil, err
	}

	request.Emotion = emotion

	return request, nil
}

func (w *NatsWorker) buildEmotion(ctx context.Context, job *SynthesisJobEvent) (*core.EmotionSpec, error) {
	switch job.EmotionMode {
	case "", EmotionModeNone:
		return nil, nil
	case EmotionModeAudio:
		emotionData, err := w.store.Download(ctx, job.EmotionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to download emotion audio for key '%s': %w", job.EmotionKey, err)
		}

		return &core.EmotionSpec{
			Mode:      core.EmotionAudio,
			Audio:     emotionData,
			Intensity: job.EmotionIntensity,
			Vector:    nil,
		}, nil
	case EmotionModeVector:
		return &core.EmotionSpec{
			Mode:      core.EmotionVector,
			Audio:     nil,
			Intensity: 0,
			Vector:    job.EmotionVector,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEmotionMode, job.EmotionMode)
	}
}

// cleanupInputs deletes consumed input objects. Failures are logged, not
// fatal: the audio was already uploaded and the reply must still go out.
func (w *NatsWorker) cleanupInputs(ctx context.Context, job *SynthesisJobEvent) {
	keys := []string{job.TextKey}

	if job.ReferenceKey != "" {
		keys = append(keys, job.ReferenceKey)
	}

	if job.EmotionKey != "" {
		keys = append(keys, job.EmotionKey)
	}

	for _, key := range keys {
		err := w.store.Delete(ctx, key)
		if err != nil {
			w.log.Warn("Failed to delete consumed input '%s' for job %s: %v", key, job.JobID, err)
		}
	}
}

// publishReply marshals and responds with the SynthesisCompletedEvent.
func (w *NatsWorker) publishReply(msg *nats.Msg, reply *SynthesisCompletedEvent) error {
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

func parseAndValidateJob(msg *nats.Msg) (*SynthesisJobEvent, error) {
	var job SynthesisJobEvent

	err := json.Unmarshal(msg.Data, &job)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal job event: %w", err)
	}

	if job.JobID == "" {
		return nil, ErrMissingJobID
	}

	if job.TextKey == "" {
		return nil, ErrMissingTextKey
	}

	return &job, nil
}

// failedReply records the taxonomy kind and message on the reply.
func failedReply(reply *SynthesisCompletedEvent, err error) *SynthesisCompletedEvent {
	reply.ErrorKind = errorKind(err)
	reply.Error = err.Error()

	return reply
}

// errorKind maps a dispatch error onto its stable taxonomy name.
func errorKind(err error) string {
	switch {
	case errors.Is(err, core.ErrUnknownEngine):
		return "unknown_engine"
	case errors.Is(err, core.ErrEngineUnavailable):
		return "engine_unavailable"
	case errors.Is(err, core.ErrInvalidInput):
		return "invalid_input"
	default:
		return "synthesis_failed"
	}
}

// extensionForMIME picks the object key suffix for synthesized audio.
func extensionForMIME(mimeType string) string {
	if mimeType == "audio/mpeg" {
		return ".mp3"
	}

	return ".wav"
}
