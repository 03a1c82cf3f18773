package worker

import (
	"context"

	"github.com/inferedge/runtimecore/internal/backend"
)

// SpeechWorker owns one speech-to-text ContextHandle (spec §4.7.4).
type SpeechWorker struct {
	handle backend.SpeechHandle
	guard  invocationGuard
}

func NewSpeechWorker(h backend.SpeechHandle) *SpeechWorker {
	return &SpeechWorker{handle: h}
}

// Transcribe runs the full pipeline over 16kHz mono f32 PCM samples.
// Timestamps are already converted to milliseconds by the backend
// (spec §4.7.4: centiseconds * 10).
func (w *SpeechWorker) Transcribe(ctx context.Context, pcm []float32, params backend.TranscribeParams) (backend.TranscribeResult, error) {
	release, err := w.guard.tryEnter()
	if err != nil {
		return backend.TranscribeResult{}, err
	}
	defer release()

	result, err := w.handle.Transcribe(ctx, pcm, params)
	if err != nil {
		return backend.TranscribeResult{}, backend.NewError(backend.KindInferenceFailed, "Speech.Transcribe", err)
	}
	return result, nil
}
