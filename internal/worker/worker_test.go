package worker_test

import (
	"context"
	"testing"

	"github.com/inferedge/runtimecore/internal/backend"
	"github.com/inferedge/runtimecore/internal/backend/simbackend"
	"github.com/inferedge/runtimecore/internal/worker"
)

func TestTextWorkerGenerate(t *testing.T) {
	b := simbackend.New()
	h, err := b.LoadText(context.Background(), "fake.gguf", backend.InstanceConfig{})
	if err != nil {
		t.Fatalf("LoadText: %v", err)
	}
	w := worker.NewTextWorker(h, nil)
	out, err := w.Generate(context.Background(), "hello there friend", backend.SamplerParams{MaxTokens: 5})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out == "" {
		t.Errorf("Generate returned empty output")
	}
}

func TestTextWorkerRejectsConcurrentGenerate(t *testing.T) {
	b := simbackend.New()
	h, _ := b.LoadText(context.Background(), "fake.gguf", backend.InstanceConfig{})
	w := worker.NewTextWorker(h, nil)

	session, err := w.Stream(context.Background(), "hello", backend.SamplerParams{MaxTokens: 50})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer session.Cancel()

	if _, err := w.Generate(context.Background(), "hi", backend.SamplerParams{}); err != backend.ErrBusy {
		t.Errorf("Generate while streaming = %v, want ErrBusy", err)
	}
}

func TestStreamSessionCancellation(t *testing.T) {
	b := simbackend.New()
	h, _ := b.LoadText(context.Background(), "fake.gguf", backend.InstanceConfig{})
	w := worker.NewTextWorker(h, nil)

	session, err := w.Stream(context.Background(), "hello world", backend.SamplerParams{MaxTokens: 100})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := session.Pull(context.Background()); err != nil {
			t.Fatalf("Pull %d: %v", i, err)
		}
	}
	session.Cancel()
	_, err = session.Pull(context.Background())
	if err == nil {
		t.Fatalf("Pull after Cancel succeeded, want Cancelled error")
	}
}

func TestVisionWorkerDescribe(t *testing.T) {
	b := simbackend.New()
	h, err := b.LoadVision(context.Background(), "fake.gguf", "fake.mmproj", backend.InstanceConfig{})
	if err != nil {
		t.Fatalf("LoadVision: %v", err)
	}
	w := worker.NewVisionWorker(h)
	rgb := make([]byte, 4*4*3)
	out, err := w.Describe(context.Background(), rgb, 4, 4, "what is this", backend.SamplerParams{MaxTokens: 5})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if out == "" {
		t.Errorf("Describe returned empty output")
	}
}

func TestImageWorkerGenerateWithProgress(t *testing.T) {
	b := simbackend.New()
	h, err := b.LoadImage(context.Background(), "fake.diffusion", backend.InstanceConfig{})
	if err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	w := worker.NewImageWorker(h)
	var steps []int
	result, err := w.Generate(context.Background(), backend.ImageParams{Width: 8, Height: 8, Steps: 3}, func(step, total int) {
		steps = append(steps, step)
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(steps) != 3 {
		t.Errorf("progress callback fired %d times, want 3", len(steps))
	}
	if len(result.RGBBytes) != 8*8*3 {
		t.Errorf("RGBBytes len = %d, want %d", len(result.RGBBytes), 8*8*3)
	}
}

func TestSpeechWorkerTranscribe(t *testing.T) {
	b := simbackend.New()
	h, err := b.LoadSpeech(context.Background(), "fake.bin", backend.InstanceConfig{})
	if err != nil {
		t.Fatalf("LoadSpeech: %v", err)
	}
	w := worker.NewSpeechWorker(h)
	pcm := make([]float32, 16000)
	result, err := w.Transcribe(context.Background(), pcm, backend.TranscribeParams{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(result.Segments) == 0 {
		t.Errorf("Transcribe returned no segments")
	}
}
