package simbackend

import (
	"context"
	"fmt"

	"github.com/inferedge/runtimecore/internal/backend"
)

type speechHandle struct {
	baseHandle
}

func newSpeechHandle(id uint64, modelPath string, cfg backend.InstanceConfig) *speechHandle {
	return &speechHandle{baseHandle: baseHandle{id: id, modality: backend.ModalitySpeech, sizeMB: 256 << 20, ctxWin: 0}}
}

const sampleRateHz = 16000

// Transcribe chunks the PCM input into fixed 1s segments and reports a
// deterministic placeholder transcript per segment, with timestamps
// converted from the runtime's native centisecond units exactly as a real
// backend would report them (spec §4.7.4).
func (h *speechHandle) Transcribe(ctx context.Context, pcm []float32, params backend.TranscribeParams) (backend.TranscribeResult, error) {
	select {
	case <-ctx.Done():
		return backend.TranscribeResult{}, backend.NewError(backend.KindCancelled, "Transcribe", ctx.Err())
	default:
	}
	if len(pcm) == 0 {
		return backend.TranscribeResult{}, nil
	}
	var segments []backend.Segment
	totalSamples := len(pcm)
	segSamples := sampleRateHz // 1s segments
	var text string
	for start, idx := 0, 0; start < totalSamples; start += segSamples {
		end := start + segSamples
		if end > totalSamples {
			end = totalSamples
		}
		startCS := int64(start) * 100 / sampleRateHz
		endCS := int64(end) * 100 / sampleRateHz
		seg := backend.Segment{
			Text:    fmt.Sprintf("segment %d", idx),
			StartMS: startCS * 10,
			EndMS:   endCS * 10,
		}
		segments = append(segments, seg)
		text += seg.Text + " "
		idx++
	}
	return backend.TranscribeResult{Text: text, Segments: segments, ProcessMS: int64(len(segments))}, nil
}
