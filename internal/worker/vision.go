package worker

import (
	"context"
	"strings"

	"github.com/inferedge/runtimecore/internal/backend"
)

// VisionWorker owns one VisionHandle encapsulating the VLM plus its
// multimodal projector (spec §4.7.2).
type VisionWorker struct {
	handle backend.VisionHandle
	guard  invocationGuard
	nBatch int
}

func NewVisionWorker(h backend.VisionHandle) *VisionWorker {
	return &VisionWorker{handle: h, nBatch: defaultBatchSize}
}

// Describe implements spec §4.7.2's full sequence: clear KV, construct a
// bitmap view, tokenize into mixed chunks, evaluate in batches (freeing
// the bitmap immediately after), then run the sample/decode loop.
func (w *VisionWorker) Describe(ctx context.Context, rgb []byte, width, height int, prompt string, params backend.SamplerParams) (string, error) {
	release, err := w.guard.tryEnter()
	if err != nil {
		return "", err
	}
	defer release()

	w.handle.ClearKV()
	bmp, err := w.handle.InitBitmap(rgb, width, height)
	if err != nil {
		return "", backend.NewError(backend.KindInvalidParameter, "Vision.Describe: init_bitmap", err)
	}

	chunks, err := w.handle.TokenizeMixed(prompt, bmp)
	if err != nil {
		bmp.Free()
		return "", backend.NewError(backend.KindInferenceFailed, "Vision.Describe: tokenize_mixed", err)
	}

	for _, c := range chunks {
		parts := []backend.Chunk{c}
		if c.Kind == backend.ChunkText {
			parts = parts[:0]
			for i := 0; i < len(c.Tokens); i += w.nBatch {
				end := min(i+w.nBatch, len(c.Tokens))
				parts = append(parts, backend.Chunk{Kind: backend.ChunkText, Tokens: c.Tokens[i:end]})
			}
		}
		for _, part := range parts {
			if evalErr := w.handle.EvalChunk(ctx, part); evalErr != nil {
				bmp.Free()
				return "", backend.NewError(backend.KindInferenceFailed, "Vision.Describe: eval_chunk", evalErr)
			}
		}
	}
	// bounded memory: free the tokenization artifacts immediately after
	// evaluation (spec §4.7.2).
	bmp.Free()

	var out strings.Builder
	var stopBuf strings.Builder
	for {
		select {
		case <-ctx.Done():
			return out.String(), backend.NewError(backend.KindCancelled, "Vision.Describe", ctx.Err())
		default:
		}
		tok, sampleErr := w.handle.Sample(params)
		if sampleErr != nil {
			return out.String(), backend.NewError(backend.KindInferenceFailed, "Vision.Describe: sample", sampleErr)
		}
		if w.handle.IsEndOfGeneration(tok) {
			break
		}
		piece, pieceErr := w.handle.TokenToPiece(tok)
		if pieceErr != nil {
			return out.String(), backend.NewError(backend.KindInferenceFailed, "Vision.Describe: token_to_piece", pieceErr)
		}
		out.WriteString(piece)
		if stopMatched(&stopBuf, piece, params.StopSequences) {
			break
		}
	}
	return out.String(), nil
}
