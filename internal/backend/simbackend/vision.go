package simbackend

import (
	"context"

	"github.com/inferedge/runtimecore/internal/backend"
)

type bitmapView struct {
	freed bool
}

func (v *bitmapView) Free() { v.freed = true }

type visionHandle struct {
	*textHandle
	mmprojPath string
}

func newVisionHandle(id uint64, modelPath, mmprojPath string, cfg backend.InstanceConfig) *visionHandle {
	th := newTextHandle(id, modelPath, cfg)
	th.modality = backend.ModalityVision
	return &visionHandle{textHandle: th, mmprojPath: mmprojPath}
}

func (h *visionHandle) InitBitmap(rgb []byte, width, height int) (backend.BitmapView, error) {
	if len(rgb) != width*height*3 {
		return nil, backend.NewError(backend.KindInvalidParameter, "InitBitmap: byte length mismatch", nil)
	}
	return &bitmapView{}, nil
}

func (h *visionHandle) TokenizeMixed(prompt string, bmp backend.BitmapView) ([]backend.Chunk, error) {
	textToks, err := h.Tokenize(prompt)
	if err != nil {
		return nil, err
	}
	return []backend.Chunk{
		{Kind: backend.ChunkImage, Bitmap: bmp},
		{Kind: backend.ChunkText, Tokens: textToks},
	}, nil
}

func (h *visionHandle) EvalChunk(ctx context.Context, c backend.Chunk) error {
	select {
	case <-ctx.Done():
		return backend.NewError(backend.KindCancelled, "EvalChunk", ctx.Err())
	default:
	}
	switch c.Kind {
	case backend.ChunkImage:
		// simulated projector encode: advance the KV cursor by a fixed
		// number of image-embedding slots.
		return h.textHandle.EvalBatch(ctx, make([]int32, 16))
	default:
		return h.textHandle.EvalBatch(ctx, c.Tokens)
	}
}
