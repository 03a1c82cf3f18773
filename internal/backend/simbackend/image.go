package simbackend

import (
	"context"

	"github.com/inferedge/runtimecore/internal/backend"
)

type imageHandle struct {
	baseHandle
}

func newImageHandle(id uint64, modelPath string, cfg backend.InstanceConfig) *imageHandle {
	return &imageHandle{baseHandle: baseHandle{id: id, modality: backend.ModalityImage, sizeMB: 2 << 30, ctxWin: 0}}
}

// Generate runs a deterministic fake diffusion loop, invoking progress
// once per step and returning a flat-gray image stamped with the seed.
func (h *imageHandle) Generate(ctx context.Context, p backend.ImageParams, progress backend.ProgressFunc) (backend.ImageResult, error) {
	steps := p.Steps
	if steps <= 0 {
		steps = 20
	}
	for step := 1; step <= steps; step++ {
		select {
		case <-ctx.Done():
			return backend.ImageResult{}, backend.NewError(backend.KindCancelled, "Generate", ctx.Err())
		default:
		}
		if progress != nil {
			progress(step, steps)
		}
	}
	w, hgt := p.Width, p.Height
	if w <= 0 {
		w = 512
	}
	if hgt <= 0 {
		hgt = 512
	}
	rgb := make([]byte, w*hgt*3)
	fill := byte(p.Seed % 256)
	for i := range rgb {
		rgb[i] = fill
	}
	return backend.ImageResult{RGBBytes: rgb, Width: w, Height: hgt, Channels: 3}, nil
}
