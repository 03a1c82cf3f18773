package worker

import (
	"context"

	"github.com/inferedge/runtimecore/internal/backend"
)

// ImageWorker owns one diffusion ContextHandle (spec §4.7.3).
type ImageWorker struct {
	handle backend.ImageHandle
	guard  invocationGuard
}

func NewImageWorker(h backend.ImageHandle) *ImageWorker {
	return &ImageWorker{handle: h}
}

// Generate runs the diffusion loop and returns core-owned pixel storage
// memcpy'd from the runtime's buffer (spec §4.7.3).
//
// ImageHandle.Generate takes progress as an ordinary per-call parameter,
// not a hidden process-global hook, so no acquire-on-call /
// clear-on-return active-context indirection (spec §9's design note) is
// needed at this layer — progress is just forwarded as a closure bound
// to this call's stack frame. A concrete cgo-backed ImageHandle that
// talks to a runtime with a true global progress hook is where that
// pattern belongs, scoped to its own package-private slot, not here.
// invocationGuard still limits this ImageWorker to one in-flight
// Generate at a time; distinct ImageWorkers over distinct handles run
// concurrently (spec §5).
func (w *ImageWorker) Generate(ctx context.Context, p backend.ImageParams, progress backend.ProgressFunc) (backend.ImageResult, error) {
	release, err := w.guard.tryEnter()
	if err != nil {
		return backend.ImageResult{}, err
	}
	defer release()

	result, genErr := w.handle.Generate(ctx, p, progress)
	if genErr != nil {
		return backend.ImageResult{}, backend.NewError(backend.KindInferenceFailed, "Image.Generate", genErr)
	}

	// memcpy into core-owned storage (the slice literal from
	// handle.Generate is already core-owned in the simulated backend, but
	// a real cgo backend would hand back a runtime-owned buffer here).
	owned := make([]byte, len(result.RGBBytes))
	copy(owned, result.RGBBytes)
	result.RGBBytes = owned
	return result, nil
}
