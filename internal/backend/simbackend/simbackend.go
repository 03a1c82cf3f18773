// Package simbackend is a deterministic, in-memory double for
// internal/backend's contract. It performs no cgo calls and no real model
// loading; it exists so the Scheduler, Workers, and cmd/inferctl sim can
// be exercised without the external neural-network runtime spec §1 treats
// as an out-of-scope collaborator.
//
// Grounded on the ContextHandle/stream/sample/decode shape of
// other_examples' cgo llama.cpp binding, translated into a pure-Go
// deterministic double: tokenize splits on whitespace, eval appends to a
// simulated KV cache and regenerates a deterministic logit vector, and
// sample walks a fixed vocabulary deterministically seeded from the
// handle's id so tests are reproducible.
package simbackend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/inferedge/runtimecore/internal/backend"
)

const vocabSize = 256

// eosToken is the deterministic end-of-generation sentinel.
const eosToken int32 = 0

// Backend is a deterministic in-memory backend.Backend implementation.
type Backend struct {
	nextID atomic.Uint64
}

// New returns an empty simulated backend.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) LoadText(_ context.Context, modelPath string, cfg backend.InstanceConfig) (backend.TextHandle, error) {
	return newTextHandle(b.nextID.Add(1), modelPath, cfg), nil
}

func (b *Backend) LoadVision(_ context.Context, modelPath, mmprojPath string, cfg backend.InstanceConfig) (backend.VisionHandle, error) {
	return newVisionHandle(b.nextID.Add(1), modelPath, mmprojPath, cfg), nil
}

func (b *Backend) LoadImage(_ context.Context, modelPath string, cfg backend.InstanceConfig) (backend.ImageHandle, error) {
	return newImageHandle(b.nextID.Add(1), modelPath, cfg), nil
}

func (b *Backend) LoadSpeech(_ context.Context, modelPath string, cfg backend.InstanceConfig) (backend.SpeechHandle, error) {
	return newSpeechHandle(b.nextID.Add(1), modelPath, cfg), nil
}

// baseHandle implements the common backend.Handle fields shared by every
// modality-specific handle.
type baseHandle struct {
	id       uint64
	modality backend.Modality
	sizeMB   int64
	ctxWin   int
	closed   bool
	mu       sync.Mutex
}

func (h *baseHandle) ID() uint64                  { return h.id }
func (h *baseHandle) Modality() backend.Modality  { return h.modality }
func (h *baseHandle) ModelSizeBytes() int64       { return h.sizeMB }
func (h *baseHandle) ContextWindowTokens() int    { return h.ctxWin }

func (h *baseHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return backend.NewError(backend.KindContextInvalid, "already closed", nil)
	}
	h.closed = true
	return nil
}

// textHandle is the simulated TextHandle / VisionHandle (they share a
// decode/sample loop; VisionHandle wraps one with mixed-chunk support).
type textHandle struct {
	baseHandle
	kv        []int32
	logits    []float32
	generated int // tokens sampled since the last ClearKV
}

func newTextHandle(id uint64, modelPath string, cfg backend.InstanceConfig) *textHandle {
	ctxWin := cfg.ContextSize
	if ctxWin == 0 {
		ctxWin = 4096
	}
	return &textHandle{
		baseHandle: baseHandle{id: id, modality: backend.ModalityText, sizeMB: 512 << 20, ctxWin: ctxWin},
	}
}

func (h *textHandle) ClearKV() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kv = h.kv[:0]
	h.generated = 0
}

func (h *textHandle) Tokenize(text string) ([]int32, error) {
	fields := strings.Fields(text)
	toks := make([]int32, len(fields))
	for i, f := range fields {
		toks[i] = int32(hashToken(f))
	}
	return toks, nil
}

func (h *textHandle) EvalBatch(ctx context.Context, tokens []int32) error {
	select {
	case <-ctx.Done():
		return backend.NewError(backend.KindCancelled, "EvalBatch", ctx.Err())
	default:
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.kv = append(h.kv, tokens...)
	h.logits = makeDeterministicLogits(h.id, len(h.kv))
	return nil
}

func (h *textHandle) Sample(params backend.SamplerParams) (int32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.logits) == 0 {
		return 0, backend.NewError(backend.KindInferenceFailed, "Sample: no logits evaluated", nil)
	}
	if h.generated >= maxGenerated(params) {
		return eosToken, nil
	}
	// Deterministic pseudo-sampling: argmax of the logit vector.
	best := 0
	for i := 1; i < len(h.logits); i++ {
		if h.logits[i] > h.logits[best] {
			best = i
		}
	}
	tok := int32(best + 1) // reserve 0 for EOS
	h.kv = append(h.kv, tok)
	h.generated++
	return tok, nil
}

func maxGenerated(params backend.SamplerParams) int {
	if params.MaxTokens <= 0 {
		return 64
	}
	return params.MaxTokens
}

func (h *textHandle) Logits() []float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logits
}

func (h *textHandle) VocabSize() int { return vocabSize }

func (h *textHandle) TokenToPiece(tok int32) (string, error) {
	if tok == eosToken {
		return "", nil
	}
	return fmt.Sprintf("t%d ", tok), nil
}

func (h *textHandle) IsEndOfGeneration(tok int32) bool { return tok == eosToken }

func hashToken(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return (h % (vocabSize - 1)) + 1
}

func makeDeterministicLogits(seed uint64, step int) []float32 {
	out := make([]float32, vocabSize-1)
	state := seed + uint64(step)
	for i := range out {
		state = state*6364136223846793005 + 1442695040888963407
		out[i] = float32(state>>40) / float32(1<<24)
	}
	return out
}
