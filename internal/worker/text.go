package worker

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/inferedge/runtimecore/internal/backend"
)

// defaultBatchSize is n_batch, the maximum tokens evaluated per decode
// call (spec §4.7.1: "evaluate in batches of n_batch").
const defaultBatchSize = 32

// TextWorker owns one TextHandle, serializing generate/stream calls
// through an invocationGuard (spec §4.7.1, §4.7.5).
type TextWorker struct {
	handle   backend.TextHandle
	guard    invocationGuard
	refcount *backendRefcount
	nBatch   int
}

// NewTextWorker constructs a worker around an already-loaded handle.
// refcount may be nil. TextWorker stores it but neither acquires nor
// releases it; backend lifetime stays with the caller.
func NewTextWorker(h backend.TextHandle, refcount *backendRefcount) *TextWorker {
	return &TextWorker{handle: h, refcount: refcount, nBatch: defaultBatchSize}
}

// Generate blocks the caller until the full response is produced,
// rejecting concurrent callers with backend.ErrBusy (spec §4.7.1).
func (w *TextWorker) Generate(ctx context.Context, prompt string, params backend.SamplerParams) (string, error) {
	release, err := w.guard.tryEnter()
	if err != nil {
		return "", err
	}
	defer release()

	w.handle.ClearKV()
	tokens, err := w.handle.Tokenize(prompt)
	if err != nil {
		return "", backend.NewError(backend.KindInferenceFailed, "Text.Generate: tokenize", err)
	}
	if err := w.evalInBatches(ctx, tokens); err != nil {
		return "", err
	}

	var out strings.Builder
	var stopBuf strings.Builder
	for {
		select {
		case <-ctx.Done():
			return out.String(), backend.NewError(backend.KindCancelled, "Text.Generate", ctx.Err())
		default:
		}
		tok, err := w.handle.Sample(params)
		if err != nil {
			return out.String(), backend.NewError(backend.KindInferenceFailed, "Text.Generate: sample", err)
		}
		if w.handle.IsEndOfGeneration(tok) {
			break
		}
		piece, err := w.handle.TokenToPiece(tok)
		if err != nil {
			return out.String(), backend.NewError(backend.KindInferenceFailed, "Text.Generate: token_to_piece", err)
		}
		out.WriteString(piece)
		if stopMatched(&stopBuf, piece, params.StopSequences) {
			break
		}
	}
	return out.String(), nil
}

func (w *TextWorker) evalInBatches(ctx context.Context, tokens []int32) error {
	for i := 0; i < len(tokens); i += w.nBatch {
		end := i + w.nBatch
		if end > len(tokens) {
			end = len(tokens)
		}
		if err := w.handle.EvalBatch(ctx, tokens[i:end]); err != nil {
			return backend.NewError(backend.KindInferenceFailed, "Text: eval batch", err)
		}
	}
	return nil
}

// stopMatched implements the opt-in stop-sequence matching from spec
// §9(b): matching is on decoded piece text after each append, using a
// rolling suffix buffer to handle sequences split across multiple pieces.
func stopMatched(rolling *strings.Builder, piece string, stops []string) bool {
	if len(stops) == 0 {
		return false
	}
	rolling.WriteString(piece)
	window := rolling.String()
	const maxWindow = 256
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
		rolling.Reset()
		rolling.WriteString(window)
	}
	for _, s := range stops {
		if s != "" && strings.Contains(window, s) {
			return true
		}
	}
	return false
}

// StreamSession is the pull-based handle from spec §3/§4.7.1. Owned by a
// single Stream invocation; destroyed on completion or cancellation.
type StreamSession struct {
	handle      backend.TextHandle
	params      backend.SamplerParams
	cancelled   atomic.Bool
	ended       bool
	confidence  *confidenceAccumulator
	stopRolling strings.Builder
	mu          sync.Mutex
	release     func()
}

// Stream begins a streaming generation, returning a StreamSession the
// caller pulls tokens from (spec §4.7.1).
func (w *TextWorker) Stream(ctx context.Context, prompt string, params backend.SamplerParams) (*StreamSession, error) {
	release, err := w.guard.tryEnter()
	if err != nil {
		return nil, err
	}

	w.handle.ClearKV()
	tokens, err := w.handle.Tokenize(prompt)
	if err != nil {
		release()
		return nil, backend.NewError(backend.KindInferenceFailed, "Text.Stream: tokenize", err)
	}
	if err := w.evalInBatches(ctx, tokens); err != nil {
		release()
		return nil, err
	}

	var conf *confidenceAccumulator
	if params.ConfidenceThreshold > 0 {
		conf = newConfidenceAccumulator(params.ConfidenceThreshold)
	}
	return &StreamSession{
		handle:     w.handle,
		params:     params,
		confidence: conf,
		release:    release,
	}, nil
}

// Pull draws the next token. It returns the decoded piece and a nil error
// on a normal step, ("", backend.ErrStreamEnded) on natural stop (or the
// final piece with backend.ErrStreamEnded when a stop sequence matches),
// and ("", backend.NewError(KindCancelled...)) if Cancel was called.
func (s *StreamSession) Pull(ctx context.Context) (piece string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return "", backend.ErrStreamEnded
	}
	if s.cancelled.Load() {
		s.finish()
		return "", backend.NewError(backend.KindCancelled, "StreamSession.Pull", nil)
	}
	select {
	case <-ctx.Done():
		s.finish()
		return "", backend.NewError(backend.KindCancelled, "StreamSession.Pull", ctx.Err())
	default:
	}

	tok, sampleErr := s.handle.Sample(s.params)
	if sampleErr != nil {
		s.finish()
		return "", backend.NewError(backend.KindInferenceFailed, "StreamSession.Pull: sample", sampleErr)
	}

	if s.confidence.enabled() {
		s.confidence.observe(s.handle.Logits(), s.handle.VocabSize())
	}

	if s.cancelled.Load() {
		s.finish()
		return "", backend.NewError(backend.KindCancelled, "StreamSession.Pull", nil)
	}

	if s.handle.IsEndOfGeneration(tok) {
		s.finish()
		return "", backend.ErrStreamEnded
	}

	p, pieceErr := s.handle.TokenToPiece(tok)
	if pieceErr != nil {
		s.finish()
		return "", backend.NewError(backend.KindInferenceFailed, "StreamSession.Pull: token_to_piece", pieceErr)
	}
	if stopMatched(&s.stopRolling, p, s.params.StopSequences) {
		s.finish()
		return p, backend.ErrStreamEnded
	}
	return p, nil
}

// Cancel sets the cooperative cancellation flag, observed before and
// after every sampling step (spec §4.7.1, §5).
func (s *StreamSession) Cancel() {
	s.cancelled.Store(true)
}

// Confidence returns the running mean confidence and the handoff_signal
// bit; ok is false if confidence estimation was not enabled.
func (s *StreamSession) Confidence() (mean float64, handoff bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.confidence.enabled() {
		return 0, false, false
	}
	return s.confidence.mean(), s.confidence.handoffSignal(), true
}

// finish marks the session ended and releases the worker's invocation
// guard. Caller must hold s.mu.
func (s *StreamSession) finish() {
	if s.ended {
		return
	}
	s.ended = true
	if s.release != nil {
		s.release()
		s.release = nil
	}
}
