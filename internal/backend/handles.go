package backend

import "context"

// SamplerParams are the caller-supplied generation parameters (spec §6).
// StopSequences and GrammarStr/GrammarRoot are borrowed for the lifetime of
// the call; the backend must not retain them past return.
type SamplerParams struct {
	MaxTokens           int
	Temperature         float32
	TopP                float32
	TopK                int
	RepeatPenalty       float32
	FrequencyPenalty    float32
	PresencePenalty     float32
	StopSequences       []string
	GrammarStr          string
	GrammarRoot         string
	ConfidenceThreshold float64
}

// TextHandle is a ContextHandle for the text/streaming Worker (spec §4.7.1).
type TextHandle interface {
	Handle

	// ClearKV clears the key/value cache, starting a fresh generation.
	ClearKV()

	// Tokenize converts prompt text to tokens and returns the complete
	// token sequence; any resize-on-undersized-buffer handling of the
	// underlying runtime stays inside the implementation.
	Tokenize(text string) ([]int32, error)

	// EvalBatch decodes a batch of at most nBatch tokens, advancing the KV
	// position cursor.
	EvalBatch(ctx context.Context, tokens []int32) error

	// Sample draws the next token from the current logit distribution
	// given the sampler chain state.
	Sample(params SamplerParams) (int32, error)

	// Logits returns the raw logit vector for the most recent Sample call,
	// used by the confidence estimator (spec §4.7.1).
	Logits() []float32

	// VocabSize returns the size of the model's vocabulary.
	VocabSize() int

	// TokenToPiece converts a token to its decoded text fragment. May
	// return an empty string; the caller must still account for it in the
	// KV cache (spec §6).
	TokenToPiece(tok int32) (string, error)

	// IsEndOfGeneration reports whether tok is the backend's
	// end-of-generation sentinel.
	IsEndOfGeneration(tok int32) bool
}

// VisionHandle is a ContextHandle for the Vision Worker (spec §4.7.2).
type VisionHandle interface {
	Handle

	ClearKV()

	// InitBitmap constructs a bitmap view over caller-owned RGB bytes. The
	// view must not outlive the call that produced it.
	InitBitmap(rgb []byte, width, height int) (BitmapView, error)

	// TokenizeMixed builds the prompt (runtime media marker prepended) and
	// tokenizes it into an ordered sequence of text and image chunks.
	TokenizeMixed(prompt string, bmp BitmapView) ([]Chunk, error)

	// EvalChunk evaluates one chunk: the projector encodes image chunks,
	// the runtime decodes text chunks, and the position cursor advances
	// either way.
	EvalChunk(ctx context.Context, c Chunk) error

	Sample(params SamplerParams) (int32, error)
	Logits() []float32
	VocabSize() int
	TokenToPiece(tok int32) (string, error)
	IsEndOfGeneration(tok int32) bool
}

// BitmapView is a non-owning view over caller RGB bytes; it must be freed
// immediately after the evaluation that consumes it (spec §4.7.2,
// "bounded memory").
type BitmapView interface {
	Free()
}

// ChunkKind distinguishes text and image chunks in a mixed tokenization.
type ChunkKind uint8

const (
	ChunkText ChunkKind = iota
	ChunkImage
)

// Chunk is one element of a mixed text+image tokenization sequence.
type Chunk struct {
	Kind   ChunkKind
	Tokens []int32    // valid when Kind == ChunkText
	Bitmap BitmapView // valid when Kind == ChunkImage
}

// ImageParams configures a text-to-image diffusion call (spec §4.7.3).
type ImageParams struct {
	Prompt       string
	NegPrompt    string
	Width        int
	Height       int
	Steps        int
	CFG          float32
	SamplerKind  string
	ScheduleKind string
	Seed         int64
}

// ImageResult is core-owned pixel storage, memcpy'd from the runtime's
// buffer before the runtime frees its own (spec §4.7.3, §9).
type ImageResult struct {
	RGBBytes []byte
	Width    int
	Height   int
	Channels int
}

// ProgressFunc is invoked by the diffusion runtime as generation proceeds.
// step is 1-indexed; total is the configured step count.
type ProgressFunc func(step, total int)

// ImageHandle is a ContextHandle for the Image Generation Worker.
type ImageHandle interface {
	Handle

	// Generate runs the full diffusion loop. progress may be nil.
	Generate(ctx context.Context, p ImageParams, progress ProgressFunc) (ImageResult, error)
}

// Segment is one transcribed span (spec §4.7.4). StartMS/EndMS are already
// converted from the runtime's centisecond units.
type Segment struct {
	Text    string
	StartMS int64
	EndMS   int64
}

// TranscribeParams configures a speech-to-text call.
type TranscribeParams struct {
	Language string
	Translate bool
}

// TranscribeResult is the full output of one transcription call.
type TranscribeResult struct {
	Text      string
	Segments  []Segment
	ProcessMS int64
}

// SpeechHandle is a ContextHandle for the Speech Worker.
type SpeechHandle interface {
	Handle

	// Transcribe runs the full pipeline over 16kHz mono f32 PCM samples.
	Transcribe(ctx context.Context, pcm []float32, params TranscribeParams) (TranscribeResult, error)
}
