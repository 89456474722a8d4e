// Package processor implements the queue processor (spec C4): it drains
// pending batches, calls the compressor, writes observations, keeps
// session counts current, and detects supersession candidates within a
// session.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/jalfaro/engramd/internal/ai"
	"github.com/jalfaro/engramd/internal/store"
)

// Mode selects who drains the pending queue (spec §4.4).
type Mode int

const (
	// ModeInProcess drains the queue directly on ProcessBatch.
	ModeInProcess Mode = iota
	// ModeEnqueueOnly makes ProcessBatch a no-op; OnEnqueue fires instead.
	ModeEnqueueOnly
)

// Processor is C4. Switching Mode is safe at any time and never loses
// entries — it only changes who drains them (spec §4.4).
type Processor struct {
	store      *store.Store
	compressor ai.Compressor
	embedder   ai.Embedder
	log        *zap.Logger

	batchSize int

	mu        sync.Mutex
	mode      Mode
	onEnqueue func()

	compressBreaker *gobreaker.CircuitBreaker
	embedBreaker    *gobreaker.CircuitBreaker

	// Conflict-detection thresholds (spec §9 open question, resolved in
	// SPEC_FULL.md §9): Jaccard similarity over shingled narrative text,
	// concepts, and modified files, scoped to the same session.
	highBand float64
	lowBand  float64
}

// Option configures a Processor at construction time.
type Option func(*Processor)

func WithEmbedder(e ai.Embedder) Option { return func(p *Processor) { p.embedder = e } }
func WithBatchSize(n int) Option        { return func(p *Processor) { p.batchSize = n } }
func WithBands(low, high float64) Option {
	return func(p *Processor) { p.lowBand, p.highBand = low, high }
}

// New builds a Processor. compressor is required; every other collaborator
// has a deterministic no-op default so tests never need to stub them all.
func New(st *store.Store, compressor ai.Compressor, log *zap.Logger, opts ...Option) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Processor{
		store:      st,
		compressor: compressor,
		embedder:   ai.NoopEmbedder{},
		log:        log,
		batchSize:  10,
		mode:       ModeInProcess,
		highBand:   0.82,
		lowBand:    0.55,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.compressBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "compressor",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	})
	p.embedBreaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedder",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
	})
	return p
}

// SetMode switches processing modes at any time, per spec §4.4.
func (p *Processor) SetMode(m Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = m
}

func (p *Processor) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// OnEnqueue registers the callback fired synchronously on each enqueue when
// running in ModeEnqueueOnly — the single place the producer talks to the
// consumer across the process boundary (spec §4.4, §9).
func (p *Processor) OnEnqueue(cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onEnqueue = cb
}

// Enqueue durably queues a tool-capture event and, in enqueue-only mode,
// fires the on-enqueue callback.
func (p *Processor) Enqueue(ctx context.Context, sessionID, toolName, output, callID string) (int64, error) {
	id, err := p.store.Enqueue(sessionID, toolName, output, callID)
	if err != nil {
		return 0, err
	}

	p.mu.Lock()
	mode, cb := p.mode, p.onEnqueue
	p.mu.Unlock()

	if mode == ModeEnqueueOnly && cb != nil {
		cb()
	}
	return id, nil
}

// ProcessBatch drains up to batchSize pending entries, per the spec §4.4
// algorithm. It is a no-op in ModeEnqueueOnly. It returns the number of
// rows successfully completed (not attempted) — the daemon's idle-exit
// timer is driven by this count.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	if p.Mode() == ModeEnqueueOnly {
		return 0, nil
	}

	pending, err := p.store.GetPending(p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("processor: get pending: %w", err)
	}

	completed := 0
	for _, msg := range pending {
		if err := p.processOne(ctx, msg); err != nil {
			p.log.Warn("processor: batch entry failed, continuing", zap.Int64("pendingId", msg.ID), zap.Error(err))
			if merr := p.store.MarkFailed(msg.ID, err); merr != nil {
				p.log.Error("processor: mark failed also failed", zap.Error(merr))
			}
			continue
		}
		completed++
	}
	return completed, nil
}

// processOne runs one pending entry through mark_processing -> compress ->
// persist -> conflict-detect -> mark_completed. Any failure in the middle
// steps propagates to the caller, which marks the entry failed and moves on
// — processor errors never crash the outer loop (spec §4.4).
func (p *Processor) processOne(ctx context.Context, msg store.PendingMessage) error {
	if err := p.store.MarkProcessing(msg.ID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	draft := p.compress(ctx, msg)

	embedding := p.embed(ctx, draft.Narrative)

	obsID, err := p.store.AddObservation(store.AddObservationParams{
		SessionID:       msg.SessionID,
		Type:            draft.Type,
		Title:           draft.Title,
		Subtitle:        draft.Subtitle,
		Facts:           draft.Facts,
		Narrative:       draft.Narrative,
		Concepts:        draft.Concepts,
		FilesRead:       draft.FilesRead,
		FilesModified:   draft.FilesModified,
		RawOutput:       msg.ToolOutput,
		ToolName:        msg.ToolName,
		Importance:      draft.Importance,
		TokenCount:      draft.TokenCount,
		DiscoveryTokens: draft.DiscoveryTokens,
		Embedding:       embedding,
	})
	if err != nil {
		return fmt.Errorf("persist observation: %w", err)
	}

	if err := p.detectConflict(msg.SessionID, obsID); err != nil {
		return fmt.Errorf("conflict detection: %w", err)
	}

	return p.store.MarkCompleted(msg.ID)
}

// compress calls the compressor through a circuit breaker; any failure
// (error, breaker-open, or panic recovered by gobreaker) substitutes the
// deterministic fallback draft, per spec §4.4 step 2 / §7.
func (p *Processor) compress(ctx context.Context, msg store.PendingMessage) *ai.ObservationDraft {
	result, err := p.compressBreaker.Execute(func() (interface{}, error) {
		return p.compressor.Compress(ctx, msg.ToolOutput, msg.ToolName)
	})
	if err != nil {
		p.log.Info("processor: compressor failed, using fallback draft", zap.Error(err))
		fallback, _ := ai.FallbackCompressor{}.Compress(ctx, msg.ToolOutput, msg.ToolName)
		return fallback
	}
	return result.(*ai.ObservationDraft)
}

// embed calls the embedder through a circuit breaker; any failure or a nil
// result means "skip embedding, continue FTS-only" (spec §7).
func (p *Processor) embed(ctx context.Context, text string) []float32 {
	if p.embedder == nil || p.embedder.Dimensions() == 0 || text == "" {
		return nil
	}
	result, err := p.embedBreaker.Execute(func() (interface{}, error) {
		return p.embedder.Embed(ctx, text)
	})
	if err != nil {
		p.log.Info("processor: embedding skipped", zap.Error(err))
		return nil
	}
	vec, _ := result.([]float32)
	return vec
}
