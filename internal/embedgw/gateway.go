// Package embedgw implements the Embedding Gateway (C2): it turns
// observation and prompt text into vectors, batching requests to the
// configured embedding provider, deduplicating identical strings within
// a batch, caching by exact text hash, and retrying transient failures
// with exponential backoff. A failure that survives retries for any
// active observation is fatal to the analysis run — clustering
// integrity depends on every active observation having a vector.
package embedgw

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cbie/core/internal/config"
	"github.com/cbie/core/internal/llm"
)

// Cache stores embeddings keyed by the sha256 hex digest of their
// source text, so identical text is never re-embedded across runs.
type Cache interface {
	Get(ctx context.Context, hash string) ([]float32, bool, error)
	Put(ctx context.Context, hash string, vec []float32) error
}

// Gateway bridges an llm.EmbeddingProvider with a Cache, applying
// batching, in-batch dedup, caching, and retry-with-backoff.
type Gateway struct {
	provider llm.EmbeddingProvider
	cache    Cache

	batchSize int

	retryBaseDelay      time.Duration
	retryBackoffFactor  float64
	retryMaxAttempts    int

	sleep func(time.Duration) // overridable for deterministic tests
}

// New builds a Gateway from the embedding section of the pipeline
// configuration.
func New(provider llm.EmbeddingProvider, cache Cache, cfg config.EmbeddingConfig) *Gateway {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Gateway{
		provider:           provider,
		cache:              cache,
		batchSize:          batchSize,
		retryBaseDelay:     time.Duration(cfg.RetryBaseDelaySeconds * float64(time.Second)),
		retryBackoffFactor: cfg.RetryBackoffFactor,
		retryMaxAttempts:   cfg.RetryMaxAttempts,
		sleep:              time.Sleep,
	}
}

// TextHash returns the cache key for a piece of observation text.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbedBatch returns one embedding per input text, in order. It is
// fatal-on-failure: if any text cannot be embedded after exhausting
// retries, the whole call fails rather than returning partial results,
// matching the spec's requirement that embedding failure is never
// per-point skippable.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	// Map each distinct string to the list of output positions it fills,
	// so identical strings are embedded (and charged against the
	// provider/cache) exactly once per batch.
	positionsByText := make(map[string][]int, len(texts))
	var distinct []string
	for i, t := range texts {
		if _, seen := positionsByText[t]; !seen {
			distinct = append(distinct, t)
		}
		positionsByText[t] = append(positionsByText[t], i)
	}

	resolved, err := g.resolveDistinct(ctx, distinct)
	if err != nil {
		return nil, err
	}

	for i, t := range distinct {
		for _, pos := range positionsByText[t] {
			out[pos] = resolved[i]
		}
	}
	return out, nil
}

// resolveDistinct embeds each distinct text exactly once: a cache hit
// skips the provider call entirely; a miss is grouped into
// provider-sized chunks and embedded with retry.
func (g *Gateway) resolveDistinct(ctx context.Context, distinct []string) ([][]float32, error) {
	result := make([][]float32, len(distinct))
	var missIdx []int
	var missTexts []string

	for i, t := range distinct {
		hash := TextHash(t)
		if vec, ok, err := g.cache.Get(ctx, hash); err == nil && ok {
			result[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	for start := 0; start < len(missTexts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}
		chunk := missTexts[start:end]

		vecs, err := g.embedWithRetry(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("embedding gateway: unrecoverable failure embedding %d text(s): %w", len(chunk), err)
		}

		for j, vec := range vecs {
			globalIdx := missIdx[start+j]
			result[globalIdx] = vec

			hash := TextHash(chunk[j])
			if err := g.cache.Put(ctx, hash, vec); err != nil {
				return nil, fmt.Errorf("embedding gateway: caching embedding: %w", err)
			}
		}
	}

	return result, nil
}

// embedWithRetry calls the provider once per attempt, backing off
// exponentially between attempts, up to retryMaxAttempts.
func (g *Gateway) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if g.provider == nil || !g.provider.Available() {
		return nil, fmt.Errorf("no embedding provider available")
	}

	delay := g.retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= g.retryMaxAttempts; attempt++ {
		vecs, err := g.provider.Embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		if attempt == g.retryMaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		g.sleep(delay)
		delay = time.Duration(float64(delay) * g.retryBackoffFactor)
	}

	return nil, fmt.Errorf("exhausted %d attempts: %w", g.retryMaxAttempts, lastErr)
}
