// Package chunker splits document text into overlapping, token-bounded chunks.
package chunker

import (
	"math"
	"strings"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Chunker slides a fixed-width token window over a document's token sequence.
type Chunker struct {
	tok         domain.Tokenizer
	alignRadius int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithBoundaryAlignment snaps each window end to the nearest preceding
// sentence or paragraph boundary within radius tokens, falling back to the
// raw token cut when none is found. After a snap the next window resumes
// relative to the actual cut, so every token stays covered by some chunk.
// Trades exact token-budget adherence for semantic coherence. Off by default.
func WithBoundaryAlignment(radius int) Option {
	return func(c *Chunker) {
		if radius > 0 {
			c.alignRadius = radius
		}
	}
}

// New creates a chunker over the given tokenizer capability.
func New(tok domain.Tokenizer, opts ...Option) *Chunker {
	c := &Chunker{tok: tok}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Chunk splits text into chunks of at most maxTokens tokens, with consecutive
// windows starting every step = max(1, floor(maxTokens*(1-overlapFraction)))
// tokens. The final window is clipped to the remaining tokens and is always
// emitted, so no trailing text is ever dropped.
func (c *Chunker) Chunk(docID, text string, maxTokens int, overlapFraction float64) ([]domain.Chunk, error) {
	if maxTokens < 1 {
		return nil, domain.NewConfigError("max_tokens", maxTokens, "must be >= 1")
	}
	if overlapFraction < 0 || overlapFraction >= 1 {
		return nil, domain.NewConfigError("overlap_fraction", overlapFraction, "must be in [0, 1)")
	}

	tokens := c.tok.Encode(text)
	n := len(tokens)
	if n == 0 {
		return nil, nil
	}

	// The floor-to-1 keeps an overlap fraction approaching 1 from stalling
	// the window.
	step := int(math.Floor(float64(maxTokens) * (1 - overlapFraction)))
	if step < 1 {
		step = 1
	}
	overlapTokens := maxTokens - step

	var chunks []domain.Chunk
	for start := 0; start < n; {
		end := start + maxTokens
		if end > n {
			end = n
		}
		snapped := false
		if c.alignRadius > 0 && end < n {
			if cut := c.alignEnd(tokens, start, end); cut < end {
				end = cut
				snapped = true
			}
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: docID,
			Index:      len(chunks),
			Text:       c.tok.Decode(tokens[start:end]),
			TokenCount: end - start,
			StartToken: start,
			EndToken:   end,
		})
		if snapped {
			// Resume from the snapped cut, keeping the overlap against it.
			// Stepping from the original grid here would skip the tokens
			// between the cut and the next grid start.
			next := end - overlapTokens
			if next <= start {
				next = start + 1
			}
			start = next
		} else {
			start += step
		}
	}
	return chunks, nil
}

// alignEnd snaps end back to just after the nearest preceding token that
// closes a sentence or paragraph, searching at most alignRadius tokens.
// Window starts stay on the stride grid; only the cut point moves.
func (c *Chunker) alignEnd(tokens []int, start, end int) int {
	low := end - c.alignRadius
	if low <= start {
		low = start + 1
	}
	for j := end - 1; j >= low; j-- {
		if isBoundaryToken(c.tok.Decode(tokens[j : j+1])) {
			return j + 1
		}
	}
	return end
}

func isBoundaryToken(text string) bool {
	trimmed := strings.TrimRight(text, " \t")
	return strings.HasSuffix(trimmed, ".") ||
		strings.HasSuffix(trimmed, "!") ||
		strings.HasSuffix(trimmed, "?") ||
		strings.HasSuffix(trimmed, "\n")
}
