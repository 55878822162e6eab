package tokens

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultMaxTokens is the input ceiling of the OpenAI embedding models, minus a small margin.
const DefaultMaxTokens = 8190

// maxPasses bounds re-reduction when a decoded cut re-encodes longer than
// the tokens it came from.
const maxPasses = 4

// ReduceTokens removes a contiguous block from the middle of tokens so that at
// most maxTokens remain. The head and the tail are kept intact. A negative
// maxTokens is treated as zero.
func ReduceTokens(tokens []int, maxTokens int) []int {
	if maxTokens < 0 {
		maxTokens = 0
	}
	n := len(tokens)
	if n <= maxTokens {
		return tokens
	}

	extra := n - maxTokens
	if extra%2 != 0 {
		extra++
	}

	half := n / 2
	leftKept := max(0, half-extra/2)
	rightKept := min(n, half+extra/2)

	kept := make([]int, 0, leftKept+n-rightKept)
	kept = append(kept, tokens[:leftKept]...)
	kept = append(kept, tokens[rightKept:]...)
	return kept
}

// Reducer shrinks text to a fixed token ceiling.
type Reducer struct {
	codec     Codec
	maxTokens int
	log       zerolog.Logger
}

// NewReducer returns a Reducer enforcing maxTokens under codec.
func NewReducer(codec Codec, maxTokens int, log zerolog.Logger) (*Reducer, error) {
	if codec == nil {
		return nil, fmt.Errorf("reducer: codec is required")
	}
	if maxTokens < 0 {
		return nil, fmt.Errorf("reducer: max tokens must not be negative, got %d", maxTokens)
	}
	return &Reducer{codec: codec, maxTokens: maxTokens, log: log}, nil
}

// MaxTokens returns the ceiling the reducer enforces.
func (r *Reducer) MaxTokens() int {
	return r.maxTokens
}

// Count returns the number of tokens text encodes to.
func (r *Reducer) Count(text string) int {
	return len(r.codec.Encode(text))
}

// Fits reports whether text is within the ceiling.
func (r *Reducer) Fits(text string) bool {
	return r.Count(text) <= r.maxTokens
}

// Reduce returns text unchanged when it fits, otherwise text with its middle
// removed so that it encodes to at most MaxTokens tokens.
func (r *Reducer) Reduce(text string) string {
	toks := r.codec.Encode(text)
	if len(toks) <= r.maxTokens {
		return text
	}
	r.log.Info().Int("from", len(toks)).Int("to", r.maxTokens).Msg("reducing tokens")
	return r.shrink(toks, r.maxTokens)
}

// ReduceWithComments fits primary and secondary, joined by a newline, into
// MaxTokens. Only secondary is shortened; primary is returned as is.
func (r *Reducer) ReduceWithComments(primary, secondary string) (string, string) {
	combined := r.codec.Encode(primary + "\n" + secondary)
	if len(combined) <= r.maxTokens {
		return primary, secondary
	}
	r.log.Info().Int("from", len(combined)).Int("to", r.maxTokens).Msg("reducing comment tokens")

	budget := r.maxTokens - len(r.codec.Encode(primary))
	if budget <= 0 {
		r.log.Warn().Int("budget", budget).Msg("primary text fills the budget, dropping comments")
	}
	return primary, r.shrink(r.codec.Encode(secondary), budget)
}

// shrink cuts toks to budget and decodes. Decoding at a cut can produce text
// that re-encodes to more tokens, so the cut is repeated until it fits.
func (r *Reducer) shrink(toks []int, budget int) string {
	if budget < 0 {
		budget = 0
	}
	out := r.codec.Decode(ReduceTokens(toks, budget))
	for pass := 1; pass < maxPasses; pass++ {
		again := r.codec.Encode(out)
		if len(again) <= budget {
			return out
		}
		out = r.codec.Decode(ReduceTokens(again, budget))
	}
	return out
}
