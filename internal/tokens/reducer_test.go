package tokens

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordCodec treats every whitespace-separated word as one token.
type wordCodec struct {
	ids   map[string]int
	words []string
}

func newWordCodec() *wordCodec {
	return &wordCodec{ids: map[string]int{}}
}

func (c *wordCodec) Encode(text string) []int {
	fields := strings.Fields(text)
	out := make([]int, len(fields))
	for i, w := range fields {
		id, ok := c.ids[w]
		if !ok {
			id = len(c.words)
			c.ids[w] = id
			c.words = append(c.words, w)
		}
		out[i] = id
	}
	return out
}

func (c *wordCodec) Decode(tokens []int) string {
	words := make([]string, len(tokens))
	for i, id := range tokens {
		words[i] = c.words[id]
	}
	return strings.Join(words, " ")
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func words(prefix string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = prefix + strings.Repeat("x", i%3) + string(rune('a'+i%26)) + strings.Repeat("y", i/26)
	}
	return strings.Join(parts, " ")
}

func newTestReducer(t *testing.T, max int) (*Reducer, *wordCodec) {
	t.Helper()
	codec := newWordCodec()
	r, err := NewReducer(codec, max, zerolog.Nop())
	require.NoError(t, err)
	return r, codec
}

func TestReduceTokens(t *testing.T) {
	t.Run("removes the centred block", func(t *testing.T) {
		assert.Equal(t, []int{0, 1, 2, 7, 8, 9}, ReduceTokens(seq(10), 6))
	})

	t.Run("odd excess is rounded up to an even cut", func(t *testing.T) {
		assert.Equal(t, []int{0, 1, 8, 9, 10}, ReduceTokens(seq(11), 6))
	})

	t.Run("within budget is returned as is", func(t *testing.T) {
		assert.Equal(t, seq(5), ReduceTokens(seq(5), 5))
		assert.Equal(t, seq(5), ReduceTokens(seq(5), 100))
	})

	t.Run("zero budget empties the sequence", func(t *testing.T) {
		assert.Empty(t, ReduceTokens(seq(7), 0))
	})

	t.Run("negative budget is clamped to zero", func(t *testing.T) {
		assert.Empty(t, ReduceTokens(seq(10), -4))
		assert.Empty(t, ReduceTokens(seq(3), -100))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, ReduceTokens(nil, 0))
		assert.Empty(t, ReduceTokens([]int{}, 3))
	})
}

func TestReduceTokens_HeadAndTailKept(t *testing.T) {
	for n := 0; n <= 40; n++ {
		for budget := -3; budget <= 45; budget++ {
			toks := seq(n)
			got := ReduceTokens(toks, budget)

			limit := max(budget, 0)
			require.LessOrEqual(t, len(got), limit, "n=%d budget=%d", n, budget)
			if n <= limit {
				require.Equal(t, toks, got)
				continue
			}

			extra := n - limit
			if extra%2 != 0 {
				extra++
			}
			left := max(0, n/2-extra/2)
			right := min(n, n/2+extra/2)
			require.LessOrEqual(t, left, right)
			require.Equal(t, toks[:left], got[:left], "head n=%d budget=%d", n, budget)
			require.Equal(t, toks[right:], got[left:], "tail n=%d budget=%d", n, budget)
		}
	}
}

func TestNewReducer(t *testing.T) {
	t.Run("rejects negative ceiling", func(t *testing.T) {
		_, err := NewReducer(newWordCodec(), -1, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("rejects nil codec", func(t *testing.T) {
		_, err := NewReducer(nil, 10, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("zero ceiling is allowed", func(t *testing.T) {
		r, err := NewReducer(newWordCodec(), 0, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, 0, r.MaxTokens())
	})
}

func TestReducer_Reduce(t *testing.T) {
	t.Run("identity below budget", func(t *testing.T) {
		r, _ := newTestReducer(t, 10)
		text := "keep   this\ttext  exactly"
		assert.Equal(t, text, r.Reduce(text))
	})

	t.Run("keeps head and tail", func(t *testing.T) {
		r, _ := newTestReducer(t, 6)
		got := r.Reduce("t0 t1 t2 t3 t4 t5 t6 t7 t8 t9")
		assert.Equal(t, "t0 t1 t2 t7 t8 t9", got)
	})

	t.Run("budget invariant", func(t *testing.T) {
		for _, budget := range []int{0, 1, 2, 7, 50, 99, 100, 150} {
			r, codec := newTestReducer(t, budget)
			got := r.Reduce(words("w", 100))
			assert.LessOrEqual(t, len(codec.Encode(got)), budget, "budget=%d", budget)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		for _, budget := range []int{0, 3, 10, 64, 200} {
			r, _ := newTestReducer(t, budget)
			once := r.Reduce(words("w", 120))
			assert.Equal(t, once, r.Reduce(once), "budget=%d", budget)
		}
	})
}

func TestReducer_ReduceWithComments(t *testing.T) {
	t.Run("unchanged when combined text fits", func(t *testing.T) {
		r, _ := newTestReducer(t, 10)
		body, comments := r.ReduceWithComments("a b c", "d  e")
		assert.Equal(t, "a b c", body)
		assert.Equal(t, "d  e", comments)
	})

	t.Run("only comments are shortened", func(t *testing.T) {
		r, codec := newTestReducer(t, 10)
		primary := "p0 p1 p2 p3"
		secondary := "c0 c1 c2 c3 c4 c5 c6 c7 c8 c9"

		body, comments := r.ReduceWithComments(primary, secondary)

		assert.Equal(t, primary, body)
		assert.Equal(t, "c0 c1 c2 c7 c8 c9", comments)
		assert.LessOrEqual(t, len(codec.Encode(body+"\n"+comments)), 10)
	})

	t.Run("primary filling the budget empties comments", func(t *testing.T) {
		r, _ := newTestReducer(t, 4)
		primary := "p0 p1 p2 p3 p4 p5"

		body, comments := r.ReduceWithComments(primary, "c0 c1 c2")

		assert.Equal(t, primary, body)
		assert.Empty(t, comments)
	})

	t.Run("primary exactly at the budget", func(t *testing.T) {
		r, _ := newTestReducer(t, 4)
		body, comments := r.ReduceWithComments("p0 p1 p2 p3", "c0 c1")
		assert.Equal(t, "p0 p1 p2 p3", body)
		assert.Empty(t, comments)
	})

	t.Run("primary never shortened", func(t *testing.T) {
		for budget := 0; budget <= 60; budget += 5 {
			r, codec := newTestReducer(t, budget)
			primary := words("p", 20)
			body, comments := r.ReduceWithComments(primary, words("c", 40))
			require.Equal(t, primary, body)
			if budget >= 20 {
				assert.LessOrEqual(t, len(codec.Encode(body+"\n"+comments)), budget)
			}
		}
	})
}

func TestReducer_CountAndFits(t *testing.T) {
	r, err := NewReducer(newWordCodec(), 3, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count("a b c"))
	assert.True(t, r.Fits("a b c"))
	assert.False(t, r.Fits("a b c d"))
}
