package tokens

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizer_Count(t *testing.T) {
	tok, err := NewTokenizer("")
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, tok.Model())
	assert.Positive(t, tok.Count("Hello, world!"))
	assert.Zero(t, tok.Count(""))
}

func TestTokenizer_RoundTrip(t *testing.T) {
	tok, err := NewTokenizer(DefaultModel)
	require.NoError(t, err)

	src := "func main() {\n\tfmt.Println(\"fixed nil deref in parser\")\n}"
	assert.Equal(t, src, tok.Decode(tok.Encode(src)))
}

func TestTokenizer_SpecialSequencesDoNotPanic(t *testing.T) {
	tok, err := NewTokenizer(DefaultModel)
	require.NoError(t, err)

	for _, s := range []string{
		"before <|endoftext|> after",
		"<|fim_prefix|>x<|fim_suffix|>y<|fim_middle|>",
	} {
		assert.NotPanics(t, func() {
			assert.NotEmpty(t, tok.Encode(s))
		})
	}
}

func TestTokenizer_UnknownModel(t *testing.T) {
	_, err := NewTokenizer("definitely-not-a-model")
	assert.Error(t, err)
}

func TestReducer_WithTokenizer(t *testing.T) {
	tok, err := NewTokenizer(DefaultModel)
	require.NoError(t, err)

	r, err := NewReducer(tok, 50, zerolog.Nop())
	require.NoError(t, err)

	long := strings.Repeat("The parser panics when the input is empty. ", 40)
	got := r.Reduce(long)

	assert.Less(t, len(got), len(long))
	assert.LessOrEqual(t, tok.Count(got), 50)
	assert.True(t, strings.HasPrefix(got, "The parser panics"))
}
