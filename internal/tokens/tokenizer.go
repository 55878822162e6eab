// Package tokens encodes text for the embedding model and shrinks oversized
// text to fit its input ceiling.
package tokens

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultModel is the embedding model whose encoding is used when none is configured.
const DefaultModel = "text-embedding-3-large"

// Control sequences that are encoded as tokens instead of rejected.
var allowedSpecial = []string{
	"<|endoftext|>",
	"<|fim_prefix|>",
	"<|fim_suffix|>",
	"<|fim_middle|>",
}

// Embedding models that older tiktoken model tables do not know about.
var modelEncodings = map[string]string{
	"text-embedding-3-large": tiktoken.MODEL_CL100K_BASE,
	"text-embedding-3-small": tiktoken.MODEL_CL100K_BASE,
	"text-embedding-ada-002": tiktoken.MODEL_CL100K_BASE,
}

// Codec maps text to token ids and back.
type Codec interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

// Tokenizer wraps the tiktoken encoding of one embedding model.
type Tokenizer struct {
	model string
	enc   *tiktoken.Tiktoken
}

var _ Codec = (*Tokenizer)(nil)

// NewTokenizer loads the encoding used by model. An empty model selects DefaultModel.
func NewTokenizer(model string) (*Tokenizer, error) {
	if model == "" {
		model = DefaultModel
	}

	var (
		enc *tiktoken.Tiktoken
		err error
	)
	if name, ok := modelEncodings[model]; ok {
		enc, err = tiktoken.GetEncoding(name)
	} else {
		enc, err = tiktoken.EncodingForModel(model)
	}
	if err != nil {
		return nil, fmt.Errorf("tokenizer: encoding for %s: %w", model, err)
	}
	return &Tokenizer{model: model, enc: enc}, nil
}

// Model returns the model the encoding was chosen for.
func (t *Tokenizer) Model() string {
	return t.model
}

// Encode returns the token ids of text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, allowedSpecial, nil)
}

// Decode turns token ids back into text.
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in s.
func (t *Tokenizer) Count(s string) int {
	return len(t.Encode(s))
}
