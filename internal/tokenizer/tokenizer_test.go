package tokenizer

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: []string{},
		},
		{
			name:     "simple lowercase",
			input:    "hello world",
			expected: []string{"hello", "world"},
		},
		{
			name:     "mixed case is lowercased",
			input:    "Hello World",
			expected: []string{"hello", "world"},
		},
		{
			name:     "punctuation splits",
			input:    "hello, world! how-are_you?",
			expected: []string{"hello", "world", "how", "are", "you"},
		},
		{
			name:     "numbers are kept",
			input:    "Blade Runner 2049",
			expected: []string{"blade", "runner", "2049"},
		},
		{
			name:     "only separators",
			input:    " ,.;!? ",
			expected: []string{},
		},
		{
			name:     "unicode letters",
			input:    "Amélie Poulain, Zoë",
			expected: []string{"amélie", "poulain", "zoë"},
		},
		{
			name:     "camelCase is one token",
			input:    "theOffice",
			expected: []string{"theoffice"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Terms(tt.input); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Terms(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestTokenizeKeepsPositionsAndOffsets(t *testing.T) {
	text := "The Lord, of the RINGS"
	tokens := Tokenize(text)
	require.Len(t, tokens, 5)

	for i, tok := range tokens {
		assert.Equal(t, i, tok.Position)
	}
	assert.Equal(t, "lord", tokens[1].Text)
	assert.Equal(t, "Lord", text[tokens[1].Start:tokens[1].End])
	assert.Equal(t, "rings", tokens[4].Text)
	assert.Equal(t, "RINGS", text[tokens[4].Start:tokens[4].End])
}

func TestTokenizeMultibyteOffsets(t *testing.T) {
	text := "café crème"
	tokens := Tokenize(text)
	require.Len(t, tokens, 2)
	assert.Equal(t, "café", text[tokens[0].Start:tokens[0].End])
	assert.Equal(t, "crème", text[tokens[1].Start:tokens[1].End])
}

func TestTokenizeIsDeterministic(t *testing.T) {
	text := "Typo-tolerant search, ranked & filtered"
	assert.Equal(t, Tokenize(text), Tokenize(text))
}

func TestNewWithDictionary(t *testing.T) {
	tok, err := NewWithDictionary("")
	require.NoError(t, err)
	assert.Equal(t, []Token{{Text: "go", Position: 0, Start: 0, End: 2}}, tok.Tokenize("Go"))

	_, err = NewWithDictionary("/nonexistent/dictionary.txt")
	assert.Error(t, err)
}

func TestRuneLen(t *testing.T) {
	assert.Equal(t, 4, RuneLen("café"))
	assert.Equal(t, 0, RuneLen(""))
}
