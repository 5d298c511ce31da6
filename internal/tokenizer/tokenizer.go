// Package tokenizer turns field text into normalized tokens that keep their
// position and byte offsets in the original text.
package tokenizer

import (
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/huichen/sego"
)

// Token is a normalized word and where it came from.
type Token struct {
	Text     string // lowercased token text
	Position int    // ordinal position within the tokenized text
	Start    int    // byte offset of the first byte in the original text
	End      int    // byte offset one past the last byte in the original text
}

// Tokenizer splits text on non-alphanumeric boundaries. When built with a
// dictionary it also segments runs of CJK script, which carry no spaces.
type Tokenizer struct {
	segmenter *sego.Segmenter
}

var plain = &Tokenizer{}

// New returns a tokenizer without dictionary segmentation.
func New() *Tokenizer {
	return &Tokenizer{}
}

// NewWithDictionary loads comma-separated sego dictionary files.
func NewWithDictionary(dictionaries string) (*Tokenizer, error) {
	if strings.TrimSpace(dictionaries) == "" {
		return New(), nil
	}
	for _, path := range strings.Split(dictionaries, ",") {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("segmenter dictionary %s: %w", path, err)
		}
	}
	seg := &sego.Segmenter{}
	seg.LoadDictionary(dictionaries)
	return &Tokenizer{segmenter: seg}, nil
}

// Tokenize tokenizes text with the plain tokenizer.
func Tokenize(text string) []Token {
	return plain.Tokenize(text)
}

// Terms returns only the token texts of Tokenize(text).
func Terms(text string) []string {
	tokens := plain.Tokenize(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Text
	}
	return terms
}

// Tokenize lowercases text and splits it into maximal runs of letters and
// digits. Empty input yields an empty, non-nil slice.
func (t *Tokenizer) Tokenize(text string) []Token {
	tokens := make([]Token, 0)
	runStart := -1
	for i, r := range text {
		if isWordRune(r) {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			tokens = t.appendRun(tokens, text, runStart, i)
			runStart = -1
		}
	}
	if runStart >= 0 {
		tokens = t.appendRun(tokens, text, runStart, len(text))
	}
	return tokens
}

func (t *Tokenizer) appendRun(tokens []Token, text string, start, end int) []Token {
	run := text[start:end]
	if t.segmenter != nil && hasUnspacedScript(run) {
		for _, segment := range t.segmenter.Segment([]byte(run)) {
			word := run[segment.Start():segment.End()]
			if !hasWordRune(word) {
				continue
			}
			tokens = append(tokens, Token{
				Text:     strings.ToLower(word),
				Position: len(tokens),
				Start:    start + segment.Start(),
				End:      start + segment.End(),
			})
		}
		return tokens
	}
	return append(tokens, Token{
		Text:     strings.ToLower(run),
		Position: len(tokens),
		Start:    start,
		End:      end,
	})
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if isWordRune(r) {
			return true
		}
	}
	return false
}

// hasUnspacedScript reports whether s contains Han, Hiragana, Katakana or
// Hangul characters.
func hasUnspacedScript(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}

// RuneLen returns the length of a token in characters, which is what typo
// thresholds are measured in.
func RuneLen(token string) int {
	return utf8.RuneCountInString(token)
}
