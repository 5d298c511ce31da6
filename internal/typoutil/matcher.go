package typoutil

import (
	"context"
	"sort"
	"unicode/utf8"

	"github.com/gcbaptista/go-search-core/config"
)

// Match is an indexed term within the allowed edit distance of a query token.
type Match struct {
	Term     string
	Distance int
}

// TermSource enumerates the distinct terms indexed for a field. fn returns
// false to stop the iteration.
type TermSource interface {
	ForEachTerm(field string, fn func(term string) bool)
}

// MaxTypos returns the typo budget of a token: 0 below minFor1, 1 below
// minFor2 and 2 otherwise. Length is counted in characters.
func MaxTypos(token string, minFor1, minFor2 int) int {
	n := utf8.RuneCountInString(token)
	switch {
	case n < minFor1:
		return 0
	case n < minFor2:
		return 1
	default:
		return 2
	}
}

// Matcher finds indexed terms that are a bounded number of edits away from a
// query token. Every term within the budget is returned, ties included.
type Matcher struct{}

// NewMatcher creates a matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Expand returns the typo variants of token in field under the index's
// current settings. Fields without typo tolerance and non-typo-tolerant words
// expand to nothing, as do tokens shorter than the 1-typo threshold, without
// touching the vocabulary.
func (m *Matcher) Expand(ctx context.Context, src TermSource, token, field string, settings *config.IndexSettings) ([]Match, error) {
	if !settings.TypoToleranceEnabled(field) || settings.IsNonTypoTolerantWord(token) {
		return []Match{}, nil
	}
	budget := MaxTypos(token, settings.MinWordSizeFor1Typo, settings.MinWordSizeFor2Typos)
	return m.Find(ctx, src, field, token, budget)
}

// Find returns the terms of field whose distance to token is between 1 and
// maxDistance, closest first and alphabetically within a distance. The exact
// term itself is never returned. The scan stops early when ctx is done, in
// which case ctx.Err() is returned.
func (m *Matcher) Find(ctx context.Context, src TermSource, field, token string, maxDistance int) ([]Match, error) {
	matches := make([]Match, 0)
	if maxDistance <= 0 || token == "" {
		return matches, nil
	}

	tokenRunes := []rune(token)
	tokenLen := len(tokenRunes)
	scanned := 0
	var scanErr error

	src.ForEachTerm(field, func(term string) bool {
		scanned++
		if scanned%1024 == 0 {
			if err := ctx.Err(); err != nil {
				scanErr = err
				return false
			}
		}
		if term == token {
			return true
		}
		lengthDiff := utf8.RuneCountInString(term) - tokenLen
		if lengthDiff < 0 {
			lengthDiff = -lengthDiff
		}
		if lengthDiff > maxDistance {
			return true
		}
		dist := distanceWithLimit(tokenRunes, []rune(term), maxDistance)
		if dist > 0 && dist <= maxDistance {
			matches = append(matches, Match{Term: term, Distance: dist})
		}
		return true
	})
	if scanErr != nil {
		return nil, scanErr
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Term < matches[j].Term
	})
	return matches, nil
}
