package search

import (
	"sort"
	"strings"

	"github.com/gcbaptista/go-search-core/config"
	"github.com/gcbaptista/go-search-core/model"
)

// ScoreField is a ranking criterion field that orders by the match score.
const ScoreField = "~score"

type matchKind int

const (
	matchExact matchKind = iota
	matchPrefix
	matchTypo
)

// tokenMatch is how one query token matched one document.
type tokenMatch struct {
	kind      matchKind
	typos     int
	fieldRank int // position of the matched field in the searchable fields
}

// better reports whether m is a stronger match than other: fewer typos, then
// exact over prefix, then an earlier field.
func (m tokenMatch) better(other tokenMatch) bool {
	if m.typos != other.typos {
		return m.typos < other.typos
	}
	if m.kind != other.kind {
		return m.kind < other.kind
	}
	return m.fieldRank < other.fieldRank
}

// candidate is a document that matched every query token.
type candidate struct {
	docID uint32
	doc   model.Document

	numTypos      int
	numExact      int
	numPrefix     int
	fieldRankSum  int
	score         float64
	matchedTokens map[string]map[string]struct{} // field -> matched index tokens
}

func newCandidate(docID uint32, doc model.Document) *candidate {
	return &candidate{docID: docID, doc: doc, matchedTokens: make(map[string]map[string]struct{})}
}

func (c *candidate) addMatchedToken(field, token string) {
	set, ok := c.matchedTokens[field]
	if !ok {
		set = make(map[string]struct{})
		c.matchedTokens[field] = set
	}
	set[token] = struct{}{}
}

// summarize folds the best match of each query token into the candidate's
// match quality and score.
func (c *candidate) summarize(best []tokenMatch) {
	if len(best) == 0 {
		return
	}
	for _, m := range best {
		c.numTypos += m.typos
		c.fieldRankSum += m.fieldRank
		switch m.kind {
		case matchExact:
			c.numExact++
		case matchPrefix:
			c.numPrefix++
		}
	}
	c.score = qualityScore(len(best), c.numTypos, c.numExact, c.numPrefix, c.fieldRankSum)
}

// qualityScore maps the match quality of a candidate that matched n query
// tokens onto (0, 1], in the same order compareQuality uses. Each typo count
// t owns the band (1/(t+2), 1/(t+1)]; inside a band fewer non-exact words,
// then fewer prefix words, then earlier fields score higher. An exact match
// of every token in the first searchable field scores 1.
func qualityScore(n, typos, exact, prefix, fieldRankSum int) float64 {
	hi := 1 / float64(typos+1)
	lo := 1 / float64(typos+2)

	width := float64(n + 1)
	fieldPenalty := float64(fieldRankSum) / float64(fieldRankSum+1) // [0, 1)
	offset := (float64(n-exact)*width + float64(prefix) + fieldPenalty) / (width * width)
	return hi - (hi-lo)*offset
}

// compareQuality orders by match quality alone; negative means a ranks first.
func compareQuality(a, b *candidate) int {
	switch {
	case a.numTypos != b.numTypos:
		return a.numTypos - b.numTypos
	case a.numExact != b.numExact:
		return b.numExact - a.numExact
	case a.numPrefix != b.numPrefix:
		return a.numPrefix - b.numPrefix
	default:
		return a.fieldRankSum - b.fieldRankSum
	}
}

// compareCriterion orders two candidates by one ranking criterion. Documents
// missing the field sort after those that have it, whatever the direction.
func compareCriterion(a, b *candidate, criterion config.RankingCriterion) int {
	desc := strings.EqualFold(criterion.Order, "desc")
	if criterion.Field == ScoreField {
		return directed(compareFloat(a.score, b.score), desc)
	}

	va := a.doc.Field(criterion.Field)
	vb := b.doc.Field(criterion.Field)
	switch {
	case va.IsNull() && vb.IsNull():
		return 0
	case va.IsNull():
		return 1
	case vb.IsNull():
		return -1
	}
	if cmp, ok := model.Compare(va, vb); ok {
		return directed(cmp, desc)
	}
	// Values of different kinds still need a stable order
	if va.Kind != vb.Kind {
		return directed(int(va.Kind)-int(vb.Kind), desc)
	}
	return directed(strings.Compare(va.Key(), vb.Key()), desc)
}

func directed(cmp int, desc bool) int {
	if desc {
		return -cmp
	}
	return cmp
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// rank sorts candidates: match quality, then the ranking criteria in order,
// then internal id ascending, so the order is total and repeatable.
func rank(candidates []*candidate, criteria []config.RankingCriterion) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if cmp := compareQuality(a, b); cmp != 0 {
			return cmp < 0
		}
		for _, criterion := range criteria {
			if cmp := compareCriterion(a, b, criterion); cmp != 0 {
				return cmp < 0
			}
		}
		return a.docID < b.docID
	})
}

// distinct keeps the first candidate of each distinct value of field,
// preserving order. Candidates without a value for field are all kept.
func distinct(candidates []*candidate, field string) []*candidate {
	if field == "" || len(candidates) == 0 {
		return candidates
	}
	seen := make(map[string]struct{}, len(candidates))
	kept := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		value := c.doc.Field(field)
		if value.IsNull() {
			kept = append(kept, c)
			continue
		}
		key := value.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
	}
	return kept
}
