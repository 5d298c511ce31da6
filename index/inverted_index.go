// Package index holds the in-memory inverted index of a search index: for
// every field, a map from token to the documents containing it.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/huichen/murmur"

	"github.com/gcbaptista/go-search-core/internal/tokenizer"
	"github.com/gcbaptista/go-search-core/model"
)

// DefaultShards is the number of posting shards used when none is configured.
const DefaultShards = 16

// FieldTerms is an analyzed document: field -> token -> positions.
type FieldTerms map[string]map[string][]int

// TermPostings pairs a vocabulary token with its posting list.
type TermPostings struct {
	Token    string
	Postings PostingList
}

// InvertedIndex maps a token to the documents containing it, per field.
// Tokens are spread over shards by their murmur3 hash; each shard has its own
// lock, so documents can be added concurrently.
type InvertedIndex struct {
	shards []*shard
}

type shard struct {
	mu     sync.RWMutex
	fields map[string]*fieldPostings
}

// fieldPostings holds the posting lists of one field within a shard, plus
// the shard's vocabulary for that field in sorted order for prefix scans.
type fieldPostings struct {
	lists map[string]PostingList
	vocab []string
}

// New creates an empty index with numShards posting shards.
func New(numShards int) *InvertedIndex {
	if numShards <= 0 {
		numShards = DefaultShards
	}
	ii := &InvertedIndex{shards: make([]*shard, numShards)}
	for i := range ii.shards {
		ii.shards[i] = &shard{fields: make(map[string]*fieldPostings)}
	}
	return ii
}

// Analyze tokenizes the given fields of doc. Array values are tokenized
// element by element with positions continuing across elements.
func Analyze(tok *tokenizer.Tokenizer, doc model.Document, fields []string) FieldTerms {
	terms := make(FieldTerms, len(fields))
	for _, field := range fields {
		position := 0
		for _, text := range doc.FieldText(field) {
			tokens := tok.Tokenize(text)
			if len(tokens) == 0 {
				continue
			}
			if terms[field] == nil {
				terms[field] = make(map[string][]int)
			}
			for _, t := range tokens {
				terms[field][t.Text] = append(terms[field][t.Text], position+t.Position)
			}
			position += len(tokens)
		}
	}
	return terms
}

func (ii *InvertedIndex) shardIndex(token string) int {
	return int(murmur.Murmur3([]byte(token)) % uint32(len(ii.shards)))
}

type termRef struct {
	field     string
	token     string
	positions []int
}

// bucket groups the terms of a document by shard so each shard is locked once.
func (ii *InvertedIndex) bucket(terms FieldTerms) [][]termRef {
	buckets := make([][]termRef, len(ii.shards))
	for field, tokens := range terms {
		for token, positions := range tokens {
			idx := ii.shardIndex(token)
			buckets[idx] = append(buckets[idx], termRef{field: field, token: token, positions: positions})
		}
	}
	return buckets
}

// AddDocument adds the postings of an analyzed document. Adding a document
// that already has postings for a token replaces that posting.
func (ii *InvertedIndex) AddDocument(docID uint32, terms FieldTerms) {
	for idx, refs := range ii.bucket(terms) {
		if len(refs) == 0 {
			continue
		}
		s := ii.shards[idx]
		s.mu.Lock()
		for _, ref := range refs {
			s.add(docID, ref)
		}
		s.mu.Unlock()
	}
}

// RemoveDocument retracts the postings of an analyzed document. The terms
// must be the analysis of the document as it was indexed.
func (ii *InvertedIndex) RemoveDocument(docID uint32, terms FieldTerms) {
	for idx, refs := range ii.bucket(terms) {
		if len(refs) == 0 {
			continue
		}
		s := ii.shards[idx]
		s.mu.Lock()
		for _, ref := range refs {
			s.remove(docID, ref.field, ref.token)
		}
		s.mu.Unlock()
	}
}

// Clear drops every posting of every shard.
func (ii *InvertedIndex) Clear() {
	for _, s := range ii.shards {
		s.mu.Lock()
		s.fields = make(map[string]*fieldPostings)
		s.mu.Unlock()
	}
}

func (s *shard) add(docID uint32, ref termRef) {
	fp, ok := s.fields[ref.field]
	if !ok {
		fp = &fieldPostings{lists: make(map[string]PostingList)}
		s.fields[ref.field] = fp
	}
	entry := PostingEntry{DocID: docID, Field: ref.field, Positions: append([]int(nil), ref.positions...)}

	list, exists := fp.lists[ref.token]
	if !exists {
		fp.insertVocab(ref.token)
	}
	i, found := list.search(docID)
	switch {
	case found:
		list[i] = entry
	case i == len(list):
		list = append(list, entry)
	default:
		list = append(list, PostingEntry{})
		copy(list[i+1:], list[i:])
		list[i] = entry
	}
	fp.lists[ref.token] = list
}

func (s *shard) remove(docID uint32, field, token string) {
	fp, ok := s.fields[field]
	if !ok {
		return
	}
	list, ok := fp.lists[token]
	if !ok {
		return
	}
	i, found := list.search(docID)
	if !found {
		return
	}
	if len(list) == 1 {
		delete(fp.lists, token)
		fp.removeVocab(token)
		if len(fp.lists) == 0 {
			delete(s.fields, field)
		}
		return
	}
	// Readers receive copies, so the backing array can be shifted in place
	copy(list[i:], list[i+1:])
	list[len(list)-1] = PostingEntry{}
	fp.lists[token] = list[:len(list)-1]
}

func (fp *fieldPostings) insertVocab(token string) {
	i := sort.SearchStrings(fp.vocab, token)
	fp.vocab = append(fp.vocab, "")
	copy(fp.vocab[i+1:], fp.vocab[i:])
	fp.vocab[i] = token
}

func (fp *fieldPostings) removeVocab(token string) {
	i := sort.SearchStrings(fp.vocab, token)
	if i < len(fp.vocab) && fp.vocab[i] == token {
		fp.vocab = append(fp.vocab[:i], fp.vocab[i+1:]...)
	}
}

// Lookup returns a copy of the posting list of token in field.
func (ii *InvertedIndex) Lookup(token, field string) PostingList {
	s := ii.shards[ii.shardIndex(token)]
	s.mu.RLock()
	defer s.mu.RUnlock()
	fp, ok := s.fields[field]
	if !ok {
		return nil
	}
	return copyList(fp.lists[token])
}

// PrefixLookup returns every token of field that starts with prefix, with a
// copy of its posting list, sorted by token. The prefix itself is included
// when it is a token of the field.
func (ii *InvertedIndex) PrefixLookup(prefix, field string) []TermPostings {
	var result []TermPostings
	if prefix == "" {
		return result
	}
	for _, s := range ii.shards {
		s.mu.RLock()
		if fp, ok := s.fields[field]; ok {
			for i := sort.SearchStrings(fp.vocab, prefix); i < len(fp.vocab); i++ {
				token := fp.vocab[i]
				if !strings.HasPrefix(token, prefix) {
					break
				}
				result = append(result, TermPostings{Token: token, Postings: copyList(fp.lists[token])})
			}
		}
		s.mu.RUnlock()
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Token < result[j].Token })
	return result
}

// ForEachTerm calls fn for each distinct token of field until fn returns
// false. Tokens are visited shard by shard, sorted within a shard.
func (ii *InvertedIndex) ForEachTerm(field string, fn func(term string) bool) {
	for _, s := range ii.shards {
		s.mu.RLock()
		fp, ok := s.fields[field]
		if !ok {
			s.mu.RUnlock()
			continue
		}
		for _, token := range fp.vocab {
			if !fn(token) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// TermCount returns the number of distinct tokens of each field.
func (ii *InvertedIndex) TermCount() map[string]int {
	counts := make(map[string]int)
	for _, s := range ii.shards {
		s.mu.RLock()
		for field, fp := range s.fields {
			counts[field] += len(fp.vocab)
		}
		s.mu.RUnlock()
	}
	return counts
}

// NumShards returns the number of posting shards.
func (ii *InvertedIndex) NumShards() int {
	return len(ii.shards)
}

func copyList(list PostingList) PostingList {
	if len(list) == 0 {
		return nil
	}
	out := make(PostingList, len(list))
	copy(out, list)
	return out
}
