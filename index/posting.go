package index

import "sort"

// PostingEntry records that a token occurs in one field of one document.
type PostingEntry struct {
	DocID     uint32 // Internal numeric ID for efficiency
	Field     string // Field the token was found in (e.g. "title", "cast")
	Positions []int  // Token positions within the field, ascending
}

// TermFrequency is the number of times the token occurs in the field.
func (p PostingEntry) TermFrequency() int {
	return len(p.Positions)
}

// PostingList is a slice of PostingEntry kept sorted by DocID.
// A list belongs to a single field, so DocIDs are unique within it.
type PostingList []PostingEntry

// search returns the index of docID in the list, or where it would be inserted.
func (pl PostingList) search(docID uint32) (int, bool) {
	i := sort.Search(len(pl), func(i int) bool { return pl[i].DocID >= docID })
	return i, i < len(pl) && pl[i].DocID == docID
}

// DocIDs returns the document IDs of the list in ascending order.
func (pl PostingList) DocIDs() []uint32 {
	ids := make([]uint32, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}
