package search

// fieldMatches maps each matched field to the substrings of the stored field
// text that matched, in order of appearance and without repeats. Substrings
// keep their original casing so clients can highlight them verbatim.
func (s *Service) fieldMatches(c *candidate) map[string][]string {
	result := make(map[string][]string, len(c.matchedTokens))
	for field, tokens := range c.matchedTokens {
		seen := make(map[string]bool)
		var surfaces []string
		for _, text := range c.doc.FieldText(field) {
			for _, tok := range s.tokenizer.Tokenize(text) {
				if _, ok := tokens[tok.Text]; !ok {
					continue
				}
				surface := text[tok.Start:tok.End]
				if seen[surface] {
					continue
				}
				seen[surface] = true
				surfaces = append(surfaces, surface)
			}
		}
		if len(surfaces) > 0 {
			result[field] = surfaces
		}
	}
	return result
}
