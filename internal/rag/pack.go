package rag

// Pack greedily selects ranked results, best first, until the character
// budget would be exceeded. A result that does not fit is skipped whole —
// passages are never truncated mid-string — and packing continues, since a
// later, shorter passage may still fit. An empty pack is a valid outcome.
// Output order is rank order.
func Pack(results []RankedResult, maxChars int) PackedContext {
	pc := PackedContext{}
	if maxChars <= 0 {
		return pc
	}

	for _, r := range results {
		n := len(r.Chunk.Text)
		if pc.TotalChars+n > maxChars {
			continue
		}
		pc.Results = append(pc.Results, r)
		pc.IncludedIDs = append(pc.IncludedIDs, r.Chunk.ID)
		pc.TotalChars += n
	}

	return pc
}
