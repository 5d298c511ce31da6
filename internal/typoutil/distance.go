package typoutil

// Distance computes the Damerau-Levenshtein (optimal string alignment)
// distance between two strings: the minimum number of insertions, deletions,
// substitutions or adjacent transpositions needed to turn a into b.
// It works on runes, so "café" and "cafe" are one edit apart.
func Distance(a, b string) int {
	runesA := []rune(a)
	runesB := []rune(b)
	return distanceWithLimit(runesA, runesB, len(runesA)+len(runesB))
}

// DistanceWithLimit calculates the Damerau-Levenshtein distance with early
// termination. Returns maxDistance + 1 as soon as the actual distance is known
// to exceed maxDistance.
func DistanceWithLimit(a, b string, maxDistance int) int {
	return distanceWithLimit([]rune(a), []rune(b), maxDistance)
}

func distanceWithLimit(runesA, runesB []rune, maxDistance int) int {
	lenA := len(runesA)
	lenB := len(runesB)

	// Length difference alone is a lower bound on the distance
	lengthDiff := lenA - lenB
	if lengthDiff < 0 {
		lengthDiff = -lengthDiff
	}
	if lengthDiff > maxDistance {
		return maxDistance + 1
	}

	if lenA == 0 {
		return lenB
	}
	if lenB == 0 {
		return lenA
	}

	// Three rows: i-2 is needed for transpositions
	prevPrevRow := make([]int, lenB+1)
	prevRow := make([]int, lenB+1)
	currRow := make([]int, lenB+1)

	for j := 0; j <= lenB; j++ {
		prevRow[j] = j
	}

	for i := 1; i <= lenA; i++ {
		currRow[0] = i
		minInRow := i

		for j := 1; j <= lenB; j++ {
			cost := 0
			if runesA[i-1] != runesB[j-1] {
				cost = 1
			}

			deletion := prevRow[j] + 1
			insertion := currRow[j-1] + 1
			substitution := prevRow[j-1] + cost
			currRow[j] = min(deletion, insertion, substitution)

			if i > 1 && j > 1 &&
				runesA[i-1] == runesB[j-2] &&
				runesA[i-2] == runesB[j-1] {
				transposition := prevPrevRow[j-2] + 1
				if transposition < currRow[j] {
					currRow[j] = transposition
				}
			}

			if currRow[j] < minInRow {
				minInRow = currRow[j]
			}
		}

		// Every later row is at least this row's minimum
		if minInRow > maxDistance {
			return maxDistance + 1
		}

		prevPrevRow, prevRow, currRow = prevRow, currRow, prevPrevRow
	}

	return prevRow[lenB]
}
