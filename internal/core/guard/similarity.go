package guard

// sequenceRatio measures character-level similarity of two strings in [0,1]
// as 2*M/T, where M is the total size of the longest matching blocks found
// recursively and T the combined length. Quadratic; callers only feed it
// pipeline-sized inputs (tens of chunks, short windows).
func sequenceRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	matched := matchingBlockSize(ra, rb, 0, len(ra), 0, len(rb))
	return 2.0 * float64(matched) / float64(total)
}

func matchingBlockSize(a, b []rune, alo, ahi, blo, bhi int) int {
	bestI, bestJ, bestSize := longestMatch(a, b, alo, ahi, blo, bhi)
	if bestSize == 0 {
		return 0
	}
	size := bestSize
	size += matchingBlockSize(a, b, alo, bestI, blo, bestJ)
	size += matchingBlockSize(a, b, bestI+bestSize, ahi, bestJ+bestSize, bhi)
	return size
}

// longestMatch finds the longest block such that a[i:i+k] == b[j:j+k] within
// the given bounds, preferring the earliest match on ties.
func longestMatch(a, b []rune, alo, ahi, blo, bhi int) (int, int, int) {
	b2j := make(map[rune][]int, bhi-blo)
	for j := blo; j < bhi; j++ {
		b2j[b[j]] = append(b2j[b[j]], j)
	}

	bestI, bestJ, bestSize := alo, blo, 0
	// j2len[j] holds the length of the match ending at a[i-1], b[j-1].
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestSize {
				bestI, bestJ, bestSize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return bestI, bestJ, bestSize
}
