package nsf

// SimilarText returns the percentage similarity of two strings, 0-100.
// It counts characters of the longest common substring, recursing on the text to
// either side of it, and scales by the combined length.
func SimilarText(a, b string) float64 {
	if len(a)+len(b) == 0 {
		return 0
	}
	return float64(commonChars(a, b)*2) * 100 / float64(len(a)+len(b))
}

func commonChars(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	posA, posB, best := 0, 0, 0
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			k := 0
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > best {
				posA, posB, best = i, j, k
			}
		}
	}
	if best == 0 {
		return 0
	}
	return best + commonChars(a[:posA], b[:posB]) + commonChars(a[posA+best:], b[posB+best:])
}
