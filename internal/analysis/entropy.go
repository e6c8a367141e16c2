package analysis

import "math"

// ShannonEntropy returns the Shannon entropy of s in bits per character,
// computed over its character frequency distribution. The empty string has
// zero entropy.
func ShannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	n := 0
	for _, ch := range s {
		freq[ch]++
		n++
	}

	var h float64
	for _, c := range freq {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}
