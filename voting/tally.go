package voting

import "math"

// tally counts labels and remembers the order in which they first appeared.
type tally struct {
	order  []string
	counts map[string]int
	total  int
}

func newTally() tally {
	return tally{counts: make(map[string]int)}
}

func (t *tally) add(label string) {
	if _, ok := t.counts[label]; !ok {
		t.order = append(t.order, label)
	}
	t.counts[label]++
	t.total++
}

// majority returns the most common label. Ties go to the label seen first.
func (t *tally) majority() (string, int) {
	var best string
	bestCount := 0
	for _, label := range t.order {
		if c := t.counts[label]; c > bestCount {
			best, bestCount = label, c
		}
	}
	return best, bestCount
}

func (t *tally) consistency() float64 {
	if t.total == 0 {
		return 0
	}
	_, count := t.majority()
	return float64(count) / float64(t.total)
}

func (t *tally) entropy() float64 {
	counts := make([]int, 0, len(t.order))
	for _, label := range t.order {
		counts = append(counts, t.counts[label])
	}
	return Entropy(counts)
}

func (t *tally) distribution() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Entropy is the natural-log Shannon entropy of the normalized counts.
// Zero counts are ignored; an empty or all-zero input has entropy 0.
func Entropy(counts []int) float64 {
	total := 0
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return h
}
