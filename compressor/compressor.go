package compressor

import (
	"fmt"
	"sort"

	"github.com/sdtkit/sdt/spec"
)

// Stats reports the sizes of the packed tables.
type Stats struct {
	ScannerEntries int
	ParserEntries  int
	MaxChain       int
	MeanChain      float64
}

// Compress converts uncompressed tables to their packed form in place.
// The scanner matrix becomes a default-state chain table: each state
// stores only the transitions that differ from the previously packed
// state it is most similar to. The parser matrix becomes a plain
// first-fit row-displacement table.
func Compress(t *spec.Tables) (*Stats, error) {
	if t.Compressed {
		return nil, fmt.Errorf("the tables are already compressed")
	}
	stats := &Stats{}
	compressScanner(t, stats)
	compressParser(t, stats)
	t.Compressed = true
	t.ScanTrans = nil
	t.ParseActions = nil
	return stats, nil
}

// packer accumulates one check/next pair. Reads past the logical end
// see zeroes, which is what the first-fit probes rely on.
type packer struct {
	check []int
	next  []int
}

func (p *packer) at(i int) int {
	if i >= len(p.check) {
		return 0
	}
	return p.check[i]
}

func (p *packer) set(i, check, next int) {
	p.extend(i + 1)
	p.check[i] = check
	p.next[i] = next
}

func (p *packer) extend(n int) {
	for len(p.check) < n {
		p.check = append(p.check, 0)
		p.next = append(p.next, 0)
	}
}

func compressScanner(t *spec.Tables, stats *Stats) {
	states := t.SNumber
	compare := make([][]int, states+1)
	for i := 1; i <= states; i++ {
		compare[i] = make([]int, states+1)
	}
	for i := 1; i <= states; i++ {
		for j := i; j <= states; j++ {
			m := stateMismatch(t.ScanTrans[i], t.ScanTrans[j])
			compare[i][j] = m
			compare[j][i] = m
		}
	}
	mean := similarityMeans(compare, states)

	// Pack states from the most similar to other states to the most
	// different.
	order := make([]int, states)
	for i := range order {
		order[i] = i + 1
	}
	sort.SliceStable(order, func(a, b int) bool {
		return mean[order[a]] < mean[order[b]]
	})

	t.SDefault = make([]int, states+1)
	t.SBase = make([]int, states+1)
	chain := make([]int, states+1)
	p := &packer{}

	// The first state goes in whole with no default.
	first := order[0]
	chain[first] = 1
	t.SBase[first] = 0
	for c := 0; c < spec.MapCount; c++ {
		p.set(c, first, t.ScanTrans[first][c])
	}

	for e := 1; e < states; e++ {
		s := order[e]

		// The best previously packed state becomes the default.
		best := order[0]
		value := spec.MapCount + 1
		for i := 0; i < e; i++ {
			if compare[s][order[i]] < value {
				value = compare[s][order[i]]
				best = order[i]
			}
		}
		t.SDefault[s] = best
		chain[s] = chain[best] + 1

		var diff [spec.MapCount]bool
		for c := 0; c < spec.MapCount; c++ {
			diff[c] = t.ScanTrans[s][c] != t.ScanTrans[best][c]
		}

		base := firstFit(p, func(i int) bool {
			for c := 0; c < spec.MapCount; c++ {
				if diff[c] && p.at(i+c) != 0 {
					return false
				}
			}
			return true
		})
		t.SBase[s] = base
		for c := 0; c < spec.MapCount; c++ {
			if diff[c] {
				p.set(base+c, s, t.ScanTrans[s][c])
			}
		}
		p.extend(base + spec.MapCount)
	}

	// Fill leftover holes, longest chains first, so their lookups stop
	// before walking the whole default chain.
	byChain := make([]int, states)
	for i := range byChain {
		byChain[i] = i + 1
	}
	sort.SliceStable(byChain, func(a, b int) bool {
		return chain[byChain[a]] > chain[byChain[b]]
	})
	for _, s := range byChain {
		for c := 0; c < spec.MapCount; c++ {
			if p.check[t.SBase[s]+c] == 0 {
				p.check[t.SBase[s]+c] = s
				p.next[t.SBase[s]+c] = t.ScanTrans[s][c]
			}
		}
	}

	t.SCheck = p.check
	t.SNext = p.next
	stats.ScannerEntries = 2*states + 2*len(p.check)
	total := 0
	for s := 1; s <= states; s++ {
		total += chain[s]
		if chain[s] > stats.MaxChain {
			stats.MaxChain = chain[s]
		}
	}
	if states > 0 {
		stats.MeanChain = float64(total) / float64(states)
	}
}

func stateMismatch(a, b []int) int {
	fail := 0
	for c := 0; c < spec.MapCount; c++ {
		if a[c] != b[c] {
			fail++
		}
	}
	return fail
}

// similarityMeans computes, per state, the distance-weighted mean of its
// mismatch counts against every other state. A mismatch count far from
// the state's other counts gets a low weight so one outlier cannot
// dominate the mean.
func similarityMeans(compare [][]int, states int) []float64 {
	mean := make([]float64, states+1)
	for i := 1; i <= states; i++ {
		var numerator, denominator float64
		for j := 1; j <= states; j++ {
			if j == i {
				continue
			}
			var distance float64
			for k := 1; k <= states; k++ {
				if k != i {
					d := compare[i][j] - compare[i][k]
					if d < 0 {
						d = -d
					}
					distance += float64(d)
				}
			}
			weight := 1.0
			if distance > 0 {
				weight = float64(states-2) / distance
			}
			numerator += weight * float64(compare[i][j])
			denominator += weight
		}
		if denominator > 0 {
			mean[i] = numerator / denominator
		}
	}
	return mean
}

// firstFit probes every displacement up to the logical table end and
// settles on the end itself when nothing earlier fits.
func firstFit(p *packer, fits func(int) bool) int {
	i := 0
	for ; i < len(p.check); i++ {
		if fits(i) {
			break
		}
	}
	return i
}

func compressParser(t *spec.Tables, stats *Stats) {
	states := t.PNumber
	width := t.TNumber + t.NTNumber

	counts := make([]int, states+1)
	for s := 1; s <= states; s++ {
		for tok := 1; tok <= width; tok++ {
			if t.ParseActions[s][tok] != 0 {
				counts[s]++
			}
		}
	}

	// Pack the densest states first.
	order := make([]int, states)
	for i := range order {
		order[i] = i + 1
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	t.PBase = make([]int, states+1)
	p := &packer{}
	for _, s := range order {
		row := t.ParseActions[s]
		base := firstFit(p, func(i int) bool {
			for tok := 1; tok <= width; tok++ {
				if row[tok] != 0 && p.at(i+tok-1) != 0 {
					return false
				}
			}
			return true
		})
		t.PBase[s] = base + 1
		for tok := 1; tok <= width; tok++ {
			if row[tok] != 0 {
				p.set(base+tok-1, s, row[tok])
			}
		}
		p.extend(base + width)
	}

	t.PCheck = append([]int{0}, p.check...)
	t.PNext = append([]int{0}, p.next...)
	stats.ParserEntries = states + 2*len(p.check)
}
