package qec

import "slices"

// blossomEdge is an undirected edge of integer weight between vertices i and j.
type blossomEdge struct {
	i, j int
	w    int64
}

/*
blossomMatcher finds a maximum-weight matching of a general graph with
Edmonds' blossom algorithm in O(n³), keeping dual variables as integers.

Vertices are 0..n-1 and blossoms n..2n-1. Edge k has endpoints 2k and 2k+1;
an endpoint p points at vertex endpoint[p] and p^1 is the other end. Labels
are 0 (free), 1 (S, outer) and 2 (T, inner).
*/
type blossomMatcher struct {
	n     int
	edges []blossomEdge

	endpoint  []int
	neighbEnd [][]int
	mate      []int

	label            []int
	labelEnd         []int
	inBlossom        []int
	blossomParent    []int
	blossomChildren  [][]int
	blossomBase      []int
	blossomEndps     [][]int
	bestEdge         []int
	blossomBestEdges [][]int
	unused           []int
	dualVar          []int64
	allowEdge        []bool
	queue            []int
}

/*
maxWeightMatching returns mate[v], the vertex matched to v or -1.

With maxCardinality set, only maximum-cardinality matchings are considered,
so on a graph with a perfect matching the result is the heaviest perfect one.
*/
func maxWeightMatching(n int, edges []blossomEdge, maxCardinality bool) []int {
	mate := make([]int, n)
	for v := range mate {
		mate[v] = -1
	}
	if n == 0 || len(edges) == 0 {
		return mate
	}

	m := newBlossomMatcher(n, edges)
	m.solve(maxCardinality)

	for v := range mate {
		if m.mate[v] >= 0 {
			mate[v] = m.endpoint[m.mate[v]]
		}
	}
	return mate
}

func filled(size, value int) []int {
	out := make([]int, size)
	for i := range out {
		out[i] = value
	}
	return out
}

func newBlossomMatcher(n int, edges []blossomEdge) *blossomMatcher {
	var maxWeight int64
	for _, e := range edges {
		maxWeight = max(maxWeight, e.w)
	}

	m := &blossomMatcher{
		n:                n,
		edges:            edges,
		endpoint:         make([]int, 2*len(edges)),
		neighbEnd:        make([][]int, n),
		mate:             filled(n, -1),
		label:            make([]int, 2*n),
		labelEnd:         filled(2*n, -1),
		inBlossom:        make([]int, n),
		blossomParent:    filled(2*n, -1),
		blossomChildren:  make([][]int, 2*n),
		blossomBase:      filled(2*n, -1),
		blossomEndps:     make([][]int, 2*n),
		bestEdge:         filled(2*n, -1),
		blossomBestEdges: make([][]int, 2*n),
		dualVar:          make([]int64, 2*n),
		allowEdge:        make([]bool, len(edges)),
	}

	for k, e := range edges {
		m.endpoint[2*k] = e.i
		m.endpoint[2*k+1] = e.j
		m.neighbEnd[e.i] = append(m.neighbEnd[e.i], 2*k+1)
		m.neighbEnd[e.j] = append(m.neighbEnd[e.j], 2*k)
	}
	for v := 0; v < n; v++ {
		m.inBlossom[v] = v
		m.blossomBase[v] = v
		m.dualVar[v] = maxWeight
		m.unused = append(m.unused, n+v)
	}
	return m
}

func (m *blossomMatcher) slack(k int) int64 {
	e := m.edges[k]
	return m.dualVar[e.i] + m.dualVar[e.j] - 2*e.w
}

func (m *blossomMatcher) leaves(b int) []int {
	if b < m.n {
		return []int{b}
	}
	var out []int
	for _, t := range m.blossomChildren[b] {
		out = append(out, m.leaves(t)...)
	}
	return out
}

// cyclic indexes s with negative j counting from the end.
func cyclic(s []int, j int) int {
	n := len(s)
	return s[((j%n)+n)%n]
}

func (m *blossomMatcher) assignLabel(w, t, p int) {
	b := m.inBlossom[w]
	m.label[w], m.label[b] = t, t
	m.labelEnd[w], m.labelEnd[b] = p, p
	m.bestEdge[w], m.bestEdge[b] = -1, -1

	switch t {
	case 1:
		m.queue = append(m.queue, m.leaves(b)...)
	case 2:
		base := m.blossomBase[b]
		m.assignLabel(m.endpoint[m.mate[base]], 1, m.mate[base]^1)
	}
}

// scanBlossom walks up from v and w and returns the base of a new blossom, or
// -1 when the two trees are disjoint and an augmenting path exists.
func (m *blossomMatcher) scanBlossom(v, w int) int {
	var path []int
	base := -1

	for v != -1 || w != -1 {
		b := m.inBlossom[v]
		if m.label[b]&4 != 0 {
			base = m.blossomBase[b]
			break
		}
		path = append(path, b)
		m.label[b] = 5

		if m.labelEnd[b] == -1 {
			v = -1
		} else {
			v = m.endpoint[m.labelEnd[b]]
			b = m.inBlossom[v]
			v = m.endpoint[m.labelEnd[b]]
		}
		if w != -1 {
			v, w = w, v
		}
	}

	for _, b := range path {
		m.label[b] = 1
	}
	return base
}

func (m *blossomMatcher) addBlossom(base, k int) {
	v, w := m.edges[k].i, m.edges[k].j
	bb := m.inBlossom[base]
	bv := m.inBlossom[v]
	bw := m.inBlossom[w]

	b := m.unused[len(m.unused)-1]
	m.unused = m.unused[:len(m.unused)-1]
	m.blossomBase[b] = base
	m.blossomParent[b] = -1
	m.blossomParent[bb] = b

	var path, endps []int
	for bv != bb {
		m.blossomParent[bv] = b
		path = append(path, bv)
		endps = append(endps, m.labelEnd[bv])
		v = m.endpoint[m.labelEnd[bv]]
		bv = m.inBlossom[v]
	}
	path = append(path, bb)
	slices.Reverse(path)
	slices.Reverse(endps)
	endps = append(endps, 2*k)

	for bw != bb {
		m.blossomParent[bw] = b
		path = append(path, bw)
		endps = append(endps, m.labelEnd[bw]^1)
		w = m.endpoint[m.labelEnd[bw]]
		bw = m.inBlossom[w]
	}

	m.blossomChildren[b] = path
	m.blossomEndps[b] = endps
	m.label[b] = 1
	m.labelEnd[b] = m.labelEnd[bb]
	m.dualVar[b] = 0

	for _, leaf := range m.leaves(b) {
		if m.label[m.inBlossom[leaf]] == 2 {
			m.queue = append(m.queue, leaf)
		}
		m.inBlossom[leaf] = b
	}

	bestEdgeTo := filled(2*m.n, -1)
	for _, child := range path {
		var lists [][]int
		if m.blossomBestEdges[child] == nil {
			for _, leaf := range m.leaves(child) {
				list := make([]int, 0, len(m.neighbEnd[leaf]))
				for _, p := range m.neighbEnd[leaf] {
					list = append(list, p/2)
				}
				lists = append(lists, list)
			}
		} else {
			lists = [][]int{m.blossomBestEdges[child]}
		}

		for _, list := range lists {
			for _, edge := range list {
				j := m.edges[edge].j
				if m.inBlossom[j] == b {
					j = m.edges[edge].i
				}
				bj := m.inBlossom[j]
				if bj != b && m.label[bj] == 1 &&
					(bestEdgeTo[bj] == -1 || m.slack(edge) < m.slack(bestEdgeTo[bj])) {
					bestEdgeTo[bj] = edge
				}
			}
		}
		m.blossomBestEdges[child] = nil
		m.bestEdge[child] = -1
	}

	best := make([]int, 0)
	for _, edge := range bestEdgeTo {
		if edge != -1 {
			best = append(best, edge)
		}
	}
	m.blossomBestEdges[b] = best
	m.bestEdge[b] = -1
	for _, edge := range best {
		if m.bestEdge[b] == -1 || m.slack(edge) < m.slack(m.bestEdge[b]) {
			m.bestEdge[b] = edge
		}
	}
}

func (m *blossomMatcher) expandBlossom(b int, endStage bool) {
	for _, s := range m.blossomChildren[b] {
		m.blossomParent[s] = -1
		switch {
		case s < m.n:
			m.inBlossom[s] = s
		case endStage && m.dualVar[s] == 0:
			m.expandBlossom(s, endStage)
		default:
			for _, leaf := range m.leaves(s) {
				m.inBlossom[leaf] = s
			}
		}
	}

	if !endStage && m.label[b] == 2 {
		children := m.blossomChildren[b]
		endps := m.blossomEndps[b]
		entry := m.inBlossom[m.endpoint[m.labelEnd[b]^1]]

		j := slices.Index(children, entry)
		jstep, trick := -1, 1
		if j&1 != 0 {
			j -= len(children)
			jstep, trick = 1, 0
		}

		p := m.labelEnd[b]
		for j != 0 {
			m.label[m.endpoint[p^1]] = 0
			m.label[m.endpoint[cyclic(endps, j-trick)^trick^1]] = 0
			m.assignLabel(m.endpoint[p^1], 2, p)
			m.allowEdge[cyclic(endps, j-trick)/2] = true
			j += jstep
			p = cyclic(endps, j-trick) ^ trick
			m.allowEdge[p/2] = true
			j += jstep
		}

		bv := cyclic(children, j)
		m.label[m.endpoint[p^1]], m.label[bv] = 2, 2
		m.labelEnd[m.endpoint[p^1]], m.labelEnd[bv] = p, p
		m.bestEdge[bv] = -1
		j += jstep

		for cyclic(children, j) != entry {
			bv = cyclic(children, j)
			if m.label[bv] == 1 {
				j += jstep
				continue
			}

			found := -1
			for _, leaf := range m.leaves(bv) {
				if m.label[leaf] != 0 {
					found = leaf
					break
				}
			}
			if found >= 0 {
				m.label[found] = 0
				m.label[m.endpoint[m.mate[m.blossomBase[bv]]]] = 0
				m.assignLabel(found, 2, m.labelEnd[found])
			}
			j += jstep
		}
	}

	m.label[b], m.labelEnd[b] = -1, -1
	m.blossomChildren[b], m.blossomEndps[b] = nil, nil
	m.blossomBase[b] = -1
	m.blossomBestEdges[b] = nil
	m.bestEdge[b] = -1
	m.unused = append(m.unused, b)
}

// augmentBlossom rotates blossom b so that v becomes its base, swapping the
// matched and unmatched edges along the way.
func (m *blossomMatcher) augmentBlossom(b, v int) {
	t := v
	for m.blossomParent[t] != b {
		t = m.blossomParent[t]
	}
	if t >= m.n {
		m.augmentBlossom(t, v)
	}

	children := m.blossomChildren[b]
	endps := m.blossomEndps[b]
	i := slices.Index(children, t)
	j := i
	jstep, trick := -1, 1
	if i&1 != 0 {
		j -= len(children)
		jstep, trick = 1, 0
	}

	for j != 0 {
		j += jstep
		t = cyclic(children, j)
		p := cyclic(endps, j-trick) ^ trick
		if t >= m.n {
			m.augmentBlossom(t, m.endpoint[p])
		}
		j += jstep
		t = cyclic(children, j)
		if t >= m.n {
			m.augmentBlossom(t, m.endpoint[p^1])
		}
		m.mate[m.endpoint[p]] = p ^ 1
		m.mate[m.endpoint[p^1]] = p
	}

	m.blossomChildren[b] = append(append([]int{}, children[i:]...), children[:i]...)
	m.blossomEndps[b] = append(append([]int{}, endps[i:]...), endps[:i]...)
	m.blossomBase[b] = m.blossomBase[m.blossomChildren[b][0]]
}

func (m *blossomMatcher) augmentMatching(k int) {
	e := m.edges[k]
	for _, start := range [][2]int{{e.i, 2*k + 1}, {e.j, 2 * k}} {
		s, p := start[0], start[1]
		for {
			bs := m.inBlossom[s]
			if bs >= m.n {
				m.augmentBlossom(bs, s)
			}
			m.mate[s] = p
			if m.labelEnd[bs] == -1 {
				break
			}

			t := m.endpoint[m.labelEnd[bs]]
			bt := m.inBlossom[t]
			s = m.endpoint[m.labelEnd[bt]]
			j := m.endpoint[m.labelEnd[bt]^1]
			if bt >= m.n {
				m.augmentBlossom(bt, j)
			}
			m.mate[j] = m.labelEnd[bt]
			p = m.labelEnd[bt] ^ 1
		}
	}
}

func (m *blossomMatcher) minVertexDual() int64 {
	return slices.Min(m.dualVar[:m.n])
}

func (m *blossomMatcher) solve(maxCardinality bool) {
	for range m.n {
		clear(m.label)
		for i := range m.bestEdge {
			m.bestEdge[i] = -1
		}
		for b := m.n; b < 2*m.n; b++ {
			m.blossomBestEdges[b] = nil
		}
		clear(m.allowEdge)
		m.queue = m.queue[:0]

		for v := 0; v < m.n; v++ {
			if m.mate[v] == -1 && m.label[m.inBlossom[v]] == 0 {
				m.assignLabel(v, 1, -1)
			}
		}

		augmented := false
		for {
			for len(m.queue) > 0 && !augmented {
				v := m.queue[len(m.queue)-1]
				m.queue = m.queue[:len(m.queue)-1]

				for _, p := range m.neighbEnd[v] {
					k := p / 2
					w := m.endpoint[p]
					if m.inBlossom[v] == m.inBlossom[w] {
						continue
					}

					var kslack int64
					if !m.allowEdge[k] {
						kslack = m.slack(k)
						if kslack <= 0 {
							m.allowEdge[k] = true
						}
					}

					switch {
					case m.allowEdge[k]:
						switch {
						case m.label[m.inBlossom[w]] == 0:
							m.assignLabel(w, 2, p^1)
						case m.label[m.inBlossom[w]] == 1:
							if base := m.scanBlossom(v, w); base >= 0 {
								m.addBlossom(base, k)
							} else {
								m.augmentMatching(k)
								augmented = true
							}
						case m.label[w] == 0:
							m.label[w] = 2
							m.labelEnd[w] = p ^ 1
						}
					case m.label[m.inBlossom[w]] == 1:
						b := m.inBlossom[v]
						if m.bestEdge[b] == -1 || kslack < m.slack(m.bestEdge[b]) {
							m.bestEdge[b] = k
						}
					case m.label[w] == 0:
						if m.bestEdge[w] == -1 || kslack < m.slack(m.bestEdge[w]) {
							m.bestEdge[w] = k
						}
					}

					if augmented {
						break
					}
				}
			}
			if augmented {
				break
			}

			deltaType := -1
			var delta int64
			deltaEdge, deltaBlossom := -1, -1

			if !maxCardinality {
				deltaType = 1
				delta = m.minVertexDual()
			}
			for v := 0; v < m.n; v++ {
				if m.label[m.inBlossom[v]] == 0 && m.bestEdge[v] != -1 {
					if d := m.slack(m.bestEdge[v]); deltaType == -1 || d < delta {
						delta, deltaType, deltaEdge = d, 2, m.bestEdge[v]
					}
				}
			}
			for b := 0; b < 2*m.n; b++ {
				if m.blossomParent[b] == -1 && m.label[b] == 1 && m.bestEdge[b] != -1 {
					if d := m.slack(m.bestEdge[b]) / 2; deltaType == -1 || d < delta {
						delta, deltaType, deltaEdge = d, 3, m.bestEdge[b]
					}
				}
			}
			for b := m.n; b < 2*m.n; b++ {
				if m.blossomBase[b] >= 0 && m.blossomParent[b] == -1 && m.label[b] == 2 &&
					(deltaType == -1 || m.dualVar[b] < delta) {
					delta, deltaType, deltaBlossom = m.dualVar[b], 4, b
				}
			}
			if deltaType == -1 {
				// Only reachable with maxCardinality: no further augmenting path.
				deltaType = 1
				delta = max(0, m.minVertexDual())
			}

			for v := 0; v < m.n; v++ {
				switch m.label[m.inBlossom[v]] {
				case 1:
					m.dualVar[v] -= delta
				case 2:
					m.dualVar[v] += delta
				}
			}
			for b := m.n; b < 2*m.n; b++ {
				if m.blossomBase[b] >= 0 && m.blossomParent[b] == -1 {
					switch m.label[b] {
					case 1:
						m.dualVar[b] += delta
					case 2:
						m.dualVar[b] -= delta
					}
				}
			}

			if deltaType == 1 {
				break
			}
			switch deltaType {
			case 2:
				m.allowEdge[deltaEdge] = true
				i := m.edges[deltaEdge].i
				if m.label[m.inBlossom[i]] == 0 {
					i = m.edges[deltaEdge].j
				}
				m.queue = append(m.queue, i)
			case 3:
				m.allowEdge[deltaEdge] = true
				m.queue = append(m.queue, m.edges[deltaEdge].i)
			case 4:
				m.expandBlossom(deltaBlossom, false)
			}
		}

		if !augmented {
			break
		}

		for b := m.n; b < 2*m.n; b++ {
			if m.blossomParent[b] == -1 && m.blossomBase[b] >= 0 && m.label[b] == 1 && m.dualVar[b] == 0 {
				m.expandBlossom(b, true)
			}
		}
	}
}
