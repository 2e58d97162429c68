package qec

import (
	"fmt"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

// exactMatchingLimit bounds the subset DP; larger clusters go to the blossom matcher.
const exactMatchingLimit = 16

// Observable flips travel as a uint64 mask.
const maxMatchingObservables = 64

type edgeKey [2]int64

func newEdgeKey(a, b int64) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

type matchingEdge struct {
	probability float64
	observables uint64
}

/*
MatchingDecoder is a minimum-weight perfect matching decoder over the
detector graph of an error model.

Every detector is a node, plus one boundary node. Each error mechanism is an
edge weighted ln((1-p)/p); mechanisms touching more than two detectors are
split into consecutive pairs first. Decoding pairs fired detectors with each
other or with the boundary along shortest paths so the summed weight is
minimal, then XORs the observables crossed by the chosen paths.
*/
type MatchingDecoder struct {
	numDetectors   int
	numObservables int
	boundary       int64
	graph          *simple.WeightedUndirectedGraph
	edges          map[edgeKey]matchingEdge
	paths          path.AllShortest
}

// NewMatchingDecoder builds the detector graph and all-pairs shortest paths.
func NewMatchingDecoder(model *ErrorModel) (*MatchingDecoder, error) {
	if model.NumObservables > maxMatchingObservables {
		return nil, fmt.Errorf("%w: matching supports at most %d observables, got %d",
			ErrArguments, maxMatchingObservables, model.NumObservables)
	}

	d := &MatchingDecoder{
		numDetectors:   model.NumDetectors,
		numObservables: model.NumObservables,
		boundary:       int64(model.NumDetectors),
		graph:          simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		edges:          map[edgeKey]matchingEdge{},
	}

	for i := 0; i <= model.NumDetectors; i++ {
		d.graph.AddNode(simple.Node(i))
	}

	for _, e := range model.Errors {
		var mask uint64
		for _, o := range e.Observables {
			if o < 0 || o >= maxMatchingObservables {
				return nil, fmt.Errorf("%w: matching supports observables 0..%d, got %d",
					ErrArguments, maxMatchingObservables-1, o)
			}
			mask |= 1 << uint(o)
		}
		for i, pair := range decompose(e.Detectors, d.boundary) {
			obs := mask
			if i > 0 {
				obs = 0
			}
			d.addEdge(pair[0], pair[1], e.Probability, obs)
		}
	}

	for key, edge := range d.edges {
		d.graph.SetWeightedEdge(d.graph.NewWeightedEdge(
			simple.Node(key[0]), simple.Node(key[1]), edgeWeight(edge.probability),
		))
	}

	d.paths = path.DijkstraAllPaths(d.graph)
	return d, nil
}

// decompose splits a detector set into graph edges, sending a leftover
// detector to the boundary.
func decompose(detectors []int, boundary int64) [][2]int64 {
	var out [][2]int64
	for i := 0; i+1 < len(detectors); i += 2 {
		out = append(out, [2]int64{int64(detectors[i]), int64(detectors[i+1])})
	}
	if len(detectors)%2 == 1 {
		out = append(out, [2]int64{int64(detectors[len(detectors)-1]), boundary})
	}
	return out
}

// addEdge keeps the likeliest mechanism between two nodes.
func (d *MatchingDecoder) addEdge(a, b int64, p float64, observables uint64) {
	key := newEdgeKey(a, b)
	if prev, ok := d.edges[key]; ok && prev.probability >= p {
		return
	}
	d.edges[key] = matchingEdge{probability: p, observables: observables}
}

func edgeWeight(p float64) float64 {
	if p <= 0 {
		return math.Inf(1)
	}
	if p >= 0.5 {
		return 0
	}
	return math.Log((1 - p) / p)
}

func (d *MatchingDecoder) distance(a, b int64) float64 {
	if a == b {
		return 0
	}
	return d.paths.Weight(a, b)
}

// crossed XORs the observable masks along the shortest path from a to b.
func (d *MatchingDecoder) crossed(a, b int64) uint64 {
	nodes, _, _ := d.paths.Between(a, b)
	var mask uint64
	for i := 0; i+1 < len(nodes); i++ {
		mask ^= d.edges[newEdgeKey(nodes[i].ID(), nodes[i+1].ID())].observables
	}
	return mask
}

// Decode implements Decoder.
func (d *MatchingDecoder) Decode(detectors []bool) []bool {
	var fired []int64
	for i, v := range detectors {
		if v && i < d.numDetectors {
			fired = append(fired, int64(i))
		}
	}

	var mask uint64
	for _, pair := range d.match(fired) {
		mask ^= d.crossed(pair[0], pair[1])
	}

	out := make([]bool, d.numObservables)
	for o := range out {
		out[o] = mask&(1<<uint(o)) != 0
	}
	return out
}

/*
match pairs fired detectors with each other or the boundary at minimum weight.

A pair costing at least as much as sending both ends to the boundary never
needs to be used, so detectors are only linked when pairing them is cheaper.
Each connected cluster of links is then matched on its own: exactly when it
has at most exactMatchingLimit detectors by DP over subsets, otherwise with
the blossom algorithm.
*/
func (d *MatchingDecoder) match(fired []int64) [][2]int64 {
	var pairs [][2]int64
	for _, cluster := range d.clusters(fired) {
		if len(cluster) > exactMatchingLimit {
			pairs = append(pairs, d.blossom(cluster)...)
			continue
		}
		pairs = append(pairs, d.exact(cluster)...)
	}
	return pairs
}

func (d *MatchingDecoder) clusters(fired []int64) [][]int64 {
	parent := make([]int, len(fired))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	toBoundary := make([]float64, len(fired))
	for i, f := range fired {
		toBoundary[i] = d.distance(f, d.boundary)
	}
	for i := range fired {
		for j := i + 1; j < len(fired); j++ {
			if d.distance(fired[i], fired[j]) < toBoundary[i]+toBoundary[j] {
				parent[find(i)] = find(j)
			}
		}
	}

	index := map[int]int{}
	var out [][]int64
	for i, f := range fired {
		root := find(i)
		k, ok := index[root]
		if !ok {
			k = len(out)
			index[root] = k
			out = append(out, nil)
		}
		out[k] = append(out[k], f)
	}
	return out
}

// exact solves the matching by DP over subsets of fired.
func (d *MatchingDecoder) exact(fired []int64) [][2]int64 {
	if len(fired) == 0 {
		return nil
	}

	n := len(fired)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n+1)
		for j := range fired {
			dist[i][j] = d.distance(fired[i], fired[j])
		}
		dist[i][n] = d.distance(fired[i], d.boundary)
	}

	full := 1<<n - 1
	cost := make([]float64, full+1)
	choice := make([]int, full+1)
	for mask := 1; mask <= full; mask++ {
		i := bits.TrailingZeros(uint(mask))
		rest := mask &^ (1 << i)

		cost[mask] = cost[rest] + dist[i][n]
		choice[mask] = -1

		for j := i + 1; j < n; j++ {
			if rest&(1<<j) == 0 {
				continue
			}
			c := cost[rest&^(1<<j)] + dist[i][j]
			if c < cost[mask] {
				cost[mask] = c
				choice[mask] = j
			}
		}
	}

	var pairs [][2]int64
	for mask := full; mask != 0; {
		i := bits.TrailingZeros(uint(mask))
		j := choice[mask]
		mask &^= 1 << i
		if j < 0 {
			pairs = append(pairs, [2]int64{fired[i], d.boundary})
			continue
		}
		mask &^= 1 << j
		pairs = append(pairs, [2]int64{fired[i], fired[j]})
	}
	return pairs
}

// matchingScale converts path weights to the integers the blossom matcher works in.
const matchingScale = 1e6

/*
blossom matches a cluster exactly with Edmonds' algorithm.

Every fired detector gets its own boundary copy. Copies pair with each other
at no cost, so a minimum-weight perfect matching of the doubled graph is a
minimum-weight matching of the detectors in which any of them may end at the
boundary.
*/
func (d *MatchingDecoder) blossom(fired []int64) [][2]int64 {
	type candidate struct {
		i, j int
		cost float64
	}

	k := len(fired)
	var candidates []candidate
	maxCost := 0.0
	add := func(i, j int, cost float64) {
		if math.IsInf(cost, 0) || math.IsNaN(cost) {
			return
		}
		candidates = append(candidates, candidate{i, j, cost})
		maxCost = math.Max(maxCost, cost)
	}

	for i := range fired {
		add(i, k+i, d.distance(fired[i], d.boundary))
		for j := i + 1; j < k; j++ {
			add(i, j, d.distance(fired[i], fired[j]))
			add(k+i, k+j, 0)
		}
	}

	// Weights are offset so heavier means cheaper; every perfect matching
	// has k edges, so the offset does not change which one wins.
	offset := int64(math.Round(maxCost*matchingScale)) + 1
	edges := make([]blossomEdge, len(candidates))
	for n, c := range candidates {
		edges[n] = blossomEdge{i: c.i, j: c.j, w: offset - int64(math.Round(c.cost*matchingScale))}
	}

	mate := maxWeightMatching(2*k, edges, true)

	var pairs [][2]int64
	for i := 0; i < k; i++ {
		switch m := mate[i]; {
		case m == k+i:
			pairs = append(pairs, [2]int64{fired[i], d.boundary})
		case m > i && m < k:
			pairs = append(pairs, [2]int64{fired[i], fired[m]})
		}
	}
	return pairs
}
