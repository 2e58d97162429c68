package qec

import "math/rand/v2"

/*
Tableau is a stabilizer tableau in the Aaronson-Gottesman layout: rows [0,n)
are destabilizers, rows [n,2n) stabilizers, and row 2n is scratch space used
by deterministic measurements.

It only runs Clifford gates, resets and measurements. Noise is the frame
simulator's job; the tableau exists to produce the noiseless reference sample
the frames are measured against.
*/
type Tableau struct {
	n int
	x [][]bool
	z [][]bool
	r []bool
}

// NewTableau returns n qubits in |0...0>.
func NewTableau(n int) *Tableau {
	t := &Tableau{
		n: n,
		x: make([][]bool, 2*n+1),
		z: make([][]bool, 2*n+1),
		r: make([]bool, 2*n+1),
	}
	for i := range t.x {
		t.x[i] = make([]bool, n)
		t.z[i] = make([]bool, n)
	}
	for i := 0; i < n; i++ {
		t.x[i][i] = true
		t.z[i+n][i] = true
	}
	return t
}

// H applies a Hadamard to qubit a.
func (t *Tableau) H(a int) {
	for i := 0; i < 2*t.n; i++ {
		t.r[i] = t.r[i] != (t.x[i][a] && t.z[i][a])
		t.x[i][a], t.z[i][a] = t.z[i][a], t.x[i][a]
	}
}

// CX applies a controlled-X from a to b.
func (t *Tableau) CX(a, b int) {
	for i := 0; i < 2*t.n; i++ {
		xa, za, xb, zb := t.x[i][a], t.z[i][a], t.x[i][b], t.z[i][b]
		t.r[i] = t.r[i] != (xa && zb && (xb == za))
		t.x[i][b] = xb != xa
		t.z[i][a] = za != zb
	}
}

// X applies a Pauli X to qubit a.
func (t *Tableau) X(a int) {
	for i := 0; i < 2*t.n; i++ {
		t.r[i] = t.r[i] != t.z[i][a]
	}
}

// Z applies a Pauli Z to qubit a.
func (t *Tableau) Z(a int) {
	for i := 0; i < 2*t.n; i++ {
		t.r[i] = t.r[i] != t.x[i][a]
	}
}

/*
Measure measures qubit a in the Z basis. Random outcomes are drawn from rng;
a nil rng resolves them to 0, which is what a reference sample wants.
The second return value reports whether the outcome was deterministic.
*/
func (t *Tableau) Measure(a int, rng *rand.Rand) (bool, bool) {
	n := t.n
	p := -1
	for i := n; i < 2*n; i++ {
		if t.x[i][a] {
			p = i
			break
		}
	}

	if p < 0 {
		scratch := 2 * n
		for j := 0; j < n; j++ {
			t.x[scratch][j] = false
			t.z[scratch][j] = false
		}
		t.r[scratch] = false
		for i := 0; i < n; i++ {
			if t.x[i][a] {
				t.rowsum(scratch, i+n)
			}
		}
		return t.r[scratch], true
	}

	for i := 0; i < 2*n; i++ {
		if i != p && t.x[i][a] {
			t.rowsum(i, p)
		}
	}

	copy(t.x[p-n], t.x[p])
	copy(t.z[p-n], t.z[p])
	t.r[p-n] = t.r[p]

	for j := 0; j < n; j++ {
		t.x[p][j] = false
		t.z[p][j] = false
	}
	t.z[p][a] = true

	outcome := false
	if rng != nil {
		outcome = rng.IntN(2) == 1
	}
	t.r[p] = outcome
	return outcome, false
}

// Reset measures qubit a and flips it back to |0> if needed.
func (t *Tableau) Reset(a int, rng *rand.Rand) {
	if outcome, _ := t.Measure(a, rng); outcome {
		t.X(a)
	}
}

// rowsum sets row h to row i times row h, tracking the phase exponent.
func (t *Tableau) rowsum(h, i int) {
	sum := 0
	if t.r[h] {
		sum += 2
	}
	if t.r[i] {
		sum += 2
	}
	for j := 0; j < t.n; j++ {
		sum += phase(t.x[i][j], t.z[i][j], t.x[h][j], t.z[h][j])
		t.x[h][j] = t.x[h][j] != t.x[i][j]
		t.z[h][j] = t.z[h][j] != t.z[i][j]
	}
	t.r[h] = ((sum%4)+4)%4 == 2
}

// phase is the exponent of i picked up multiplying Pauli (x1,z1) by (x2,z2).
func phase(x1, z1, x2, z2 bool) int {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	switch {
	case !x1 && !z1:
		return 0
	case x1 && z1:
		return b(z2) - b(x2)
	case x1 && !z1:
		return b(z2) * (2*b(x2) - 1)
	default:
		return b(x2) * (1 - 2*b(z2))
	}
}

// ReferenceSample runs the noiseless circuit and returns every measurement
// result, with random outcomes fixed to 0.
func ReferenceSample(c *Circuit) []bool {
	t := NewTableau(c.NumQubits())
	results := make([]bool, 0, c.NumMeasurements())

	for _, inst := range c.instructions {
		qs := inst.QubitTargets()
		switch inst.Gate {
		case "H":
			for _, q := range qs {
				t.H(q)
			}
		case "X":
			for _, q := range qs {
				t.X(q)
			}
		case "Z":
			for _, q := range qs {
				t.Z(q)
			}
		case "CX":
			for i := 0; i < len(qs); i += 2 {
				t.CX(qs[i], qs[i+1])
			}
		case "R":
			for _, q := range qs {
				t.Reset(q, nil)
			}
		case "M":
			for _, q := range qs {
				outcome, _ := t.Measure(q, nil)
				results = append(results, outcome)
			}
		case "MR":
			for _, q := range qs {
				outcome, _ := t.Measure(q, nil)
				results = append(results, outcome)
				if outcome {
					t.X(q)
				}
			}
		}
	}

	return results
}
