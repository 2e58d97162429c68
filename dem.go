package qec

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/theapemachine/errnie"
)

// ErrorMechanism is one independent error and the symptoms it produces.
type ErrorMechanism struct {
	Probability float64
	Detectors   []int
	Observables []int
}

func (e ErrorMechanism) key() string {
	return fmt.Sprint(e.Detectors, e.Observables)
}

func (e ErrorMechanism) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "error(%g)", e.Probability)
	for _, d := range e.Detectors {
		fmt.Fprintf(&b, " D%d", d)
	}
	for _, o := range e.Observables {
		fmt.Fprintf(&b, " L%d", o)
	}
	return b.String()
}

// ErrorModel lists every independent error mechanism of a circuit.
type ErrorModel struct {
	NumDetectors   int
	NumObservables int
	Errors         []ErrorMechanism
}

func (m *ErrorModel) String() string {
	lines := make([]string, len(m.Errors))
	for i, e := range m.Errors {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

// branch is one Pauli outcome of one noise channel, injected into its own lane.
type branch struct {
	instruction int
	qubits      []int
	codes       []int
	probability float64
}

/*
DetectorErrorModel propagates every Pauli branch of every noise channel
through the rest of the circuit and records which detectors and observables
it flips.

Depolarizing channels are split into independent per-Pauli mechanisms, the
same decomposition matching decoders expect. Mechanisms with identical
symptoms are merged by XOR-combining their probabilities, and mechanisms
with no symptoms are dropped.
*/
func (c *Circuit) DetectorErrorModel() (*ErrorModel, error) {
	var branches []branch
	for index, inst := range c.instructions {
		if !inst.Info().IsNoise() || inst.Probability() <= 0 {
			continue
		}
		branches = append(branches, channelBranches(index, inst)...)
	}

	model := &ErrorModel{
		NumDetectors:   c.NumDetectors(),
		NumObservables: c.NumObservables(),
	}
	if len(branches) == 0 {
		return model, nil
	}

	byInstruction := map[int][]int{}
	for lane, b := range branches {
		byInstruction[b.instruction] = append(byInstruction[b.instruction], lane)
	}

	f := newFrameSimulator(c, len(branches), nil, false)
	f.onNoise = func(f *frameSimulator, index int, _ Instruction) {
		for _, lane := range byInstruction[index] {
			b := branches[lane]
			for i, q := range b.qubits {
				f.pauli(q, lane>>6, 1<<(lane&63), b.codes[i])
			}
		}
	}
	f.run(c)

	merged := map[string]int{}
	for lane, b := range branches {
		mech := ErrorMechanism{Probability: b.probability}
		for d, col := range f.detectors {
			if bitAt(col, lane) {
				mech.Detectors = append(mech.Detectors, d)
			}
		}
		for o, col := range f.observables {
			if bitAt(col, lane) {
				mech.Observables = append(mech.Observables, o)
			}
		}
		if len(mech.Detectors) == 0 && len(mech.Observables) == 0 {
			continue
		}

		if at, ok := merged[mech.key()]; ok {
			prev := &model.Errors[at]
			prev.Probability = xorProbability(prev.Probability, mech.Probability)
			continue
		}
		merged[mech.key()] = len(model.Errors)
		model.Errors = append(model.Errors, mech)
	}

	slices.SortStableFunc(model.Errors, func(a, b ErrorMechanism) int {
		return slices.Compare(a.Detectors, b.Detectors)
	})

	errnie.Info("error model has %d mechanisms over %d detectors", len(model.Errors), model.NumDetectors)
	return model, nil
}

func channelBranches(index int, inst Instruction) []branch {
	p := inst.Probability()
	qs := inst.QubitTargets()
	var out []branch

	switch inst.Gate {
	case "X_ERROR", "Z_ERROR":
		code := 1
		if inst.Gate == "Z_ERROR" {
			code = 2
		}
		for _, q := range qs {
			out = append(out, branch{index, []int{q}, []int{code}, p})
		}
	case "DEPOLARIZE1":
		q1 := 0.5 - 0.5*math.Sqrt(math.Max(0, 1-4*p/3))
		for _, q := range qs {
			for code := 1; code <= 3; code++ {
				out = append(out, branch{index, []int{q}, []int{code}, q1})
			}
		}
	case "DEPOLARIZE2":
		q2 := 0.5 - 0.5*math.Pow(math.Max(0, 1-16*p/15), 1.0/8)
		for i := 0; i < len(qs); i += 2 {
			for r := 1; r < 16; r++ {
				out = append(out, branch{index, []int{qs[i], qs[i+1]}, []int{r & 3, r >> 2}, q2})
			}
		}
	}
	return out
}

// xorProbability is the chance that exactly one of two independent events fires.
func xorProbability(a, b float64) float64 {
	return a*(1-b) + b*(1-a)
}
