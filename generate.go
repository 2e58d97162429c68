package qec

import "fmt"

/*
Noise configures the channels RepetitionMemory inserts.

AfterClifford follows every CX on both of its qubits, BeforeRoundData hits
the data qubits at the start of each round, BeforeMeasure flips qubits right
before they are measured and AfterReset flips them right after a reset.
With BitFlip set, the depolarizing channels become X_ERROR on the same
targets, which turns the experiment into a pure bit-flip benchmark.
*/
type Noise struct {
	AfterClifford   float64
	BeforeRoundData float64
	BeforeMeasure   float64
	AfterReset      float64
	BitFlip         bool
}

func (n Noise) depolarize(c *Circuit, single bool, qubits []int, p float64) error {
	if p <= 0 {
		return nil
	}
	gate := "DEPOLARIZE2"
	switch {
	case n.BitFlip:
		gate = "X_ERROR"
	case single:
		gate = "DEPOLARIZE1"
	}
	return c.AppendQubits(gate, qubits, p)
}

func (n Noise) flip(c *Circuit, qubits []int, p float64) error {
	if p <= 0 {
		return nil
	}
	return c.AppendQubits("X_ERROR", qubits, p)
}

/*
RepetitionMemory builds a memory experiment for the distance-d bit-flip
repetition code.

Data qubits sit on even indices and measure qubits on odd indices, so qubit
2i+1 checks the parity of data qubits 2i and 2i+2. Every round extracts the
syndrome with two layers of CX and a measure-reset. The first round's
detectors compare each measurement against zero, later rounds compare against
the previous round, and the final data measurement closes each chain against
the last round. Observable 0 is the last data qubit.
*/
func RepetitionMemory(distance, rounds int, noise Noise) (*Circuit, error) {
	if distance < 2 {
		return nil, fmt.Errorf("%w: distance %d", ErrArguments, distance)
	}
	if rounds < 1 {
		return nil, fmt.Errorf("%w: rounds %d", ErrArguments, rounds)
	}

	var data, measure, firstLayer, secondLayer []int
	for i := 0; i < distance; i++ {
		data = append(data, 2*i)
	}
	for i := 0; i < distance-1; i++ {
		measure = append(measure, 2*i+1)
		firstLayer = append(firstLayer, 2*i, 2*i+1)
		secondLayer = append(secondLayer, 2*i+2, 2*i+1)
	}
	all := make([]int, 2*distance-1)
	for i := range all {
		all[i] = i
	}

	c := NewCircuit()
	steps := []func() error{
		func() error { return c.AppendQubits("R", all) },
		func() error { return noise.flip(c, all, noise.AfterReset) },
	}
	if err := run(steps); err != nil {
		return nil, err
	}

	m := len(measure)
	for r := 0; r < rounds; r++ {
		round := r
		steps := []func() error{
			func() error { return c.Append("TICK", nil) },
			func() error { return noise.depolarize(c, true, data, noise.BeforeRoundData) },
			func() error { return c.AppendQubits("CX", firstLayer) },
			func() error { return noise.depolarize(c, false, firstLayer, noise.AfterClifford) },
			func() error { return c.Append("TICK", nil) },
			func() error { return c.AppendQubits("CX", secondLayer) },
			func() error { return noise.depolarize(c, false, secondLayer, noise.AfterClifford) },
			func() error { return c.Append("TICK", nil) },
			func() error { return noise.flip(c, measure, noise.BeforeMeasure) },
			func() error { return c.AppendQubits("MR", measure) },
			func() error { return noise.flip(c, measure, noise.AfterReset) },
		}
		if err := run(steps); err != nil {
			return nil, err
		}

		for i, q := range measure {
			lookback := i - m
			targets := []Target{TargetRec(lookback)}
			if round > 0 {
				targets = append(targets, TargetRec(lookback-m))
			}
			if err := c.Append("DETECTOR", targets, float64(q), float64(round)); err != nil {
				return nil, err
			}
		}
	}

	if err := noise.flip(c, data, noise.BeforeMeasure); err != nil {
		return nil, err
	}
	if err := c.AppendQubits("M", data); err != nil {
		return nil, err
	}

	// After M, data qubit i is rec[i-distance] and the last round's measure
	// qubit i is rec[i-distance-m].
	for i, q := range measure {
		targets := Recs(i-distance, i+1-distance, i-distance-m)
		if err := c.Append("DETECTOR", targets, float64(q), float64(rounds)); err != nil {
			return nil, err
		}
	}

	if err := c.Append("OBSERVABLE_INCLUDE", Recs(-1), 0); err != nil {
		return nil, err
	}
	return c, nil
}

func run(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
