package qec

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Decoder predicts observable flips from one shot's detection events.
type Decoder interface {
	Decode(detectors []bool) []bool
}

// DecoderFactory builds a decoder for an error model.
type DecoderFactory func(model *ErrorModel) (Decoder, error)

var (
	decodersMu sync.RWMutex
	decoders   = map[string]DecoderFactory{
		"matching":   func(m *ErrorModel) (Decoder, error) { return NewMatchingDecoder(m) },
		"pymatching": func(m *ErrorModel) (Decoder, error) { return NewMatchingDecoder(m) },
		"lookup":     func(m *ErrorModel) (Decoder, error) { return NewLookupDecoder(m), nil },
	}
)

// RegisterDecoder makes a decoder available to Collect under name.
func RegisterDecoder(name string, factory DecoderFactory) {
	decodersMu.Lock()
	defer decodersMu.Unlock()
	decoders[strings.ToLower(name)] = factory
}

// NewDecoder builds the named decoder.
func NewDecoder(name string, model *ErrorModel) (Decoder, error) {
	decodersMu.RLock()
	factory, ok := decoders[strings.ToLower(name)]
	decodersMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownDecoder, name, strings.Join(DecoderNames(), ", "))
	}
	return factory(model)
}

// DecoderNames lists registered decoders in sorted order.
func DecoderNames() []string {
	decodersMu.RLock()
	defer decodersMu.RUnlock()

	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

/*
LookupDecoder maps each single-error syndrome to the observables that error
flips. Syndromes it has never seen decode to no flip. It is exact for codes
where at most one error is expected per shot, and a useful baseline otherwise.
*/
type LookupDecoder struct {
	numObservables int
	table          map[string][]int
	weights        map[string]float64
}

// NewLookupDecoder builds the table, keeping the likeliest error per syndrome.
func NewLookupDecoder(model *ErrorModel) *LookupDecoder {
	d := &LookupDecoder{
		numObservables: model.NumObservables,
		table:          map[string][]int{},
		weights:        map[string]float64{},
	}
	for _, e := range model.Errors {
		if len(e.Detectors) == 0 {
			continue
		}
		key := fmt.Sprint(e.Detectors)
		if p, ok := d.weights[key]; ok && p >= e.Probability {
			continue
		}
		d.weights[key] = e.Probability
		d.table[key] = e.Observables
	}
	return d
}

// Decode implements Decoder.
func (d *LookupDecoder) Decode(detectors []bool) []bool {
	var fired []int
	for i, v := range detectors {
		if v {
			fired = append(fired, i)
		}
	}
	out := make([]bool, d.numObservables)
	for _, o := range d.table[fmt.Sprint(fired)] {
		out[o] = true
	}
	return out
}
