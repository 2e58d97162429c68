package qec

import "strings"

// GateKind groups gates by how simulators and layouts treat them.
type GateKind int

const (
	KindSingle GateKind = iota
	KindPair
	KindReset
	KindMeasure
	KindNoise
	KindPairNoise
	KindAnnotation
	KindTick
)

/*
GateInfo describes one entry of the gate table.

Args is the exact number of parenthesised arguments the gate takes, or -1 when
any number is accepted (detector coordinates).
*/
type GateInfo struct {
	Name    string
	Kind    GateKind
	Args    int
	Records bool
}

var gateTable = map[string]GateInfo{
	"H":                  {Name: "H", Kind: KindSingle},
	"X":                  {Name: "X", Kind: KindSingle},
	"Z":                  {Name: "Z", Kind: KindSingle},
	"CX":                 {Name: "CX", Kind: KindPair},
	"R":                  {Name: "R", Kind: KindReset},
	"M":                  {Name: "M", Kind: KindMeasure},
	"MR":                 {Name: "MR", Kind: KindMeasure},
	"X_ERROR":            {Name: "X_ERROR", Kind: KindNoise, Args: 1},
	"Z_ERROR":            {Name: "Z_ERROR", Kind: KindNoise, Args: 1},
	"DEPOLARIZE1":        {Name: "DEPOLARIZE1", Kind: KindNoise, Args: 1},
	"DEPOLARIZE2":        {Name: "DEPOLARIZE2", Kind: KindPairNoise, Args: 1},
	"DETECTOR":           {Name: "DETECTOR", Kind: KindAnnotation, Args: -1, Records: true},
	"OBSERVABLE_INCLUDE": {Name: "OBSERVABLE_INCLUDE", Kind: KindAnnotation, Args: 1, Records: true},
	"TICK":               {Name: "TICK", Kind: KindTick},
}

var gateAliases = map[string]string{
	"CNOT": "CX",
	"ZCX":  "CX",
	"RZ":   "R",
	"MZ":   "M",
	"MRZ":  "MR",
}

// LookupGate resolves a gate name, case-insensitively and through aliases.
func LookupGate(name string) (GateInfo, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if canonical, ok := gateAliases[name]; ok {
		name = canonical
	}
	info, ok := gateTable[name]
	return info, ok
}

// IsNoise reports whether the gate is a stochastic channel.
func (g GateInfo) IsNoise() bool {
	return g.Kind == KindNoise || g.Kind == KindPairNoise
}

// TargetsPairs reports whether targets are consumed two at a time.
func (g GateInfo) TargetsPairs() bool {
	return g.Kind == KindPair || g.Kind == KindPairNoise
}
