package qec

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	instructionRegex = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(?:\(([^)]*)\))?\s*(.*)$`)
	recRegex         = regexp.MustCompile(`^rec\[(-\d+)\]$`)
	repeatRegex      = regexp.MustCompile(`^REPEAT\s+(\d+)\s*\{$`)
)

/*
ParseCircuit reads the line-oriented circuit text produced by Circuit.String.

Comments start with '#'. REPEAT n { ... } blocks are unrolled, so the returned
circuit is always flat.
*/
func ParseCircuit(text string) (*Circuit, error) {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	c := NewCircuit()
	rest, err := parseBlock(c, lines, false)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected %q", rest[0])
	}
	return c, nil
}

// parseBlock consumes lines until the closing brace of a block (when nested)
// and returns whatever follows it.
func parseBlock(c *Circuit, lines []string, nested bool) ([]string, error) {
	for len(lines) > 0 {
		line := lines[0]
		lines = lines[1:]

		if line == "}" {
			if !nested {
				return nil, fmt.Errorf("unbalanced '}'")
			}
			return lines, nil
		}

		if m := repeatRegex.FindStringSubmatch(line); m != nil {
			count, _ := strconv.Atoi(m[1])
			body := NewCircuit()
			body.numMeasurements = c.numMeasurements

			rest, err := parseBlock(body, lines, true)
			if err != nil {
				return nil, err
			}
			for i := 0; i < count; i++ {
				for _, inst := range body.instructions {
					if err := c.Append(inst.Gate, inst.Targets, inst.Args...); err != nil {
						return nil, err
					}
				}
			}
			lines = rest
			continue
		}

		if err := parseInstruction(c, line); err != nil {
			return nil, err
		}
	}

	if nested {
		return nil, fmt.Errorf("missing '}'")
	}
	return nil, nil
}

func parseInstruction(c *Circuit, line string) error {
	m := instructionRegex.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("cannot parse %q", line)
	}

	var args []float64
	if strings.TrimSpace(m[2]) != "" {
		for _, field := range strings.Split(m[2], ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return fmt.Errorf("%w: %q in %q", ErrArguments, field, line)
			}
			args = append(args, v)
		}
	}

	fields := strings.Fields(m[3])
	targets := make([]Target, 0, len(fields))
	for _, field := range fields {
		if rm := recRegex.FindStringSubmatch(field); rm != nil {
			k, _ := strconv.Atoi(rm[1])
			targets = append(targets, TargetRec(k))
			continue
		}
		q, err := strconv.Atoi(field)
		if err != nil {
			return fmt.Errorf("%w: %q in %q", ErrInvalidTarget, field, line)
		}
		targets = append(targets, Qubit(q))
	}

	return c.Append(m[1], targets, args...)
}
