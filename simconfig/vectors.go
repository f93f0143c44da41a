package simconfig

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"mesisim/mem"
	"mesisim/simerr"
)

// LoadVectors reads pathA and pathB (one decimal number per line, blank
// lines and lines starting with '#' or ';' ignored) and installs them
// into m using the fixed dot-product layout: mem[0] = N, mem[1..N] = A,
// mem[N+1..2N] = B, mem[2N+1..3N] = 0 (the result area). Values are
// stored via their exact IEEE-754 bit pattern.
func LoadVectors(pathA, pathB string, m *mem.Memory) error {
	a, err := readVector(pathA)
	if err != nil {
		return err
	}
	b, err := readVector(pathB)
	if err != nil {
		return err
	}
	if len(a) != len(b) {
		return &simerr.ConfigError{Msg: fmt.Sprintf("vector length mismatch: %s has %d, %s has %d", pathA, len(a), pathB, len(b))}
	}

	n := len(a)
	if uint32(3*n+1) > mem.NumWords {
		return &simerr.ConfigError{Msg: fmt.Sprintf("vectors of length %d do not fit in %d words of memory", n, mem.NumWords)}
	}

	if err := m.Write(0, uint64(n)); err != nil {
		return err
	}
	for i, v := range a {
		if err := m.WriteDouble(uint32(1+i), v); err != nil {
			return err
		}
	}
	for i, v := range b {
		if err := m.WriteDouble(uint32(1+n+i), v); err != nil {
			return err
		}
	}
	for i := 0; i < n; i++ {
		if err := m.WriteDouble(uint32(1+2*n+i), 0); err != nil {
			return err
		}
	}
	return nil
}

func readVector(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &simerr.IOError{Path: path, Err: err}
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, &simerr.IOError{Path: path, Err: fmt.Errorf("line %d: %w", lineNo, err)}
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, &simerr.IOError{Path: path, Err: err}
	}
	return values, nil
}
