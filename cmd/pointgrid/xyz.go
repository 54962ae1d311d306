package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// readXYZ parses a whitespace-separated point file: one "x y z" triple per
// line, extra columns ignored, blank lines and lines starting with '#'
// skipped.
func readXYZ(r io.Reader) ([]float64, error) {
	var xyz []float64
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: want 3 coordinates, got %d", line, len(fields))
		}
		for _, f := range fields[:3] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			xyz = append(xyz, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return xyz, nil
}

func readXYZFile(path string) ([]float64, error) {
	if path == "-" {
		return readXYZ(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return readXYZ(f)
}

// parseSplits parses comma-separated row splits. An empty string means one
// batch item of n elements.
func parseSplits(s string, n int) ([]int64, error) {
	if s == "" {
		return []int64{0, int64(n)}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row splits: %w", err)
		}
		out[i] = v
	}
	return out, nil
}
