package prune

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// Direction tells whether a connection feeds into or out of its layer.
type Direction string

const (
	DirIn  Direction = "in"
	DirOut Direction = "out"
)

// Connection locates one weight matrix touched when a neuron of a layer is
// removed: the matrix name in the weight store, the direction relative to the
// layer, the axis along which neuron indices index into the matrix, and a
// fractional start offset for matrices shared across several logical layers.
type Connection struct {
	MatName   string
	Direction Direction
	Dim       int
	StartIdx  float64
}

// offset returns the absolute index offset of the layer's slice within a
// matrix of the given axis length.
func (c Connection) offset(axisLen int) int {
	if c.StartIdx > 0.0 {
		return int(float64(axisLen) * c.StartIdx)
	}
	return 0
}

// ParseLayout reads a layer layout description, one connection per line:
//
//	layer_name direction matrix_name axis [start_offset]
//
// Malformed lines are logged and skipped. Returns connections grouped by
// layer name.
func ParseLayout(r io.Reader) (map[string][]Connection, error) {
	conns := make(map[string][]Connection)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 4 && len(parts) != 5 {
			log.Printf("syntax error in prune layout file: %q", line)
			continue
		}
		dir := Direction(parts[1])
		if dir != DirIn && dir != DirOut {
			log.Printf("unknown connection direction %q in prune layout file", parts[1])
			continue
		}
		dim, err := strconv.Atoi(parts[3])
		if err != nil {
			log.Printf("bad axis %q in prune layout file: %v", parts[3], err)
			continue
		}
		startIdx := 0.0
		if len(parts) == 5 {
			startIdx, err = strconv.ParseFloat(parts[4], 64)
			if err != nil {
				log.Printf("bad start offset %q in prune layout file: %v", parts[4], err)
				continue
			}
		}
		conns[parts[0]] = append(conns[parts[0]], Connection{
			MatName:   parts[2],
			Direction: dir,
			Dim:       dim,
			StartIdx:  startIdx,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prune layout: %w", err)
	}
	return conns, nil
}

// LoadLayout reads a layout file from disk.
func LoadLayout(path string) (map[string][]Connection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening prune layout: %w", err)
	}
	defer f.Close()
	return ParseLayout(f)
}
