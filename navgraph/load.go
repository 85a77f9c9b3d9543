package navgraph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawLevel is one level of the source document. Pointers distinguish a
// missing key from an empty list.
type rawLevel struct {
	Vertices *[][]any `json:"vertices" yaml:"vertices"`
	Lanes    *[][]any `json:"lanes" yaml:"lanes"`
}

// Load reads a graph document from path. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON builds a graph from the first level of a JSON document.
func ParseJSON(data []byte) (*Graph, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Source: "json", Err: err}
	}
	levels, ok := doc["levels"]
	if !ok {
		return nil, &LoadError{Source: "json", Err: errors.New("missing levels")}
	}

	// Go maps lose key order, so walk the tokens to find the first level.
	dec := json.NewDecoder(bytes.NewReader(levels))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, &LoadError{Source: "json", Err: errors.New("levels is not an object")}
	}
	if !dec.More() {
		return nil, &LoadError{Source: "json", Err: errors.New("levels is empty")}
	}
	tok, err := dec.Token()
	if err != nil {
		return nil, &LoadError{Source: "json", Err: err}
	}
	name, _ := tok.(string)
	var lvl rawLevel
	if err := dec.Decode(&lvl); err != nil {
		return nil, &LoadError{Source: name, Err: err}
	}
	return build(name, lvl)
}

// ParseYAML builds a graph from the first level of a YAML document.
func ParseYAML(data []byte) (*Graph, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &LoadError{Source: "yaml", Err: err}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, &LoadError{Source: "yaml", Err: errors.New("document is not a mapping")}
	}
	levels := mappingValue(root.Content[0], "levels")
	if levels == nil {
		return nil, &LoadError{Source: "yaml", Err: errors.New("missing levels")}
	}
	if levels.Kind != yaml.MappingNode || len(levels.Content) < 2 {
		return nil, &LoadError{Source: "yaml", Err: errors.New("levels is empty")}
	}
	name := levels.Content[0].Value
	var lvl rawLevel
	if err := levels.Content[1].Decode(&lvl); err != nil {
		return nil, &LoadError{Source: name, Err: err}
	}
	return build(name, lvl)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func build(level string, lvl rawLevel) (*Graph, error) {
	if lvl.Vertices == nil {
		return nil, &LoadError{Source: level, Err: errors.New("missing vertices")}
	}
	if lvl.Lanes == nil {
		return nil, &LoadError{Source: level, Err: errors.New("missing lanes")}
	}

	vertices := make([]Vertex, 0, len(*lvl.Vertices))
	for i, row := range *lvl.Vertices {
		if len(row) < 2 {
			return nil, &LoadError{Source: level, Err: fmt.Errorf("vertex %d: want [x, y, attrs?]", i)}
		}
		x, okX := number(row[0])
		y, okY := number(row[1])
		if !okX || !okY {
			return nil, &LoadError{Source: level, Err: fmt.Errorf("vertex %d: non-numeric coordinate", i)}
		}
		v := Vertex{Index: i, Pos: Point{X: x, Y: y}}
		if len(row) > 2 {
			v.Attrs = attrs(row[2])
		}
		vertices = append(vertices, v)
	}

	lanes := make([]Lane, 0, len(*lvl.Lanes))
	for i, row := range *lvl.Lanes {
		if len(row) < 2 {
			return nil, &LoadError{Source: level, Err: fmt.Errorf("lane %d: want [start, end, attrs?]", i)}
		}
		s, okS := index(row[0])
		e, okE := index(row[1])
		if !okS || !okE {
			return nil, &LoadError{Source: level, Err: fmt.Errorf("lane %d: endpoints must be vertex indices, got %v", i, row[:2])}
		}
		l := Lane{Start: s, End: e}
		if len(row) > 2 {
			l.Attrs = attrs(row[2])
		}
		lanes = append(lanes, l)
	}
	return New(level, vertices, lanes)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// index accepts only whole, non-negative numbers that fit in an int.
func index(v any) (int, bool) {
	n, ok := number(v)
	if !ok || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, false
	}
	return int(n), true
}

func attrs(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out
	}
	return nil
}
