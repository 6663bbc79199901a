package postgres

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Floats are stored as exact decimal text and turned back into float64 at
// every read boundary, so persisted confidence values never pick up binary
// round-trip artifacts. The shortest round-trip decimal form parses back to
// the identical float64.

func encodeDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func decodeDecimal(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse decimal %q: %w", raw, err)
	}
	return v, nil
}

// transformLeaves walks an unmarshalled JSON tree (maps, slices, leaves) and
// rewrites every leaf with fn. The same visitor serves both the encode and
// decode directions, which keeps the two paths exact inverses.
func transformLeaves(v any, fn func(any) any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = transformLeaves(child, fn)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = transformLeaves(child, fn)
		}
		return out
	default:
		return fn(node)
	}
}

func floatToDecimalLeaf(v any) any {
	if f, ok := v.(float64); ok {
		return json.Number(encodeDecimal(f))
	}
	return v
}

func decimalToFloatLeaf(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// encodeAnalysisJSON serializes a value for JSONB storage with every float
// leaf written in exact decimal form.
func encodeAnalysisJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("reparse analysis: %w", err)
	}

	encoded, err := json.Marshal(transformLeaves(tree, floatToDecimalLeaf))
	if err != nil {
		return nil, fmt.Errorf("marshal decimal analysis: %w", err)
	}
	return encoded, nil
}

// decodeAnalysisJSON reverses encodeAnalysisJSON into the typed result.
func decodeAnalysisJSON[T any](raw []byte) (T, error) {
	var out T

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var tree any
	if err := decoder.Decode(&tree); err != nil {
		return out, fmt.Errorf("parse analysis json: %w", err)
	}

	plain, err := json.Marshal(transformLeaves(tree, decimalToFloatLeaf))
	if err != nil {
		return out, fmt.Errorf("marshal plain analysis: %w", err)
	}
	if err := json.Unmarshal(plain, &out); err != nil {
		return out, fmt.Errorf("unmarshal analysis: %w", err)
	}
	return out, nil
}
