package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// The sparse geometry maps live in JSONB columns keyed by decimal string
// index; these helpers translate to and from the integer-keyed maps the
// grid engine works with.

func encodeIntMap(m map[int]int) ([]byte, error) {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}
	return json.Marshal(out)
}

func decodeIntMap(raw []byte) (map[int]int, error) {
	if len(raw) == 0 {
		return map[int]int{}, nil
	}
	var in map[string]int
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode geometry map: %w", err)
	}
	out := make(map[int]int, len(in))
	for k, v := range in {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("geometry map key %q: %w", k, err)
		}
		out[idx] = v
	}
	return out, nil
}

func encodeBoolMap(m map[int]bool) ([]byte, error) {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		if v {
			out[strconv.Itoa(k)] = true
		}
	}
	return json.Marshal(out)
}

func decodeBoolMap(raw []byte) (map[int]bool, error) {
	if len(raw) == 0 {
		return map[int]bool{}, nil
	}
	var in map[string]bool
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode hidden map: %w", err)
	}
	out := make(map[int]bool, len(in))
	for k, v := range in {
		idx, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("hidden map key %q: %w", k, err)
		}
		if v {
			out[idx] = true
		}
	}
	return out, nil
}

func encodeStyle(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}

func decodeStyle(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return map[string]string{}, nil
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode style map: %w", err)
	}
	if out == nil {
		out = map[string]string{}
	}
	return out, nil
}
