package sync

import (
	"reflect"
	"strconv"
)

// Delta op kinds.
const (
	OpSet    = "set"
	OpDelete = "delete"
	OpPush   = "push"
	OpSplice = "splice"
)

// Op is one delta operation against a rendered state document. Path is a
// dot-separated key path; array indices appear as decimal segments.
type Op struct {
	Path  string `json:"path"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
}

// Splice is the value carried by an OpSplice: replace the array tail from
// Start with Items.
type Splice struct {
	Start int   `json:"start"`
	Items []any `json:"items"`
}

// Diff computes the operations that transform prev into next. Both must be
// rendered documents (json-generic maps). An empty result means the
// documents are equal.
func Diff(prev, next map[string]any) []Op {
	var ops []Op
	diffMap("", prev, next, &ops)
	return ops
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func diffMap(path string, prev, next map[string]any, ops *[]Op) {
	for key, pv := range prev {
		if _, ok := next[key]; !ok {
			*ops = append(*ops, Op{Path: joinPath(path, key), Op: OpDelete})
			continue
		}
		diffValue(joinPath(path, key), pv, next[key], ops)
	}
	for key, nv := range next {
		if _, ok := prev[key]; !ok {
			*ops = append(*ops, Op{Path: joinPath(path, key), Op: OpSet, Value: nv})
		}
	}
}

func diffValue(path string, prev, next any, ops *[]Op) {
	switch pv := prev.(type) {
	case map[string]any:
		if nv, ok := next.(map[string]any); ok {
			diffMap(path, pv, nv, ops)
			return
		}
	case []any:
		if nv, ok := next.([]any); ok {
			diffSlice(path, pv, nv, ops)
			return
		}
	default:
		if reflect.DeepEqual(prev, next) {
			return
		}
	}
	if !reflect.DeepEqual(prev, next) {
		*ops = append(*ops, Op{Path: path, Op: OpSet, Value: next})
	}
}

// diffSlice emits push ops for pure appends and a single splice when the
// arrays diverge; elements before the divergence point diff recursively.
func diffSlice(path string, prev, next []any, ops *[]Op) {
	common := len(prev)
	if len(next) < common {
		common = len(next)
	}

	divergence := common
	for i := 0; i < common; i++ {
		if !reflect.DeepEqual(prev[i], next[i]) {
			divergence = i
			break
		}
	}

	switch {
	case divergence == len(prev) && len(next) > len(prev):
		for _, item := range next[len(prev):] {
			*ops = append(*ops, Op{Path: path, Op: OpPush, Value: item})
		}
	case divergence == len(next) && len(prev) > len(next):
		*ops = append(*ops, Op{Path: path, Op: OpSplice, Value: Splice{Start: len(next)}})
	case divergence < common:
		// Nested documents at the divergence point diff in place; anything
		// else replaces the tail.
		_, pok := prev[divergence].(map[string]any)
		_, nok := next[divergence].(map[string]any)
		if pok && nok && len(prev) == len(next) {
			for i := divergence; i < common; i++ {
				diffValue(joinPath(path, strconv.Itoa(i)), prev[i], next[i], ops)
			}
			return
		}
		*ops = append(*ops, Op{Path: path, Op: OpSplice, Value: Splice{Start: divergence, Items: next[divergence:]}})
	}
}
