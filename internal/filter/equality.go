package filter

import "fmt"

// eqNode matches when the field's value deep-equals Value. This is also
// the default leaf shape: a bare field-to-literal binding compiles to eq.
type eqNode struct {
	field string
	value interface{}
}

func (n *eqNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		return deepEqual(v, n.value)
	}, nil
}

func (n *eqNode) String() string { return fmt.Sprintf("%s == %v", n.field, n.value) }

// neNode matches when the field exists and is not deep-equal to Value, or
// is absent entirely (absence counts as "not equal").
type neNode struct {
	field string
	value interface{}
}

func (n *neNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return true
		}
		return !deepEqual(v, n.value)
	}, nil
}

func (n *neNode) String() string { return fmt.Sprintf("%s != %v", n.field, n.value) }

// deepEqual implements the equality semantics from the filter grammar:
// primitives compare after numeric coercion, sequences compare
// element-wise in order, and mappings compare by key set plus recursive
// value equality.
func deepEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := toFloat64(a); aok {
		if bf, bok := toFloat64(b); bok {
			return af == bf
		}
	}
	if as, aok := a.(string); aok {
		bs, bok := b.(string)
		return aok && bok && as == bs
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return aok && bok && ab == bb
	}
	if aseq, aok := a.([]interface{}); aok {
		bseq, bok := b.([]interface{})
		if !aok || !bok || len(aseq) != len(bseq) {
			return false
		}
		for i := range aseq {
			if !deepEqual(aseq[i], bseq[i]) {
				return false
			}
		}
		return true
	}
	if amap, aok := a.(map[string]interface{}); aok {
		bmap, bok := b.(map[string]interface{})
		if !aok || !bok || len(amap) != len(bmap) {
			return false
		}
		for k, av := range amap {
			bv, ok := bmap[k]
			if !ok || !deepEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return a == b
}

// toFloat64 coerces any Go numeric kind (as produced by either a Go
// literal or a JSON decoder) to float64 for numeric comparisons.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}

func isNumeric(v interface{}) bool {
	_, ok := toFloat64(v)
	return ok
}
