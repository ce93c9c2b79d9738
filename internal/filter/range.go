package filter

import "fmt"

// cmpOp identifies a numeric comparison.
type cmpOp int

const (
	cmpGt cmpOp = iota
	cmpGte
	cmpLt
	cmpLte
)

func (c cmpOp) symbol() string {
	switch c {
	case cmpGt:
		return ">"
	case cmpGte:
		return ">="
	case cmpLt:
		return "<"
	case cmpLte:
		return "<="
	default:
		return "?"
	}
}

// cmpNode implements $gt/$gte/$lt/$lte. The grammar requires both sides to
// be numeric; a non-numeric field value (or a missing field) makes the
// leaf false rather than erroring, per the failure model in the spec.
type cmpNode struct {
	field string
	op    cmpOp
	bound float64
}

func (n *cmpNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		f, ok := toFloat64(v)
		if !ok {
			return false
		}
		switch n.op {
		case cmpGt:
			return f > n.bound
		case cmpGte:
			return f >= n.bound
		case cmpLt:
			return f < n.bound
		case cmpLte:
			return f <= n.bound
		default:
			return false
		}
	}, nil
}

func (n *cmpNode) String() string {
	return fmt.Sprintf("%s %s %v", n.field, n.op.symbol(), n.bound)
}
