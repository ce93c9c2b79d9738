package filter

import (
	"fmt"
	"reflect"
)

// inNode matches when the field's value deep-equals any of Values.
type inNode struct {
	field  string
	values []interface{}
}

func (n *inNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		for _, target := range n.values {
			if deepEqual(v, target) {
				return true
			}
		}
		return false
	}, nil
}

func (n *inNode) String() string { return fmt.Sprintf("%s IN %v", n.field, n.values) }

// ninNode is the negation of inNode; a missing field counts as "not in".
type ninNode struct {
	field  string
	values []interface{}
}

func (n *ninNode) compile() (Predicate, error) {
	in := &inNode{field: n.field, values: n.values}
	p, err := in.compile()
	if err != nil {
		return nil, err
	}
	return func(meta Metadata) bool { return !p(meta) }, nil
}

func (n *ninNode) String() string { return fmt.Sprintf("%s NIN %v", n.field, n.values) }

// existsNode implements $exists: the one operator whose truth value for a
// missing field is the test's own polarity rather than always-false.
type existsNode struct {
	field string
	want  bool
}

func (n *existsNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		_, ok := meta[n.field]
		return ok == n.want
	}, nil
}

func (n *existsNode) String() string { return fmt.Sprintf("%s EXISTS %v", n.field, n.want) }

// typeNode implements $type, testing the JSON-shaped kind of the field.
type typeNode struct {
	field string
	want  FieldType
}

func jsonKind(v interface{}) FieldType {
	switch val := v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBool
	case string:
		return TypeString
	case []interface{}:
		return TypeArray
	case map[string]interface{}:
		return TypeObject
	default:
		if isNumeric(val) {
			return TypeNumber
		}
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return TypeArray
		case reflect.Map:
			return TypeObject
		}
		return TypeString
	}
}

func (n *typeNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		return jsonKind(v) == n.want
	}, nil
}

func (n *typeNode) String() string { return fmt.Sprintf("%s TYPE %s", n.field, n.want) }

// sizeNode implements $size: the field must be a sequence whose length
// equals n (or, for a [min,max] pair, falls within the inclusive range).
type sizeNode struct {
	field    string
	min, max int
}

func toSlice(v interface{}) ([]interface{}, bool) {
	if seq, ok := v.([]interface{}); ok {
		return seq, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func (n *sizeNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		seq, ok := toSlice(v)
		if !ok {
			return false
		}
		return len(seq) >= n.min && len(seq) <= n.max
	}, nil
}

func (n *sizeNode) String() string {
	if n.min == n.max {
		return fmt.Sprintf("%s SIZE %d", n.field, n.min)
	}
	return fmt.Sprintf("%s SIZE [%d,%d]", n.field, n.min, n.max)
}

// allNode implements $all: the field must be a sequence containing every
// value in Values (order-independent, duplicates ignored).
type allNode struct {
	field  string
	values []interface{}
}

func (n *allNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		seq, ok := toSlice(v)
		if !ok {
			return false
		}
		for _, target := range n.values {
			found := false
			for _, elem := range seq {
				if deepEqual(elem, target) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	}, nil
}

func (n *allNode) String() string { return fmt.Sprintf("%s ALL %v", n.field, n.values) }

// elemMatchNode implements $elemMatch: the field must be a sequence of
// objects, at least one of which satisfies the embedded subfilter.
type elemMatchNode struct {
	field string
	sub   Node
}

func (n *elemMatchNode) compile() (Predicate, error) {
	subPred, err := n.sub.compile()
	if err != nil {
		return nil, err
	}
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		seq, ok := toSlice(v)
		if !ok {
			return false
		}
		for _, elem := range seq {
			obj, ok := elem.(map[string]interface{})
			if !ok {
				continue
			}
			if subPred(Metadata(obj)) {
				return true
			}
		}
		return false
	}, nil
}

func (n *elemMatchNode) String() string {
	return fmt.Sprintf("%s ELEMMATCH(%s)", n.field, n.sub.String())
}
