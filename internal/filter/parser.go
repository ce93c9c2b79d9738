package filter

import "fmt"

// Compile parses a JSON-shaped filter tree (as produced by decoding the
// wire format in a JSON document) and compiles it into a Predicate.
// Compilation is pure: the same tree always compiles to an equivalent
// predicate, and the result may be invoked concurrently.
func Compile(tree map[string]interface{}) (Predicate, error) {
	node, err := parseNode(tree)
	if err != nil {
		return nil, err
	}
	return node.compile()
}

// parseNode parses one level of the filter tree. A map with a single
// combinator key ($and/$or/$not) is a combinator node; anything else is
// interpreted as a conjunction of field bindings (implicit AND), matching
// common MongoDB-style query-document shorthand.
func parseNode(m map[string]interface{}) (Node, error) {
	if len(m) == 0 {
		return &andNode{}, nil
	}
	if v, ok := m["$and"]; ok && len(m) == 1 {
		children, err := parseNodeList(v, "$and")
		if err != nil {
			return nil, err
		}
		return &andNode{children: children}, nil
	}
	if v, ok := m["$or"]; ok && len(m) == 1 {
		children, err := parseNodeList(v, "$or")
		if err != nil {
			return nil, err
		}
		return &orNode{children: children}, nil
	}
	if v, ok := m["$not"]; ok && len(m) == 1 {
		sub, ok := v.(map[string]interface{})
		if !ok {
			return nil, badFilter("$not expects a single filter object")
		}
		child, err := parseNode(sub)
		if err != nil {
			return nil, err
		}
		return &notNode{child: child}, nil
	}

	// Implicit AND over every field binding in the map.
	children := make([]Node, 0, len(m))
	for field, spec := range m {
		if len(field) > 0 && field[0] == '$' {
			return nil, badFilter("unexpected operator %q at filter root", field)
		}
		leaf, err := parseLeaf(field, spec)
		if err != nil {
			return nil, err
		}
		children = append(children, leaf)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &andNode{children: children}, nil
}

func parseNodeList(v interface{}, op string) ([]Node, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, badFilter("%s expects an array of filters", op)
	}
	nodes := make([]Node, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, badFilter("%s child %d is not a filter object", op, i)
		}
		node, err := parseNode(m)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

// parseLeaf parses the test bound to a single field. spec is either a bare
// value (implicit $eq) or an operator object.
func parseLeaf(field string, spec interface{}) (Node, error) {
	opMap, ok := spec.(map[string]interface{})
	if !ok {
		return &eqNode{field: field, value: spec}, nil
	}

	// An operator object whose keys are NOT all $-prefixed is itself a
	// literal value to compare for equality (e.g. a nested metadata object).
	hasOperatorKey := false
	for k := range opMap {
		if len(k) > 0 && k[0] == '$' {
			hasOperatorKey = true
			break
		}
	}
	if !hasOperatorKey {
		return &eqNode{field: field, value: spec}, nil
	}

	children := make([]Node, 0, len(opMap))
	for op, val := range opMap {
		node, err := parseOperator(field, Op(op), val)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &andNode{children: children}, nil
}

func parseOperator(field string, op Op, val interface{}) (Node, error) {
	switch op {
	case OpEq:
		return &eqNode{field: field, value: val}, nil
	case OpNe:
		return &neNode{field: field, value: val}, nil
	case OpGt, OpGte, OpLt, OpLte:
		f, ok := toFloat64(val)
		if !ok {
			return nil, fieldErr(field, fmt.Errorf("%s requires a numeric operand", op))
		}
		var c cmpOp
		switch op {
		case OpGt:
			c = cmpGt
		case OpGte:
			c = cmpGte
		case OpLt:
			c = cmpLt
		default:
			c = cmpLte
		}
		return &cmpNode{field: field, op: c, bound: f}, nil
	case OpIn:
		values, err := toValueList(field, op, val)
		if err != nil {
			return nil, err
		}
		return &inNode{field: field, values: values}, nil
	case OpNin:
		values, err := toValueList(field, op, val)
		if err != nil {
			return nil, err
		}
		return &ninNode{field: field, values: values}, nil
	case OpAll:
		values, err := toValueList(field, op, val)
		if err != nil {
			return nil, err
		}
		return &allNode{field: field, values: values}, nil
	case OpExists:
		b, ok := val.(bool)
		if !ok {
			return nil, fieldErr(field, fmt.Errorf("$exists requires a boolean operand"))
		}
		return &existsNode{field: field, want: b}, nil
	case OpType:
		s, ok := val.(string)
		if !ok {
			return nil, fieldErr(field, fmt.Errorf("$type requires a string operand"))
		}
		ft := FieldType(s)
		switch ft {
		case TypeNull, TypeBool, TypeNumber, TypeString, TypeArray, TypeObject:
		default:
			return nil, fieldErr(field, fmt.Errorf("unknown $type %q", s))
		}
		return &typeNode{field: field, want: ft}, nil
	case OpSize:
		min, max, err := toSizeRange(field, val)
		if err != nil {
			return nil, err
		}
		return &sizeNode{field: field, min: min, max: max}, nil
	case OpElemMatch:
		sub, ok := val.(map[string]interface{})
		if !ok {
			return nil, fieldErr(field, fmt.Errorf("$elemMatch requires a filter object"))
		}
		subNode, err := parseNode(sub)
		if err != nil {
			return nil, err
		}
		return &elemMatchNode{field: field, sub: subNode}, nil
	case OpRegex:
		pattern, flags, err := toRegexSpec(field, val)
		if err != nil {
			return nil, err
		}
		return newRegexNode(field, pattern, flags)
	default:
		return nil, badFilter("unknown operator %q", op)
	}
}

func toValueList(field string, op Op, val interface{}) ([]interface{}, error) {
	list, ok := val.([]interface{})
	if !ok {
		return nil, fieldErr(field, fmt.Errorf("%s requires an array operand", op))
	}
	return list, nil
}

func toSizeRange(field string, val interface{}) (int, int, error) {
	if n, ok := toFloat64(val); ok {
		return int(n), int(n), nil
	}
	if list, ok := val.([]interface{}); ok && len(list) == 2 {
		min, minOk := toFloat64(list[0])
		max, maxOk := toFloat64(list[1])
		if minOk && maxOk {
			return int(min), int(max), nil
		}
	}
	return 0, 0, fieldErr(field, fmt.Errorf("$size requires a number or a [min,max] pair"))
}

func toRegexSpec(field string, val interface{}) (pattern, flags string, err error) {
	switch v := val.(type) {
	case string:
		return v, "", nil
	case map[string]interface{}:
		p, _ := v["pattern"].(string)
		f, _ := v["flags"].(string)
		if p == "" {
			return "", "", fieldErr(field, fmt.Errorf("$regex requires a pattern"))
		}
		return p, f, nil
	default:
		return "", "", fieldErr(field, fmt.Errorf("$regex requires a string or {pattern,flags} object"))
	}
}
