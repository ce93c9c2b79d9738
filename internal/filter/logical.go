package filter

import "strings"

// andNode is the conjunction of its children; an empty AND matches
// everything, the identity element of logical conjunction.
type andNode struct {
	children []Node
}

func (n *andNode) compile() (Predicate, error) {
	preds := make([]Predicate, len(n.children))
	for i, c := range n.children {
		p, err := c.compile()
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return func(meta Metadata) bool {
		for _, p := range preds {
			if !p(meta) {
				return false
			}
		}
		return true
	}, nil
}

func (n *andNode) String() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = c.String()
	}
	return "AND(" + strings.Join(parts, ", ") + ")"
}

// orNode is the disjunction of its children; an empty OR matches nothing.
type orNode struct {
	children []Node
}

func (n *orNode) compile() (Predicate, error) {
	preds := make([]Predicate, len(n.children))
	for i, c := range n.children {
		p, err := c.compile()
		if err != nil {
			return nil, err
		}
		preds[i] = p
	}
	return func(meta Metadata) bool {
		for _, p := range preds {
			if p(meta) {
				return true
			}
		}
		return false
	}, nil
}

func (n *orNode) String() string {
	parts := make([]string, len(n.children))
	for i, c := range n.children {
		parts[i] = c.String()
	}
	return "OR(" + strings.Join(parts, ", ") + ")"
}

// notNode negates a single child.
type notNode struct {
	child Node
}

func (n *notNode) compile() (Predicate, error) {
	p, err := n.child.compile()
	if err != nil {
		return nil, err
	}
	return func(meta Metadata) bool { return !p(meta) }, nil
}

func (n *notNode) String() string {
	return "NOT(" + n.child.String() + ")"
}
