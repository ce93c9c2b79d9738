package veccore

import (
	"context"
	"fmt"

	"github.com/vectorkit/veccore/internal/filter"
	"github.com/vectorkit/veccore/internal/index"
)

// QueryBuilder provides a fluent interface for building vector queries.
// Filter conditions accumulate as fragments of the JSON-shaped filter tree
// from the wire format (§6); Execute compiles the assembled tree once via
// filter.Compile rather than re-parsing per candidate.
type QueryBuilder struct {
	ctx        context.Context
	collection *Collection
	vector     []float32
	conditions []map[string]interface{} // implicit AND across top-level conditions
	limit      int
	threshold  float32
	efSearch   int // 0 means use the collection's configured default
}

// WithVector sets the query vector
func (qb *QueryBuilder) WithVector(vector []float32) *QueryBuilder {
	qb.vector = make([]float32, len(vector))
	copy(qb.vector, vector)
	return qb
}

// WithFilter adds a raw filter-tree fragment, ANDed with any other
// conditions already on the builder. Use this to drop down to the full
// grammar ($elemMatch, $regex, $size, …) the convenience methods don't cover.
func (qb *QueryBuilder) WithFilter(tree map[string]interface{}) *QueryBuilder {
	qb.conditions = append(qb.conditions, tree)
	return qb
}

func (qb *QueryBuilder) leaf(field string, spec interface{}) *QueryBuilder {
	return qb.WithFilter(map[string]interface{}{field: spec})
}

// Eq adds an equality condition (convenience method)
func (qb *QueryBuilder) Eq(field string, value interface{}) *QueryBuilder {
	return qb.leaf(field, value)
}

// NotEq adds a not-equal condition (convenience method)
func (qb *QueryBuilder) NotEq(field string, value interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$ne": value})
}

// Gt adds a greater-than condition (convenience method)
func (qb *QueryBuilder) Gt(field string, value interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$gt": value})
}

// Gte adds a greater-than-or-equal condition (convenience method)
func (qb *QueryBuilder) Gte(field string, value interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$gte": value})
}

// Lt adds a less-than condition (convenience method)
func (qb *QueryBuilder) Lt(field string, value interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$lt": value})
}

// Lte adds a less-than-or-equal condition (convenience method)
func (qb *QueryBuilder) Lte(field string, value interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$lte": value})
}

// Between adds a range condition (convenience method)
func (qb *QueryBuilder) Between(field string, min, max interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$gte": min, "$lte": max})
}

// In adds a set-membership condition (convenience method)
func (qb *QueryBuilder) In(field string, values []interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$in": values})
}

// Nin adds a set-exclusion condition (convenience method)
func (qb *QueryBuilder) Nin(field string, values []interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$nin": values})
}

// Exists adds a field-presence condition (convenience method)
func (qb *QueryBuilder) Exists(field string, want bool) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$exists": want})
}

// ContainsAny adds an $in-over-array condition against a multi-valued
// metadata field (convenience method)
func (qb *QueryBuilder) ContainsAny(field string, values []interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$in": values})
}

// ContainsAll adds an $all condition against a multi-valued metadata
// field (convenience method)
func (qb *QueryBuilder) ContainsAll(field string, values []interface{}) *QueryBuilder {
	return qb.leaf(field, map[string]interface{}{"$all": values})
}

// Not wraps a raw filter-tree fragment in $not and adds it as a condition
func (qb *QueryBuilder) Not(tree map[string]interface{}) *QueryBuilder {
	return qb.WithFilter(map[string]interface{}{"$not": tree})
}

// And starts a chain of conditions to be combined with $and
func (qb *QueryBuilder) And() *FilterChain {
	return &FilterChain{queryBuilder: qb, op: "$and"}
}

// Or starts a chain of conditions to be combined with $or
func (qb *QueryBuilder) Or() *FilterChain {
	return &FilterChain{queryBuilder: qb, op: "$or"}
}

// FilterChain accumulates sibling conditions to be combined under a single
// logical combinator before being ANDed back onto the parent QueryBuilder.
type FilterChain struct {
	queryBuilder *QueryBuilder
	op           string
	children     []map[string]interface{}
}

func (fc *FilterChain) child(field string, spec interface{}) *FilterChain {
	fc.children = append(fc.children, map[string]interface{}{field: spec})
	return fc
}

// Eq adds an equality condition to the chain
func (fc *FilterChain) Eq(field string, value interface{}) *FilterChain { return fc.child(field, value) }

// Gt adds a greater-than condition to the chain
func (fc *FilterChain) Gt(field string, value interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$gt": value})
}

// Gte adds a greater-than-or-equal condition to the chain
func (fc *FilterChain) Gte(field string, value interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$gte": value})
}

// Lt adds a less-than condition to the chain
func (fc *FilterChain) Lt(field string, value interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$lt": value})
}

// Lte adds a less-than-or-equal condition to the chain
func (fc *FilterChain) Lte(field string, value interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$lte": value})
}

// Between adds a range condition to the chain
func (fc *FilterChain) Between(field string, min, max interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$gte": min, "$lte": max})
}

// In adds a set-membership condition to the chain
func (fc *FilterChain) In(field string, values []interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$in": values})
}

// ContainsAny adds an $in condition to the chain
func (fc *FilterChain) ContainsAny(field string, values []interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$in": values})
}

// ContainsAll adds an $all condition to the chain
func (fc *FilterChain) ContainsAll(field string, values []interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$all": values})
}

// Filter adds a raw filter-tree fragment to the chain
func (fc *FilterChain) Filter(tree map[string]interface{}) *FilterChain {
	fc.children = append(fc.children, tree)
	return fc
}

// Not adds a negated filter-tree fragment to the chain
func (fc *FilterChain) Not(tree map[string]interface{}) *FilterChain {
	return fc.Filter(map[string]interface{}{"$not": tree})
}

// NotEq adds a negated equality condition to the chain
func (fc *FilterChain) NotEq(field string, value interface{}) *FilterChain {
	return fc.child(field, map[string]interface{}{"$ne": value})
}

// End closes the chain, combining its children under the chain's
// combinator, and ANDs the result back onto the parent QueryBuilder.
func (fc *FilterChain) End() *QueryBuilder {
	if len(fc.children) == 0 {
		return fc.queryBuilder
	}
	if len(fc.children) == 1 {
		return fc.queryBuilder.WithFilter(fc.children[0])
	}
	list := make([]interface{}, len(fc.children))
	for i, c := range fc.children {
		list[i] = c
	}
	return fc.queryBuilder.WithFilter(map[string]interface{}{fc.op: list})
}

// Limit sets the maximum number of results to return
func (qb *QueryBuilder) Limit(k int) *QueryBuilder {
	qb.limit = k
	return qb
}

// WithThreshold sets a minimum similarity score threshold
func (qb *QueryBuilder) WithThreshold(threshold float32) *QueryBuilder {
	qb.threshold = threshold
	return qb
}

// WithEfSearch overrides the collection's default efSearch parameter
func (qb *QueryBuilder) WithEfSearch(efSearch int) *QueryBuilder {
	qb.efSearch = efSearch
	return qb
}

// tree assembles every accumulated condition into a single filter-tree
// root, implicitly ANDed, matching the wire grammar's "map with multiple
// field bindings means AND" shorthand.
func (qb *QueryBuilder) tree() map[string]interface{} {
	switch len(qb.conditions) {
	case 0:
		return nil
	case 1:
		return qb.conditions[0]
	default:
		list := make([]interface{}, len(qb.conditions))
		for i, c := range qb.conditions {
			list[i] = c
		}
		return map[string]interface{}{"$and": list}
	}
}

// Execute runs the query and returns results
func (qb *QueryBuilder) Execute() (*SearchResults, error) {
	if qb.vector == nil {
		return nil, fmt.Errorf("query vector is required")
	}
	if qb.limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", qb.limit)
	}

	var metaFilter index.MetaFilter
	if tree := qb.tree(); tree != nil {
		pred, err := filter.Compile(tree)
		if err != nil {
			return nil, fmt.Errorf("failed to compile filter: %w", err)
		}
		metaFilter = func(m map[string]interface{}) bool { return pred(filter.Metadata(m)) }
	}

	result, err := qb.collection.Search(qb.ctx, qb.vector, qb.limit, metaFilter, qb.efSearch)
	if err != nil {
		return nil, err
	}

	if qb.threshold > 0 {
		result.Results = qb.applyThreshold(result.Results)
		result.Total = len(result.Results)
	}

	return result, nil
}

// applyThreshold filters results based on similarity score threshold
func (qb *QueryBuilder) applyThreshold(results []*SearchResult) []*SearchResult {
	filtered := make([]*SearchResult, 0, len(results))
	for _, result := range results {
		if result.Score >= qb.threshold {
			filtered = append(filtered, result)
		}
	}
	return filtered
}
