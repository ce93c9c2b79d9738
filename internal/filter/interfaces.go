// Package filter implements the metadata filter evaluator: a compiler from
// a MongoDB-style JSON predicate tree into a reusable, concurrency-safe
// Predicate closure, used to prune candidates during brute-force scan and
// HNSW search.
package filter

import (
	"github.com/vectorkit/veccore/internal/errs"
)

// Metadata is the unordered string-keyed map a compiled Predicate is
// evaluated against. Values are JSON-shaped: string, float64, bool, nil,
// []interface{}, or map[string]interface{}.
type Metadata map[string]interface{}

// Predicate tests a record's metadata. Compilation is pure and the
// returned Predicate may be invoked concurrently from many goroutines.
type Predicate func(meta Metadata) bool

// Node is one node of the parsed filter tree, prior to compilation.
type Node interface {
	compile() (Predicate, error)
	String() string
}

// Op identifies a leaf test.
type Op string

const (
	OpEq        Op = "$eq"
	OpNe        Op = "$ne"
	OpGt        Op = "$gt"
	OpGte       Op = "$gte"
	OpLt        Op = "$lt"
	OpLte       Op = "$lte"
	OpIn        Op = "$in"
	OpNin       Op = "$nin"
	OpExists    Op = "$exists"
	OpType      Op = "$type"
	OpSize      Op = "$size"
	OpAll       Op = "$all"
	OpElemMatch Op = "$elemMatch"
	OpRegex     Op = "$regex"
)

// FieldType names the $type operator's target kinds.
type FieldType string

const (
	TypeNull   FieldType = "null"
	TypeBool   FieldType = "boolean"
	TypeNumber FieldType = "number"
	TypeString FieldType = "string"
	TypeArray  FieldType = "array"
	TypeObject FieldType = "object"
)

func badFilter(format string, args ...interface{}) error {
	return errs.New(errs.BadFilter, format, args...)
}

func fieldErr(field string, err error) error {
	return errs.New(errs.BadFilter, "field %q: %s", field, err.Error())
}
