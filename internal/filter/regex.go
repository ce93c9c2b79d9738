package filter

import (
	"fmt"
	"regexp"
	"strings"
)

const maxPatternLen = 1000

var allowedRegexFlags = map[rune]bool{
	'g': true, 'i': true, 'm': true, 's': true, 'u': true, 'v': true, 'y': true,
}

// nestedUnboundedQuantifiers are substrings that, per the spec's regex
// safety rules, mark a pattern as catastrophically backtracking-prone.
// These are intentionally simple substring/structural checks rather than a
// full parse: the point is to reject the well-known ReDoS shapes cheaply
// at compile time, not to build a regex analyzer.
var nestedUnboundedQuantifiers = []string{"(.*)+", "(.+)+", "(.*)*", "(.+)*"}

// regexNode implements $regex. Patterns are validated at compile time per
// the spec's safety rules; evaluation failure at runtime degrades to
// false for that leaf rather than aborting the query.
type regexNode struct {
	field   string
	pattern string
	flags   string
	re      *regexp.Regexp
}

func newRegexNode(field, pattern, flags string) (*regexNode, error) {
	if len(pattern) > maxPatternLen {
		return nil, badFilter("regex pattern exceeds %d characters", maxPatternLen)
	}
	for _, f := range flags {
		if !allowedRegexFlags[f] {
			return nil, badFilter("regex flag %q is not permitted", string(f))
		}
	}
	if err := checkRegexSafety(pattern); err != nil {
		return nil, err
	}

	goPattern := pattern
	var goFlags []rune
	for _, f := range flags {
		switch f {
		case 'i':
			goFlags = append(goFlags, 'i')
		case 'm':
			goFlags = append(goFlags, 'm')
		case 's':
			goFlags = append(goFlags, 's')
		}
	}
	if len(goFlags) > 0 {
		goPattern = fmt.Sprintf("(?%s)%s", string(goFlags), pattern)
	}

	re, err := regexp.Compile(goPattern)
	if err != nil {
		return nil, badFilter("invalid regex %q: %s", pattern, err.Error())
	}
	return &regexNode{field: field, pattern: pattern, flags: flags, re: re}, nil
}

// checkRegexSafety rejects the structural ReDoS shapes named in the spec:
// nested unbounded quantifiers, nested groups with quantifiers, three or
// more top-level alternations, and a negative lookahead followed by `.*$`.
// Go's RE2 engine (used by regexp.Compile below) cannot backtrack at all,
// so these patterns cannot actually blow up under it - but the grammar is
// meant to be portable across engines that can, so the checks are applied
// uniformly regardless of backend.
func checkRegexSafety(pattern string) error {
	for _, bad := range nestedUnboundedQuantifiers {
		if strings.Contains(pattern, bad) {
			return badFilter("regex %q contains a nested unbounded quantifier", pattern)
		}
	}
	if hasNestedQuantifiedGroups(pattern) {
		return badFilter("regex %q has a nested group with a quantifier", pattern)
	}
	if topLevelAlternationCount(pattern) >= 3 {
		return badFilter("regex %q has too many top-level alternations", pattern)
	}
	if strings.Contains(pattern, "(?!") && strings.HasSuffix(strings.TrimRight(pattern, ")"), ".*$") {
		return badFilter("regex %q is a negative lookahead followed by .*$", pattern)
	}
	return nil
}

// hasNestedQuantifiedGroups reports whether a quantified group `(...)` (or
// `(...)+`, `(...)*`, `(...){m,n}`) itself contains another quantified
// group anywhere inside its body, at any nesting depth.
func hasNestedQuantifiedGroups(pattern string) bool {
	type span struct{ start, end int }
	var groups []span
	var stack []int
	for i, r := range pattern {
		switch r {
		case '(':
			stack = append(stack, i)
		case ')':
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			groups = append(groups, span{start, i})
		}
	}
	isQuantified := func(g span) bool {
		if g.end+1 >= len(pattern) {
			return false
		}
		next := pattern[g.end+1]
		return next == '+' || next == '*' || next == '?' || next == '{'
	}
	for i, outer := range groups {
		if !isQuantified(outer) {
			continue
		}
		for j, inner := range groups {
			if i == j || inner.start <= outer.start || inner.end >= outer.end {
				continue
			}
			if isQuantified(inner) {
				return true
			}
		}
	}
	return false
}

// topLevelAlternationCount counts `|` characters that sit outside any
// parenthesized group, i.e. alternations at the root of the pattern.
func topLevelAlternationCount(pattern string) int {
	depth := 0
	count := 0
	for _, r := range pattern {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case '|':
			if depth == 0 {
				count++
			}
		}
	}
	return count
}

func (n *regexNode) compile() (Predicate, error) {
	return func(meta Metadata) bool {
		v, ok := meta[n.field]
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		return safeMatch(n.re, s)
	}, nil
}

// safeMatch recovers from any panic inside the regex engine so that a
// pathological match never aborts the enclosing query; it contributes
// false for this leaf instead, per the spec's failure model.
func safeMatch(re *regexp.Regexp, s string) (matched bool) {
	defer func() {
		if recover() != nil {
			matched = false
		}
	}()
	return re.MatchString(s)
}

func (n *regexNode) String() string { return fmt.Sprintf("%s =~ /%s/%s", n.field, n.pattern, n.flags) }
