package filter

import "testing"

func mustCompile(t *testing.T, tree map[string]interface{}) Predicate {
	t.Helper()
	p, err := Compile(tree)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return p
}

func TestCompile_ImplicitEquality(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{"type": "A"})

	if !p(Metadata{"type": "A"}) {
		t.Errorf("expected match on type=A")
	}
	if p(Metadata{"type": "B"}) {
		t.Errorf("expected no match on type=B")
	}
	if p(Metadata{}) {
		t.Errorf("expected no match when field missing")
	}
}

func TestCompile_ImplicitAndAcrossFields(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{
		"type": "A",
		"year": map[string]interface{}{"$gte": 2024.0},
	})

	cases := []struct {
		meta Metadata
		want bool
	}{
		{Metadata{"type": "A", "year": 2023.0}, false},
		{Metadata{"type": "A", "year": 2024.0}, true},
		{Metadata{"type": "B", "year": 2024.0}, false},
	}
	for _, c := range cases {
		if got := p(c.meta); got != c.want {
			t.Errorf("p(%v) = %v, want %v", c.meta, got, c.want)
		}
	}
}

func TestCompile_FilterSemanticsScenario(t *testing.T) {
	// spec.md §8 scenario 4.
	p := mustCompile(t, map[string]interface{}{
		"$and": []interface{}{
			map[string]interface{}{"type": "A"},
			map[string]interface{}{"year": map[string]interface{}{"$gte": 2024.0}},
		},
	})

	records := []Metadata{
		{"type": "A", "year": 2023.0},
		{"type": "A", "year": 2024.0},
		{"type": "B", "year": 2024.0},
	}
	var matched []int
	for i, r := range records {
		if p(r) {
			matched = append(matched, i)
		}
	}
	if len(matched) != 1 || matched[0] != 1 {
		t.Errorf("expected exactly record 1 to match, got %v", matched)
	}
}

func TestCompile_Or(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{
		"$or": []interface{}{
			map[string]interface{}{"type": "A"},
			map[string]interface{}{"type": "B"},
		},
	})
	if !p(Metadata{"type": "A"}) || !p(Metadata{"type": "B"}) {
		t.Errorf("expected OR to match either branch")
	}
	if p(Metadata{"type": "C"}) {
		t.Errorf("expected OR to reject C")
	}
}

func TestCompile_Not(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{
		"$not": map[string]interface{}{"type": "A"},
	})
	if p(Metadata{"type": "A"}) {
		t.Errorf("expected NOT to reject A")
	}
	if !p(Metadata{"type": "B"}) {
		t.Errorf("expected NOT to accept B")
	}
}

func TestCompile_Comparisons(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{"score": map[string]interface{}{"$gt": 1.0, "$lte": 5.0}})
	if p(Metadata{"score": 1.0}) {
		t.Errorf("1.0 should fail $gt 1.0")
	}
	if !p(Metadata{"score": 5.0}) {
		t.Errorf("5.0 should satisfy $gt 1 and $lte 5")
	}
	if p(Metadata{"score": 5.01}) {
		t.Errorf("5.01 should fail $lte 5")
	}
	// non-numeric operand makes comparison false, not an error.
	if p(Metadata{"score": "not-a-number"}) {
		t.Errorf("non-numeric field should fail comparison")
	}
}

func TestCompile_InNin(t *testing.T) {
	in := mustCompile(t, map[string]interface{}{"tag": map[string]interface{}{"$in": []interface{}{"a", "b"}}})
	if !in(Metadata{"tag": "a"}) || in(Metadata{"tag": "c"}) {
		t.Errorf("$in semantics wrong")
	}
	nin := mustCompile(t, map[string]interface{}{"tag": map[string]interface{}{"$nin": []interface{}{"a", "b"}}})
	if nin(Metadata{"tag": "a"}) || !nin(Metadata{"tag": "c"}) {
		t.Errorf("$nin semantics wrong")
	}
}

func TestCompile_Exists(t *testing.T) {
	existsTrue := mustCompile(t, map[string]interface{}{"f": map[string]interface{}{"$exists": true}})
	existsFalse := mustCompile(t, map[string]interface{}{"f": map[string]interface{}{"$exists": false}})

	if !existsTrue(Metadata{"f": 1.0}) || existsTrue(Metadata{}) {
		t.Errorf("$exists:true semantics wrong")
	}
	if existsFalse(Metadata{"f": 1.0}) || !existsFalse(Metadata{}) {
		t.Errorf("$exists:false semantics wrong")
	}
}

func TestCompile_Type(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{"f": map[string]interface{}{"$type": "number"}})
	if !p(Metadata{"f": 1.0}) {
		t.Errorf("expected number to match $type number")
	}
	if p(Metadata{"f": "x"}) {
		t.Errorf("expected string to not match $type number")
	}
}

func TestCompile_Size(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{"tags": map[string]interface{}{"$size": 2.0}})
	if !p(Metadata{"tags": []interface{}{"a", "b"}}) {
		t.Errorf("expected size 2 to match")
	}
	if p(Metadata{"tags": []interface{}{"a"}}) {
		t.Errorf("expected size 1 to not match $size 2")
	}
}

func TestCompile_All(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{"tags": map[string]interface{}{"$all": []interface{}{"a", "b"}}})
	if !p(Metadata{"tags": []interface{}{"a", "b", "c"}}) {
		t.Errorf("expected superset to match $all")
	}
	if p(Metadata{"tags": []interface{}{"a"}}) {
		t.Errorf("expected missing element to fail $all")
	}
}

func TestCompile_ElemMatch(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{
		"items": map[string]interface{}{
			"$elemMatch": map[string]interface{}{"qty": map[string]interface{}{"$gte": 10.0}},
		},
	})
	if !p(Metadata{"items": []interface{}{
		map[string]interface{}{"qty": 5.0},
		map[string]interface{}{"qty": 15.0},
	}}) {
		t.Errorf("expected elemMatch to find the matching element")
	}
	if p(Metadata{"items": []interface{}{map[string]interface{}{"qty": 1.0}}}) {
		t.Errorf("expected elemMatch to reject when no element matches")
	}
}

func TestCompile_DeepEquality(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{
		"nested": map[string]interface{}{"a": 1.0, "b": []interface{}{"x", "y"}},
	})
	if !p(Metadata{"nested": map[string]interface{}{"a": 1.0, "b": []interface{}{"x", "y"}}}) {
		t.Errorf("expected deep-equal nested map to match")
	}
	if p(Metadata{"nested": map[string]interface{}{"a": 1.0, "b": []interface{}{"y", "x"}}}) {
		t.Errorf("expected differently-ordered sequence to not match")
	}
}

func TestCompile_RegexSafety(t *testing.T) {
	// spec.md §8 scenario 6.
	if _, err := Compile(map[string]interface{}{
		"field": map[string]interface{}{"$regex": "(.*)+"},
	}); err == nil {
		t.Fatalf("expected nested unbounded quantifier to be rejected")
	}

	p, err := Compile(map[string]interface{}{
		"field": map[string]interface{}{"$regex": "^foo[0-9]+$"},
	})
	if err != nil {
		t.Fatalf("expected safe pattern to compile: %v", err)
	}
	if !p(Metadata{"field": "foo123"}) {
		t.Errorf("expected foo123 to match")
	}
	if p(Metadata{"field": "bar"}) {
		t.Errorf("expected bar to not match")
	}
}

func TestCompile_RegexRejectsBadFlagsAndLength(t *testing.T) {
	if _, err := Compile(map[string]interface{}{
		"field": map[string]interface{}{"$regex": map[string]interface{}{"pattern": "abc", "flags": "z"}},
	}); err == nil {
		t.Fatalf("expected unsupported flag to be rejected")
	}

	long := make([]byte, 1001)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := Compile(map[string]interface{}{
		"field": map[string]interface{}{"$regex": string(long)},
	}); err == nil {
		t.Fatalf("expected overlong pattern to be rejected")
	}
}

func TestCompile_UnknownOperatorFails(t *testing.T) {
	if _, err := Compile(map[string]interface{}{
		"field": map[string]interface{}{"$bogus": 1.0},
	}); err == nil {
		t.Fatalf("expected unknown operator to fail compilation")
	}
}

func TestCompile_EmptyFilterMatchesEverything(t *testing.T) {
	p := mustCompile(t, map[string]interface{}{})
	if !p(Metadata{"anything": 1.0}) || !p(Metadata{}) {
		t.Errorf("expected empty filter to match everything")
	}
}
