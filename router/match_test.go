package router

import "testing"

func TestMatch_LiteralEquality(t *testing.T) {
	if !Match("my.routing.key", "my.routing.key") {
		t.Error("expected literal pattern to match identical key")
	}
	if Match("my.routing.key", "my.routing.key2") {
		t.Error("expected literal pattern not to match different key")
	}
	if Match("my.routing.key", "my.routing") {
		t.Error("expected literal pattern not to match shorter key")
	}
}

func TestMatch_SingleSegmentWildcard(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"employee.*.edit", "employee.address.edit", true},
		{"employee.*.edit", "employee.engagement.edit", true},
		{"employee.*.edit", "employee.address.create", false},
		{"employee.*.edit", "org_unit.address.edit", false},
		// "*" matches exactly one segment, never zero or two.
		{"employee.*.edit", "employee.edit", false},
		{"employee.*.edit", "employee.a.b.edit", false},
		{"*.*.*", "employee.address.edit", true},
		{"*.*.*", "employee.address", false},
		{"*", "employee", true},
		{"*", "employee.address", false},
	}

	for _, tc := range cases {
		if got := Match(tc.pattern, tc.key); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}

func TestMatch_HashWildcard(t *testing.T) {
	cases := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"#", "anything", true},
		{"#", "any.thing.at.all", true},
		{"employee.#", "employee.address.edit", true},
		// "#" matches zero segments too.
		{"employee.#", "employee", true},
		{"employee.#", "org_unit.address.edit", false},
		{"#.edit", "employee.address.edit", true},
		{"#.edit", "edit", true},
		{"#.edit", "employee.address.create", false},
		{"employee.#.edit", "employee.edit", true},
		{"employee.#.edit", "employee.address.subtype.edit", true},
		{"employee.#.edit", "employee.address.create", false},
	}

	for _, tc := range cases {
		if got := Match(tc.pattern, tc.key); got != tc.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tc.pattern, tc.key, got, tc.want)
		}
	}
}
