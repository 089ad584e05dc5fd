package format

import "testing"

func TestOrPlaceholder(t *testing.T) {
	empty := ""
	name := "Ann"
	cases := []struct {
		in   *string
		want string
	}{
		{nil, "-"},
		{&empty, "-"},
		{&name, "Ann"},
	}
	for _, tc := range cases {
		if got := OrPlaceholder(tc.in); got != tc.want {
			t.Fatalf("OrPlaceholder = %q, want %q", got, tc.want)
		}
	}
}

func TestOptionalString(t *testing.T) {
	if OptionalString("") != nil {
		t.Fatal("empty string must map to nil")
	}
	if p := OptionalString("x"); p == nil || *p != "x" {
		t.Fatalf("OptionalString(x) = %v", p)
	}
}
