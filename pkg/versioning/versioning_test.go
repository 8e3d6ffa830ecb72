package versioning

import "testing"

func TestParseSemver(t *testing.T) {
	v, err := Parse(SchemeSemver, "v1.2.3-rc.1+build.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 || v.Prerelease != "rc.1" {
		t.Fatalf("unexpected parse: %+v", v)
	}
	if v.Canonical() != "1.2.3-rc.1" {
		t.Fatalf("canonical = %q", v.Canonical())
	}

	if _, err := Parse(SchemeSemver, "1.2"); err == nil {
		t.Fatal("expected error for incomplete semver")
	}
}

func TestParseCalver(t *testing.T) {
	v, err := Parse(SchemeCalver, "2026.08.30")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Major != 2026 || v.Minor != 8 || v.Patch != 30 {
		t.Fatalf("unexpected parse: %+v", v)
	}
	if v.Canonical() != "2026.08.30" {
		t.Fatalf("canonical = %q", v.Canonical())
	}
}

func TestEqualNormalizesPrefixAndMetadata(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"v1.2.3", "1.2.3", true},
		{"1.2.3+meta", "1.2.3", true},
		{"1.2.3-rc.1", "1.2.3", false},
		{"1.2.3", "1.2.4", false},
	}
	for _, c := range cases {
		if got := Equal(SchemeSemver, c.a, c.b); got != c.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCompare(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"1.2.3", "1.10.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0.0-alpha", "1.0.0", -1},
		{"1.0.0-alpha.1", "1.0.0-alpha.2", -1},
		{"1.0.0-alpha.beta", "1.0.0-alpha.1", 1},
	}
	for _, c := range cases {
		if got := Compare(SchemeSemver, c.a, c.b); got != c.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
