package exitcode

import "testing"

func TestString(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{Success, "Success"},
		{ConfigError, "Configuration error"},
		{CheckFailure, "One or more blocking checks failed"},
		{BlockedGraph, "Stages blocked by a failed dependency"},
		{ToolNotFound, "Required tool not found"},
		{42, "Unknown error"},
	}
	for _, c := range cases {
		if got := String(c.code); got != c.want {
			t.Errorf("String(%d) = %q, want %q", c.code, got, c.want)
		}
	}
}
