package generate

import (
	"strings"
	"testing"
)

func TestRenderFlagValue(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"1":       "1",
		"0.5":     "0.5",
		"true":    "TRUE",
		"False":   "FALSE",
		"null":    "NULL",
		"deleted": "'deleted'",
		"o'brien": "'o''brien'",
	}
	for in, want := range cases {
		if got := renderFlagValue(in); got != want {
			t.Fatalf("renderFlagValue(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestRenderWithClause(t *testing.T) {
	t.Parallel()

	if got := renderWithClause(nil); got != "" {
		t.Fatalf("empty props should render nothing: %q", got)
	}

	got := renderWithClause(map[string]string{"topic": "t", "connector": "kafka"})
	if !strings.HasPrefix(got, " WITH (") {
		t.Fatalf("clause = %q", got)
	}
	// Keys render sorted so regeneration is byte-stable.
	if strings.Index(got, "'connector'") > strings.Index(got, "'topic'") {
		t.Fatalf("keys not sorted: %q", got)
	}
	if !strings.Contains(got, "'connector' = 'kafka'") {
		t.Fatalf("pair missing: %q", got)
	}
}
