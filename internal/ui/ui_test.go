package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/hurttlocker/kwgraph/internal/keyword"
)

func TestTableAligns(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	Table(&buf, []string{"NAME", "DEGREE"}, [][]string{{"yayoi-kusama", "4"}, {"moma", "0"}})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "  NAME          DEGREE") {
		t.Errorf("header = %q", lines[0])
	}
	if lines[3] != "  moma          0" {
		t.Errorf("row = %q", lines[3])
	}
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	Table(&buf, []string{"NAME"}, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestRolePlain(t *testing.T) {
	color.NoColor = true
	if got := Role(keyword.RoleTopLevel); got != keyword.RoleTopLevel.String() {
		t.Errorf("Role = %q", got)
	}
}
