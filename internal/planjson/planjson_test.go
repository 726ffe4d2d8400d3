package planjson

import (
	"strings"
	"testing"

	"github.com/five82/smartchunk/internal/planner"
)

func TestWrite_FormatAndTrailingComma(t *testing.T) {
	plan := planner.Plan{Chunks: []planner.Chunk{
		{Index: 0, Start: 0, End: 8.333333},
		{Index: 1, Start: 8.333333, End: 16.1},
		{Index: 2, Start: 16.1, End: 24},
	}}

	var b strings.Builder
	if err := Write(&b, plan); err != nil {
		t.Fatalf("Write: %v", err)
	}

	want := `[
  {"index": 0, "start": 0.000, "end": 8.333},
  {"index": 1, "start": 8.333, "end": 16.100},
  {"index": 2, "start": 16.100, "end": 24.000}
]
`
	if got := b.String(); got != want {
		t.Errorf("Write output =\n%s\nwant\n%s", got, want)
	}
}

func TestWrite_EmptyPlan(t *testing.T) {
	var b strings.Builder
	if err := Write(&b, planner.Plan{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := b.String(); got != "[\n]\n" {
		t.Errorf("Write(empty) = %q, want %q", got, "[\n]\n")
	}
}

func TestWrite_LastEntryHasNoTrailingComma(t *testing.T) {
	plan := planner.Plan{Chunks: []planner.Chunk{
		{Index: 0, Start: 0, End: 5},
		{Index: 1, Start: 5, End: 10},
	}}
	var b strings.Builder
	if err := Write(&b, plan); err != nil {
		t.Fatalf("Write: %v", err)
	}
	lines := strings.Split(strings.TrimRight(b.String(), "\n"), "\n")
	last := lines[len(lines)-2] // last chunk entry, before the closing "]"
	if strings.HasSuffix(last, ",") {
		t.Errorf("last entry %q ends with a trailing comma", last)
	}
}
