// Package planjson writes a chunk plan in the stable JSON format consumed
// by downstream tooling: an ordered array of {"index","start","end"}
// entries, timestamps at three decimal places, trailing newline.
package planjson

import (
	"fmt"
	"io"
	"strings"

	"github.com/five82/smartchunk/internal/planner"
)

// Write serializes plan to w in the chunk-plan JSON format.
func Write(w io.Writer, plan planner.Plan) error {
	var b strings.Builder
	b.WriteString("[\n")
	for i, c := range plan.Chunks {
		comma := ","
		if i == len(plan.Chunks)-1 {
			comma = ""
		}
		fmt.Fprintf(&b, "  {\"index\": %d, \"start\": %.3f, \"end\": %.3f}%s\n", c.Index, c.Start, c.End, comma)
	}
	b.WriteString("]\n")

	_, err := io.WriteString(w, b.String())
	return err
}
