package correction

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
)

var parentheticalRe = regexp.MustCompile(`\s*\([^)]*\)`)

// Label humanizes a slot's prompt into a summary label: parentheticals and
// the trailing question mark are stripped.
func Label(prompt string) string {
	label := parentheticalRe.ReplaceAllString(prompt, "")
	label = strings.TrimSuffix(strings.TrimSpace(label), "?")
	return strings.TrimSpace(label)
}

// RenderValue is the stable outward form of a stored value: booleans as
// Yes/No, lists comma-joined (an empty list reads "none"), everything else
// verbatim.
func RenderValue(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case []string:
		if len(t) == 0 {
			return "none"
		}
		return strings.Join(t, ", ")
	default:
		return slotgraph.ValueString(v)
	}
}

// RenderReview produces the deterministic review message: one line per
// filled slot in graph declaration order. Identical filled values always
// render identically.
func (e *Engine) RenderReview(filled map[string]any) string {
	var b strings.Builder
	b.WriteString("Here is everything I have recorded:\n\n")
	for _, id := range e.graph.Order() {
		v, ok := filled[id]
		if !ok {
			continue
		}
		def, _ := e.graph.Slot(id)
		fmt.Fprintf(&b, "- %s: %s\n", Label(def.Prompt), RenderValue(v))
	}
	b.WriteString("\nReply with any correction, or say \"approved\" to finalize.")
	return b.String()
}
