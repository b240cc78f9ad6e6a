package slotgraph

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrCycle indicates a malformed graph whose transitions revisit a slot.
// Traversal aborts rather than looping; callers must treat this as
// "cannot proceed", not as interview-complete.
var ErrCycle = errors.New("slot graph cycle detected")

// Branch is one ordered transition rule. Pattern is a case-insensitive
// regular expression tested against the stringified filled value; a pattern
// that fails to compile degrades to exact match against its |-separated
// literal alternatives.
type Branch struct {
	Pattern string
	Next    string

	re       *regexp.Regexp
	literals []string
}

func (b *Branch) compile() {
	re, err := regexp.Compile("(?i)" + b.Pattern)
	if err != nil {
		for _, lit := range strings.Split(b.Pattern, "|") {
			b.literals = append(b.literals, strings.ToLower(strings.TrimSpace(lit)))
		}
		return
	}
	b.re = re
}

func (b *Branch) match(valueLower string) bool {
	if b.re != nil {
		return b.re.MatchString(valueLower)
	}
	for _, lit := range b.literals {
		if valueLower == lit {
			return true
		}
	}
	return false
}

// Definition is one immutable slot: a question, its branch rules, and the
// transition taken when no branch matches. An empty DefaultNext is terminal.
type Definition struct {
	ID          string
	Prompt      string
	Required    bool
	Branches    []Branch
	DefaultNext string
}

// Graph is the full slot catalog. Read-only after New; the first-declared
// slot is the root.
type Graph struct {
	defs  map[string]*Definition
	order []string
}

func New(defs []Definition) (*Graph, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("slot graph needs at least one slot")
	}

	g := &Graph{defs: make(map[string]*Definition, len(defs))}
	for i := range defs {
		d := defs[i]
		if d.ID == "" {
			return nil, fmt.Errorf("slot %d has empty id", i)
		}
		if _, dup := g.defs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate slot id %q", d.ID)
		}
		for j := range d.Branches {
			d.Branches[j].compile()
		}
		g.defs[d.ID] = &d
		g.order = append(g.order, d.ID)
	}

	// Every transition target must exist.
	for _, d := range g.defs {
		for _, b := range d.Branches {
			if _, ok := g.defs[b.Next]; !ok {
				return nil, fmt.Errorf("slot %q branch %q targets unknown slot %q", d.ID, b.Pattern, b.Next)
			}
		}
		if d.DefaultNext != "" {
			if _, ok := g.defs[d.DefaultNext]; !ok {
				return nil, fmt.Errorf("slot %q default targets unknown slot %q", d.ID, d.DefaultNext)
			}
		}
	}

	return g, nil
}

// Root returns the first-declared slot id.
func (g *Graph) Root() string {
	return g.order[0]
}

// Order returns slot ids in declaration order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Slot looks up a definition by id.
func (g *Graph) Slot(id string) (*Definition, bool) {
	d, ok := g.defs[id]
	return d, ok
}

// Len returns the number of slots in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

// NextUnfilled walks the graph from the root and returns the first slot
// absent from filled. It returns "" when traversal reaches a terminal with
// every visited slot filled (the interview-complete signal), and ErrCycle
// if a slot is revisited. Pure: no side effects, deterministic for a given
// filled map.
func (g *Graph) NextUnfilled(filled map[string]any) (string, error) {
	cur := g.Root()
	visited := make(map[string]bool, len(g.order))

	for cur != "" {
		if visited[cur] {
			return "", fmt.Errorf("slot %q revisited: %w", cur, ErrCycle)
		}
		visited[cur] = true

		def, ok := g.defs[cur]
		if !ok {
			return "", fmt.Errorf("transition into unknown slot %q", cur)
		}

		value, isFilled := filled[cur]
		if !isFilled {
			return cur, nil
		}

		next := def.DefaultNext
		lower := strings.ToLower(ValueString(value))
		for i := range def.Branches {
			if def.Branches[i].match(lower) {
				next = def.Branches[i].Next
				break
			}
		}
		cur = next
	}

	return "", nil
}

// ValueString renders a filled value in its canonical string form: booleans
// as true/false, lists comma-joined, everything else via %v.
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = ValueString(e)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
