package correction

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/voight/internal/slotgraph"
)

// naturalRe captures "change/update/set ... <slot words> ... to/is/= <value>".
var naturalRe = regexp.MustCompile(`(?i)\b(?:change|update|set|make)\b(.+?)(?:\bto\b|\bis\b|=)\s*(.+)$`)

// Words too generic to identify a slot when mined from prompts.
var stopwords = map[string]bool{
	"what": true, "whats": true, "your": true, "you": true, "are": true,
	"have": true, "has": true, "been": true, "how": true, "many": true,
	"the": true, "and": true, "for": true, "any": true, "does": true,
	"that": true, "with": true, "them": true, "say": true, "list": true,
	"currently": true, "should": true, "use": true, "reach": true,
	"today": true, "bring": true, "brings": true, "taking": true,
	"none": true, "there": true, "this": true, "was": true, "were": true,
	"will": true, "can": true, "please": true, "which": true, "who": true,
}

type slotPatterns struct {
	strict   *regexp.Regexp
	keywords []string
}

// compileSlotPatterns derives both pattern layers for one slot from its id
// and prompt text — no hand-maintained alias lists.
func compileSlotPatterns(def *slotgraph.Definition) *slotPatterns {
	spaced := strings.ReplaceAll(def.ID, "_", " ")
	strict := regexp.MustCompile(
		`(?i)^\s*(?:` + regexp.QuoteMeta(def.ID) + `|` + regexp.QuoteMeta(spaced) + `)\s*[:=]\s*(.+)$`,
	)

	seen := make(map[string]bool)
	var kws []string
	add := func(w string) {
		w = strings.ToLower(w)
		if len(w) < 3 || stopwords[w] || seen[w] {
			return
		}
		seen[w] = true
		kws = append(kws, w)
	}
	for _, w := range strings.Split(def.ID, "_") {
		add(w)
	}
	for _, w := range strings.FieldsFunc(def.Prompt, func(r rune) bool { return !unicode.IsLetter(r) }) {
		add(w)
	}

	return &slotPatterns{strict: strict, keywords: kws}
}

type patternMatch struct {
	slotID string
	value  string
}

// fallbackMatches applies the strict slotname:value form first, then the
// natural-language form. The natural form picks the slot whose derived
// keywords best cover the words between the verb and the separator;
// declaration order breaks ties.
func (e *Engine) fallbackMatches(utterance string) []patternMatch {
	var out []patternMatch
	for _, id := range e.graph.Order() {
		if m := e.patterns[id].strict.FindStringSubmatch(utterance); m != nil {
			out = append(out, patternMatch{slotID: id, value: m[1]})
		}
	}
	if len(out) > 0 {
		return out
	}

	m := naturalRe.FindStringSubmatch(utterance)
	if m == nil {
		return nil
	}
	middle := strings.ToLower(m[1])
	value := m[2]

	best := ""
	bestHits := 0
	for _, id := range e.graph.Order() {
		hits := 0
		for _, kw := range e.patterns[id].keywords {
			if strings.Contains(middle, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = id
			bestHits = hits
		}
	}
	if best == "" {
		return nil
	}
	return []patternMatch{{slotID: best, value: value}}
}
