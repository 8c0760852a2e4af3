package catalog

import (
	"strings"
)

// MaxVariants caps how many searches one build issues.
const MaxVariants = 6

// Variants returns the search queries for q in priority order, without
// duplicates (compared case-insensitively).
//
// For mood "chill", context "study" and genre "lofi" that is
// "lofi chill", `genre:"lofi"`, "study lofi", "study chill", "chill" and
// "study music".
func Variants(q Query) []string {
	mood := clean(q.Mood)
	context := clean(q.Context)

	var combos []string
	if vibe := clean(q.Vibe); vibe != "" {
		combos = append(combos, vibe)
	}
	for _, g := range q.Genres {
		g = clean(g)
		if g == "" {
			continue
		}
		combos = append(combos, join(g, mood), `genre:"`+g+`"`)
		if context != "" {
			combos = append(combos, join(context, g))
		}
	}
	if context != "" && mood != "" {
		combos = append(combos, join(context, mood))
	}
	combos = append(combos, mood)
	if context != "" {
		combos = append(combos, context+" music")
	}

	seen := make(map[string]bool, len(combos))
	out := make([]string, 0, min(len(combos), MaxVariants))
	for _, c := range combos {
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == MaxVariants {
			break
		}
	}
	return out
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func join(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
