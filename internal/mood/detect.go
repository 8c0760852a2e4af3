// Package mood guesses a mood from free text and from a short
// valence/energy questionnaire.
package mood

import (
	"maps"
	"slices"
	"strings"
	"unicode"
)

// DefaultMood is reported when no word of the text is in the lexicon.
const DefaultMood = "chill"

const (
	unmatchedConfidence = 0.15
	baseConfidence      = 0.45
	perHitConfidence    = 0.1
	maxConfidence       = 0.95
	winnerFloor         = 0.15
)

// Result is a detected mood with its share of the evidence.
type Result struct {
	Mood       string             `json:"mood"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`  // sums to 1
	Matched    bool               `json:"matched"` // false when the input carried no signal
}

type lexiconEntry struct {
	mood  string
	words []string
}

// lexicon is ordered: on a tie the earlier mood wins.
var lexicon = []lexiconEntry{
	{"happy", []string{"happy", "joy", "excited", "fun", "party", "energetic", "dance", "vibe", "good", "great", "cheerful", "uplift", "smile"}},
	{"sad", []string{"sad", "down", "blue", "depressed", "cry", "lonely", "heartbroken", "miss", "nostalgic", "slow", "melancholy", "exhausted"}},
	{"chill", []string{"chill", "calm", "relax", "lofi", "coffee", "study", "focus", "mellow", "soft", "ambient", "smooth", "peaceful"}},
	{"angry", []string{"angry", "mad", "rage", "furious", "aggressive", "scream"}},
	{"workout", []string{"workout", "gym", "run", "cardio", "training", "hiit", "beast", "motivation", "pump", "power"}},
	{"sleep", []string{"sleep", "bedtime", "asleep", "doze", "night", "lullaby", "soothing", "white", "noise"}},
	{"calm", []string{"calm", "serene", "soothing", "gentle", "quiet", "tranquil"}},
}

// Labels returns every mood the lexicon can report, in tie-break order.
func Labels() []string {
	out := make([]string, len(lexicon))
	for i, e := range lexicon {
		out[i] = e.mood
	}
	return out
}

// Detect counts lexicon words in text. Confidence grows with the number of
// hits for the winning mood; text without hits reports DefaultMood.
func Detect(text string) Result {
	tokens := tokenize(text)

	counts := make(map[string]int, len(lexicon))
	total := 0
	best, bestHits := DefaultMood, 0
	for _, e := range lexicon {
		n := 0
		for _, tok := range tokens {
			if slices.Contains(e.words, tok) {
				n++
			}
		}
		counts[e.mood] = n
		total += n
		if n > bestHits {
			best, bestHits = e.mood, n
		}
	}

	scores := make(map[string]float64, len(counts))
	for m, n := range counts {
		scores[m] = float64(n) / float64(max(total, 1))
	}
	if scores[best] < winnerFloor {
		scores[best] = winnerFloor
	}
	normalize(scores)

	conf := unmatchedConfidence
	if bestHits > 0 {
		conf = min(maxConfidence, baseConfidence+perHitConfidence*float64(bestHits))
	}
	return Result{Mood: best, Confidence: conf, Scores: scores, Matched: bestHits > 0}
}

// tokenize lower-cases text and splits it on anything but ASCII letters
// and digits.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})
}

// normalize scales scores to sum to 1. All-zero scores are left alone.
func normalize(scores map[string]float64) {
	var sum float64
	for _, v := range scores {
		sum += v
	}
	if sum == 0 {
		return
	}
	for k, v := range scores {
		scores[k] = v / sum
	}
}

// argmax returns the highest scoring label, the alphabetically first on a tie.
func argmax(scores map[string]float64) (string, float64) {
	best, bestScore := "", -1.0
	for _, k := range slices.Sorted(maps.Keys(scores)) {
		if scores[k] > bestScore {
			best, bestScore = k, scores[k]
		}
	}
	return best, bestScore
}
