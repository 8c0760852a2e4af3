package mood

import "maps"

// Weights of the two signals in Fuse.
const (
	TextWeight = 0.7
	QuizWeight = 0.3
)

// aliases maps labels the detectors report onto common mood profile names.
var aliases = map[string]string{
	"workout": "energetic",
	"sleep":   "calm",
	"relaxed": "chill",
}

type signal struct {
	result Result
	weight float64
}

// Fuse combines a text and a quiz result over the union of their labels.
// Each side is normalized first. A side without signal is left out, and a
// lone signal is returned as is.
func Fuse(text, quiz Result) Result {
	var signals []signal
	if text.Matched {
		signals = append(signals, signal{text, TextWeight})
	}
	if quiz.Matched {
		signals = append(signals, signal{quiz, QuizWeight})
	}
	switch len(signals) {
	case 0:
		return text
	case 1:
		return signals[0].result
	}

	fused := make(map[string]float64)
	for _, s := range signals {
		scores := maps.Clone(s.result.Scores)
		normalize(scores)
		for k, v := range scores {
			fused[k] += s.weight * v
		}
	}
	normalize(fused)

	best, conf := argmax(fused)
	return Result{Mood: best, Confidence: conf, Scores: fused, Matched: true}
}

// Restrict folds aliased labels into their targets and drops labels that
// are not in known. A winner that survives keeps its confidence and wins
// ties; a new winner gets its share of the remaining scores. Nothing known
// left means no match.
func Restrict(r Result, known []string) Result {
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}
	resolve := func(label string) (string, bool) {
		if knownSet[label] {
			return label, true
		}
		if to, ok := aliases[label]; ok && knownSet[to] {
			return to, true
		}
		return "", false
	}

	scores := make(map[string]float64)
	for label, v := range r.Scores {
		if to, ok := resolve(label); ok {
			scores[to] += v
		}
	}
	normalize(scores)

	best, share := argmax(scores)
	if best == "" || share <= 0 {
		return Result{Scores: scores}
	}
	if prev, ok := resolve(r.Mood); ok && scores[prev] == share {
		return Result{Mood: prev, Confidence: r.Confidence, Scores: scores, Matched: r.Matched}
	}
	return Result{Mood: best, Confidence: share, Scores: scores, Matched: r.Matched}
}
