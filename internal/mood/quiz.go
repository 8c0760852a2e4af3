package mood

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
)

// Answer is a Likert answer to one quiz statement.
type Answer string

const (
	StronglyAgree    Answer = "SA"
	Agree            Answer = "A"
	CantSay          Answer = "CS"
	Disagree         Answer = "D"
	StronglyDisagree Answer = "SD"
)

// NumQuestions is the number of Likert statements. Questions are numbered
// from 1.
const NumQuestions = 9

// FocusMood is reported when the taker says they need to focus.
const FocusMood = "focus"

const (
	focusConfidence = 0.9
	maxQuizConf     = 0.99
	emaAlpha        = 0.5
)

// ErrInvalidQuiz is returned for unknown questions or answers.
var ErrInvalidQuiz = errors.New("invalid quiz")

type point struct{ valence, energy float64 }

// quizWeights places every answer of every statement in (valence, energy)
// space. Statements 1 to 3 are negative, 4 to 6 positive, 7 to 9 mixed.
var quizWeights = [NumQuestions]map[Answer]point{
	{StronglyAgree: {0, 0}, Agree: {0.25, 0.25}, CantSay: {0.5, 0.5}, Disagree: {0.375, 0.375}, StronglyDisagree: {0.5, 0.5}},
	{StronglyAgree: {0, 0}, Agree: {0.25, 0.25}, CantSay: {0.5, 0.5}, Disagree: {0.375, 0.375}, StronglyDisagree: {0.5, 0.5}},
	{StronglyAgree: {0, 0}, Agree: {0.25, 0.25}, CantSay: {0.5, 0.5}, Disagree: {0.75, 0.75}, StronglyDisagree: {0.875, 0.875}},
	{StronglyAgree: {1, 1}, Agree: {0.75, 0.75}, CantSay: {0.5, 0.5}, Disagree: {0.25, 0.25}, StronglyDisagree: {0, 0}},
	{StronglyAgree: {1, 1}, Agree: {0.75, 0.75}, CantSay: {0.5, 0.5}, Disagree: {0.25, 0.25}, StronglyDisagree: {0, 0}},
	{StronglyAgree: {1, 1}, Agree: {0.75, 0.75}, CantSay: {0.5, 0.5}, Disagree: {0.25, 0.25}, StronglyDisagree: {0, 0}},
	{StronglyAgree: {0.1, 1}, Agree: {0.25, 1}, CantSay: {0.5, 0.5}, Disagree: {0.5, 1}, StronglyDisagree: {0.75, 0.75}},
	{StronglyAgree: {0.75, 0}, Agree: {0.5, 0}, CantSay: {0.5, 0.5}, Disagree: {0.25, 0.25}, StronglyDisagree: {0, 0}},
	{StronglyAgree: {0, 1}, Agree: {0.25, 1}, CantSay: {0.5, 0.5}, Disagree: {0.6, 0.4}, StronglyDisagree: {0.8, 0.2}},
}

// Quiz holds the answers to the questionnaire.
type Quiz struct {
	Answers map[int]Answer `json:"answers"`         // question number to answer
	Focus   *bool          `json:"focus,omitempty"` // "do you need to focus?"
}

// Empty reports whether the quiz carries no answer at all.
func (q *Quiz) Empty() bool {
	return q == nil || (len(q.Answers) == 0 && q.Focus == nil)
}

// QuizResult is a scored quiz.
type QuizResult struct {
	Result
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
}

// ScoreQuiz places the answers in (valence, energy) space and names the
// quadrant they land in. The position is the mean of the decided answers
// averaged with a running average of all answers in question order.
func ScoreQuiz(q Quiz) (QuizResult, error) {
	var decided, all []point
	for _, n := range slices.Sorted(maps.Keys(q.Answers)) {
		if n < 1 || n > NumQuestions {
			return QuizResult{}, fmt.Errorf("%w: no question %d", ErrInvalidQuiz, n)
		}
		p, ok := quizWeights[n-1][q.Answers[n]]
		if !ok {
			return QuizResult{}, fmt.Errorf("%w: answer %q to question %d", ErrInvalidQuiz, q.Answers[n], n)
		}
		all = append(all, p)
		if q.Answers[n] != CantSay {
			decided = append(decided, p)
		}
	}
	if len(decided) == 0 {
		decided = all
	}

	avg := mean(decided)
	ema := movingAverage(all)
	pos := point{(avg.valence + ema.valence) / 2, (avg.energy + ema.energy) / 2}

	res := QuizResult{
		Result:  Result{Matched: !q.Empty()},
		Valence: pos.valence,
		Energy:  pos.energy,
	}
	if q.Focus != nil && *q.Focus {
		res.Mood, res.Confidence = FocusMood, focusConfidence
	} else {
		dx, dy := pos.valence-0.5, pos.energy-0.5
		res.Mood = quadrant(dx, dy)
		res.Confidence = math.Round(min(maxQuizConf, 0.5+min(0.5, math.Hypot(dx, dy)))*1000) / 1000
	}
	res.Scores = map[string]float64{res.Mood: 1}
	return res, nil
}

// quadrant names the quadrant of an offset from the neutral point.
func quadrant(dx, dy float64) string {
	switch {
	case dx >= 0 && dy >= 0:
		return "happy"
	case dx < 0 && dy >= 0:
		return "angry"
	case dx < 0 && dy < 0:
		return "sad"
	default:
		return "relaxed"
	}
}

// mean is the neutral point for no answers.
func mean(ps []point) point {
	if len(ps) == 0 {
		return point{0.5, 0.5}
	}
	var sum point
	for _, p := range ps {
		sum.valence += p.valence
		sum.energy += p.energy
	}
	n := float64(len(ps))
	return point{sum.valence / n, sum.energy / n}
}

// movingAverage is an exponential moving average seeded with the first point.
func movingAverage(ps []point) point {
	if len(ps) == 0 {
		return point{0.5, 0.5}
	}
	avg := ps[0]
	for _, p := range ps[1:] {
		avg.valence = emaAlpha*p.valence + (1-emaAlpha)*avg.valence
		avg.energy = emaAlpha*p.energy + (1-emaAlpha)*avg.energy
	}
	return avg
}
