package clustering

// quadrantName describes a (valence, energy) point with a 2x2
// energy/valence quadrant system.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
func quadrantName(valence, energy float64) string {
	highEnergy := energy > 0.6
	highValence := valence > 0.5

	switch {
	case highEnergy && highValence:
		return "Upbeat Party"
	case highEnergy && !highValence:
		return "Intense & Dark"
	case !highEnergy && highValence:
		return "Chill & Happy"
	default: // low energy, low valence
		return "Reflective & Melancholy"
	}
}

// Describe returns a one-line description of the quadrant a suggestion
// falls in.
func (s Suggestion) Describe() string {
	if s.Fallback {
		return "Not enough listening history yet"
	}
	switch {
	case s.Energy > 0.6 && s.Valence > 0.5:
		return "High-energy, positive vibes - perfect for dancing and celebrations"
	case s.Energy > 0.6 && s.Valence <= 0.5:
		return "Intense, driving energy with darker emotional tones"
	case s.Energy <= 0.6 && s.Valence > 0.5:
		return "Relaxed and uplifting - great for unwinding"
	default:
		return "Contemplative and introspective - ideal for quiet moments"
	}
}
