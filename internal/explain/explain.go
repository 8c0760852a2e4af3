// Package explain writes the short human-readable description attached to a
// built playlist. Descriptions never influence which tracks are chosen or
// their order.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// sampleSize is how many tracks are shown to a model.
const sampleSize = 12

// Describer produces a playlist description.
type Describer interface {
	Describe(ctx context.Context, mood, listeningContext string, tracks []scoring.ScoredTrack) string
}

// Template is the deterministic Describer.
type Template struct{}

// Describe implements Describer.
func (Template) Describe(_ context.Context, mood, listeningContext string, _ []scoring.ScoredTrack) string {
	mood, listeningContext = defaults(mood, listeningContext)
	return fmt.Sprintf("A %s playlist tailored for %s. Smooth flow and consistent vibe curated from the selected tracks.",
		mood, listeningContext)
}

func defaults(mood, listeningContext string) (string, string) {
	mood = strings.TrimSpace(mood)
	if mood == "" {
		mood = "mixed"
	}
	listeningContext = strings.TrimSpace(listeningContext)
	if listeningContext == "" {
		listeningContext = "general"
	}
	return mood, listeningContext
}

// prompt renders the user message sent to a model.
func prompt(mood, listeningContext string, tracks []scoring.ScoredTrack) string {
	mood, listeningContext = defaults(mood, listeningContext)

	var lines []string
	for _, st := range tracks[:min(len(tracks), sampleSize)] {
		name := strings.TrimSpace(st.Track.Title)
		if name == "" {
			continue
		}
		line := "- " + name
		if len(st.Track.Artists) > 0 {
			line += " by " + strings.Join(st.Track.Artists, ", ")
		}
		lines = append(lines, line)
	}
	sample := "- (tracks omitted)"
	if len(lines) > 0 {
		sample = strings.Join(lines, "\n")
	}

	var sb strings.Builder
	sb.WriteString("Write a short description (1-3 sentences) of a Spotify-style playlist for a user.\n")
	sb.WriteString("Constraints: be vivid but concise, no emojis, no hashtags, no repeated words, no title casing.\n")
	sb.WriteString("Mood: " + mood + "\n")
	sb.WriteString("Context: " + listeningContext + "\n")
	sb.WriteString("Tracks (subset):\n")
	sb.WriteString(sample + "\n")
	sb.WriteString("Now output only the description.")
	return sb.String()
}
