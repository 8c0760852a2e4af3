// Package display renders playlists and profiles as plain text for the CLI.
package display

import (
	"fmt"
	"strings"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/store"
)

const dateFormat = "2006-01-02 15:04"

// FormatPlaylist returns a numbered track listing with scores and reasons.
func FormatPlaylist(p *store.Playlist) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s (%s)\n", p.Title, plural(len(p.Tracks), "track")))
	sb.WriteString(fmt.Sprintf("Mood: %s", p.Params.Mood))
	if p.Params.Context != "" {
		sb.WriteString(fmt.Sprintf("  Context: %s", p.Params.Context))
	}
	if len(p.Params.Genres) > 0 {
		sb.WriteString(fmt.Sprintf("  Genres: %s", strings.Join(p.Params.Genres, ", ")))
	}
	sb.WriteString("\n")
	if p.Description != "" {
		sb.WriteString(p.Description + "\n")
	}
	if p.ID != "" {
		sb.WriteString(fmt.Sprintf("ID: %s\n", p.ID))
	}
	if p.SpotifyPlaylistID != "" {
		sb.WriteString(fmt.Sprintf("Spotify: %s\n", p.SpotifyPlaylistID))
	}

	if len(p.Tracks) == 0 {
		sb.WriteString("\nNo tracks matched\n")
		return sb.String()
	}

	sb.WriteString("\n")
	for i, st := range p.Tracks {
		sb.WriteString(formatTrack(i+1, st))
	}
	return sb.String()
}

// formatTrack formats a single scored track with its reasons.
func formatTrack(num int, st scoring.ScoredTrack) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%2d. \"%s\" - %s  (%.2f)\n",
		num, st.Track.Title, strings.Join(st.Track.Artists, ", "), st.Score))
	if len(st.Reasons) > 0 {
		sb.WriteString("    " + strings.Join(st.Reasons, "; ") + "\n")
	}
	return sb.String()
}

// FormatSummaries lists saved playlists, one per line.
func FormatSummaries(summaries []store.Summary) string {
	if len(summaries) == 0 {
		return "No saved playlists\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %s\n\n", plural(len(summaries), "saved playlist")))
	for _, s := range summaries {
		mood := s.Mood
		if s.Context != "" {
			mood += "/" + s.Context
		}
		published := ""
		if s.SpotifyPlaylistID != "" {
			published = "  [published]"
		}
		sb.WriteString(fmt.Sprintf("%s  %s  %-16s %9s  %s%s\n",
			s.ID, s.CreatedAt.Format(dateFormat), mood, plural(s.TrackCount, "track"), s.Title, published))
	}
	return sb.String()
}

// FormatProfiles lists the available moods and contexts with their ranges.
func FormatProfiles(moods []scoring.MoodProfile, contexts []scoring.ContextProfile) string {
	var sb strings.Builder

	sb.WriteString("Moods:\n")
	for _, m := range moods {
		sb.WriteString(fmt.Sprintf("  %-10s valence %s  energy %s  tempo %s",
			m.Name, formatRange(m.Valence, "%.2f"), formatRange(m.Energy, "%.2f"), formatRange(m.Tempo, "%.0f")))
		if m.Description != "" {
			sb.WriteString("  " + m.Description)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nContexts:\n")
	for _, c := range contexts {
		sb.WriteString(fmt.Sprintf("  %-10s", c.Name))
		if c.Tempo != nil {
			sb.WriteString(" tempo " + formatRange(*c.Tempo, "%.0f"))
		}
		if c.Energy != nil {
			sb.WriteString(" energy " + formatRange(*c.Energy, "%.2f"))
		}
		if c.Description != "" {
			sb.WriteString("  " + c.Description)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatRange(r scoring.Range, verb string) string {
	return fmt.Sprintf(verb+"-"+verb, r.Min, r.Max)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
