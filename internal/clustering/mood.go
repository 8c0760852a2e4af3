// Package clustering suggests a mood from the audio features of tracks a
// user already listens to, using k-means over (valence, energy).
package clustering

import (
	"math"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// DefaultMood is suggested when there is too little history to cluster.
const DefaultMood = "chill"

// Config holds mood suggestion parameters.
type Config struct {
	NumClusters int // Number of clusters to create (default: 3)
	MinTracks   int // Fewer usable tracks than this falls back to DefaultMood
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters: 3,
		MinTracks:   6,
	}
}

// Suggestion is the outcome of SuggestMood.
type Suggestion struct {
	Mood        string  `json:"mood"`
	Vibe        string  `json:"vibe,omitempty"` // quadrant name of the centroid
	Valence     float64 `json:"valence"`
	Energy      float64 `json:"energy"`
	ClusterSize int     `json:"cluster_size"`
	Tracks      int     `json:"tracks"`   // tracks with usable features
	Fallback    bool    `json:"fallback"` // true when DefaultMood was used
}

// trackObservation wraps a Track to implement clusters.Observation interface.
type trackObservation struct {
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// SuggestMood clusters tracks by (valence, energy), takes the largest
// cluster and returns the mood whose profile midpoint lies nearest to its
// centroid. Tracks missing either feature are ignored.
func SuggestMood(tracks []scoring.Track, moods []scoring.MoodProfile, cfg Config) Suggestion {
	def := DefaultConfig()
	if cfg.NumClusters <= 0 {
		cfg.NumClusters = def.NumClusters
	}
	if cfg.MinTracks <= 0 {
		cfg.MinTracks = def.MinTracks
	}
	cfg.MinTracks = max(cfg.MinTracks, cfg.NumClusters)

	var obs clusters.Observations
	distinct := make(map[[2]float64]bool)
	for _, t := range tracks {
		if t.Valence == nil || t.Energy == nil {
			continue
		}
		obs = append(obs, trackObservation{coords: clusters.Coordinates{*t.Valence, *t.Energy}})
		distinct[[2]float64{*t.Valence, *t.Energy}] = true
	}

	fallback := Suggestion{Mood: DefaultMood, Tracks: len(obs), Fallback: true}
	if len(obs) < cfg.MinTracks || len(moods) == 0 {
		return fallback
	}

	// k-means cannot fill more clusters than there are distinct points.
	k := min(cfg.NumClusters, len(distinct))

	km := kmeans.New()
	result, err := km.Partition(obs, k)
	if err != nil {
		return fallback
	}

	var largest clusters.Cluster
	for _, c := range result {
		if len(c.Observations) > len(largest.Observations) {
			largest = c
		}
	}
	if len(largest.Observations) == 0 {
		return fallback
	}

	// kmeans only recenters after a pass that moved a point, so Center can
	// still hold its random seed. Use the mean of the members instead.
	center, err := largest.Observations.Center()
	if err != nil {
		return fallback
	}
	valence, energy := center[0], center[1]
	return Suggestion{
		Mood:        nearestMood(valence, energy, moods),
		Vibe:        quadrantName(valence, energy),
		Valence:     valence,
		Energy:      energy,
		ClusterSize: len(largest.Observations),
		Tracks:      len(obs),
	}
}

// nearestMood returns the mood whose (valence, energy) midpoint is closest.
// Ties go to the mood listed first.
func nearestMood(valence, energy float64, moods []scoring.MoodProfile) string {
	best, bestDist := "", math.Inf(1)
	for _, m := range moods {
		d := math.Hypot(m.Valence.Mid()-valence, m.Energy.Mid()-energy)
		if d < bestDist {
			best, bestDist = m.Name, d
		}
	}
	return best
}
