package lastfm

import "strings"

// Tag represents a Last.fm tag with popularity count.
type Tag struct {
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"` // 0-100 relative weight; may be absent
	URL   string `json:"url"`
}

// GenreNames turns tags into lower-cased genre names, dropping tags weighted
// below minCount and duplicates. Tags without a count are kept. At most limit
// names are returned when limit is positive.
func GenreNames(tags []Tag, minCount, limit int) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t.Count > 0 && t.Count < minCount {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// trackTagsResponse is the JSON response for track.getTopTags.
type trackTagsResponse struct {
	TopTags struct {
		Tag  []Tag `json:"tag"`
		Attr struct {
			Artist string `json:"artist"`
			Track  string `json:"track"`
		} `json:"@attr"`
	} `json:"toptags"`
}

// artistTagsResponse is the JSON response for artist.getTopTags.
type artistTagsResponse struct {
	TopTags struct {
		Tag  []Tag `json:"tag"`
		Attr struct {
			Artist string `json:"artist"`
		} `json:"@attr"`
	} `json:"toptags"`
}

// apiError represents a Last.fm API error response.
type apiError struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}
