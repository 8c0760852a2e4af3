package explain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

const wantTemplate = "A chill playlist tailored for study. Smooth flow and consistent vibe curated from the selected tracks."

func sample(n int) []scoring.ScoredTrack {
	out := make([]scoring.ScoredTrack, n)
	for i := range out {
		out[i] = scoring.ScoredTrack{Track: scoring.Track{
			ID:      string(rune('a' + i)),
			Title:   "Song " + string(rune('A'+i)),
			Artists: []string{"Band"},
		}}
	}
	return out
}

func TestTemplate(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, wantTemplate, Template{}.Describe(ctx, "chill", "study", nil))
	assert.Equal(t,
		"A mixed playlist tailored for general. Smooth flow and consistent vibe curated from the selected tracks.",
		Template{}.Describe(ctx, " ", "", sample(3)))
}

func TestPrompt(t *testing.T) {
	p := prompt("happy", "", sample(20))
	assert.Contains(t, p, "Mood: happy\nContext: general\n")
	assert.Contains(t, p, "- Song A by Band")
	assert.Contains(t, p, "- Song L by Band")
	assert.NotContains(t, p, "Song M", "only the first tracks are sampled")

	assert.Contains(t, prompt("happy", "party", nil), "- (tracks omitted)")
}

func TestOllamaDescribe(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		responseBody string
		want         string
	}{
		{
			name:         "model answer",
			status:       http.StatusOK,
			responseBody: `{"message":{"role":"assistant","content":"  \"Soft keys for deep work.\" "}}`,
			want:         "Soft keys for deep work.",
		},
		{
			name:         "server error falls back",
			status:       http.StatusInternalServerError,
			responseBody: `{"error":"bad"}`,
			want:         wantTemplate,
		},
		{
			name:         "error field falls back",
			status:       http.StatusOK,
			responseBody: `{"error":"model not found"}`,
			want:         wantTemplate,
		},
		{
			name:         "empty content falls back",
			status:       http.StatusOK,
			responseBody: `{"message":{"role":"assistant","content":"   "}}`,
			want:         wantTemplate,
		},
		{
			name:         "garbage falls back",
			status:       http.StatusOK,
			responseBody: `not json`,
			want:         wantTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotRequest chatRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/chat" || r.Method != http.MethodPost {
					w.WriteHeader(http.StatusNotFound)
					return
				}
				if err := json.NewDecoder(r.Body).Decode(&gotRequest); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer srv.Close()

			o := NewOllama(srv.URL+"/", "tiny")
			got := o.Describe(context.Background(), "chill", "study", sample(2))
			assert.Equal(t, tt.want, got)

			assert.Equal(t, "tiny", gotRequest.Model)
			assert.False(t, gotRequest.Stream)
			require.Len(t, gotRequest.Messages, 2)
			assert.Equal(t, "system", gotRequest.Messages[0].Role)
			assert.Equal(t, "user", gotRequest.Messages[1].Role)
			assert.True(t, strings.Contains(gotRequest.Messages[1].Content, "- Song B by Band"))
		})
	}
}

func TestOllamaUnreachableFallsBack(t *testing.T) {
	o := NewOllama("http://127.0.0.1:1", "", WithHTTPClient(&http.Client{Timeout: time.Second}))
	assert.Equal(t, wantTemplate, o.Describe(context.Background(), "chill", "study", nil))
}

func TestNewOllamaDefaults(t *testing.T) {
	o := NewOllama("", "")
	assert.Equal(t, defaultBaseURL, o.baseURL)
	assert.Equal(t, DefaultModel, o.model)
}
