package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/justestif/go-mood-playlist-builder/internal/auth"
	"github.com/justestif/go-mood-playlist-builder/internal/catalog"
	"github.com/justestif/go-mood-playlist-builder/internal/display"
	"github.com/justestif/go-mood-playlist-builder/internal/history"
	"github.com/justestif/go-mood-playlist-builder/internal/mood"
	"github.com/justestif/go-mood-playlist-builder/internal/playlist"
	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
	"github.com/justestif/go-mood-playlist-builder/internal/spotify"
	"github.com/justestif/go-mood-playlist-builder/internal/tags"
	"github.com/justestif/go-mood-playlist-builder/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx, true)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Addr
			}

			cfg := web.ServerConfig{
				Addr:         addr,
				ClientID:     a.cfg.SpotifyID,
				ClientSecret: a.cfg.SpotifySecret,
				RedirectURI:  a.cfg.RedirectURI,
				Service:      svc,
				Logger:       a.log,
			}
			if a.db != nil {
				sessions := web.NewDBSessionStore(a.db, a.log)
				a.purgeStale(ctx, sessions)
				cfg.Sessions = sessions
				cfg.Users = a.db.Users()
			}

			server, err := web.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("creating server: %w", err)
			}
			return server.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $ADDR or 127.0.0.1:8080)")
	return cmd
}

// purgeStale drops expired sessions and cached audio features and tags
// older than their TTLs. Failures are logged; the server starts regardless.
func (a *app) purgeStale(ctx context.Context, sessions *web.DBSessionStore) {
	if n, err := sessions.PurgeExpired(ctx); err != nil {
		a.log.Warn("purging expired sessions", zap.Error(err))
	} else if n > 0 {
		a.log.Info("purged expired sessions", zap.Int64("count", n))
	}
	cutoff := time.Now().Add(-catalog.DefaultFeatureTTL)
	if n, err := a.db.Tracks().DeleteOlderThan(ctx, cutoff); err != nil {
		a.log.Warn("purging stale audio features", zap.Error(err))
	} else if n > 0 {
		a.log.Info("purged stale audio features", zap.Int64("count", n))
	}
	if n, err := a.db.Tags().DeleteOlderThan(ctx, time.Now().Add(-tags.CacheTTL)); err != nil {
		a.log.Warn("purging stale tags", zap.Error(err))
	} else if n > 0 {
		a.log.Info("purged stale tags", zap.Int64("count", n))
	}
}

func newBuildCmd(a *app) *cobra.Command {
	var (
		req       playlist.BuildRequest
		genres    string
		limit     int
		answers   []string
		focus     bool
		anonymous bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a playlist",
		Long: "Build a playlist for a mood and an optional listening context.\n" +
			"Without --mood one is detected from --vibe and the quiz answers, or else\n" +
			"suggested from your saved playlists. When you are logged in, builds are\n" +
			"personalized with your listening history.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx, true)
			if err != nil {
				return err
			}
			req.Genres = scoring.ParseGenres(genres)
			if cmd.Flags().Changed("limit") {
				req.Limit = &limit
			}
			if req.Quiz, err = parseQuiz(answers, focus, cmd.Flags().Changed("focus")); err != nil {
				return err
			}

			if !anonymous {
				if err := a.personalize(ctx, &req); err != nil {
					return err
				}
			}

			result, err := svc.Build(ctx, req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if result.Detected != nil {
				fmt.Fprintf(out, "Detected mood: %s (%.0f%% confident)\n\n", result.Detected.Mood, result.Detected.Confidence*100)
			}
			if result.Suggestion != nil {
				fmt.Fprintf(out, "Suggested mood: %s (%s)\n\n", result.Suggestion.Mood, result.Suggestion.Describe())
			}
			fmt.Fprint(out, display.FormatPlaylist(result.Playlist))
			if result.Note != "" {
				fmt.Fprintf(out, "\nNote: %s\n", result.Note)
			}
			if result.Excluded > 0 {
				fmt.Fprintf(out, "\n%d of %d candidates were skipped for missing audio features\n", result.Excluded, result.Candidates)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&req.Mood, "mood", "m", "", "mood profile (see the profiles command)")
	f.StringVarP(&req.Context, "context", "c", "", "listening context")
	f.StringVarP(&genres, "genres", "g", "", "comma-separated genres")
	f.StringVar(&req.Vibe, "vibe", "", "free text searched as-is")
	addQuizFlags(cmd, &answers, &focus)
	f.IntVarP(&limit, "limit", "n", playlist.DefaultLimit, fmt.Sprintf("number of tracks (%d-%d)", playlist.MinLimit, playlist.MaxLimit))
	f.StringVar(&req.Market, "market", "", "Spotify market (default $SPOTIFY_MARKET)")
	f.BoolVarP(&req.Save, "save", "s", false, "save the playlist")
	f.StringVarP(&req.Title, "title", "t", "", "playlist title")
	f.BoolVar(&anonymous, "anonymous", false, "skip personalization even when logged in")
	f.BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// personalize fills the user and listener of req from the cached login.
// Not being logged in is fine; builds are then anonymous.
func (a *app) personalize(ctx context.Context, req *playlist.BuildRequest) error {
	client, err := a.userClient(ctx, false)
	if errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, auth.ErrMissingCredentials) {
		return nil
	}
	if err != nil {
		return err
	}
	userID, err := client.UserID(ctx)
	if err != nil {
		return err
	}
	req.UserID = userID
	req.Listener = client
	return nil
}

func newDetectCmd(a *app) *cobra.Command {
	var (
		answers []string
		focus   bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "detect [text...]",
		Short: "Guess a mood from how you describe your day and the quiz answers",
		Long: "Guess a mood from free text and the answers to a nine statement quiz.\n" +
			"Answer statements with --answer N=SA|A|CS|D|SD (strongly agree to strongly\n" +
			"disagree, CS for can't say).",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			quiz, err := parseQuiz(answers, focus, cmd.Flags().Changed("focus"))
			if err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" && quiz.Empty() {
				return errors.New("give some text or quiz answers")
			}

			scorer, err := a.scorer()
			if err != nil {
				return err
			}
			res, err := playlist.New(scorer, nil, playlist.WithLogger(a.log)).DetectMood(text, quiz)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			if !res.Matched {
				fmt.Fprintln(out, "No mood words found; try the quiz or name a mood with build --mood")
				return nil
			}
			fmt.Fprintf(out, "Detected mood: %s (%.0f%% confident)\n", res.Mood, res.Confidence*100)
			return nil
		},
	}
	addQuizFlags(cmd, &answers, &focus)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func addQuizFlags(cmd *cobra.Command, answers *[]string, focus *bool) {
	cmd.Flags().StringArrayVar(answers, "answer", nil, "quiz answer as N=SA|A|CS|D|SD (repeatable)")
	cmd.Flags().BoolVar(focus, "focus", false, "answer yes to \"do you need to focus?\"")
}

// parseQuiz turns --answer flags into a quiz. It returns nil when no quiz
// flag was given.
func parseQuiz(answers []string, focus, focusSet bool) (*mood.Quiz, error) {
	if len(answers) == 0 && !focusSet {
		return nil, nil
	}
	q := &mood.Quiz{Answers: make(map[int]mood.Answer, len(answers))}
	if focusSet {
		q.Focus = &focus
	}
	for _, a := range answers {
		num, ans, ok := strings.Cut(a, "=")
		n, err := strconv.Atoi(strings.TrimSpace(num))
		if !ok || err != nil {
			return nil, fmt.Errorf("%w: answer %q is not N=ANSWER", mood.ErrInvalidQuiz, a)
		}
		q.Answers[n] = mood.Answer(strings.ToUpper(strings.TrimSpace(ans)))
	}
	return q, nil
}

func newProfilesCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "List the available moods and listening contexts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scorer, err := a.scorer()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{
					"moods":    scorer.Moods(),
					"contexts": scorer.Contexts(),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), display.FormatProfiles(scorer.Moods(), scorer.Contexts()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func newSuggestCmd(a *app) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest a mood from saved playlists and show what you build most",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx, false)
			if err != nil {
				return err
			}

			if userID == "" {
				var req playlist.BuildRequest
				if err := a.personalize(ctx, &req); err != nil {
					return err
				}
				userID = req.UserID
			}

			sug := svc.SuggestMood(ctx, userID)
			profile, err := svc.Profile(ctx, userID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Suggested mood: %s\n%s\n", sug.Mood, sug.Describe())
			if profile.Playlists == 0 {
				return nil
			}
			fmt.Fprintf(out, "\nFrom %d playlists (%d unique tracks):\n", profile.Playlists, profile.UniqueTracks)
			printRanked(cmd, "Moods", profile.TopMoods)
			printRanked(cmd, "Genres", profile.TopGenres)
			printRanked(cmd, "Artists", profile.TopArtists)
			printRanked(cmd, "Days", profile.TopWeekdays)
			printRanked(cmd, "Hours", profile.TopHours)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Spotify user ID (default: the logged-in user)")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to Spotify and cache the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.userClient(cmd.Context(), true)
			if err != nil {
				return err
			}
			user, err := client.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", user.DisplayName, user.ID)
			return nil
		},
	}
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached Spotify token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			authenticator, err := a.authenticator()
			if err != nil {
				return err
			}
			if err := authenticator.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newPlaylistsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlists",
		Short: "Manage saved playlists",
	}

	var userID string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved playlists, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			summaries, err := svc.List(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), display.FormatSummaries(summaries))
			return nil
		},
	}
	list.Flags().StringVar(&userID, "user", "", "only playlists of this Spotify user")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a saved playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			p, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, p)
			}
			fmt.Fprint(cmd.OutOrStdout(), display.FormatPlaylist(p))
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context(), false)
			if err != nil {
				return err
			}
			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}

	var public bool
	publish := &cobra.Command{
		Use:   "publish ID",
		Short: "Create a saved playlist in your Spotify account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.service(ctx, false)
			if err != nil {
				return err
			}
			client, err := a.userClient(ctx, true)
			if err != nil {
				return err
			}
			p, err := svc.Publish(ctx, args[0], client, public)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published %q: %s\n", p.Title, spotify.PlaylistURL(p.SpotifyPlaylistID))
			return nil
		},
	}
	publish.Flags().BoolVar(&public, "public", false, "make the Spotify playlist public")

	cmd.AddCommand(list, show, del, publish)
	return cmd
}

func printRanked(cmd *cobra.Command, label string, ranked []history.Ranked) {
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %-8s", label+":")
	for i, r := range ranked {
		if i > 0 {
			fmt.Fprint(cmd.OutOrStdout(), ", ")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%.1f)", r.Value, r.Score)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
