// Command mood-playlist-builder builds Spotify playlists for a mood and a
// listening context, from the command line or as an HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	a := &app{out: os.Stdout}
	defer a.close()

	root := newRootCmd(a)
	root.SetOut(os.Stdout)
	return root.ExecuteContext(context.Background())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mood-playlist-builder",
		Short:         "Build Spotify playlists for a mood and a listening context",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.out = cmd.OutOrStdout()
			return a.init()
		},
	}

	root.AddCommand(
		newServeCmd(a),
		newBuildCmd(a),
		newProfilesCmd(a),
		newDetectCmd(a),
		newSuggestCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newPlaylistsCmd(a),
	)
	return root
}
