package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/justestif/go-mood-playlist-builder/internal/scoring"
)

// LoadScoring returns scoring.DefaultConfig with the overrides in path
// applied. An empty path or a missing file yields the defaults.
//
// Scalar keys and [weights] fields override individually. A file that
// declares any [[moods]] replaces the whole mood table; the same holds for
// [[contexts]].
func LoadScoring(path string) (scoring.Config, error) {
	cfg := scoring.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading scoring config: %w", err)
	}

	return parseScoring(data, cfg)
}

func parseScoring(data []byte, defaults scoring.Config) (scoring.Config, error) {
	cfg := defaults
	cfg.Moods = nil
	cfg.Contexts = nil

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return defaults, fmt.Errorf("parsing scoring config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return defaults, fmt.Errorf("parsing scoring config: unknown key %q", undecoded[0].String())
	}

	if !md.IsDefined("moods") {
		cfg.Moods = defaults.Moods
	}
	if !md.IsDefined("contexts") {
		cfg.Contexts = defaults.Contexts
	}

	if err := cfg.Validate(); err != nil {
		return defaults, err
	}
	return cfg, nil
}
