package lastfm

import (
	"errors"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		minCount  string
		wantKey   string
		wantCount int
		wantErr   error
	}{
		{
			name:      "valid API key",
			envValue:  "abc123def456abc123def456abc12345",
			wantKey:   "abc123def456abc123def456abc12345",
			wantCount: DefaultMinTagCount,
		},
		{
			name:      "custom tag threshold",
			envValue:  "key",
			minCount:  "25",
			wantKey:   "key",
			wantCount: 25,
		},
		{
			name:      "bad tag threshold keeps default",
			envValue:  "key",
			minCount:  "-3",
			wantKey:   "key",
			wantCount: DefaultMinTagCount,
		},
		{
			name:     "missing API key",
			envValue: "",
			wantErr:  ErrMissingAPIKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LASTFM_API_KEY", tt.envValue)
			t.Setenv("LASTFM_MIN_TAG_COUNT", tt.minCount)

			cfg, err := LoadConfig()

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr != nil {
				if cfg != nil {
					t.Errorf("LoadConfig() returned non-nil config with error")
				}
				return
			}
			if cfg.APIKey != tt.wantKey {
				t.Errorf("LoadConfig() APIKey = %v, want %v", cfg.APIKey, tt.wantKey)
			}
			if cfg.MinTagCount != tt.wantCount {
				t.Errorf("LoadConfig() MinTagCount = %v, want %v", cfg.MinTagCount, tt.wantCount)
			}
		})
	}
}
