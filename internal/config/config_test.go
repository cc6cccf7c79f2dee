package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/config"
)

func TestLoad(t *testing.T) {
	tests := map[string]struct {
		content   *string
		expConfig config.Config
		expErr    bool
	}{
		"a missing file should load an empty config": {
			content: nil,
		},

		"a valid file should load its values": {
			content: strPtr("api_url: https://api.example.com\ntoken: abc123\n"),
			expConfig: config.Config{
				APIURL: "https://api.example.com",
				Token:  "abc123",
			},
		},

		"a partial file should leave the rest zero": {
			content:   strPtr("token: abc123\n"),
			expConfig: config.Config{Token: "abc123"},
		},

		"invalid yaml should fail": {
			content: strPtr("api_url: [unclosed\n"),
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			path := filepath.Join(t.TempDir(), "config.yaml")
			if test.content != nil {
				require.NoError(os.WriteFile(path, []byte(*test.content), 0600))
			}

			cfg, err := config.Load(path)

			if test.expErr {
				require.Error(err)
				return
			}
			require.NoError(err)
			assert.Equal(test.expConfig, *cfg)
		})
	}
}

func strPtr(s string) *string { return &s }
