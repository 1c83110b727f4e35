package core_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/mnemos-go/pkg/core"
)

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		name    string
		config  core.Config
		wantErr bool
	}{
		{"sqlite", core.Config{Store: core.StoreConfig{Provider: "sqlite"}}, false},
		{"postgres", core.Config{Store: core.StoreConfig{Provider: "postgres"}}, false},
		{"mysql", core.Config{Store: core.StoreConfig{Provider: "mysql"}}, false},
		{"empty provider", core.Config{}, true},
		{"unknown provider", core.Config{Store: core.StoreConfig{Provider: "oracle"}}, true},
		{
			"alpha out of range",
			core.Config{
				Store:     core.StoreConfig{Provider: "sqlite"},
				Retrieval: core.RetrievalConfig{Alpha: 1.5},
			},
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.config.Validate()
			if tc.wantErr {
				assert.True(t, errors.Is(err, core.ErrInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "postgres")
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "5433")
	t.Setenv("EMBEDDING_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-small")
	t.Setenv("RETRIEVAL_ALPHA", "0.7")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", config.Store.Provider)
	assert.Equal(t, "db.internal", config.Store.Config["host"])
	assert.Equal(t, 5433, config.Store.Config["port"])
	assert.Equal(t, "sk-test", config.Embedder.APIKey)
	assert.InDelta(t, 0.7, config.Retrieval.Alpha, 1e-9)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_PROVIDER", "sqlite")

	config, err := core.LoadConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Store.Provider)
	assert.Equal(t, "memories", config.Store.Config["table_name"])
}

func TestLoadConfigFromJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"store": {
			"provider": "sqlite",
			"config": {"db_path": "/tmp/test.db", "table_name": "mems"}
		},
		"retrieval": {"alpha": 0.3, "limit": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	config, err := core.LoadConfigFromJSON(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", config.Store.Provider)
	assert.Equal(t, "/tmp/test.db", config.Store.Config["db_path"])
	assert.InDelta(t, 0.3, config.Retrieval.Alpha, 1e-9)
	assert.Equal(t, 5, config.Retrieval.Limit)
}

func TestLoadConfigFromJSONMissingFile(t *testing.T) {
	_, err := core.LoadConfigFromJSON("/nonexistent/config.json")
	require.Error(t, err)

	var engineErr *core.EngineError
	assert.True(t, errors.As(err, &engineErr))
}
