package supportnotes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportnotes/supportnotes/pkg/models"
)

func TestLoadConfigDefaults(t *testing.T) {
	v, err := NewViper()
	require.NoError(t, err)

	config, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, config.Backend)
	assert.Equal(t, models.CollectionNormal, config.DefaultCollection)
	assert.Equal(t, 24*time.Hour, config.AuthTTL)
	assert.Equal(t, "gmail.com", config.AuthEmailDomain)
	assert.True(t, config.AuthRequired)
	assert.Equal(t, "8080", config.ServerPort)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SUPPORTNOTES_BACKEND", "Postgres")
	t.Setenv("SUPPORTNOTES_POSTGRES_DSN", "postgres://u:p@db:5432/notes")
	t.Setenv("SUPPORTNOTES_DEFAULT_COLLECTION", "permanentNotes")
	t.Setenv("SUPPORTNOTES_AUTH_TTL", "90m")
	t.Setenv("SUPPORTNOTES_AUTH_REQUIRED", "false")
	t.Setenv("SUPPORTNOTES_READ_ONLY", "true")

	v, err := NewViper()
	require.NoError(t, err)
	config, err := LoadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, config.Backend)
	assert.Equal(t, "postgres://u:p@db:5432/notes", config.PostgresDSN)
	assert.Equal(t, models.CollectionPermanent, config.DefaultCollection)
	assert.Equal(t, 90*time.Minute, config.AuthTTL)
	assert.False(t, config.AuthRequired)
	assert.True(t, config.ReadOnly)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Backend:           BackendMemory,
			DefaultCollection: models.CollectionNormal,
			AuthTTL:           time.Hour,
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"memory", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.Backend = "redis" }, `unknown backend "redis"`},
		{"postgres without dsn", func(c *Config) { c.Backend = BackendPostgres }, "postgres.dsn is required"},
		{"mongo without database", func(c *Config) {
			c.Backend = BackendMongo
			c.MongoURI = "mongodb://localhost"
		}, "mongo.uri and mongo.database are required"},
		{"surrealdb transport", func(c *Config) {
			c.Backend = BackendSurrealDB
			c.SurrealDBURL = "ws://localhost:8000/rpc"
			c.SurrealDBNS = "n"
			c.SurrealDBDB = "d"
			c.SurrealDBTransport = "http"
		}, `unknown surrealdb.transport "http"`},
		{"default collection", func(c *Config) { c.DefaultCollection = "archive" }, `unknown default_collection "archive"`},
		{"ttl", func(c *Config) { c.AuthTTL = 0 }, "auth.ttl must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		c := Config{Backend: BackendPostgres}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres.dsn")
		assert.Contains(t, err.Error(), "default_collection")
		assert.Contains(t, err.Error(), "auth.ttl")
	})
}
