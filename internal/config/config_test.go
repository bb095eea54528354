package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 5000.0, cfg.Marketplace.DefaultRadiusMeters)
	assert.Equal(t, 5*time.Second, cfg.Marketplace.LockTimeout)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "*/10 * * * * *", cfg.Marketplace.IndexSyncSchedule)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("SEARCH_MAX_RADIUS_METERS", "20000")
	t.Setenv("SEARCH_DEFAULT_RADIUS_METERS", "1500")
	t.Setenv("AGGREGATE_LOCK_TIMEOUT", "750ms")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 1500.0, cfg.Marketplace.DefaultRadiusMeters)
	assert.Equal(t, 750*time.Millisecond, cfg.Marketplace.LockTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Contains(t, cfg.Database.DSN(), "password=secret")
}

func TestValidateRejectsImpossibleValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Environment: "development",
			Database:    DatabaseConfig{Driver: DriverMemory},
			RateLimit:   RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
			Marketplace: MarketplaceConfig{DefaultRadiusMeters: 10, MaxRadiusMeters: 100, LockTimeout: time.Second},
		}
	}
	require.NoError(t, base().Validate())

	c := base()
	c.Database.Driver = "mysql"
	assert.Error(t, c.Validate())

	c = base()
	c.Marketplace.MaxRadiusMeters = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Marketplace.DefaultRadiusMeters = 101
	assert.Error(t, c.Validate())

	c = base()
	c.Environment = "production"
	c.Database.Driver = DriverPostgres
	assert.Error(t, c.Validate())

	c = base()
	c.RateLimit.Burst = 0
	assert.Error(t, c.Validate())
}

func TestLoadMongoDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "mongo")
	t.Setenv("MONGO_URI", "mongodb://db-1:27017,db-2:27017/?replicaSet=market")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.Database.Driver)
	assert.Equal(t, "mongodb://db-1:27017,db-2:27017/?replicaSet=market", cfg.Database.MongoURI)
}
