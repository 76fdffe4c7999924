package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://postgres@localhost:5432/campo?sslmode=disable")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, ":8080", cfg.App.Address())
	assert.Equal(t, 10*time.Second, cfg.App.RequestTimeout)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "order-events", cfg.Kafka.OrderTopic)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoad_KafkaBrokersAreTrimmed(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/campo")
	t.Setenv("JWT_SECRET", "s")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			App:      App{Port: "8080", RequestTimeout: time.Second},
			Database: Database{URL: "postgres://localhost/campo", MaxOpenConns: 4},
			Auth:     Auth{JWTSecret: "s", TokenTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty port", mutate: func(c *Config) { c.App.Port = " " }, wantErr: "APP_PORT"},
		{name: "zero pool", mutate: func(c *Config) { c.Database.MaxOpenConns = 0 }, wantErr: "DB_MAX_OPEN_CONNS"},
		{name: "empty secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: "JWT_SECRET"},
		{name: "zero ttl", mutate: func(c *Config) { c.Auth.TokenTTL = 0 }, wantErr: "JWT_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApp_IsProduction(t *testing.T) {
	assert.True(t, App{Env: "production"}.IsProduction())
	assert.True(t, App{Env: "PROD"}.IsProduction())
	assert.False(t, App{Env: "development"}.IsProduction())
}
