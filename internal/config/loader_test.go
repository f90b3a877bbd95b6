package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_CONFIG_HOST", "db.internal")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"env var set", "host: ${TEST_CONFIG_HOST:localhost}", "host: db.internal"},
		{"default used", "host: ${TEST_CONFIG_MISSING:localhost}", "host: localhost"},
		{"empty default", "password: ${TEST_CONFIG_MISSING:}", "password: "},
		{"no default keeps placeholder", "host: ${TEST_CONFIG_MISSING}", "host: ${TEST_CONFIG_MISSING}"},
		{"multiple placeholders", "${TEST_CONFIG_HOST:a}:${TEST_CONFIG_PORT:5432}", "db.internal:5432"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.in))
		})
	}
}

func validTestConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			ChunkSize:          1024,
			ChunkOverlap:       200,
			SentenceWindowSize: 3,
		},
		Retrieval: RetrievalConfig{SimilarityTopK: 5, MaxTopK: 50},
		Upload:    UploadConfig{MaxFileSizeBytes: 1024},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validate(validTestConfig()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }},
		{"overlap >= chunk size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"negative window size", func(c *Config) { c.Chunking.SentenceWindowSize = -1 }},
		{"zero top k", func(c *Config) { c.Retrieval.SimilarityTopK = 0 }},
		{"zero max file size", func(c *Config) { c.Upload.MaxFileSizeBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			assert.Error(t, validate(cfg))
		})
	}
}
