package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("NETLIFY_DATABASE_URL", "postgres://legacy")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 50, cfg.HistoryLimit)
	assert.Equal(t, "gemini-3-flash-preview", cfg.GeminiModel)
	assert.Equal(t, "postgres://legacy", cfg.DSN())
	assert.True(t, cfg.PersistenceEnabled())
	assert.False(t, cfg.AIEnabled())
	assert.False(t, cfg.PaymentsEnabled())
}

type fakeAccessor map[string]string

func (f fakeAccessor) Access(_ context.Context, name string) (string, error) {
	v, ok := f[name]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func TestResolveSecrets(t *testing.T) {
	cfg := &Config{
		GeminiAPIKey:  "sm://projects/p/secrets/gemini/versions/latest",
		AdminPassword: "plain",
	}
	require.True(t, cfg.HasSecretRefs())

	acc := fakeAccessor{"projects/p/secrets/gemini/versions/latest": "key-123\n"}
	require.NoError(t, cfg.ResolveSecrets(context.Background(), acc))
	assert.Equal(t, "key-123", cfg.GeminiAPIKey)
	assert.Equal(t, "plain", cfg.AdminPassword)
	assert.False(t, cfg.HasSecretRefs())
}

func TestResolveSecretsError(t *testing.T) {
	cfg := &Config{StripeSecretKey: "sm://projects/p/secrets/missing/versions/1"}
	err := cfg.ResolveSecrets(context.Background(), fakeAccessor{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
}
