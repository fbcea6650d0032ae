package config

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

// SecretPrefix marks a configuration value stored in Secret Manager.
// The remainder is a full version resource name, for example
// sm://projects/p/secrets/gemini-key/versions/latest.
const SecretPrefix = "sm://"

// SecretAccessor reads one secret version.
type SecretAccessor interface {
	Access(ctx context.Context, name string) (string, error)
}

type secretManagerAccessor struct {
	client *secretmanager.Client
}

// NewSecretAccessor creates a Secret Manager backed accessor.
func NewSecretAccessor(ctx context.Context, opts ...option.ClientOption) (SecretAccessor, func() error, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	return &secretManagerAccessor{client: client}, client.Close, nil
}

func (s *secretManagerAccessor) Access(ctx context.Context, name string) (string, error) {
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.Payload.Data), nil
}

// secretFields lists the values that may reference Secret Manager.
func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"DATABASE_URL":          &c.DatabaseURL,
		"NETLIFY_DATABASE_URL":  &c.NetlifyDatabaseURL,
		"GEMINI_API_KEY":        &c.GeminiAPIKey,
		"ADMIN_PASSWORD":        &c.AdminPassword,
		"STRIPE_SECRET_KEY":     &c.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": &c.StripeWebhookSecret,
		"REDIS_URL":             &c.RedisURL,
	}
}

// HasSecretRefs reports whether any value needs resolving.
func (c *Config) HasSecretRefs() bool {
	for _, v := range c.secretFields() {
		if strings.HasPrefix(*v, SecretPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every sm:// value with the secret's payload.
func (c *Config) ResolveSecrets(ctx context.Context, acc SecretAccessor) error {
	for env, v := range c.secretFields() {
		if !strings.HasPrefix(*v, SecretPrefix) {
			continue
		}
		val, err := acc.Access(ctx, strings.TrimPrefix(*v, SecretPrefix))
		if err != nil {
			return fmt.Errorf("resolve %s: %w", env, err)
		}
		*v = strings.TrimSpace(val)
	}
	return nil
}
