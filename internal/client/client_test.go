package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hooka/internal/action"
	"hooka/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	auth     string
	envelope action.Envelope
}

func newServer(t *testing.T, rec *recorded, status int, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if rec != nil {
			rec.auth = r.Header.Get("Authorization")
			_ = json.Unmarshal(raw, &rec.envelope)
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func slowServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type failingTokens struct{}

func (failingTokens) Token(context.Context) (string, error) { return "", errors.New("signed out") }

func TestCallSuccess(t *testing.T) {
	var rec recorded
	srv := newServer(t, &rec, http.StatusOK, "application/json; charset=utf-8", `{"success":true}`)
	c := New(srv.URL, zerolog.Nop(), WithTokenSource(StaticToken("tok")))

	raw, err := c.Call(context.Background(), action.InitDB, nil, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true}`, string(raw))
	assert.Equal(t, "Bearer tok", rec.auth)
	assert.Equal(t, "init-db", rec.envelope.Action)
	assert.JSONEq(t, `{}`, string(rec.envelope.Payload))
}

func TestCallWithoutTokenStillSends(t *testing.T) {
	var rec recorded
	srv := newServer(t, &rec, http.StatusOK, "application/json", `null`)
	c := New(srv.URL, zerolog.Nop(), WithTokenSource(failingTokens{}))

	raw, err := c.Call(context.Background(), action.GetUser, map[string]string{"id": "u1"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
	assert.Empty(t, rec.auth)
}

func TestCallFailuresAreSentinels(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		message     string
	}{
		{"error body", http.StatusUnauthorized, "application/json", `{"error":"Unauthorized"}`, "Unauthorized"},
		{"bare status", http.StatusBadGateway, "text/plain", `bad gateway`, "Server Error: 502"},
		{"html page", http.StatusOK, "text/html", `<html></html>`, `unexpected content type "text/html"`},
		{"broken json", http.StatusOK, "application/json", `{"a":`, "invalid JSON response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, nil, tt.status, tt.contentType, tt.body)
			_, err := New(srv.URL, zerolog.Nop()).Call(context.Background(), action.GetHistory, nil, 0)
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.True(t, e.Sentinel)
			assert.Equal(t, tt.message, e.Message)
			assert.False(t, e.Timeout)
		})
	}
}

func TestCallTimeout(t *testing.T) {
	srv := slowServer(t)
	_, err := New(srv.URL, zerolog.Nop()).Call(context.Background(), action.GetHistory, nil, 20*time.Millisecond)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.True(t, e.Timeout)
}

func TestCallNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url, zerolog.Nop()).Call(context.Background(), action.GetHistory, nil, time.Second)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Zero(t, e.Status)
}

func TestBudgetFor(t *testing.T) {
	assert.Equal(t, LongTimeout, BudgetFor(action.GenerateHooks))
	assert.Equal(t, LongTimeout, BudgetFor(action.CreateCheckoutSession))
	assert.Equal(t, SyncTimeout, BudgetFor(action.SaveUser))
}

func TestAITypedErrors(t *testing.T) {
	srv := newServer(t, nil, http.StatusServiceUnavailable, "application/json", `{"error":"Missing API Key"}`)
	_, err := NewAI(New(srv.URL, zerolog.Nop())).Research(context.Background(), "https://x.test", model.LanguageEN)
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv = newServer(t, nil, http.StatusInternalServerError, "application/json", `{"error":"INVALID_PROVIDER_OPENAI"}`)
	_, err = NewAI(New(srv.URL, zerolog.Nop())).Research(context.Background(), "https://x.test", model.LanguageEN)
	assert.ErrorIs(t, err, ErrInvalidProviderOpenAI)

	srv = newServer(t, nil, http.StatusInternalServerError, "application/json", `{"error":"upstream OpenAI-compatible proxy failed"}`)
	_, err = NewAI(New(srv.URL, zerolog.Nop())).Research(context.Background(), "https://x.test", model.LanguageEN)
	assert.NotErrorIs(t, err, ErrInvalidProviderOpenAI)
	var generic *Error
	require.ErrorAs(t, err, &generic)
	assert.Equal(t, "upstream OpenAI-compatible proxy failed", generic.Message)

	srv = newServer(t, nil, http.StatusUnauthorized, "application/json", `{"error":"Unauthorized"}`)
	_, err = NewAI(New(srv.URL, zerolog.Nop())).AdminStats(context.Background(), "nope")
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "Unauthorized", e.Message)
}

func TestAITimeout(t *testing.T) {
	srv := slowServer(t)
	ai := NewAI(New(srv.URL, zerolog.Nop()))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := ai.GenerateHooks(ctx, model.MarketingBrief{})
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestGenerateHooksEchoesTargetScores(t *testing.T) {
	body := `[{"hook":"a","scores":{"patternInterrupt":1,"emotionalIntensity":2,"curiosityGap":3,"scarcity":99}},
		{"hook":"b","scores":{"patternInterrupt":5,"emotionalIntensity":5,"curiosityGap":5,"scarcity":5}}]`
	srv := newServer(t, nil, http.StatusOK, "application/json", body)
	target := model.NeuroScores{PatternInterrupt: 90, EmotionalIntensity: 40, CuriosityGap: 70, Scarcity: 0}

	concepts, err := NewAI(New(srv.URL, zerolog.Nop())).GenerateHooks(context.Background(), model.MarketingBrief{TargetScores: &target})
	require.NoError(t, err)
	require.Len(t, concepts, 2)
	for _, c := range concepts {
		assert.Equal(t, target, c.Scores)
	}
}
