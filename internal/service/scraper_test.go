package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	assert.Equal(t, "https://example.com", NormalizeURL("example.com"))
	assert.Equal(t, "http://example.com", NormalizeURL(" http://example.com "))
	assert.Equal(t, "https://example.com/x", NormalizeURL("https://example.com/x"))
}

func TestPageReaderRead(t *testing.T) {
	var gotPath string
	var gotHeader http.Header
	body := strings.Repeat("Organic dog food delivered weekly. ", 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotHeader = r.URL.Path, r.Header.Clone()
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	reader := NewPageReader(srv.URL+"/", time.Second, nil, zerolog.Nop())
	text, err := reader.Read(context.Background(), "dogs.example")
	require.NoError(t, err)
	assert.Equal(t, body, text)
	assert.Equal(t, "/https://dogs.example", gotPath)
	assert.Equal(t, "markdown", gotHeader.Get("X-Return-Format"))
	assert.Equal(t, "text/plain", gotHeader.Get("Accept"))
	assert.Equal(t, "true", gotHeader.Get("X-With-Generated-Alt"))
	assert.Equal(t, "Hypeakz-Scanner/1.0", gotHeader.Get("User-Agent"))
}

func TestPageReaderRejects(t *testing.T) {
	long := strings.Repeat("a", 150)
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, long},
		{"too short", http.StatusOK, "tiny"},
		{"reader error page", http.StatusOK, "Jina Reader: Error fetching page " + long},
		{"cloudflare", http.StatusOK, "Just a moment... Cloudflare " + long},
		{"captcha", http.StatusOK, "Verify you are human " + long},
		{"forbidden page", http.StatusOK, "Access denied " + long},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewPageReader(srv.URL+"/", time.Second, nil, zerolog.Nop()).Read(context.Background(), "x.example")
			assert.Error(t, err)
		})
	}
}

func TestPageReaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewPageReader(srv.URL+"/", 50*time.Millisecond, nil, zerolog.Nop()).Read(context.Background(), "slow.example")
	assert.Error(t, err)
}

func TestCleanPageTruncates(t *testing.T) {
	text, err := cleanPage(strings.Repeat("ü", maxPageChars))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), maxPageChars)
	assert.True(t, strings.HasPrefix(text, "üü"))
	assert.Equal(t, 0, len(text)%2)
}
