package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUser_Priority(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantID    string
		wantEmail string
		wantImage string
	}{
		{
			name:   "top level user wins over data and session",
			raw:    `{"user":{"id":"u1"},"data":{"user":{"id":"u2"}},"session":{"user":{"id":"u3"},"userId":"u4"}}`,
			wantID: "u1",
		},
		{
			name:   "data.user before session.user",
			raw:    `{"data":{"user":{"id":"u2"}},"session":{"user":{"id":"u3"}}}`,
			wantID: "u2",
		},
		{
			name:   "session.user",
			raw:    `{"session":{"user":{"id":"u3","email":"a@example.com"}}}`,
			wantID: "u3", wantEmail: "a@example.com",
		},
		{
			name:   "userId when id is missing",
			raw:    `{"user":{"userId":"u5"}}`,
			wantID: "u5",
		},
		{
			name:   "session.userId as last resort",
			raw:    `{"user":{"name":"Ann"},"session":{"userId":"u6"}}`,
			wantID: "u6",
		},
		{
			name:   "numeric ids become strings",
			raw:    `{"user":{"id":42}}`,
			wantID: "42",
		},
		{
			name:      "avatarUrl fills a missing image",
			raw:       `{"user":{"id":"u7","avatarUrl":"https://img.example.com/a.png"}}`,
			wantID:    "u7",
			wantImage: "https://img.example.com/a.png",
		},
		{
			name:      "image beats avatarUrl",
			raw:       `{"user":{"id":"u8","image":"https://img.example.com/i.png","avatarUrl":"https://img.example.com/a.png"}}`,
			wantID:    "u8",
			wantImage: "https://img.example.com/i.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := NormalizeUser([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, u.ID)
			if tt.wantEmail != "" {
				require.NotNil(t, u.Email)
				assert.Equal(t, tt.wantEmail, *u.Email)
			}
			if tt.wantImage != "" {
				require.NotNil(t, u.Image)
				assert.Equal(t, tt.wantImage, *u.Image)
			}
		})
	}
}

func TestNormalizeUser_Rejects(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"user":{"name":"no id"}}`,
		`not json`,
		`{"user":{"id":"u1","email":"not-an-email"}}`,
		`{"user":{"id":"u1","image":"relative/path.png"}}`,
		`{"user":{"id":true}}`,
	} {
		_, err := NormalizeUser([]byte(raw))
		assert.ErrorIs(t, err, ErrUnauthenticated, raw)
	}
}

func TestTokenResolver(t *testing.T) {
	r := NewTokenResolver("secret-token", "local")

	tests := []struct {
		header  string
		wantErr bool
	}{
		{"Bearer secret-token", false},
		{"", true},
		{"Basic secret-token", true},
		{"Bearer wrong", true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/projects", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		id, err := r.Resolve(req)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnauthenticated, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, "local", id)
	}
}

func TestSessionResolver(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.Header.Get("Cookie") {
		case "session=good":
			w.Write([]byte(`{"session":{"userId":"user-1"}}`))
		case "session=down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	resolver := NewSessionResolver(server.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Cookie", "session=good")
	id, err := resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	_, err = resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second lookup should hit the cache")

	resolver.Invalidate()
	_, err = resolver.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	bad := httptest.NewRequest(http.MethodGet, "/projects", nil)
	bad.Header.Set("Cookie", "session=expired")
	_, err = resolver.Resolve(bad)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	down := httptest.NewRequest(http.MethodGet, "/projects", nil)
	down.Header.Set("Cookie", "session=down")
	_, err = resolver.Resolve(down)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = resolver.Resolve(httptest.NewRequest(http.MethodGet, "/projects", nil))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUserIDContext(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	id, ok := UserID(WithUserID(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}
