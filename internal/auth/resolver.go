package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Resolver identifies the caller of a request and returns the user id.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// TokenResolver accepts a single static bearer token and maps it to a fixed
// user. It is meant for local and single-user deployments.
type TokenResolver struct {
	token  string
	userID string
}

func NewTokenResolver(token, userID string) *TokenResolver {
	return &TokenResolver{token: token, userID: userID}
}

func (t *TokenResolver) Resolve(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing authorization header", ErrUnauthenticated)
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("%w: invalid authorization format", ErrUnauthenticated)
	}
	if t.token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(t.token)) != 1 {
		return "", fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}
	return t.userID, nil
}

const defaultSessionTTL = 30 * time.Second

type cachedSession struct {
	userID    string
	fetchedAt time.Time
}

// SessionResolver asks the auth provider's session endpoint who owns the
// request cookie. Answers are cached per cookie for a short TTL.
type SessionResolver struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	ttl        time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSession
}

func NewSessionResolver(endpoint string, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		ttl:        defaultSessionTTL,
		cache:      make(map[string]cachedSession),
	}
}

func (s *SessionResolver) Resolve(r *http.Request) (string, error) {
	cookie := r.Header.Get("Cookie")
	if cookie == "" {
		return "", fmt.Errorf("%w: no session cookie", ErrUnauthenticated)
	}

	s.mu.RLock()
	hit, ok := s.cache[cookie]
	s.mu.RUnlock()
	if ok && time.Since(hit.fetchedAt) < s.ttl {
		return hit.userID, nil
	}

	user, err := s.fetch(r.Context(), cookie)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.cache[cookie] = cachedSession{userID: user.ID, fetchedAt: time.Now()}
	s.mu.Unlock()
	return user.ID, nil
}

func (s *SessionResolver) fetch(ctx context.Context, cookie string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create session request: %w", err)
	}
	req.Header.Set("Cookie", cookie)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("session lookup failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: session endpoint returned HTTP %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: session endpoint returned HTTP %d", ErrUnauthenticated, resp.StatusCode)
	}
	return NormalizeUser(body)
}

// Invalidate drops all cached sessions.
func (s *SessionResolver) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]cachedSession)
	s.mu.Unlock()
}

type contextKey struct{}

// WithUserID stores the caller's id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID returns the caller's id stored by WithUserID.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
