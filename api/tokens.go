package api

import "sync"

// TokenStore holds the access/refresh token pair behind a mutex. The
// refresh path mutates it while request goroutines read it.
type TokenStore struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func NewTokenStore(access, refresh string) *TokenStore {
	return &TokenStore{access: access, refresh: refresh}
}

func (s *TokenStore) Access() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *TokenStore) Refresh() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// Set stores a new token pair. Some refresh responses rotate only the
// access token; an empty refresh keeps the previous one.
func (s *TokenStore) Set(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	if refresh != "" {
		s.refresh = refresh
	}
}

// Invalidate clears both tokens. Called when a refresh attempt fails,
// so later requests go out unauthenticated instead of retrying a pair
// the server already rejected.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}
