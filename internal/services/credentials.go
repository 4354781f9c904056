package services

import "sync"

// Credentials holds the bearer token of the signed-in user. It is written when the auth state changes
// and read by every backend request, so it is safe for concurrent use. The zero value holds no token.
type Credentials struct {
	mu    sync.RWMutex
	token string
}

// NewCredentials returns Credentials holding token. An empty token means unauthenticated.
func NewCredentials(token string) *Credentials {
	return &Credentials{token: token}
}

// Set stores the token sent with subsequent requests. Setting an empty token is the same as Clear.
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Clear drops the token; subsequent requests are sent unauthenticated.
func (c *Credentials) Clear() {
	c.Set("")
}

// Token returns the current token, or an empty string when none is set.
func (c *Credentials) Token() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether a token is set.
func (c *Credentials) Authenticated() bool {
	return c.Token() != ""
}
