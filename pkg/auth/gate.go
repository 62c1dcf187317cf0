// Package auth is the shared-secret gate in front of the dashboard.
//
// There is one password for everybody on the allow-list. No lockout and
// no rate limiting: a failed attempt only shows a message that clears
// itself after FailureClearAfter.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	FailureMessage    = "Incorrect credentials. Please try again."
	FailureClearAfter = 3 * time.Second
)

// ErrInvalidCredentials is the only failure Check reports. It does not
// say which half was wrong.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Credentials mirrors the compiled-in credentials block.
type Credentials struct {
	AllowedEmails []string `mapstructure:"allowed_emails" json:"allowedEmails"`
	// Password is the shared secret, plaintext or a bcrypt hash.
	Password string `mapstructure:"password" json:"-"`
}

// Gate checks credentials against an allow-list and a shared secret.
type Gate struct {
	allowed map[string]struct{}
	secret  []byte
	hashed  bool
}

// NewGate prepares a gate. Identities compare case-insensitively.
func NewGate(c Credentials) *Gate {
	g := &Gate{
		allowed: make(map[string]struct{}, len(c.AllowedEmails)),
		secret:  []byte(c.Password),
		hashed:  isBcrypt(c.Password),
	}
	for _, e := range c.AllowedEmails {
		if e = canonicalIdentity(e); e != "" {
			g.allowed[e] = struct{}{}
		}
	}
	return g
}

// Check returns the canonical identity on success.
func (g *Gate) Check(identity, password string) (string, error) {
	id := canonicalIdentity(identity)
	_, listed := g.allowed[id]

	var match bool
	if g.hashed {
		match = bcrypt.CompareHashAndPassword(g.secret, []byte(password)) == nil
	} else {
		match = len(g.secret) > 0 && subtle.ConstantTimeCompare(g.secret, []byte(password)) == 1
	}

	if !listed || !match {
		return "", ErrInvalidCredentials
	}
	return id, nil
}

// Allowed is the number of identities on the list.
func (g *Gate) Allowed() int { return len(g.allowed) }

func canonicalIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
