package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGatePlaintextSecret(t *testing.T) {
	g := NewGate(Credentials{
		AllowedEmails: []string{"Ops@Example.com", " lab@example.org "},
		Password:      "s3cret",
	})
	assert.Equal(t, 2, g.Allowed())

	id, err := g.Check("  ops@example.COM ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", id)

	cases := []struct{ user, pass string }{
		{"ops@example.com", "S3CRET"},
		{"ops@example.com", ""},
		{"intruder@example.com", "s3cret"},
		{"", ""},
	}
	for _, c := range cases {
		_, err := g.Check(c.user, c.pass)
		assert.True(t, errors.Is(err, ErrInvalidCredentials), "%+v", c)
	}
}

func TestGateBcryptSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("open sesame"), bcrypt.MinCost)
	require.NoError(t, err)

	g := NewGate(Credentials{AllowedEmails: []string{"ops@example.com"}, Password: string(hash)})
	_, err = g.Check("ops@example.com", "open sesame")
	require.NoError(t, err)

	_, err = g.Check("ops@example.com", string(hash))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGateEmptySecretNeverMatches(t *testing.T) {
	g := NewGate(Credentials{AllowedEmails: []string{"ops@example.com"}})
	_, err := g.Check("ops@example.com", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRepeatedFailuresDoNotLockOut(t *testing.T) {
	g := NewGate(Credentials{AllowedEmails: []string{"ops@example.com"}, Password: "pw"})
	for i := 0; i < 20; i++ {
		_, _ = g.Check("ops@example.com", "wrong")
	}
	_, err := g.Check("ops@example.com", "pw")
	assert.NoError(t, err)
}
