package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
)

// TokenProvider supplies a bearer token synchronously.
// Implementations return apperrors.ErrUnauthenticated when no token is available.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a fixed token, typically from a flag.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	return nonEmpty(string(t))
}

// FileToken reads the token from a file on every call so that an external
// login can rotate it without restarting the session.
type FileToken string

func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", apperrors.ErrUnauthenticated
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return nonEmpty(string(data))
}

// Chain returns the first token any provider yields.
type Chain []TokenProvider

func (c Chain) Token() (string, error) {
	for _, p := range c {
		token, err := p.Token()
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, apperrors.ErrUnauthenticated) {
			return "", err
		}
	}
	return "", apperrors.ErrUnauthenticated
}

// ExpiryChecked wraps a provider and rejects JWTs whose exp has passed.
// Opaque (non-JWT) tokens are passed through untouched.
type ExpiryChecked struct {
	Provider TokenProvider
	Now      func() time.Time
}

func (e ExpiryChecked) Token() (string, error) {
	token, err := e.Provider.Token()
	if err != nil {
		return "", err
	}

	claims, err := ParseUnverified(token)
	if err != nil {
		return token, nil
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if claims.Expired(now()) {
		return "", fmt.Errorf("token expired at %s: %w", claims.ExpiresAt.Time.Format(time.RFC3339), apperrors.ErrUnauthenticated)
	}
	return token, nil
}

func nonEmpty(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", apperrors.ErrUnauthenticated
	}
	return token, nil
}

var (
	_ TokenProvider = StaticToken("")
	_ TokenProvider = FileToken("")
	_ TokenProvider = Chain(nil)
	_ TokenProvider = ExpiryChecked{}
)
