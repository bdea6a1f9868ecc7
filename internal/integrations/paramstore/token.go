package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const tokenParameter = "/provider-token"

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// TokenSource resolves the provider API key from SSM and keeps it for the
// lifetime of the process once a read succeeds. Failed reads are retried on
// the next call.
type TokenSource struct {
	getter Getter
	name   string

	mu     sync.Mutex
	apiKey string
}

// NewTokenSource reads the token from "<paramPrefix>/provider-token".
func NewTokenSource(getter Getter, paramPrefix string) (*TokenSource, error) {
	if getter == nil {
		return nil, errors.New("paramstore: getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("paramstore: parameter prefix must not be empty")
	}
	return &TokenSource{getter: getter, name: paramPrefix + tokenParameter}, nil
}

func (s *TokenSource) APIKey(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.apiKey != "" {
		return s.apiKey, nil
	}
	key, err := fetchToken(ctx, s.getter, s.name)
	if err != nil {
		return "", err
	}
	s.apiKey = key
	return key, nil
}

func fetchToken(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("paramstore: fetch provider token: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal provider token value as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("paramstore: provider token is empty")
	}
	return tp.Token, nil
}

// StaticToken is a fixed API key, typically taken from the environment.
type StaticToken string

func (t StaticToken) APIKey(context.Context) (string, error) {
	if strings.TrimSpace(string(t)) == "" {
		return "", errors.New("paramstore: static token is empty")
	}
	return string(t), nil
}
