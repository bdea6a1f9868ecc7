package usecase

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"pdf-chat-relay/internal/domain"
)

//go:embed profile.yaml
var profileYAML []byte

// Profile is the fixed assistant persona and generation settings sent with
// every completion.
type Profile struct {
	System      string  `yaml:"system"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// ModelConfig returns the generation settings of the profile.
func (p Profile) ModelConfig() domain.ModelConfig {
	return domain.ModelConfig{
		Model:       p.Model,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
}

// DefaultProfile parses the embedded PDF-assistant profile.
func DefaultProfile() (Profile, error) {
	return parseProfile(profileYAML)
}

func parseProfile(raw []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("usecase: decode profile: %w", err)
	}
	if strings.TrimSpace(p.System) == "" {
		return Profile{}, errors.New("usecase: profile system prompt must not be empty")
	}
	if strings.TrimSpace(p.Model) == "" {
		return Profile{}, errors.New("usecase: profile model must not be empty")
	}
	if p.MaxTokens <= 0 {
		return Profile{}, errors.New("usecase: profile max_tokens must be positive")
	}
	return p, nil
}
