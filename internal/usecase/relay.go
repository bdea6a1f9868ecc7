package usecase

import (
	"context"
	"errors"

	"pdf-chat-relay/internal/domain"
)

// Completer is a chat-completion provider. It returns the content of the
// first completion choice.
type Completer interface {
	Complete(ctx context.Context, messages []domain.ChatMessage, cfg domain.ModelConfig) (string, error)
}

type RelayService struct {
	provider   Completer
	profile    Profile
	maxHistory int
}

type RelayInput struct {
	Message string
	History []domain.ChatMessage
}

type RelayOutput struct {
	Reply   string
	History []domain.ChatMessage
}

type Option func(*RelayService)

// WithMaxHistory caps the number of history messages a request may carry.
// Zero or less means unlimited.
func WithMaxHistory(n int) Option {
	return func(s *RelayService) {
		s.maxHistory = n
	}
}

func NewRelayService(provider Completer, profile Profile, opts ...Option) (*RelayService, error) {
	if provider == nil {
		return nil, errors.New("usecase: provider must not be nil")
	}
	if profile.System == "" || profile.Model == "" {
		return nil, errors.New("usecase: profile must carry a system prompt and model")
	}
	s := &RelayService{provider: provider, profile: profile}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *RelayService) Relay(ctx context.Context, in RelayInput) (RelayOutput, error) {
	if in.Message == "" {
		return RelayOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if s.maxHistory > 0 && len(in.History) > s.maxHistory {
		return RelayOutput{}, newError(ErrorInvalidHistory, "history_too_long", nil)
	}
	for _, m := range in.History {
		if !isHistoryRole(m.Role) {
			return RelayOutput{}, newError(ErrorInvalidHistory, "unsupported_role", nil)
		}
	}

	reply, err := s.provider.Complete(ctx,
		buildPromptMessages(s.profile.System, in.History, in.Message),
		s.profile.ModelConfig(),
	)
	if err != nil {
		return RelayOutput{}, newError(ErrorProviderFailure, "provider_error", err)
	}

	return RelayOutput{
		Reply:   reply,
		History: appendTurn(in.History, in.Message, reply),
	}, nil
}
