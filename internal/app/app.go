// Package app wires configuration, provider clients and the relay handler
// for both entry points.
package app

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"pdf-chat-relay/handler"
	"pdf-chat-relay/internal/config"
	"pdf-chat-relay/internal/integrations/anthropic"
	"pdf-chat-relay/internal/integrations/openai"
	"pdf-chat-relay/internal/integrations/paramstore"
	"pdf-chat-relay/internal/usecase"
)

// KeySource is satisfied by paramstore.TokenSource and paramstore.StaticToken.
type KeySource interface {
	openai.KeySource
	anthropic.KeySource
}

// NewHandler builds the chat relay handler described by cfg.
func NewHandler(ctx context.Context, cfg config.Config, logger *slog.Logger) (*handler.Handler, error) {
	keys, err := newKeySource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	provider, err := NewProvider(cfg, keys)
	if err != nil {
		return nil, err
	}

	profile, err := usecase.DefaultProfile()
	if err != nil {
		return nil, err
	}
	svc, err := usecase.NewRelayService(provider, profile, usecase.WithMaxHistory(cfg.MaxHistoryMessages))
	if err != nil {
		return nil, err
	}
	logger.Info("chat relay configured",
		"provider", cfg.Provider,
		"model", profile.Model,
		"param_store", cfg.UsesParamStore(),
	)
	return handler.NewHandler(svc, handler.WithLogger(logger))
}

// NewProvider returns the chat-completion client selected by cfg.Provider.
func NewProvider(cfg config.Config, keys KeySource) (usecase.Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.ProviderBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.ProviderBaseURL))
		}
		return openai.NewClient(keys, opts...)
	case config.ProviderAnthropic:
		var opts []anthropic.Option
		if cfg.ProviderBaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.ProviderBaseURL))
		}
		return anthropic.NewClient(keys, opts...)
	default:
		return nil, fmt.Errorf("app: unsupported provider %q", cfg.Provider)
	}
}

func newKeySource(ctx context.Context, cfg config.Config) (KeySource, error) {
	if !cfg.UsesParamStore() {
		return paramstore.StaticToken(cfg.ProviderAPIKey), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return paramstore.NewTokenSource(ssmClient, cfg.ParamPrefix)
}
