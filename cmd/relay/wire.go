package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/bitop-dev/relay/pkg/ai"
	"github.com/bitop-dev/relay/pkg/ai/providers/genai"
	"github.com/bitop-dev/relay/pkg/ai/providers/google"
	"github.com/bitop-dev/relay/pkg/bridge"
	"github.com/bitop-dev/relay/pkg/config"
	"github.com/bitop-dev/relay/pkg/directive"
	"github.com/bitop-dev/relay/pkg/history"
	"github.com/bitop-dev/relay/pkg/prompts"
	"github.com/bitop-dev/relay/pkg/reply"
	"github.com/bitop-dev/relay/pkg/runner"
	"github.com/bitop-dev/relay/pkg/workdir"
)

// app is the composition root shared by serve and chat.
type app struct {
	cfg       *config.Config
	log       *zap.Logger
	provider  string
	workdirs  *workdir.Store
	history   history.Store
	completer *bridge.ProviderCompleter
	handler   *bridge.Handler
}

func wireApp(ctx context.Context, cfg *config.Config, log *zap.Logger, transport reply.Transport) (*app, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("wire provider: %w", err)
	}

	run, err := runner.New(runner.Options{
		ToolPath:     cfg.Tool.Path,
		ShellTimeout: cfg.Shell.Timeout,
		ToolTimeout:  cfg.Tool.Timeout,
		Logger:       log.Named("runner"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	preamble, err := prompts.Load(cfg.SystemPrompt, cfg.SystemPromptFile, cfg.Directive.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}

	store, err := openHistory(cfg)
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	workdirs := workdir.NewStore(workdir.DefaultWorkdir(cfg.Workdir.Default, cwd))

	completer := bridge.NewProviderCompleter(provider, cfg.APIKey, modelParams(cfg))
	handler := bridge.NewHandler(bridge.Options{
		Workdirs:  workdirs,
		Runner:    run,
		History:   store,
		Transport: transport,
		Completer: completer,
		Codec:     directive.NewCodec(cfg.Directive.Tag),
		Settings:  bridge.Settings{Preamble: preamble.Text, Window: cfg.History.Window},
		Logger:    log.Named("bridge"),
	})

	log.Info("bridge ready",
		zap.String("provider", provider.Name()),
		zap.String("model", cfg.Model),
		zap.String("tool", run.Tool()),
		zap.String("workdir", workdirs.Default()),
		zap.String("history", cfg.History.Driver),
		zap.String("preamble", preamble.Source),
	)

	return &app{
		cfg:       cfg,
		log:       log,
		provider:  cfg.Provider,
		workdirs:  workdirs,
		history:   store,
		completer: completer,
		handler:   handler,
	}, nil
}

// apply takes the runtime-mutable settings from a reloaded config.
func (a *app) apply(cfg *config.Config) {
	if cfg.Provider != a.provider {
		a.log.Warn("provider change needs a restart; keeping the current one",
			zap.String("current", a.provider),
			zap.String("configured", cfg.Provider),
		)
	}
	a.completer.SetParams(modelParams(cfg))

	settings := bridge.Settings{
		Preamble: a.handler.Settings().Preamble,
		Window:   cfg.History.Window,
	}
	if p, err := prompts.Load(cfg.SystemPrompt, cfg.SystemPromptFile, a.cfg.Directive.Tag); err != nil {
		a.log.Warn("preamble reload failed; keeping the current one", zap.Error(err))
	} else {
		settings.Preamble = p.Text
	}
	a.handler.Update(settings)
}

func (a *app) Close() error {
	return a.history.Close()
}

func buildProvider(ctx context.Context, cfg *config.Config) (ai.Provider, error) {
	switch cfg.Provider {
	case "google":
		return google.New(cfg.BaseURL), nil
	case "genai":
		return genai.New(ctx, cfg.APIKey)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func openHistory(cfg *config.Config) (history.Store, error) {
	cwd, _ := os.Getwd()
	path := workdir.Resolve(cfg.History.Path, cwd)
	store, err := history.Open(cfg.History.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("wire history: %w", err)
	}
	return store, nil
}

func modelParams(cfg *config.Config) bridge.ModelParams {
	return bridge.ModelParams{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}
