package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/skill-verifier/internal/cache"
	"github.com/jonathan/skill-verifier/internal/config"
	"github.com/jonathan/skill-verifier/internal/db"
	"github.com/jonathan/skill-verifier/internal/document"
	"github.com/jonathan/skill-verifier/internal/github"
	"github.com/jonathan/skill-verifier/internal/integrity"
	"github.com/jonathan/skill-verifier/internal/llm"
	"github.com/jonathan/skill-verifier/internal/logging"
	"github.com/jonathan/skill-verifier/internal/pipeline"
	"github.com/jonathan/skill-verifier/internal/skills"
	"github.com/jonathan/skill-verifier/internal/verification"
)

// loadConfig merges defaults, the config file, the environment and any
// flags bound under the given config keys
func loadConfig(cmd *cobra.Command, flagKeys map[string]string) (*config.Config, error) {
	v, err := config.New()
	if err != nil {
		return nil, err
	}
	for key, flag := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind --%s: %w", flag, err)
			}
		}
	}
	if debugLogs {
		v.Set("log.debug", true)
	}
	if jsonLogs {
		v.Set("log.json", true)
	}
	if err := config.ReadFile(v, cfgFile); err != nil {
		return nil, err
	}
	return config.Decode(v)
}

// app holds the wired components shared by commands
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	cache    cache.Store
	records  db.RecordStore
	database *db.DB
	client   llm.Client
	profiles *github.Aggregator
	hasher   *integrity.Hasher
	verifier *pipeline.Verifier

	closers []func()
}

type appOptions struct {
	// memory keeps records in process even when a database is configured
	memory bool
	// needsHasher fails construction without an integrity secret
	needsHasher bool
	onProgress  pipeline.ProgressCallback
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := logging.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRecords(ctx, opts.memory); err != nil {
		a.Close()
		return nil, err
	}
	a.openClient(ctx)

	gh := github.NewClient(cfg.GitHub.BaseURL, cfg.GitHub.Token, cfg.GitHub.Timeout)
	a.profiles = github.NewAggregator(gh, a.cache, logger, cfg.GitHubOptions())

	hasher, err := integrity.NewHasher(cfg.Integrity.Secret)
	if err != nil && opts.needsHasher {
		a.Close()
		return nil, fmt.Errorf("integrity.secret (or SECRET_KEY) must be set: %w", err)
	}
	a.hasher = hasher

	if hasher != nil {
		extractor := skills.NewExtractor(a.client, a.cache, logger, skills.Options{
			Timeout: cfg.AI.ExtractionTimeout,
			TTL:     cfg.Cache.VerificationTTL,
		})
		engine := verification.NewEngine(a.client, a.cache, logger, verification.Options{
			Timeout: cfg.AI.Timeout,
			TTL:     cfg.Cache.VerificationTTL,
		})
		a.verifier = pipeline.NewVerifier(pipeline.Dependencies{
			Documents: document.NewExtractor(logger),
			Skills:    extractor,
			Profiles:  a.profiles,
			Matcher:   engine,
			Hasher:    hasher,
			Records:   a.records,
			Cache:     a.cache,
			Logger:    logger,
		}, pipeline.Options{
			MaxRepos:   cfg.GitHub.MaxRepos,
			TTL:        cfg.Cache.VerificationTTL,
			OnProgress: opts.onProgress,
		})
	}
	return a, nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.Redis.URL == "" {
		a.cache = cache.NewMemoryStore()
		return nil
	}
	rdb, err := cache.ConnectRedis(ctx, a.cfg.Redis.URL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = rdb.Close() })
	a.cache = cache.NewRedisStore(rdb, a.cfg.Redis.Prefix)
	return nil
}

func (a *app) openRecords(ctx context.Context, memory bool) error {
	if memory || a.cfg.Database.URL == "" {
		a.logger.Info("keeping verification records in memory")
		a.records = db.NewMemoryRecordStore()
		return nil
	}
	database, err := db.Connect(ctx, a.cfg.Database.URL)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, database.Close)
	a.database = database
	a.records = database
	return nil
}

// openClient leaves client nil without an API key; every AI step then
// degrades to its deterministic path
func (a *app) openClient(ctx context.Context) {
	if a.cfg.AI.APIKey == "" {
		a.logger.Warn("no AI API key configured, using deterministic skill matching only")
		return
	}
	llmCfg := a.cfg.LLM()
	client, err := llm.NewClient(ctx, llmCfg, a.cfg.AI.APIKey)
	if err != nil {
		a.logger.Warn("failed to create AI client, using deterministic skill matching only", zap.Error(err))
		return
	}
	a.client = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.logger.Info("AI backend ready", logging.AIFields(string(client.Provider()), client.GetModel(llm.TierStandard))...)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
