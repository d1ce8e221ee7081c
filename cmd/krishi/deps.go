package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/krishi/chat"
	"github.com/creastat/krishi/knowledge"
	"github.com/creastat/krishi/profile"
	"github.com/creastat/krishi/session"
	"github.com/creastat/krishi/session/drivers"
	vsqdrant "github.com/creastat/krishi/vectorstore/qdrant"
)

func newProfileService() (*profile.Service, error) {
	path := cfg.Profile.Path
	if path == "" {
		path = profile.DefaultLocalPath()
	}

	var dir profile.Directory
	if cfg.DirectoryEnabled() {
		sb, err := profile.NewSupabase(profile.SupabaseConfig{
			URL:      cfg.Supabase.URL,
			APIKey:   cfg.Supabase.APIKey,
			CacheTTL: cfg.Supabase.CacheTTL,
		})
		if err != nil {
			return nil, err
		}
		dir = sb
	}

	svc := profile.NewService(dir, profile.NewLocal(path), logger)
	if _, err := svc.Load(); err != nil {
		return nil, err
	}
	return svc, nil
}

func newSessionStore() (session.Store, error) {
	var opts []drivers.StoreOption
	if drivers.StoreType(cfg.Storage.Driver) == drivers.StoreTypeRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		opts = append(opts, drivers.WithRedisClient(client), drivers.WithRedisTTL(cfg.Storage.TTL))
	}

	store, err := drivers.NewStore(drivers.StoreType(cfg.Storage.Driver), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	return store, nil
}

// newRetriever returns nil when knowledge hints are not configured.
func newRetriever() (*knowledge.Retriever, error) {
	if !cfg.KnowledgeEnabled() {
		return nil, nil
	}

	embedder, err := knowledge.NewOpenAIEmbedder(knowledge.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.EmbeddingModel,
	})
	if err != nil {
		return nil, err
	}

	store, err := vsqdrant.New(vsqdrant.Config{
		URL:            cfg.Qdrant.URL,
		CollectionName: cfg.Qdrant.Collection,
		APIKey:         cfg.Qdrant.APIKey,
	})
	if err != nil {
		return nil, err
	}

	return knowledge.NewRetriever(embedder, store,
		knowledge.WithLimit(cfg.Qdrant.Limit),
		knowledge.WithMinScore(cfg.Qdrant.MinScore),
		knowledge.WithLogger(logger)), nil
}

func historyLimits() chat.HistoryLimits {
	return chat.HistoryLimits{
		Messages: cfg.Storage.HistoryMessages,
		Tokens:   cfg.Storage.HistoryTokens,
	}
}
