package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/arthaledger/artha/internal/embedding"
	"github.com/arthaledger/artha/internal/engine"
	"github.com/arthaledger/artha/internal/learn"
	"github.com/arthaledger/artha/internal/llm"
	"github.com/arthaledger/artha/internal/queue"
	"github.com/arthaledger/artha/internal/rules"
	"github.com/arthaledger/artha/internal/service"
	"github.com/arthaledger/artha/internal/storage"
	"github.com/arthaledger/artha/internal/taxonomy"

	"github.com/spf13/viper"
)

// databasePath resolves the database location from config, falling back to
// the XDG data directory.
func databasePath() (string, error) {
	if dbPath := viper.GetString("database.path"); dbPath != "" {
		return dbPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "artha", "artha.db"), nil
}

// openStorage opens the database and verifies the schema is current.
func openStorage() (*storage.SQLiteStorage, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// embeddingQueue connects to the configured broker, or falls back to the
// no-op queue when none is configured.
func embeddingQueue() service.EmbeddingQueue {
	url := viper.GetString("queue.url")
	if url == "" {
		return queue.Noop{}
	}

	exchange := viper.GetString("queue.exchange")
	if exchange == "" {
		exchange = "artha.embeddings"
	}
	queueName := viper.GetString("queue.name")
	if queueName == "" {
		queueName = "embedding-jobs"
	}

	client, err := queue.NewClient(url, exchange, queueName)
	if err != nil {
		slog.Warn("failed to connect to embedding queue, jobs will be dropped",
			"error", err)
		return queue.Noop{}
	}
	return client
}

func llmConfig() llm.Config {
	return llm.Config{
		Provider:          viper.GetString("llm.provider"),
		APIKey:            viper.GetString("llm.api_key"),
		Model:             viper.GetString("llm.model"),
		EmbeddingModel:    viper.GetString("llm.embedding_model"),
		Temperature:       viper.GetFloat64("llm.temperature"),
		MaxTokens:         viper.GetInt("llm.max_tokens"),
		RequestsPerMinute: viper.GetInt("llm.requests_per_minute"),
	}
}

// buildOrchestrator assembles the full categorization pipeline on top of an
// open store.
func buildOrchestrator(store *storage.SQLiteStorage, q service.EmbeddingQueue) (*engine.Orchestrator, *llm.Categorizer, error) {
	categories := taxonomy.NewCategoryCache(store, taxonomy.DefaultTTL)
	subcategories := taxonomy.NewSubcategoryCache(store, taxonomy.DefaultTTL)

	ruleEngine := rules.NewEngine(store, store, categories, subcategories)
	similarity := embedding.NewSimilarity(store)

	categorizer, err := llm.NewCategorizer(llmConfig(), categories, subcategories)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build LLM categorizer: %w", err)
	}

	learner := learn.NewService(store, q, categories, subcategories)

	return engine.New(store, ruleEngine, similarity, categorizer, learner, q), categorizer, nil
}
