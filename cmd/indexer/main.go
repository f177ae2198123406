package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/retrieval"
	"github.com/digital-twin-core/server/internal/core"
	logx "github.com/digital-twin-core/server/pkg/logger"
	pkgredis "github.com/digital-twin-core/server/pkg/redis"
)

// AppConfig holds what the indexer needs: Redis, the embedding model and
// the index key layout.
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Redis pkgredis.Config

	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Embedding model.EmbeddingConfig
	Retrieval model.RetrievalConfig
}

// chunkRecord is one pre-chunked passage. Chunking happens upstream; the
// indexer only embeds and stores.
type chunkRecord struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Metadata string `json:"metadata"`
}

func main() {
	file := flag.String("file", "passages.jsonl", "path to a JSONL file of pre-chunked passages")
	flag.Parse()

	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	// One-shot batch tool; a dead Redis is not worth a graceful path.
	rdb := cfg.Redis.MustNew()
	defer rdb.Close()

	clientCfg := &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	embedder := retrieval.NewGenaiEmbedder(client, cfg.Embedding)
	indexes := retrieval.NewRedisIndexSet(rdb, embedder, cfg.Retrieval.KeyPrefix)

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer f.Close()

	counts := map[model.Category]int{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec chunkRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			logx.Warn().Int("line", line).Err(err).Msg("Skipping malformed record")
			continue
		}
		cat, ok := model.ParseCategory(rec.Source)
		if !ok || !cat.Retrievable() {
			logx.Warn().Int("line", line).Str("source", rec.Source).Msg("Skipping record with unknown source")
			continue
		}
		if rec.Content == "" {
			logx.Warn().Int("line", line).Msg("Skipping record with empty content")
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		vec, err := embedder.Embed(ctx, rec.Content)
		if err != nil {
			log.Fatalf("Failed to embed record at line %d: %v", line, err)
		}

		idx := indexes[cat].(*retrieval.RedisIndex)
		if err := idx.Add(ctx, rec.ID, rec.Content, rec.Metadata, vec); err != nil {
			log.Fatalf("Failed to store record at line %d: %v", line, err)
		}
		counts[cat]++
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	for cat, n := range counts {
		logx.Info().Str("category", cat.String()).Int("passages", n).Msg("Indexed")
	}
	logx.Info().Msg("Indexing complete")
}
