package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/digital-twin-core/server/internal/agent/graph"
	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/speech"
	"github.com/digital-twin-core/server/internal/core"
	"github.com/digital-twin-core/server/internal/server"
	logx "github.com/digital-twin-core/server/pkg/logger"
	pkgredis "github.com/digital-twin-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the API server,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Router     model.RouterModelConfig
	Answer     model.AnswerModelConfig
	Speech     model.SpeechModelConfig
	Translator model.TranslatorModelConfig
	Prompt     model.AnswerPromptConfig
	Retrieval  model.RetrievalConfig
	Embedding  model.EmbeddingConfig
	Trace      model.TraceConfig
	TTS        model.TTSConfig
	Server     model.ServerConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	runner, err := graph.BuildPipeline(ctx, graph.Config{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		RouterModel:     cfg.Router,
		AnswerModel:     cfg.Answer,
		SpeechModel:     cfg.Speech,
		TranslatorModel: cfg.Translator,
		Prompt:          cfg.Prompt,
		Retrieval:       cfg.Retrieval,
		Embedding:       cfg.Embedding,
		Trace:           cfg.Trace,
		Redis:           rdb,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build pipeline")
	}

	var tts speech.Synthesizer
	if cfg.TTS.URL != "" {
		tts = speech.NewTTSClient(cfg.TTS)
	} else {
		logx.Warn().Msg("TTS_URL not set; responses will be text-only")
	}

	timeout, err := time.ParseDuration(cfg.Server.RequestTimeout)
	if err != nil {
		logx.Fatal().Str("request_timeout", cfg.Server.RequestTimeout).Err(err).Msg("Invalid REQUEST_TIMEOUT")
	}

	srv := server.New(runner, tts, timeout)
	engine := srv.Router(cfg.Server)

	logx.Info().Str("port", cfg.Server.Port).Msg("Starting API server")
	if err := engine.Run(":" + cfg.Server.Port); err != nil {
		logx.Fatal().Err(err).Msg("Server stopped")
	}
}
