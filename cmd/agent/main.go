package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/digital-twin-core/server/internal/agent/graph"
	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/core"
	logx "github.com/digital-twin-core/server/pkg/logger"
	pkgredis "github.com/digital-twin-core/server/pkg/redis"
)

// AppConfig covers the CLI runner: everything the API server needs except
// the HTTP and TTS surface.
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	Redis pkgredis.Config

	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	Router     model.RouterModelConfig
	Answer     model.AnswerModelConfig
	Speech     model.SpeechModelConfig
	Translator model.TranslatorModelConfig
	Prompt     model.AnswerPromptConfig
	Retrieval  model.RetrievalConfig
	Embedding  model.EmbeddingConfig
	Trace      model.TraceConfig
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
		log.Fatalf("Failed to initialise Redis client: %v", err)
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
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	sampleQuestions := []string{
		"What is " + cfg.Prompt.SubjectName + "'s educational background?",
		"Welche Projekte hat " + cfg.Prompt.SubjectName + " mit Java entwickelt?",
		"What has " + cfg.Prompt.SubjectName + " written about?",
	}

	fmt.Println("Testing with sample questions:")
	for _, q := range sampleQuestions {
		fmt.Printf("\nQ: %s\n", q)
		answer, err := runner.Invoke(ctx, model.Query{Question: q, UserID: "cli"})
		if err != nil {
			log.Fatalf("Pipeline failed: %v", err)
		}
		fmt.Printf("A [%s]: %s\n", answer.Category, answer.Text)
	}

	fmt.Println("\nInteractive mode (type 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYour question: ")
		if !scanner.Scan() {
			break
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "quit" || q == "exit" || q == "q" {
			break
		}
		answer, err := runner.Invoke(ctx, model.Query{Question: q, UserID: "cli"})
		if err != nil {
			logx.Error().Err(err).Msg("Pipeline failed")
			continue
		}
		fmt.Printf("\n[%s] %s\n", answer.Category, answer.Text)
	}
}
