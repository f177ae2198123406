package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/digital-twin-core/server/internal/agent/model"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey           string
	BaseURL          string
	RouterConfig     *model.RouterModelConfig
	AnswerConfig     *model.AnswerModelConfig
	SpeechConfig     *model.SpeechModelConfig
	TranslatorConfig *model.TranslatorModelConfig
}

// ChatModels holds the pipeline's chat models. Fields are Eino interfaces so
// tests can substitute scripted models; production wiring fills them with
// Gemini models sharing one genai client.
type ChatModels struct {
	Router     einomodel.BaseChatModel
	Answer     einomodel.BaseChatModel
	Speech     einomodel.BaseChatModel
	Translator einomodel.BaseChatModel

	RouterModelName string
	AnswerModelName string
	SpeechModelName string

	// Client is exposed for collaborators that need the raw genai client
	// (query embeddings).
	Client *genai.Client
}

// NewChatModels creates the router, answer, speech and translator chat
// models with the given configuration.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	router, err := newGeminiModel(ctx, client, config.RouterConfig.Model, config.RouterConfig.Temperature, config.RouterConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating router model: %w", err)
	}
	answer, err := newGeminiModel(ctx, client, config.AnswerConfig.Model, config.AnswerConfig.Temperature, config.AnswerConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating answer model: %w", err)
	}
	speech, err := newGeminiModel(ctx, client, config.SpeechConfig.Model, config.SpeechConfig.Temperature, config.SpeechConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating speech model: %w", err)
	}
	translator, err := newGeminiModel(ctx, client, config.TranslatorConfig.Model, config.TranslatorConfig.Temperature, config.TranslatorConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating translator model: %w", err)
	}

	return &ChatModels{
		Router:          router,
		Answer:          answer,
		Speech:          speech,
		Translator:      translator,
		RouterModelName: config.RouterConfig.Model,
		AnswerModelName: config.AnswerConfig.Model,
		SpeechModelName: config.SpeechConfig.Model,
		Client:          client,
	}, nil
}

func newGeminiModel(ctx context.Context, client *genai.Client, name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", name).Msg("Error creating chat model")
		return nil, err
	}
	return cm, nil
}
