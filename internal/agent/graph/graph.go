package graph

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/digital-twin-core/server/internal/agent/graph/nodes"
	"github.com/digital-twin-core/server/internal/agent/graph/observers"
	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/retrieval"
	"github.com/digital-twin-core/server/internal/agent/speech"
	"github.com/digital-twin-core/server/internal/agent/trace"
	"github.com/digital-twin-core/server/internal/agent/translate"
	errx "github.com/digital-twin-core/server/internal/core/error"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

// Runner executes the compiled pipeline for one query.
type Runner interface {
	Invoke(ctx context.Context, in model.Query) (model.Answer, error)
}

// Config holds everything needed to compose the full answer pipeline
// end-to-end. This is a convenience layer over GraphConfig that also
// constructs the chat models and the retriever.
type Config struct {
	APIKey          string
	BaseURL         string
	RouterModel     model.RouterModelConfig
	AnswerModel     model.AnswerModelConfig
	SpeechModel     model.SpeechModelConfig
	TranslatorModel model.TranslatorModelConfig
	Prompt          model.AnswerPromptConfig
	Retrieval       model.RetrievalConfig
	Embedding       model.EmbeddingConfig
	Trace           model.TraceConfig

	// Redis backs the per-category indexes and, when enabled, the trace
	// stream. The index handles are built once here and read-only afterwards.
	Redis    redis.Cmdable
	Recorder trace.Recorder
}

// GraphConfig holds all collaborators needed to build the graph.
type GraphConfig struct {
	ChatModels   *nodes.ChatModels
	Normalizer   *translate.Normalizer
	Retriever    *retrieval.Retriever
	PromptConfig *model.AnswerPromptConfig
	Cleaner      *speech.Cleaner

	Recorder        trace.Recorder
	TraceSummaryLen int
}

// GraphBuilder handles the construction of the answer pipeline graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.Query, *schema.Message]
}

type pipelineRunner struct {
	runnable   compose.Runnable[model.Query, *schema.Message]
	recorder   trace.Recorder
	summaryLen int
}

func (r *pipelineRunner) Invoke(ctx context.Context, in model.Query) (model.Answer, error) {
	requestID := uuid.NewString()
	cb := observers.NewPipelineCallbacks(r.recorder, requestID, in.UserID, r.summaryLen)

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(cb))
	if err != nil {
		// Fatal: no partial answer leaves the pipeline. Keep typed errors,
		// normalize everything else to the generic failure.
		var appErr *errx.AppError
		if errors.As(err, &appErr) {
			return model.Answer{}, appErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return model.Answer{}, errx.New(err, http.StatusGatewayTimeout, errx.SystemErrorMessage)
		}
		return model.Answer{}, errx.New(err, http.StatusBadGateway, errx.GenerationErrorMessage)
	}
	if out == nil {
		return model.Answer{}, errx.New(fmt.Errorf("pipeline produced no output"), http.StatusInternalServerError, errx.SystemErrorMessage)
	}

	answer := model.Answer{Text: out.Content, Category: model.CategoryUnanswerable}
	if raw, ok := out.Extra[nodes.ExtraCategory].(string); ok {
		if cat, known := model.ParseCategory(raw); known {
			answer.Category = cat
		}
	}
	return answer, nil
}

// BuildPipeline composes the chat models, normalizer and retriever, builds
// the graph, and returns a Runner.
func BuildPipeline(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		RouterConfig:     &cfg.RouterModel,
		AnswerConfig:     &cfg.AnswerModel,
		SpeechConfig:     &cfg.SpeechModel,
		TranslatorConfig: &cfg.TranslatorModel,
	})
	if err != nil {
		return nil, err
	}

	embedder := retrieval.NewGenaiEmbedder(cms.Client, cfg.Embedding)
	indexes := retrieval.NewRedisIndexSet(cfg.Redis, embedder, cfg.Retrieval.KeyPrefix)

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = trace.Recorder(trace.NewLogRecorder())
		if cfg.Trace.ToRedis {
			recorder = trace.MultiRecorder{trace.NewLogRecorder(), trace.NewRedisRecorder(cfg.Redis, cfg.Trace)}
		}
	}

	return BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		Normalizer:      translate.NewNormalizer(translate.NewChatModelTranslator(cms.Translator)),
		Retriever:       retrieval.NewRetriever(indexes, cfg.Retrieval),
		PromptConfig:    &cfg.Prompt,
		Cleaner:         speech.NewCleaner(),
		Recorder:        recorder,
		TraceSummaryLen: cfg.Trace.SummaryLen,
	})
}

// BuildGraph constructs and compiles the pipeline graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (Runner, error) {
	// Basic config validation
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Router == nil || config.ChatModels.Answer == nil || config.ChatModels.Speech == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.Normalizer == nil || config.Retriever == nil {
		return nil, fmt.Errorf("normalizer/retriever is nil")
	}
	if config.PromptConfig == nil {
		return nil, fmt.Errorf("prompt config is nil")
	}
	if config.Cleaner == nil {
		config.Cleaner = speech.NewCleaner()
	}
	if config.Recorder == nil {
		config.Recorder = trace.NewLogRecorder()
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.Query, *schema.Message](
			compose.WithGenLocalState(func(ctx context.Context) *model.AppState {
				return &model.AppState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	runnable, err := builder.compile(ctx)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Answer pipeline graph built successfully")
	return &pipelineRunner{
		runnable:   runnable,
		recorder:   config.Recorder,
		summaryLen: config.TraceSummaryLen,
	}, nil
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeQueryNormalizer,
		nodes.NewQueryNormalizerNode(b.config.Normalizer, b.config.PromptConfig),
		compose.WithStatePreHandler(nodes.NewQueryNormalizerPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeRouterChatModel,
		b.config.ChatModels.Router,
		compose.WithStatePostHandler(nodes.NewModelCostPostHandler(nodes.NodeRouterChatModel, b.config.ChatModels.RouterModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeRouteParser,
		nodes.NewRouteParserNode(),
		compose.WithStatePostHandler(nodes.NewRouteParserPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeRetriever,
		nodes.NewRetrieverNode(b.config.Retriever),
		compose.WithStatePostHandler(nodes.NewRetrieverPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeNoInfoAnswer,
		nodes.NewNoInfoAnswerNode(),
	)

	b.graph.AddLambdaNode(nodes.NodeAnswerAssembler,
		nodes.NewAnswerAssemblerNode(b.config.PromptConfig),
	)

	b.graph.AddChatModelNode(nodes.NodeAnswerChatModel,
		b.config.ChatModels.Answer,
		compose.WithStatePostHandler(nodes.NewAnswerChatModelPostHandler(b.config.ChatModels.AnswerModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeSpeechAssembler,
		nodes.NewSpeechAssemblerNode(),
	)

	b.graph.AddChatModelNode(nodes.NodeSpeechChatModel,
		b.config.ChatModels.Speech,
		compose.WithStatePostHandler(nodes.NewModelCostPostHandler(nodes.NodeSpeechChatModel, b.config.ChatModels.SpeechModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeSpeechCleaner,
		nodes.NewSpeechCleanerNode(b.config.Cleaner),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeQueryNormalizer},
		{nodes.NodeQueryNormalizer, nodes.NodeRouterChatModel},
		{nodes.NodeRouterChatModel, nodes.NodeRouteParser},
		{nodes.NodeRouteParser, nodes.NodeRetriever},
		{nodes.NodeNoInfoAnswer, nodes.NodeSpeechAssembler},
		{nodes.NodeAnswerAssembler, nodes.NodeAnswerChatModel},
		{nodes.NodeAnswerChatModel, nodes.NodeSpeechAssembler},
		{nodes.NodeSpeechAssembler, nodes.NodeSpeechChatModel},
		{nodes.NodeSpeechChatModel, nodes.NodeSpeechCleaner},
		{nodes.NodeSpeechCleaner, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates the single conditional: empty retrieval goes to the
// canned no-information answer, everything else to the grounded generator.
func (b *GraphBuilder) addBranches() error {
	answerBranch := compose.NewGraphBranch(
		nodes.NewAnswerBranchCondition(),
		map[string]bool{
			nodes.NodeNoInfoAnswer:    true,
			nodes.NodeAnswerAssembler: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeRetriever, answerBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding answer branch")
		return fmt.Errorf("error adding answer branch: %w", err)
	}
	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.Query, *schema.Message], error) {
	// The pipeline is strictly linear; a small step cap guards against
	// composition mistakes.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}
	return runnable, nil
}
