package nodes

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/digital-twin-core/server/internal/agent/graph/parsers"
	"github.com/digital-twin-core/server/internal/agent/graph/prompts"
	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/retrieval"
	"github.com/digital-twin-core/server/internal/agent/speech"
	"github.com/digital-twin-core/server/internal/agent/translate"
	errx "github.com/digital-twin-core/server/internal/core/error"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

// Node names used across graph composition and tests.
const (
	NodeQueryNormalizer = "QueryNormalizer"
	NodeRouterChatModel = "RouterChatModel"
	NodeRouteParser     = "RouteParser"
	NodeRetriever       = "Retriever"
	NodeNoInfoAnswer    = "NoInfoAnswer"
	NodeAnswerAssembler = "AnswerAssembler"
	NodeAnswerChatModel = "AnswerChatModel"
	NodeSpeechAssembler = "SpeechAssembler"
	NodeSpeechChatModel = "SpeechChatModel"
	NodeSpeechCleaner   = "SpeechCleaner"
)

// Extra keys on the terminal message.
const (
	ExtraCategory  = "category"
	ExtraRouteNote = "route_note"
	ExtraCostUSD   = "usage_cost_total_usd"
)

// NewQueryNormalizerPreHandler resets per-request state before the first node runs.
func NewQueryNormalizerPreHandler() func(context.Context, model.Query, *model.AppState) (model.Query, error) {
	return func(ctx context.Context, in model.Query, s *model.AppState) (model.Query, error) {
		s.UserID = in.UserID
		s.RawQuery = in.Question
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewQueryNormalizerNode creates the node that translates the question to
// English (pass-through on failure) and prepares the router prompt.
func NewQueryNormalizerNode(
	normalizer *translate.Normalizer,
	promptCfg *model.AnswerPromptConfig,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.Query) ([]*schema.Message, error) {
		question := strings.TrimSpace(input.Question)
		if question == "" {
			return nil, errx.New(fmt.Errorf("empty question"), http.StatusBadRequest, "question is required")
		}

		english := normalizer.Normalize(ctx, question)

		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.EnglishQuery = english
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderRouterSystem(ctx, *promptCfg)
		if err != nil {
			return nil, fmt.Errorf("render router system prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(english),
		}, nil
	})
}

// NewModelCostPostHandler computes and logs usage cost for a chat model node
// and accumulates the running total in state. Shared by all three model nodes.
func NewModelCostPostHandler(nodeName, modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		if model.CostEnabled() && out != nil && out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
			pricing := model.ResolvePricing(modelName)
			inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
			logx.Debug().
				Str("node", nodeName).
				Str("model", modelName).
				Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
				Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
				Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
				Float64("input_cost_usd", inC).
				Float64("output_cost_usd", outC).
				Float64("total_cost_usd", totalC).
				Msg("LLM usage")
			state.TotalCostUSD += totalC
		}
		return out, nil
	}
}

// NewRouteParserNode converts raw router output into a RoutingDecision.
// The closed-set coercion lives entirely inside parsers.ParseRoute.
func NewRouteParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.RoutingDecision, error) {
		if resp == nil {
			return model.RoutingDecision{Category: model.CategoryUnanswerable, Note: "router returned no message"}, nil
		}
		return parsers.ParseRoute(resp.Content), nil
	})
}

// NewRouteParserPostHandler stores the routing decision in state.
func NewRouteParserPostHandler() func(context.Context, model.RoutingDecision, *model.AppState) (model.RoutingDecision, error) {
	return func(ctx context.Context, out model.RoutingDecision, state *model.AppState) (model.RoutingDecision, error) {
		state.Decision = &out
		logx.Debug().
			Str("category", out.Category.String()).
			Str("note", out.Note).
			Msg("Routing decision")
		return out, nil
	}
}

// NewRetrieverNode queries the selected category's index. Unanswerable
// questions produce an empty batch without touching any index; an index
// outage aborts the request.
func NewRetrieverNode(retriever *retrieval.Retriever) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, decision model.RoutingDecision) ([]model.Passage, error) {
		var question string
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			question = state.EnglishQuery
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return retriever.Retrieve(ctx, decision, question)
	})
}

// NewRetrieverPostHandler stores the passage batch in state.
func NewRetrieverPostHandler() func(context.Context, []model.Passage, *model.AppState) ([]model.Passage, error) {
	return func(ctx context.Context, out []model.Passage, state *model.AppState) ([]model.Passage, error) {
		state.Passages = out
		return out, nil
	}
}

// NewAnswerBranchCondition routes an empty passage batch to the canned
// no-information answer and everything else to the grounded generator.
func NewAnswerBranchCondition() func(context.Context, []model.Passage) (string, error) {
	return func(ctx context.Context, passages []model.Passage) (string, error) {
		if len(passages) == 0 {
			logx.Debug().Msg("No passages retrieved - routing to no-info answer")
			return NodeNoInfoAnswer, nil
		}
		return NodeAnswerAssembler, nil
	}
}

// NewNoInfoAnswerNode emits the fixed no-information reply. Deterministic:
// no model call happens on this path before speech optimization.
func NewNoInfoAnswerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ []model.Passage) (*schema.Message, error) {
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			state.DraftAnswer = model.NoInfoAnswer
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return schema.AssistantMessage(model.NoInfoAnswer, nil), nil
	})
}

// NewAnswerAssemblerNode renders the grounded-answer prompt from the
// question and the retrieved passages.
func NewAnswerAssemblerNode(promptCfg *model.AnswerPromptConfig) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, passages []model.Passage) ([]*schema.Message, error) {
		var question string
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			question = state.EnglishQuery
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderAnswerSystem(ctx, *promptCfg, passages)
		if err != nil {
			return nil, fmt.Errorf("render answer system prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(question),
		}, nil
	})
}

// NewAnswerChatModelPostHandler records cost and keeps the draft answer in
// state. An empty completion is a generation failure, not a valid answer.
func NewAnswerChatModelPostHandler(modelName string) func(context.Context, *schema.Message, *model.AppState) (*schema.Message, error) {
	cost := NewModelCostPostHandler(NodeAnswerChatModel, modelName)
	return func(ctx context.Context, out *schema.Message, state *model.AppState) (*schema.Message, error) {
		out, err := cost(ctx, out, state)
		if err != nil {
			return nil, err
		}
		if out == nil || strings.TrimSpace(out.Content) == "" {
			return nil, errx.New(fmt.Errorf("empty answer completion"), http.StatusBadGateway, errx.GenerationErrorMessage)
		}
		state.DraftAnswer = out.Content
		return out, nil
	}
}

// NewSpeechAssemblerNode wraps the draft answer in the speech-optimization prompt.
func NewSpeechAssemblerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, draft *schema.Message) ([]*schema.Message, error) {
		if draft == nil || strings.TrimSpace(draft.Content) == "" {
			return nil, errx.New(fmt.Errorf("missing draft answer"), http.StatusBadGateway, errx.GenerationErrorMessage)
		}
		systemPrompt, err := prompts.RenderSpeechSystem(ctx)
		if err != nil {
			return nil, fmt.Errorf("render speech system prompt: %w", err)
		}
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(draft.Content),
		}, nil
	})
}

// NewSpeechCleanerNode applies the deterministic formatting cleanup and
// stamps the terminal message with the routing category and cost total.
func NewSpeechCleanerNode(cleaner *speech.Cleaner) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, optimized *schema.Message) (*schema.Message, error) {
		var (
			category = model.CategoryUnanswerable
			note     string
			cost     float64
			draft    string
		)
		if err := compose.ProcessState(ctx, func(_ context.Context, state *model.AppState) error {
			if state.Decision != nil {
				category = state.Decision.Category
				note = state.Decision.Note
			}
			cost = state.TotalCostUSD
			draft = state.DraftAnswer
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		content := ""
		if optimized != nil {
			content = cleaner.Clean(optimized.Content)
		}
		if content == "" {
			// Speech model produced nothing usable; the cleaned draft still
			// preserves the factual content.
			logx.Warn().Msg("Speech optimization returned empty text; falling back to cleaned draft")
			content = cleaner.Clean(draft)
		}
		if content == "" {
			return nil, errx.New(fmt.Errorf("empty speech-optimized answer"), http.StatusBadGateway, errx.GenerationErrorMessage)
		}

		final := schema.AssistantMessage(content, nil)
		final.Extra = map[string]any{
			ExtraCategory: category.String(),
			ExtraCostUSD:  cost,
		}
		if note != "" {
			final.Extra[ExtraRouteNote] = note
		}
		return final, nil
	})
}
