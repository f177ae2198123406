package graph

import (
	"context"
	"errors"
	"net/http"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digital-twin-core/server/internal/agent/graph/nodes"
	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/retrieval"
	"github.com/digital-twin-core/server/internal/agent/speech"
	"github.com/digital-twin-core/server/internal/agent/trace"
	"github.com/digital-twin-core/server/internal/agent/translate"
	errx "github.com/digital-twin-core/server/internal/core/error"
)

// scriptedModel is a chat model with a fixed response function. It records
// every call so tests can assert what each pipeline stage received.
type scriptedModel struct {
	fn    func(msgs []*schema.Message) (*schema.Message, error)
	calls [][]*schema.Message
}

func (m *scriptedModel) Generate(ctx context.Context, msgs []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls = append(m.calls, msgs)
	return m.fn(msgs)
}

func (m *scriptedModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func reply(content string) func([]*schema.Message) (*schema.Message, error) {
	return func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(content, nil), nil
	}
}

// echoUser answers with the last user message, so the speech stage acts as
// an identity transform in tests.
func echoUser(msgs []*schema.Message) (*schema.Message, error) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return schema.AssistantMessage(msgs[i].Content, nil), nil
		}
	}
	return schema.AssistantMessage("", nil), nil
}

func lastUser(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == schema.User {
			return msgs[i].Content
		}
	}
	return ""
}

type scriptedIndex struct {
	passages []model.Passage
	err      error
	queries  []string
}

func (s *scriptedIndex) Query(_ context.Context, question string, _ int) ([]model.Passage, error) {
	s.queries = append(s.queries, question)
	return s.passages, s.err
}

type pipelineStubs struct {
	router     *scriptedModel
	answer     *scriptedModel
	speechM    *scriptedModel
	translator *scriptedModel
	linkedin   *scriptedIndex
	github     *scriptedIndex
	medium     *scriptedIndex
}

func newTestRunner(t *testing.T, s *pipelineStubs) Runner {
	t.Helper()
	if s.translator == nil {
		s.translator = &scriptedModel{fn: echoUser}
	}
	if s.speechM == nil {
		s.speechM = &scriptedModel{fn: echoUser}
	}
	if s.answer == nil {
		s.answer = &scriptedModel{fn: reply("unused grounded answer")}
	}
	if s.linkedin == nil {
		s.linkedin = &scriptedIndex{}
	}
	if s.github == nil {
		s.github = &scriptedIndex{}
	}
	if s.medium == nil {
		s.medium = &scriptedIndex{}
	}

	indexes := retrieval.IndexSet{
		model.CategoryLinkedIn: s.linkedin,
		model.CategoryGitHub:   s.github,
		model.CategoryMedium:   s.medium,
	}
	retrCfg := model.RetrievalConfig{LinkedInK: 3, GitHubK: 8, MediumK: 8, KeyPrefix: "twin:index"}
	promptCfg := model.AnswerPromptConfig{SubjectName: "Alex"}

	runner, err := BuildGraph(context.Background(), &GraphConfig{
		ChatModels: &nodes.ChatModels{
			Router:          s.router,
			Answer:          s.answer,
			Speech:          s.speechM,
			Translator:      s.translator,
			RouterModelName: "stub-router",
			AnswerModelName: "stub-answer",
			SpeechModelName: "stub-speech",
		},
		Normalizer:   translate.NewNormalizer(translate.NewChatModelTranslator(s.translator)),
		Retriever:    retrieval.NewRetriever(indexes, retrCfg),
		PromptConfig: &promptCfg,
		Cleaner:      speech.NewCleaner(),
		Recorder:     trace.NopRecorder{},
	})
	require.NoError(t, err)
	return runner
}

func TestPipelineGroundedAnswerSingleCategory(t *testing.T) {
	stubs := &pipelineStubs{
		router: &scriptedModel{fn: reply("ROUTE: linkedin\nREASON: education question")},
		answer: &scriptedModel{fn: reply("Alex holds an **MSc in Computer Science** from TU Munich.")},
		linkedin: &scriptedIndex{passages: []model.Passage{
			{ID: "l1", Content: "MSc in Computer Science, TU Munich, 2019", Source: model.CategoryLinkedIn, Score: 0.95},
			{ID: "l2", Content: "BSc in Physics, Heidelberg", Source: model.CategoryLinkedIn, Score: 0.7},
		}},
		github: &scriptedIndex{passages: []model.Passage{
			{ID: "g1", Content: "raindrop: a stream processing toy", Source: model.CategoryGitHub, Score: 0.9},
		}},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "What is Alex's educational background?", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, model.CategoryLinkedIn, answer.Category)
	assert.Equal(t, "Alex holds an MSc in Computer Science from TU Munich.", answer.Text)

	// Only the routed category's index was queried.
	assert.Len(t, stubs.linkedin.queries, 1)
	assert.Empty(t, stubs.github.queries)
	assert.Empty(t, stubs.medium.queries)

	// The grounded prompt contains only linkedin passages.
	require.Len(t, stubs.answer.calls, 1)
	answerSystem := stubs.answer.calls[0][0].Content
	assert.Contains(t, answerSystem, "MSc in Computer Science, TU Munich, 2019")
	assert.NotContains(t, answerSystem, "raindrop")

	// The speech model received the draft answer for rewriting.
	require.Len(t, stubs.speechM.calls, 1)
	assert.Contains(t, lastUser(stubs.speechM.calls[0]), "MSc in Computer Science")
}

func TestPipelineUnanswerableSkipsModelsAndIndexes(t *testing.T) {
	stubs := &pipelineStubs{
		router: &scriptedModel{fn: reply("ROUTE: unanswerable\nREASON: not about the subject")},
		answer: &scriptedModel{fn: reply("should never be called")},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "What is the capital of France?", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, model.NoInfoAnswer, answer.Text)
	assert.Equal(t, model.CategoryUnanswerable, answer.Category)
	assert.Empty(t, stubs.answer.calls)
	assert.Empty(t, stubs.linkedin.queries)
	assert.Empty(t, stubs.github.queries)
	assert.Empty(t, stubs.medium.queries)
}

func TestPipelineGarbageRouterOutputStillAnswers(t *testing.T) {
	stubs := &pipelineStubs{
		router: &scriptedModel{fn: reply("I cannot decide, maybe ask something else?")},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "gibberish question"})
	require.NoError(t, err)
	assert.Equal(t, model.NoInfoAnswer, answer.Text)
	assert.Equal(t, model.CategoryUnanswerable, answer.Category)
}

func TestPipelineZeroHitsYieldsNoInfoAnswer(t *testing.T) {
	stubs := &pipelineStubs{
		router:   &scriptedModel{fn: reply("ROUTE: medium\nREASON: articles")},
		answer:   &scriptedModel{fn: reply("should never be called")},
		medium:   &scriptedIndex{passages: []model.Passage{}},
		linkedin: &scriptedIndex{},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "What has Alex written about quantum computing?"})
	require.NoError(t, err)
	assert.Equal(t, model.NoInfoAnswer, answer.Text)
	assert.Equal(t, model.CategoryMedium, answer.Category)
	assert.Len(t, stubs.medium.queries, 1)
	assert.Empty(t, stubs.answer.calls)
}

func TestPipelineNonEnglishQuestionNormalized(t *testing.T) {
	english := "What projects has Alex built with Java?"
	stubs := &pipelineStubs{
		translator: &scriptedModel{fn: reply(english)},
		router:     &scriptedModel{fn: reply("ROUTE: github\nREASON: projects")},
		answer:     &scriptedModel{fn: reply("Alex built a parser and a scheduler in Java.")},
		github: &scriptedIndex{passages: []model.Passage{
			{ID: "g1", Content: "java-scheduler: cron-like job runner", Source: model.CategoryGitHub, Score: 0.9},
		}},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "Welche Projekte hat Alex mit Java entwickelt?"})
	require.NoError(t, err)
	assert.Equal(t, "Alex built a parser and a scheduler in Java.", answer.Text)
	assert.Equal(t, model.CategoryGitHub, answer.Category)

	// Routing and retrieval both operate on the English form.
	require.Len(t, stubs.router.calls, 1)
	assert.Equal(t, english, lastUser(stubs.router.calls[0]))
	require.Len(t, stubs.github.queries, 1)
	assert.Equal(t, english, stubs.github.queries[0])
}

func TestPipelineTranslationFailurePassesOriginalThrough(t *testing.T) {
	question := "What is Alex's educational background?"
	stubs := &pipelineStubs{
		translator: &scriptedModel{fn: func([]*schema.Message) (*schema.Message, error) {
			return nil, errors.New("translator down")
		}},
		router: &scriptedModel{fn: reply("ROUTE: unanswerable")},
	}
	runner := newTestRunner(t, stubs)

	_, err := runner.Invoke(context.Background(), model.Query{Question: question})
	require.NoError(t, err)
	require.Len(t, stubs.router.calls, 1)
	assert.Equal(t, question, lastUser(stubs.router.calls[0]))
}

func TestPipelineIndexOutageIsFatal(t *testing.T) {
	stubs := &pipelineStubs{
		router:   &scriptedModel{fn: reply("ROUTE: linkedin\nREASON: education")},
		answer:   &scriptedModel{fn: reply("should never be called")},
		linkedin: &scriptedIndex{err: errx.WrapIndex(errors.New("connection refused"))},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "Where did Alex study?"})
	require.Error(t, err)

	// No partial answer escapes.
	assert.Empty(t, answer.Text)
	assert.Empty(t, stubs.answer.calls)

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, errx.IndexErrorMessage, appErr.Message)
}

func TestPipelineEmptyAnswerCompletionIsFatal(t *testing.T) {
	stubs := &pipelineStubs{
		router: &scriptedModel{fn: reply("ROUTE: linkedin\nREASON: education")},
		answer: &scriptedModel{fn: reply("   ")},
		linkedin: &scriptedIndex{passages: []model.Passage{
			{ID: "l1", Content: "MSc in CS", Source: model.CategoryLinkedIn, Score: 0.9},
		}},
	}
	runner := newTestRunner(t, stubs)

	_, err := runner.Invoke(context.Background(), model.Query{Question: "Where did Alex study?"})
	require.Error(t, err)

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errx.GenerationErrorMessage, appErr.Message)
}

func TestPipelineSpeechFallbackToDraft(t *testing.T) {
	stubs := &pipelineStubs{
		router:  &scriptedModel{fn: reply("ROUTE: linkedin\nREASON: education")},
		answer:  &scriptedModel{fn: reply("Alex studied **physics** in Heidelberg.")},
		speechM: &scriptedModel{fn: reply("   ")},
		linkedin: &scriptedIndex{passages: []model.Passage{
			{ID: "l1", Content: "BSc in Physics, Heidelberg", Source: model.CategoryLinkedIn, Score: 0.8},
		}},
	}
	runner := newTestRunner(t, stubs)

	answer, err := runner.Invoke(context.Background(), model.Query{Question: "Where did Alex study?"})
	require.NoError(t, err)
	assert.Equal(t, "Alex studied physics in Heidelberg.", answer.Text)
}

func TestPipelineCancelledContextIsFatalTimeout(t *testing.T) {
	stubs := &pipelineStubs{
		router: &scriptedModel{fn: reply("ROUTE: linkedin\nREASON: education")},
		answer: &scriptedModel{fn: reply("should never be called")},
		linkedin: &scriptedIndex{passages: []model.Passage{
			{ID: "l1", Content: "MSc in CS", Source: model.CategoryLinkedIn, Score: 0.9},
		}},
	}
	runner := newTestRunner(t, stubs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := runner.Invoke(ctx, model.Query{Question: "Where did Alex study?"})
	require.Error(t, err)

	// No partial answer escapes a cancelled run.
	assert.Empty(t, answer.Text)

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusGatewayTimeout, appErr.Status)
	assert.Equal(t, errx.SystemErrorMessage, appErr.Message)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPipelineEmptyQuestionRejected(t *testing.T) {
	stubs := &pipelineStubs{
		router: &scriptedModel{fn: reply("ROUTE: unanswerable")},
	}
	runner := newTestRunner(t, stubs)

	_, err := runner.Invoke(context.Background(), model.Query{Question: "   "})
	require.Error(t, err)

	var appErr *errx.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Empty(t, stubs.router.calls)
}

func TestBuildGraphValidation(t *testing.T) {
	_, err := BuildGraph(context.Background(), nil)
	require.Error(t, err)

	_, err = BuildGraph(context.Background(), &GraphConfig{})
	require.Error(t, err)
}
