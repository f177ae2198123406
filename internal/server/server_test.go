package server

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/speech"
	errx "github.com/digital-twin-core/server/internal/core/error"
)

type stubRunner struct {
	answer model.Answer
	err    error
	last   model.Query
}

func (s *stubRunner) Invoke(_ context.Context, in model.Query) (model.Answer, error) {
	s.last = in
	return s.answer, s.err
}

type stubSynthesizer struct {
	audio []byte
	err   error
	calls int
}

func (s *stubSynthesizer) Synthesize(_ context.Context, _ string) ([]byte, error) {
	s.calls++
	return s.audio, s.err
}

func newTestServer(runner *stubRunner, tts *stubSynthesizer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	var syn speech.Synthesizer
	if tts != nil {
		syn = tts
	}
	srv := New(runner, syn, 5*time.Second)
	return srv.Router(model.ServerConfig{Port: "8080", RequestTimeout: "5s", AllowedOrigins: "*"})
}

func postAsk(t *testing.T, engine *gin.Engine, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestAskReturnsTextAndAudio(t *testing.T) {
	runner := &stubRunner{answer: model.Answer{Text: "He studied physics.", Category: model.CategoryLinkedIn}}
	tts := &stubSynthesizer{audio: []byte{0x52, 0x49, 0x46, 0x46}}
	engine := newTestServer(runner, tts)

	w := postAsk(t, engine, AskRequest{Question: "Where did he study?", UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp AskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "He studied physics.", resp.Text)
	assert.Equal(t, "linkedin", resp.Category)
	assert.Equal(t, hex.EncodeToString(tts.audio), resp.Audio)
	assert.Equal(t, "u1", runner.last.UserID)
	assert.Equal(t, 1, tts.calls)
}

func TestAskTTSFailureDegradesToTextOnly(t *testing.T) {
	runner := &stubRunner{answer: model.Answer{Text: "He studied physics.", Category: model.CategoryLinkedIn}}
	tts := &stubSynthesizer{err: errors.New("tts request: status 500")}
	engine := newTestServer(runner, tts)

	w := postAsk(t, engine, AskRequest{Question: "Where did he study?"})
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "He studied physics.", raw["text"])
	_, hasAudio := raw["audio"]
	assert.False(t, hasAudio)
}

func TestAskWithoutSynthesizerIsTextOnly(t *testing.T) {
	runner := &stubRunner{answer: model.Answer{Text: "I don't have information about that.", Category: model.CategoryUnanswerable}}
	engine := newTestServer(runner, nil)

	w := postAsk(t, engine, AskRequest{Question: "What is the capital of France?"})
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "unanswerable", raw["category"])
	_, hasAudio := raw["audio"]
	assert.False(t, hasAudio)
}

func TestAskMissingQuestionRejected(t *testing.T) {
	runner := &stubRunner{}
	engine := newTestServer(runner, nil)

	w := postAsk(t, engine, map[string]string{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, runner.last.Question)
}

func TestAskPipelineErrorMapsStatusAndMessage(t *testing.T) {
	runner := &stubRunner{err: errx.New(errors.New("connection refused"), http.StatusBadGateway, errx.IndexErrorMessage)}
	engine := newTestServer(runner, nil)

	w := postAsk(t, engine, AskRequest{Question: "Where did he study?"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, errx.IndexErrorMessage, raw["error"])
	// The internal cause never reaches the client.
	assert.NotContains(t, w.Body.String(), "connection refused")
	_, hasText := raw["text"]
	assert.False(t, hasText)
}

func TestAskUnknownErrorIsGeneric(t *testing.T) {
	runner := &stubRunner{err: errors.New("boom with secrets")}
	engine := newTestServer(runner, nil)

	w := postAsk(t, engine, AskRequest{Question: "Where did he study?"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), errx.SystemErrorMessage)
	assert.NotContains(t, w.Body.String(), "secrets")
}

func TestHealth(t *testing.T) {
	engine := newTestServer(&stubRunner{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
