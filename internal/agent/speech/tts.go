package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/digital-twin-core/server/internal/agent/model"
)

// Synthesizer converts speech-ready text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// TTSClient talks to a Coqui-style HTTP synthesis endpoint. Failures are
// reported to the caller, which degrades the response to text-only.
type TTSClient struct {
	http    *resty.Client
	speaker string
}

func NewTTSClient(cfg model.TTSConfig) *TTSClient {
	client := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	return &TTSClient{http: client, speaker: cfg.Speaker}
}

type ttsRequest struct {
	Text    string `json:"text"`
	Speaker string `json:"speaker,omitempty"`
}

func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(ttsRequest{Text: text, Speaker: c.speaker}).
		Post("/api/tts")
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("tts request: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

var _ Synthesizer = (*TTSClient)(nil)
