package server

import (
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/digital-twin-core/server/internal/agent/graph"
	"github.com/digital-twin-core/server/internal/agent/model"
	"github.com/digital-twin-core/server/internal/agent/speech"
	errx "github.com/digital-twin-core/server/internal/core/error"
	logx "github.com/digital-twin-core/server/pkg/logger"
)

// AskRequest is the inbound question payload.
type AskRequest struct {
	Question string `json:"question" binding:"required"`
	UserID   string `json:"user_id"`
}

// AskResponse carries the speech-ready answer. Audio is hex-encoded WAV and
// absent when synthesis is unavailable or fails.
type AskResponse struct {
	Text     string `json:"text"`
	Category string `json:"category"`
	Audio    string `json:"audio,omitempty"`
}

// Server exposes the pipeline over HTTP.
type Server struct {
	runner  graph.Runner
	tts     speech.Synthesizer
	timeout time.Duration
}

func New(runner graph.Runner, tts speech.Synthesizer, timeout time.Duration) *Server {
	return &Server{runner: runner, tts: tts, timeout: timeout}
}

// Router builds the gin engine with CORS and the two public routes.
func (s *Server) Router(cfg model.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if cfg.AllowedOrigins == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type"}
	r.Use(cors.New(corsCfg))

	r.POST("/api/ask", s.handleAsk)
	r.GET("/health", s.handleHealth)
	return r
}

func (s *Server) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	ctx := c.Request.Context()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, err := s.runner.Invoke(ctx, model.Query{Question: req.Question, UserID: req.UserID})
	if err != nil {
		status := http.StatusInternalServerError
		message := errx.SystemErrorMessage
		var appErr *errx.AppError
		if errors.As(err, &appErr) {
			status = appErr.Status
			message = appErr.Message
		}
		logx.Error().Err(err).Str("user_id", req.UserID).Msg("Pipeline request failed")
		c.JSON(status, gin.H{"error": message})
		return
	}

	resp := AskResponse{Text: answer.Text, Category: answer.Category.String()}
	if s.tts != nil {
		audio, err := s.tts.Synthesize(ctx, answer.Text)
		if err != nil {
			// Text-only degradation; the request still succeeds.
			logx.Warn().Err(err).Msg("TTS synthesis failed; returning text-only response")
		} else if len(audio) > 0 {
			resp.Audio = hex.EncodeToString(audio)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
