package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bz888/sagan/internal/backend/provider"
	"github.com/bz888/sagan/internal/chat"
	"github.com/gin-gonic/gin"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "llama-3.3-70b-versatile"

type chatRequest struct {
	Messages       []chat.Message `json:"messages"`
	Model          *string        `json:"model"`
	IsDeepResearch bool           `json:"isDeepResearch"`
	IsBrowsing     bool           `json:"isBrowsing"`
}

type modelInfo struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func (r *chatRequest) validate() error {
	if r.Messages == nil {
		return errors.New("messages is required")
	}
	for _, m := range r.Messages {
		if m.Role == "" {
			return errors.New("every message needs a role")
		}
	}
	return nil
}

func (r *chatRequest) model() string {
	if r.Model == nil {
		return DefaultModel
	}
	return *r.Model
}

func (s *Server) chatHandler(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.log.Warn("Rejected chat request:", err)
		c.JSON(http.StatusUnprocessableEntity, chat.ErrorEnvelope{Error: err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		s.log.Warn("Rejected chat request:", err)
		c.JSON(http.StatusUnprocessableEntity, chat.ErrorEnvelope{Error: err.Error()})
		return
	}

	route := s.catalog.Resolve(req.model())
	upstream := s.providers[route.Provider]
	chatReq := &provider.ChatRequest{
		Model:     route.Model,
		Messages:  buildMessages(&req, route),
		MaxTokens: route.MaxTokens,
	}
	s.log.Infof("chat model=%s via %s/%s messages=%d", req.model(), route.Provider, route.Model, len(chatReq.Messages))

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	if upstream == nil {
		s.log.Error("No client for provider", route.Provider)
		c.Writer.WriteString("Error: no client for provider " + route.Provider)
		return
	}

	ctx := c.Request.Context()
	err := upstream.Chat(ctx, chatReq, func(content string) error {
		if _, err := c.Writer.WriteString(content); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	})
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		s.log.Info("Client went away:", ctx.Err())
		return
	}

	if provider.IsAPIError(err) {
		s.log.Error("Upstream API error:", err)
	} else {
		s.log.Error("Upstream transport error:", err)
	}
	c.Writer.WriteString("Error: " + err.Error())
	c.Writer.Flush()
}

func (s *Server) modelsHandler(c *gin.Context) {
	var models []modelInfo
	for _, id := range s.catalog.IDs() {
		m := s.catalog.Models[id]
		models = append(models, modelInfo{ID: id, Provider: m.Provider, Model: m.Model})
	}

	if name := s.catalog.ollamaProvider(); name != "" {
		if lister, ok := s.providers[name].(provider.ModelLister); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()

			local, err := lister.Models(ctx)
			if err != nil {
				s.log.Warn("Listing local models failed:", err)
			}
			for _, model := range local {
				models = append(models, modelInfo{ID: OllamaPrefix + model, Provider: name, Model: model})
			}
		}
	}

	c.JSON(http.StatusOK, models)
}
