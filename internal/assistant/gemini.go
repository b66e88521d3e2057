package assistant

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	perrors "github.com/mpataki/codeplay/internal/errors"
	"github.com/mpataki/codeplay/internal/logging"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// Gemini sends requests to the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGemini creates a Gemini backend authenticated with apiKey.
func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, perrors.New(perrors.TransportFailure, "gemini api key is empty")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, perrors.Wrap(perrors.TransportFailure, "creating gemini client", err)
	}
	return &Gemini{client: client, model: model, logger: logging.OrNop(logger)}, nil
}

// Complete sends the request text as a single user turn.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(
			"You are a coding assistant inside a code playground. When fixing code, reply with a short explanation followed by the complete corrected program in one fenced code block.",
			genai.RoleUser),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Text), cfg)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", perrors.Wrap(perrors.TransportFailure, "gemini request failed", err)
	}

	out := resp.Text()
	if out == "" {
		return "", perrors.New(perrors.TransportFailure, "gemini returned an empty response")
	}
	g.logger.Debug("gemini completion", zap.String("model", g.model), zap.Int("chars", len(out)))
	return out, nil
}
