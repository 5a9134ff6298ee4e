package ocr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"seu-creysson-bot/internal/domain"
	"seu-creysson-bot/internal/domain/ports/adapter"
)

var _ adapter.OCREngine = (*GeminiEngine)(nil)

const transcribePrompt = "Transcreva literalmente todo o texto visível nesta imagem de comprovante, " +
	"linha por linha, sem comentários nem formatação adicional."

// geminiImageTypes are the sniffed content types the vision model accepts.
var geminiImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// GeminiEngine uses a multimodal Gemini model as a multi-language recognizer.
type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(ctx context.Context, apiKey, baseURL, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		return nil, errors.New("gemini: empty model")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiEngine{client: c, model: model}, nil
}

func (g *GeminiEngine) Name() string { return "gemini" }

func (g *GeminiEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	mime := http.DetectContentType(image)
	if !geminiImageTypes[mime] {
		return "", fmt.Errorf("%w: gemini: unsupported content type %s", domain.ErrOCRFailed, mime)
	}

	temperature := float32(0)
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: transcribePrompt},
			{InlineData: &genai.Blob{MIMEType: mime, Data: image}},
		},
	}}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %w", domain.ErrOCRFailed, err)
	}
	return Normalize(responseText(resp)), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
