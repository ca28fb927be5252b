package utils

import (
	"context"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/nimastyle/nima-backend/config"
	"github.com/nimastyle/nima-backend/generation"
)

func newGeminiClient(ctx context.Context) (*genai.Client, error) {
	if config.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	return genai.NewClient(ctx, option.WithAPIKey(config.GeminiAPIKey))
}

// GeminiText generates advisory text (styling commentary, render prompts)
// with the configured text model.
type GeminiText struct {
	Model string
}

func NewGeminiText() *GeminiText {
	return &GeminiText{Model: config.TextModel}
}

func (g *GeminiText) Generate(ctx context.Context, systemPrompt, prompt string, temperature float32) (string, error) {
	client, err := newGeminiClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	model.SetTemperature(temperature)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini text generation failed: %w", err)
	}

	var out string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out += string(text)
			}
		}
	}
	return out, nil
}

// GeminiImage renders composite images from mixed text and image parts with
// the configured image model. A response without an image part is returned
// as a result with nil ImageData, not an error; callers decide how to retry.
type GeminiImage struct {
	Model string
}

func NewGeminiImage() *GeminiImage {
	return &GeminiImage{Model: config.ImageModel}
}

func (g *GeminiImage) Provider() string {
	return g.Model
}

func (g *GeminiImage) Generate(ctx context.Context, parts []generation.Part) (*generation.GenResult, error) {
	client, err := newGeminiClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)

	genaiParts := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" {
			genaiParts = append(genaiParts, genai.Text(p.Text))
		}
		if len(p.ImageData) > 0 {
			genaiParts = append(genaiParts, genai.ImageData("jpeg", p.ImageData))
		}
	}

	resp, err := model.GenerateContent(ctx, genaiParts...)
	if err != nil {
		return nil, fmt.Errorf("gemini image generation failed: %w", err)
	}

	result := &generation.GenResult{}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				result.Text += string(v)
			case genai.Blob:
				if result.ImageData == nil {
					result.ImageData = v.Data
				}
			}
		}
	}
	if result.ImageData == nil {
		log.Printf("Gemini model %s returned no image part", g.Model)
	}
	return result, nil
}
