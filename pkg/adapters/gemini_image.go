package adapters

import (
	"context"
	"errors"
	"fmt"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"google.golang.org/genai"
)

// GeminiImageClient は Gemini のネイティブ画像出力（responseModalities: IMAGE）を使うアダプタです。
type GeminiImageClient struct {
	client *genai.Client
	model  string
}

// NewGeminiImageClient は GeminiImageClient を生成します。
func NewGeminiImageClient(client *genai.Client, model string) (*GeminiImageClient, error) {
	if client == nil {
		return nil, errors.New("genai.Client は必須です")
	}
	if model == "" {
		return nil, errors.New("画像モデル名は必須です")
	}
	return &GeminiImageClient{client: client, model: model}, nil
}

// GenerateImage は1枚の画像を生成し、最初のインライン画像パートを返します。
func (c *GeminiImageClient) GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	prompt := req.Prompt
	if req.NegativePrompt != "" {
		prompt += "\n\nAvoid: " + req.NegativePrompt
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage)},
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.AspectRatio != "" {
		cfg.ImageConfig = &genai.ImageConfig{AspectRatio: req.AspectRatio}
	}
	if req.Seed != nil {
		cfg.Seed = genai.Ptr(int32(*req.Seed))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini 画像生成に失敗しました: %w", err)
	}
	if err := blockedReason(resp); err != nil {
		return nil, err
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out := &imagedom.ImageResponse{
				Data:     part.InlineData.Data,
				MimeType: part.InlineData.MIMEType,
			}
			if req.Seed != nil {
				out.UsedSeed = *req.Seed
			}
			return out, nil
		}
	}
	return nil, errors.New("Gemini の応答に画像データが含まれていません")
}
