package adapters

import (
	"context"
	"errors"
	"fmt"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"google.golang.org/genai"
)

// ImagenClient は Imagen 系モデル（models.generateImages）を使うアダプタです。
type ImagenClient struct {
	client *genai.Client
	model  string
}

// NewImagenClient は ImagenClient を生成します。
func NewImagenClient(client *genai.Client, model string) (*ImagenClient, error) {
	if client == nil {
		return nil, errors.New("genai.Client は必須です")
	}
	if model == "" {
		return nil, errors.New("Imagen モデル名は必須です")
	}
	return &ImagenClient{client: client, model: model}, nil
}

// GenerateImage は1枚の画像を生成します。Imagen はシステムプロンプトを持たないため、本文の前に連結します。
func (c *ImagenClient) GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	prompt := req.Prompt
	if req.SystemPrompt != "" {
		prompt = req.SystemPrompt + "\n\n" + prompt
	}

	cfg := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    req.AspectRatio,
		NegativePrompt: req.NegativePrompt,
		OutputMIMEType: "image/png",
	}

	resp, err := c.client.Models.GenerateImages(ctx, c.model, prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("Imagen 画像生成に失敗しました: %w", err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return nil, errors.New("Imagen の応答に画像が含まれていません")
	}

	img := resp.GeneratedImages[0]
	if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
		reason := ""
		if img != nil {
			reason = img.RAIFilteredReason
		}
		return nil, fmt.Errorf("Imagen の画像が空です (filtered: %q)", reason)
	}

	mimeType := img.Image.MIMEType
	if mimeType == "" {
		mimeType = cfg.OutputMIMEType
	}
	return &imagedom.ImageResponse{Data: img.Image.ImageBytes, MimeType: mimeType}, nil
}
