package adapters

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// OpenAIImageClient は OpenAI Images API を使うアダプタです。
type OpenAIImageClient struct {
	client openai.Client
	model  string
}

// NewOpenAIImageClient は OpenAIImageClient を生成します。
func NewOpenAIImageClient(client openai.Client, model string) (*OpenAIImageClient, error) {
	if model == "" {
		return nil, errors.New("OpenAI 画像モデル名は必須です")
	}
	return &OpenAIImageClient{client: client, model: model}, nil
}

// GenerateImage は1枚の画像を base64 で受け取り、バイト列に戻して返します。
func (c *OpenAIImageClient) GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error) {
	var sb strings.Builder
	if req.SystemPrompt != "" {
		sb.WriteString(req.SystemPrompt)
		sb.WriteString("\n\n")
	}
	sb.WriteString(req.Prompt)
	if req.NegativePrompt != "" {
		sb.WriteString("\n\nAvoid: ")
		sb.WriteString(req.NegativePrompt)
	}

	params := openai.ImageGenerateParams{
		Prompt: sb.String(),
		Model:  openai.ImageModel(c.model),
		N:      openai.Int(1),
		Size:   openAISize(c.model, req.AspectRatio),
	}
	// gpt-image-1 は常に base64 を返し、response_format を受け付けない
	if c.model != string(openai.ImageModelGPTImage1) {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}

	resp, err := c.client.Images.Generate(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI 画像生成に失敗しました: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("OpenAI の応答に画像データが含まれていません")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("画像データのデコードに失敗しました: %w", err)
	}

	mimeType := "image/png"
	if format := string(resp.OutputFormat); format != "" {
		mimeType = "image/" + format
	}
	return &imagedom.ImageResponse{Data: data, MimeType: mimeType}, nil
}

// openAISize はアスペクト比をモデルが受け付けるサイズに対応づけます。
func openAISize(model, aspectRatio string) openai.ImageGenerateParamsSize {
	landscape := aspectRatio == "16:9" || aspectRatio == "3:2" || aspectRatio == "4:3"
	portrait := aspectRatio == "9:16" || aspectRatio == "2:3" || aspectRatio == "3:4"

	switch model {
	case string(openai.ImageModelDallE3):
		switch {
		case landscape:
			return openai.ImageGenerateParamsSize1792x1024
		case portrait:
			return openai.ImageGenerateParamsSize1024x1792
		}
	case string(openai.ImageModelDallE2):
		return openai.ImageGenerateParamsSize1024x1024
	default:
		switch {
		case landscape:
			return openai.ImageGenerateParamsSize1536x1024
		case portrait:
			return openai.ImageGenerateParamsSize1024x1536
		}
	}
	return openai.ImageGenerateParamsSize1024x1024
}
