package adapters

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/shouni/go-story-kit/pkg/domain"

	"google.golang.org/genai"
)

// GeminiTextClient は genai クライアントを使ったテキスト生成アダプタです。
type GeminiTextClient struct {
	client *genai.Client
}

// NewGeminiTextClient は GeminiTextClient を生成します。
func NewGeminiTextClient(client *genai.Client) (*GeminiTextClient, error) {
	if client == nil {
		return nil, errors.New("genai.Client は必須です")
	}
	return &GeminiTextClient{client: client}, nil
}

// StreamText は GenerateContentStream の差分テキストを順に返します。
func (c *GeminiTextClient) StreamText(ctx context.Context, req StreamRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cfg := &genai.GenerateContentConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
		if req.SystemInstruction != "" {
			cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
		}

		for resp, err := range c.client.Models.GenerateContentStream(ctx, req.Model, toGeminiContents(req.History, req.Input), cfg) {
			if err != nil {
				yield("", fmt.Errorf("Gemini ストリーミングに失敗しました: %w", err))
				return
			}
			if err := blockedReason(resp); err != nil {
				yield("", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

// GenerateJSON はレスポンススキーマを指定して JSON 文字列を1回で生成します。
func (c *GeminiTextClient) GenerateJSON(ctx context.Context, model string, prompt string, schema *genai.Schema) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	}
	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini API の呼び出しに失敗しました: %w", err)
	}
	if err := blockedReason(resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("Gemini API から空の応答が返されました")
	}
	return text, nil
}

func toGeminiContents(history []domain.Turn, input string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		if turn.Text == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if turn.Role == domain.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	if input != "" {
		contents = append(contents, genai.NewContentFromText(input, genai.RoleUser))
	}
	return contents
}

func blockedReason(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return errors.New("Gemini API から nil の応答が返されました")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Errorf("プロンプトがブロックされました: %s", resp.PromptFeedback.BlockReason)
	}
	return nil
}
