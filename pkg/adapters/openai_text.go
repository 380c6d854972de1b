package adapters

import (
	"context"
	"fmt"
	"iter"

	"github.com/shouni/go-story-kit/pkg/domain"

	"github.com/openai/openai-go"
)

// OpenAITextClient は Chat Completions のストリーミング API を使うアダプタです。
type OpenAITextClient struct {
	client openai.Client
}

// NewOpenAITextClient は OpenAITextClient を生成します。
func NewOpenAITextClient(client openai.Client) *OpenAITextClient {
	return &OpenAITextClient{client: client}
}

// StreamText はチャンクごとの差分テキストを順に返します。
func (c *OpenAITextClient) StreamText(ctx context.Context, req StreamRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		params := openai.ChatCompletionNewParams{
			Model:    req.Model,
			Messages: toOpenAIMessages(req.SystemInstruction, req.History, req.Input),
		}
		if req.Temperature != nil {
			params.Temperature = openai.Float(float64(*req.Temperature))
		}
		if req.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
		}

		stream := c.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("OpenAI ストリーミングに失敗しました: %w", err))
		}
	}
}

func toOpenAIMessages(system string, history []domain.Turn, input string) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, turn := range history {
		if turn.Text == "" {
			continue
		}
		if turn.Role == domain.RoleModel {
			messages = append(messages, openai.AssistantMessage(turn.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(turn.Text))
	}
	if input != "" {
		messages = append(messages, openai.UserMessage(input))
	}
	return messages
}
