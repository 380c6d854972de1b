package adapters

import (
	"context"
	"iter"

	"github.com/shouni/go-story-kit/pkg/domain"

	"google.golang.org/genai"
)

// StreamRequest はストリーミング生成1回分の入力です。
type StreamRequest struct {
	Model             string
	SystemInstruction string
	History           []domain.Turn
	Input             string
	Temperature       *float32
	MaxOutputTokens   int32
}

// TextStreamer はテキストを逐次返す言語モデルの契約です。
// 返されるシーケンスは一度しか走査できず、失敗時は最後の要素としてエラーを返します。
type TextStreamer interface {
	StreamText(ctx context.Context, req StreamRequest) iter.Seq2[string, error]
}

// JSONGenerator はスキーマに沿った JSON を1回で返す言語モデルの契約です。
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, model string, prompt string, schema *genai.Schema) (string, error)
}
