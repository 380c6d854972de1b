package generator

import (
	"context"

	"github.com/shouni/go-story-kit/pkg/domain"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
)

// ImageClient は、1回のリクエストで1枚の画像を返す外部バックエンドの契約です。
type ImageClient interface {
	GenerateImage(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error)
}

// Backend は選択対象となる画像バックエンドです。
type Backend struct {
	ID     string
	Client ImageClient
}

// RatingSource は選択の重みとなる評価レコードの供給元です。
type RatingSource interface {
	Snapshot() map[string]domain.ModelPerformanceRecord
}

// Synthesizer は物語本文からパネル画像を得る契約です。失敗してもエラーは返さず、劣化結果を返します。
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) domain.ImageResult
}
