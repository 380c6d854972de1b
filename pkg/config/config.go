package config

import (
	"time"
)

// デフォルト値の定義
const (
	DefaultLocationID       = "asia-northeast1"
	DefaultNarrativeModel   = "gemini-2.5-flash"
	DefaultMetadataModel    = "gemini-2.5-flash"
	DefaultImageGeminiModel = "gemini-2.5-flash-image"
	DefaultImagenModel      = "imagen-4.0-generate-001"
	DefaultOpenAIImageModel = "gpt-image-1"

	DefaultMaxPanels    = 5
	DefaultMinSentences = 3
	DefaultMaxSentences = 5

	DefaultNarrativeTimeout = 2 * time.Minute
	DefaultImageTimeout     = 90 * time.Second
	DefaultRateInterval     = 2 * time.Second
	DefaultRateBurst        = 2

	DefaultMaxValidationRetries = 2
	DefaultArticleCharLimit     = 12000
	DefaultAspectRatio          = "16:9"
	DefaultStyle                = "cinematic comic illustration, bold ink outlines, painterly colors, dramatic lighting, high detail"
)

// Config は Go Story Kit の各 Runner を動作させるための基本設定です。
type Config struct {
	// --- AI Model Settings ---
	NarrativeModel string
	MetadataModel  string

	// --- Story Settings ---
	MaxPanels    int
	MinSentences int
	MaxSentences int
	LengthUnit   string // "sentences" または "words"
	// ArticleCharLimit は最初のパネルに埋め込む記事の最大文字数（ルーン数）です。
	ArticleCharLimit int
	Temperature      float32

	// --- Image Settings ---
	Style       string
	AspectRatio string
	// RateInterval は画像リクエスト間の最小間隔です。
	RateInterval time.Duration
	RateBurst    int

	// --- Timeout & Retries ---
	NarrativeTimeout     time.Duration
	ImageTimeout         time.Duration
	MaxValidationRetries int
}

// DefaultConfig は推奨されるデフォルト設定を返すヘルパー関数です。
func DefaultConfig() Config {
	return Config{
		NarrativeModel:       DefaultNarrativeModel,
		MetadataModel:        DefaultMetadataModel,
		MaxPanels:            DefaultMaxPanels,
		MinSentences:         DefaultMinSentences,
		MaxSentences:         DefaultMaxSentences,
		LengthUnit:           "sentences",
		ArticleCharLimit:     DefaultArticleCharLimit,
		Temperature:          0.9,
		Style:                DefaultStyle,
		AspectRatio:          DefaultAspectRatio,
		RateInterval:         DefaultRateInterval,
		RateBurst:            DefaultRateBurst,
		NarrativeTimeout:     DefaultNarrativeTimeout,
		ImageTimeout:         DefaultImageTimeout,
		MaxValidationRetries: DefaultMaxValidationRetries,
	}
}
