package workflow

import (
	"github.com/shouni/go-story-kit/pkg/adapters"
	"github.com/shouni/go-story-kit/pkg/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/feedback"
	"github.com/shouni/go-story-kit/pkg/generator"
	"github.com/shouni/go-story-kit/pkg/prompts"
	"github.com/shouni/go-story-kit/pkg/publisher"
)

// ManagerArgs は Manager の初期化に必要な依存関係です。
type ManagerArgs struct {
	Config config.Config

	// GeminiText と OpenAIText のどちらか一方は必須です。
	GeminiText adapters.TextStreamer
	OpenAIText adapters.TextStreamer
	// JSON はメタデータ生成に使います。nil の場合 GenerateMetadata はエラーになります。
	JSON adapters.JSONGenerator

	ImageBackends []generator.Backend
	// Learner が nil の場合は永続化なしの Learner を作成します。
	Learner *feedback.Learner
	// Writer が nil の場合はローカルファイルに書き出します。
	Writer publisher.OutputWriter

	TextPrompt        prompts.TextPrompt
	ImagePrompt       prompts.ImagePrompt
	ImagePromptSuffix string

	// Random は画像バックエンド選択の乱数源です。テストで差し替えます。
	Random func() float64
}

// SessionOptions は1つの物語セッションの設定です。
type SessionOptions struct {
	// Article は最初のパネルの元になる記事本文です。
	Article     string
	Metadata    domain.GameMetadata
	Constraints domain.StructuralConstraints
	// MaxPanels が 0 以下なら Config.MaxPanels を使います。
	MaxPanels int
	// Model が空なら Config.NarrativeModel を使います。
	Model string
}
