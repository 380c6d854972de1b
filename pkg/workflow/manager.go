package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/shouni/go-story-kit/pkg/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/feedback"
	"github.com/shouni/go-story-kit/pkg/generator"
	"github.com/shouni/go-story-kit/pkg/narrator"
	"github.com/shouni/go-story-kit/pkg/prompts"
	"github.com/shouni/go-story-kit/pkg/publisher"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Manager は、ワークフローの各工程を担う Runner 群を構築・管理します。
// Learner と画像キャッシュはすべてのセッションで共有されます。
type Manager struct {
	cfg         config.Config
	args        ManagerArgs
	textPrompt  prompts.TextPrompt
	learner     *feedback.Learner
	synthesizer *generator.ImageSynthesizer
	narrator    *narrator.Narrator
	writer      publisher.OutputWriter
}

// New は、設定とバックエンドを基に新しい Manager を初期化します。
func New(args ManagerArgs) (*Manager, error) {
	if args.GeminiText == nil && args.OpenAIText == nil {
		return nil, errors.New("テキスト生成クライアントは必須です")
	}
	if len(args.ImageBackends) == 0 {
		return nil, errors.New("画像バックエンドは必須です")
	}

	tPrompt, err := initializeTextPrompt(args.TextPrompt)
	if err != nil {
		return nil, err
	}
	iPrompt := initializeImagePrompt(args.ImagePrompt, args.ImagePromptSuffix)

	ids := make([]string, 0, len(args.ImageBackends))
	for _, b := range args.ImageBackends {
		ids = append(ids, b.ID)
	}
	learner := args.Learner
	if learner == nil {
		learner = feedback.NewLearner(ids, nil)
	}

	cfg := args.Config
	var limiter *rate.Limiter
	if cfg.RateInterval > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(cfg.RateInterval), burst)
	}

	synth, err := generator.NewImageSynthesizer(args.ImageBackends, learner, iPrompt, generator.Options{
		Timeout: cfg.ImageTimeout,
		Limiter: limiter,
		Random:  args.Random,
	})
	if err != nil {
		return nil, fmt.Errorf("ImageSynthesizer の初期化に失敗しました: %w", err)
	}

	opts := narrator.Options{Timeout: cfg.NarrativeTimeout}
	if cfg.Temperature > 0 {
		t := cfg.Temperature
		opts.Temperature = &t
	}
	n, err := narrator.New(tPrompt, args.GeminiText, args.OpenAIText, opts)
	if err != nil {
		return nil, fmt.Errorf("Narrator の初期化に失敗しました: %w", err)
	}

	writer := args.Writer
	if writer == nil {
		writer = publisher.NewLocalWriter()
	}

	return &Manager{
		cfg:         cfg,
		args:        args,
		textPrompt:  tPrompt,
		learner:     learner,
		synthesizer: synth,
		narrator:    n,
		writer:      writer,
	}, nil
}

// NewSession は新しい物語セッションを作成します。
func (m *Manager) NewSession(opts SessionOptions) (*Session, error) {
	pr, err := m.BuildPanelRunner()
	if err != nil {
		return nil, err
	}
	return newSession(uuid.NewString(), m.cfg, pr, opts)
}

// GenerateMetadata は記事からゲームのメタデータを生成します。
func (m *Manager) GenerateMetadata(ctx context.Context, req domain.GenerationRequest) (domain.GameMetadata, error) {
	mr, err := m.BuildMetadataRunner()
	if err != nil {
		return domain.GameMetadata{}, err
	}
	return mr.Run(ctx, req)
}

// Rate はバックエンドへの評価を記録し、更新後のレコードを返します。
func (m *Manager) Rate(ctx context.Context, backendID string, rating int) (domain.ModelPerformanceRecord, error) {
	return m.learner.Rate(ctx, backendID, rating)
}

// Ratings は全バックエンドの評価レコードを返します。
func (m *Manager) Ratings() []domain.ModelPerformanceRecord {
	return m.learner.Records()
}

// BackendIDs は設定済みの画像バックエンド ID を返します。
func (m *Manager) BackendIDs() []string {
	return m.synthesizer.BackendIDs()
}

// Synthesize は物語とは独立に1枚の画像を生成します。
func (m *Manager) Synthesize(ctx context.Context, req generator.SynthesisRequest) domain.ImageResult {
	if req.Style == "" {
		req.Style = m.cfg.Style
	}
	if req.AspectRatio == "" {
		req.AspectRatio = m.cfg.AspectRatio
	}
	return m.synthesizer.Synthesize(ctx, req)
}

// Config は Manager の設定を返します。
func (m *Manager) Config() config.Config {
	return m.cfg
}

// initializeTextPrompt は TextPrompt ビルダーを初期化します。
// 引数として既存のビルダーが渡された場合はそれを返し、nil の場合は新規作成します。
func initializeTextPrompt(textPrompt prompts.TextPrompt) (prompts.TextPrompt, error) {
	if textPrompt != nil {
		return textPrompt, nil
	}

	pb, err := prompts.NewTextPromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("TextPromptBuilder の新規作成に失敗しました: %w", err)
	}

	return pb, nil
}

// initializeImagePrompt は ImagePromptBuilder を初期化します。
func initializeImagePrompt(imagePrompt prompts.ImagePrompt, suffix string) prompts.ImagePrompt {
	if imagePrompt != nil {
		return imagePrompt
	}

	return prompts.NewImagePromptBuilder(suffix)
}
