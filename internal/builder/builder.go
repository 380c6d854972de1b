package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/internal/storage"
	"github.com/shouni/go-story-kit/pkg/adapters"
	"github.com/shouni/go-story-kit/pkg/feedback"
	"github.com/shouni/go-story-kit/pkg/generator"
	"github.com/shouni/go-story-kit/pkg/workflow"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

// clients はプロセスで共有する外部 API クライアントです。未設定のものは nil になります。
type clients struct {
	gemini *genai.Client
	openai *openai.Client
}

// BuildAppContext は設定からクライアント・画像バックエンド・評価ストアを組み立て、AppContext を返します。
func BuildAppContext(ctx context.Context, cfg *config.Config) (*AppContext, error) {
	cl, err := initializeClients(ctx, cfg)
	if err != nil {
		return nil, err
	}

	args := workflow.ManagerArgs{
		Config:            cfg.StoryConfig(),
		ImagePromptSuffix: cfg.ImagePromptSuffix,
	}
	if cl.gemini != nil {
		gt, err := adapters.NewGeminiTextClient(cl.gemini)
		if err != nil {
			return nil, fmt.Errorf("Gemini テキストクライアントの初期化に失敗しました: %w", err)
		}
		args.GeminiText = gt
		args.JSON = gt
	}
	if cl.openai != nil {
		args.OpenAIText = adapters.NewOpenAITextClient(*cl.openai)
	}

	backends, err := buildImageBackends(cfg, cl)
	if err != nil {
		return nil, err
	}
	args.ImageBackends = backends

	store, err := openRatingStore(cfg.RatingsDB)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(backends))
	for _, b := range backends {
		ids = append(ids, b.ID)
	}
	args.Learner = feedback.NewLearner(ids, ratingStore(store))
	if err := args.Learner.Restore(ctx); err != nil {
		closeStore(store)
		return nil, err
	}

	manager, err := workflow.New(args)
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("ワークフローの初期化に失敗しました: %w", err)
	}

	appCtx := NewAppContext(cfg, manager, store)
	return &appCtx, nil
}

// initializeClients は genai と OpenAI のクライアントを初期化します。
// API キーがあれば Gemini API、なければ PROJECT_ID を使って Vertex AI に接続します。
func initializeClients(ctx context.Context, cfg *config.Config) (clients, error) {
	var cl clients

	switch {
	case cfg.GeminiAPIKey != "":
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return cl, fmt.Errorf("Gemini クライアントの初期化に失敗しました: %w", err)
		}
		cl.gemini = c
	case cfg.ProjectID != "":
		c, err := genai.NewClient(ctx, &genai.ClientConfig{
			Project:  cfg.ProjectID,
			Location: cfg.LocationID,
			Backend:  genai.BackendVertexAI,
		})
		if err != nil {
			return cl, fmt.Errorf("Vertex AI クライアントの初期化に失敗しました: %w", err)
		}
		cl.gemini = c
	}

	if cfg.OpenAIAPIKey != "" {
		c := openai.NewClient(option.WithAPIKey(cfg.OpenAIAPIKey))
		cl.openai = &c
	}

	if cl.gemini == nil && cl.openai == nil {
		return cl, errNoTextBackend
	}
	return cl, nil
}

// buildImageBackends は IMAGE_BACKENDS に列挙された画像バックエンドを構築します。
// クライアントが用意できないバックエンドは警告を出して読み飛ばします。
func buildImageBackends(cfg *config.Config, cl clients) ([]generator.Backend, error) {
	var backends []generator.Backend
	for _, id := range cfg.ImageBackends {
		var (
			client generator.ImageClient
			err    error
		)
		switch id {
		case config.BackendGemini:
			if cl.gemini == nil {
				slog.Warn("Gemini クライアントがないため画像バックエンドを無効化します", "backend", id)
				continue
			}
			client, err = adapters.NewGeminiImageClient(cl.gemini, cfg.GeminiImageModel)
		case config.BackendImagen:
			if cl.gemini == nil {
				slog.Warn("Gemini クライアントがないため画像バックエンドを無効化します", "backend", id)
				continue
			}
			client, err = adapters.NewImagenClient(cl.gemini, cfg.ImagenModel)
		case config.BackendOpenAI:
			if cl.openai == nil {
				slog.Warn("OPENAI_API_KEY がないため画像バックエンドを無効化します", "backend", id)
				continue
			}
			client, err = adapters.NewOpenAIImageClient(*cl.openai, cfg.OpenAIImageModel)
		default:
			return nil, fmt.Errorf("未知の画像バックエンドです: %s", id)
		}
		if err != nil {
			return nil, fmt.Errorf("画像バックエンド %s の初期化に失敗しました: %w", id, err)
		}
		backends = append(backends, generator.Backend{ID: id, Client: client})
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("利用可能な画像バックエンドがありません (IMAGE_BACKENDS=%v)", cfg.ImageBackends)
	}
	return backends, nil
}

func openRatingStore(path string) (*storage.RatingStore, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("評価DBのディレクトリ作成に失敗しました: %w", err)
		}
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("評価DBのオープンに失敗しました: %w", err)
	}
	return store, nil
}

// ratingStore は nil ポインタを nil インターフェースとして渡すためのヘルパーです。
func ratingStore(store *storage.RatingStore) feedback.Store {
	if store == nil {
		return nil
	}
	return store
}

func closeStore(store *storage.RatingStore) {
	if store != nil {
		store.Close()
	}
}
