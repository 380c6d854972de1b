package builder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shouni/go-story-kit/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

func TestBuildImageBackends(t *testing.T) {
	oc := openai.NewClient(option.WithAPIKey("test-key"))

	t.Run("クライアントがないバックエンドは読み飛ばす", func(t *testing.T) {
		cfg := &config.Config{
			ImageBackends:    []string{config.BackendGemini, config.BackendOpenAI},
			OpenAIImageModel: "gpt-image-1",
		}
		backends, err := buildImageBackends(cfg, clients{openai: &oc})
		if err != nil {
			t.Fatalf("buildImageBackends() error = %v", err)
		}
		if len(backends) != 1 || backends[0].ID != config.BackendOpenAI {
			t.Errorf("backends = %+v", backends)
		}
	})

	t.Run("未知のバックエンドはエラー", func(t *testing.T) {
		cfg := &config.Config{ImageBackends: []string{"midjourney"}}
		if _, err := buildImageBackends(cfg, clients{openai: &oc}); err == nil {
			t.Error("エラーが返されませんでした")
		}
	})

	t.Run("有効なバックエンドがなければエラー", func(t *testing.T) {
		cfg := &config.Config{ImageBackends: []string{config.BackendImagen}}
		if _, err := buildImageBackends(cfg, clients{}); err == nil {
			t.Error("エラーが返されませんでした")
		}
	})
}

func TestBuildAppContext_NoCredentials(t *testing.T) {
	cfg := &config.Config{ImageBackends: []string{config.BackendGemini}}
	if _, err := BuildAppContext(context.Background(), cfg); !errors.Is(err, errNoTextBackend) {
		t.Errorf("errNoTextBackend になるべきです: %v", err)
	}
}

func TestBuildAppContext_OpenAIOnly(t *testing.T) {
	cfg := &config.Config{
		OpenAIAPIKey:     "test-key",
		OpenAIImageModel: "dall-e-3",
		ImageBackends:    []string{config.BackendOpenAI},
		RatingsDB:        filepath.Join(t.TempDir(), "db", "ratings.db"),
		MaxPanels:        4,
	}
	appCtx, err := BuildAppContext(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildAppContext() error = %v", err)
	}
	defer appCtx.Close()

	if !appCtx.HasStore() {
		t.Error("評価ストアが開かれていません")
	}
	if ids := appCtx.Manager.BackendIDs(); len(ids) != 1 || ids[0] != config.BackendOpenAI {
		t.Errorf("BackendIDs() = %v", ids)
	}
	if got := appCtx.Manager.Config().MaxPanels; got != 4 {
		t.Errorf("MaxPanels = %d, want 4", got)
	}
}
