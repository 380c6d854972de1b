package builder

import (
	"errors"

	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/internal/storage"
	"github.com/shouni/go-story-kit/pkg/workflow"
)

// AppContext は、アプリケーション実行に必要な共通コンテキストを保持する
// これを各コマンドに渡すことで、依存関係の注入を簡素化します。
type AppContext struct {
	Config  *config.Config         // Configは、環境変数から読み込まれたグローバルな設定です（APIキー、プロジェクトIDなど）。
	Options config.GenerateOptions // Optionsは、コマンドラインから渡された実行時の設定です（記事ファイル、モデル名など）。
	Manager *workflow.Manager      // Managerは、セッション生成・画像合成・評価学習を束ねるワークフローです。
	store   *storage.RatingStore   // store は評価レコードの永続化先。RATINGS_DB が空なら nil
}

// NewAppContext は AppContext の新しいインスタンスを生成する
func NewAppContext(cfg *config.Config, manager *workflow.Manager, store *storage.RatingStore) AppContext {
	return AppContext{
		Config:  cfg,
		Options: cfg.Options,
		Manager: manager,
		store:   store,
	}
}

// Close は保持しているリソースを解放します。
func (a *AppContext) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// HasStore は評価が永続化されるかを返します。
func (a *AppContext) HasStore() bool {
	return a.store != nil
}

var errNoTextBackend = errors.New("GEMINI_API_KEY、PROJECT_ID、OPENAI_API_KEY のいずれかを設定してください")
