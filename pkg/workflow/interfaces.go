package workflow

import (
	"context"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/gate"
	"github.com/shouni/go-story-kit/pkg/publisher"
	"github.com/shouni/go-story-kit/pkg/runner"
)

// Workflow は、物語生成の各工程を担当する Runner を構築するためのインターフェースを定義します。
type Workflow interface {
	BuildMetadataRunner() (MetadataRunner, error)
	BuildPanelRunner() (PanelRunner, error)
	BuildPublishRunner() (PublishRunner, error)
}

// MetadataRunner は、記事からゲームのメタデータを生成する責務を持ちます。
// 制約を満たせなかった場合は、最後の結果と *domain.GenerationValidationError を返します。
type MetadataRunner interface {
	Run(ctx context.Context, req domain.GenerationRequest) (domain.GameMetadata, error)
}

// PanelRunner は、1パネル分の本文と画像を並行に生成し、Gate で合流させる責務を持ちます。
type PanelRunner interface {
	Run(ctx context.Context, g *gate.Gate, req runner.PanelRequest, emit domain.Emitter) (runner.PanelResult, error)
}

// PublishRunner は、完成した物語を Markdown と画像として出力する責務を持ちます。
type PublishRunner interface {
	Run(ctx context.Context, story domain.Story, outputDir string) (publisher.PublishResult, error)
	BuildMarkdown(story domain.Story) string
}
