package runner

import (
	"context"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/publisher"
)

// DefaultPublisherRunner は pkg/publisher を利用した標準実装なのだ。
type DefaultPublisherRunner struct {
	publisher *publisher.StoryPublisher
}

func NewDefaultPublisherRunner(pub *publisher.StoryPublisher) *DefaultPublisherRunner {
	return &DefaultPublisherRunner{
		publisher: pub,
	}
}

func (pr *DefaultPublisherRunner) Run(ctx context.Context, story domain.Story, outputDir string) (publisher.PublishResult, error) {
	opts := publisher.Options{
		OutputDir: outputDir,
	}

	return pr.publisher.Publish(ctx, story, opts)
}

// BuildMarkdown は保存処理を行わず、Markdown 文字列のみを生成して返却します。
// 画像は data URL のまま埋め込むため、Web ハンドラーでのプレビュー表示に使えます。
func (pr *DefaultPublisherRunner) BuildMarkdown(story domain.Story) string {
	paths := make([]string, len(story.Panels))
	for i, p := range story.Panels {
		if p.Image.ImageURL != nil {
			paths[i] = *p.Image.ImageURL
		}
	}
	return publisher.BuildMarkdown(story, paths)
}
