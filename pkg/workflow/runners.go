package workflow

import (
	"errors"
	"fmt"

	"github.com/shouni/go-story-kit/pkg/publisher"
	"github.com/shouni/go-story-kit/pkg/runner"
)

// BuildMetadataRunner は、メタデータ生成を担当する Runner を作成します。
func (m *Manager) BuildMetadataRunner() (MetadataRunner, error) {
	if m.args.JSON == nil {
		return nil, errors.New("メタデータ生成には JSON 生成クライアントが必要です")
	}
	return runner.NewMetadataRunner(m.cfg, m.textPrompt, m.args.JSON), nil
}

// BuildPanelRunner は、パネル生成を担当する Runner を作成します。
func (m *Manager) BuildPanelRunner() (PanelRunner, error) {
	pr, err := runner.NewPanelRunner(m.cfg, m.narrator, m.synthesizer)
	if err != nil {
		return nil, fmt.Errorf("PanelRunner の初期化に失敗しました: %w", err)
	}
	return pr, nil
}

// BuildPublishRunner は、成果物のパブリッシュを担当する Runner を作成します。
func (m *Manager) BuildPublishRunner() (PublishRunner, error) {
	pub, err := publisher.NewStoryPublisher(m.writer)
	if err != nil {
		return nil, fmt.Errorf("StoryPublisher の初期化に失敗しました: %w", err)
	}
	return runner.NewDefaultPublisherRunner(pub), nil
}
