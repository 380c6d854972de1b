package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/shouni/go-story-kit/pkg/domain"
)

// Options はパブリッシュ動作を制御する設定項目です。
type Options struct {
	OutputDir string
}

// PublishResult はパブリッシュ処理の結果として生成されたファイルの情報を保持します。
type PublishResult struct {
	MarkdownPath string   // 生成された story.md のパス
	ImagePaths   []string // 保存された画像のパス。画像のないパネルは空文字
}

const (
	defaultStoryFileName = "story.md"
	defaultImageDirName  = "images"
)

// StoryPublisher は物語の成果物をまとめて保存します。
type StoryPublisher struct {
	writer OutputWriter
}

// NewStoryPublisher は StoryPublisher を生成します。
func NewStoryPublisher(writer OutputWriter) (*StoryPublisher, error) {
	if writer == nil {
		return nil, errors.New("OutputWriter は必須です")
	}
	return &StoryPublisher{writer: writer}, nil
}

// Publish は画像の保存と Markdown の構築・保存を一括して実行するのだ。
func (p *StoryPublisher) Publish(ctx context.Context, story domain.Story, opts Options) (PublishResult, error) {
	result := PublishResult{}
	if len(story.Panels) == 0 {
		return result, errors.New("保存するパネルがありません")
	}

	markdownPath, err := ResolveOutputPath(opts.OutputDir, defaultStoryFileName)
	if err != nil {
		return result, err
	}
	result.MarkdownPath = markdownPath

	imgDir, err := ResolveOutputPath(opts.OutputDir, defaultImageDirName)
	if err != nil {
		return result, err
	}

	// Markdown には story.md からの相対パスを書く
	relativePaths := make([]string, len(story.Panels))
	result.ImagePaths = make([]string, len(story.Panels))
	for i, panel := range story.Panels {
		img := panel.Image
		if img.Failed() || len(img.Data) == 0 {
			continue
		}
		fileName := PanelFileName(panel.PanelIndex, img.MimeType)
		fullPath, err := ResolveOutputPath(imgDir, fileName)
		if err != nil {
			return result, err
		}
		if err := p.writer.Write(ctx, fullPath, bytes.NewReader(img.Data), img.MimeType); err != nil {
			return result, fmt.Errorf("第 %d パネルの保存に失敗しました (path: %s): %w", panel.PanelIndex, fullPath, err)
		}
		result.ImagePaths[i] = fullPath
		relativePaths[i] = path.Join(defaultImageDirName, fileName)
	}

	content := BuildMarkdown(story, relativePaths)
	if err := p.writer.Write(ctx, markdownPath, strings.NewReader(content), "text/markdown; charset=utf-8"); err != nil {
		return result, fmt.Errorf("markdownファイルの書き込みに失敗しました: %w", err)
	}

	slog.Info("Story published", "path", markdownPath, "panels", len(story.Panels))
	return result, nil
}
