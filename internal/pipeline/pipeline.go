package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shouni/go-story-kit/examples"
	"github.com/shouni/go-story-kit/internal/builder"
	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/workflow"
)

// maxAutoRetries は --auto 実行時に1パネルへ許す再試行回数なのだ。
const maxAutoRetries = 2

// ExecutePlay は、記事を読み込んで物語を1パネルずつ生成し、完結したら保存するのだ。
func ExecutePlay(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	article, err := loadArticle(cfg.Options.ArticleFile)
	if err != nil {
		return err
	}

	p := &Player{
		Manager: appCtx.Manager,
		Options: cfg.Options,
		In:      in,
		Out:     out,
	}
	_, err = p.Play(ctx, article)
	return err
}

// Player は標準入出力を使った対話型のプレイループなのだ。
type Player struct {
	Manager *workflow.Manager
	Options config.GenerateOptions
	In      io.Reader
	Out     io.Writer

	scanner *bufio.Scanner
}

// Play は1つの物語を最後まで進め、保存結果を返すのだ。
func (p *Player) Play(ctx context.Context, article string) (domain.Story, error) {
	p.scanner = bufio.NewScanner(p.In)

	constraints := domain.StructuralConstraints{Genre: p.Options.Genre, Difficulty: p.Options.Difficulty}
	meta, err := p.metadata(ctx, article, constraints)
	if err != nil {
		return domain.Story{}, err
	}
	if meta.Title != "" {
		fmt.Fprintf(p.Out, "\n=== %s ===\n%s\n\n", meta.Title, meta.Tagline)
	}

	session, err := p.Manager.NewSession(workflow.SessionOptions{
		Article:     article,
		Metadata:    meta,
		Constraints: constraints,
		MaxPanels:   p.Options.MaxPanels,
		Model:       p.Options.AIModel,
	})
	if err != nil {
		return domain.Story{}, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}
	slog.Info("物語を開始するのだ！", "session", session.ID(), "max_panels", session.Progress().MaxPanels)

	panel, err := p.withRetry(ctx, session, func() (domain.Panel, error) {
		return session.Start(ctx, p.emit)
	})
	if err != nil {
		return domain.Story{}, err
	}

	for !session.Complete() {
		if panel.Final {
			if err := session.Finish(); err != nil {
				return domain.Story{}, err
			}
			break
		}

		input, quit := p.nextInput(panel)
		if quit {
			slog.Info("途中で終了するのだ", "panels", len(session.Story().Panels))
			break
		}

		next := func() (domain.Panel, error) {
			if id, err := strconv.Atoi(input); err == nil {
				return session.Choose(ctx, id, p.emit)
			}
			return session.Say(ctx, input, p.emit)
		}
		panel, err = p.withRetry(ctx, session, next)
		if errors.Is(err, domain.ErrUnknownOption) {
			fmt.Fprintf(p.Out, "その選択肢はないのだ: %s\n", input)
			continue
		}
		if err != nil {
			return domain.Story{}, err
		}
	}

	story := session.Story()
	if !p.Options.Auto {
		p.collectRatings(ctx, story)
	}
	if err := p.publish(ctx, story); err != nil {
		return story, err
	}
	return story, nil
}

// metadata はメタデータを生成するのだ。制約を満たせなかった場合も最後の結果で続行するのだ。
func (p *Player) metadata(ctx context.Context, article string, c domain.StructuralConstraints) (domain.GameMetadata, error) {
	if p.Options.SkipMetadata {
		return domain.GameMetadata{Genre: c.Genre, Difficulty: c.Difficulty}, nil
	}
	meta, err := p.Manager.GenerateMetadata(ctx, domain.GenerationRequest{SourceText: article, Constraints: c})
	var verr *domain.GenerationValidationError
	if errors.As(err, &verr) {
		slog.Warn("ジャンル制約を満たせなかったため、最後の結果で続行するのだ", "error", verr)
		return meta, nil
	}
	if err != nil {
		return domain.GameMetadata{}, fmt.Errorf("メタデータの生成に失敗しました: %w", err)
	}
	return meta, nil
}

// withRetry はパネル生成を実行し、失敗したら再試行するか読者に確認するのだ。
func (p *Player) withRetry(ctx context.Context, s *workflow.Session, run func() (domain.Panel, error)) (domain.Panel, error) {
	panel, err := run()
	for attempt := 1; err != nil && s.CanRetry(); attempt++ {
		var nerr *domain.NarrativeGenerationError
		if !errors.As(err, &nerr) || ctx.Err() != nil {
			return domain.Panel{}, err
		}
		if p.Options.Auto {
			if attempt > maxAutoRetries {
				return domain.Panel{}, err
			}
		} else {
			fmt.Fprintf(p.Out, "\n生成に失敗したのだ: %v\n再試行しますか？ [Y/n] ", err)
			if ans, ok := p.readLine(); !ok || strings.EqualFold(ans, "n") {
				return domain.Panel{}, err
			}
		}
		slog.Info("パネルを再試行するのだ", "attempt", attempt)
		panel, err = s.Retry(ctx, p.emit)
	}
	return panel, err
}

// nextInput は次の入力を決めるのだ。--auto なら常に 1 番を選ぶのだ。
func (p *Player) nextInput(panel domain.Panel) (string, bool) {
	if p.Options.Auto {
		if len(panel.Options) > 0 {
			return strconv.Itoa(panel.Options[0].ID), false
		}
		return "continue", false
	}
	for {
		fmt.Fprint(p.Out, "\n番号か自由入力で続きを選んでね (q で終了): ")
		line, ok := p.readLine()
		if !ok || line == "q" {
			return "", true
		}
		if line != "" {
			return line, false
		}
	}
}

// collectRatings は各パネルの画像を 1〜5 で評価してもらうのだ。空入力はスキップなのだ。
func (p *Player) collectRatings(ctx context.Context, story domain.Story) {
	for i, panel := range story.Panels {
		if panel.Image.Failed() {
			continue
		}
		fmt.Fprintf(p.Out, "パネル %d の画像 (%s) の評価 [1-5, Enter でスキップ]: ", i+1, panel.Image.BackendID)
		line, ok := p.readLine()
		if !ok {
			return
		}
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(p.Out, "数字で入力してね")
			continue
		}
		if _, err := p.Manager.Rate(ctx, panel.Image.BackendID, n); err != nil {
			fmt.Fprintf(p.Out, "評価を記録できなかったのだ: %v\n", err)
		}
	}
}

func (p *Player) publish(ctx context.Context, story domain.Story) error {
	if len(story.Panels) == 0 || p.Options.OutputDir == "" {
		return nil
	}
	pr, err := p.Manager.BuildPublishRunner()
	if err != nil {
		return err
	}
	res, err := pr.Run(ctx, story, p.Options.OutputDir)
	if err != nil {
		return fmt.Errorf("物語の保存に失敗しました: %w", err)
	}
	fmt.Fprintf(p.Out, "\n物語を保存したのだ: %s\n", res.MarkdownPath)
	return nil
}

// emit はイベントを端末向けに描画するのだ。
func (p *Player) emit(ev domain.Event) {
	switch ev.Kind {
	case domain.EventContent:
		if s, ok := ev.Payload.(string); ok {
			fmt.Fprint(p.Out, s)
		}
	case domain.EventOptions:
		if op, ok := ev.Payload.(domain.OptionsPayload); ok {
			fmt.Fprintln(p.Out)
			for _, o := range op.Options {
				fmt.Fprintf(p.Out, "  %d. %s\n", o.ID, o.Text)
			}
		}
	case domain.EventImage:
		if img, ok := ev.Payload.(domain.ImageResult); ok && img.Failed() {
			fmt.Fprintln(p.Out, "\n(画像なしで続行するのだ)")
		}
	case domain.EventEnd:
		if end, ok := ev.Payload.(domain.EndPayload); ok && end.Final {
			fmt.Fprintln(p.Out, "\n--- THE END ---")
		}
	}
}

func (p *Player) readLine() (string, bool) {
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

// loadArticle は記事ファイルを読み込むのだ。未指定なら同梱のサンプル記事を使うのだ。
func loadArticle(path string) (string, error) {
	if path == "" {
		return examples.Article, nil
	}
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("標準入力の読み込みに失敗しました: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("記事ファイル '%s' の読み込みに失敗しました: %w", path, err)
	}
	return string(b), nil
}
