package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shouni/go-story-kit/internal/builder"
	"github.com/shouni/go-story-kit/internal/config"
	"github.com/shouni/go-story-kit/internal/server"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/generator"
	"github.com/shouni/go-story-kit/pkg/publisher"
)

// ExecuteMetadata は記事からメタデータだけを生成し、JSON で出力するのだ。
func ExecuteMetadata(ctx context.Context, cfg *config.Config, out io.Writer) error {
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	article, err := loadArticle(cfg.Options.ArticleFile)
	if err != nil {
		return err
	}

	meta, err := appCtx.Manager.GenerateMetadata(ctx, domain.GenerationRequest{
		SourceText:  article,
		Constraints: domain.StructuralConstraints{Genre: cfg.Options.Genre, Difficulty: cfg.Options.Difficulty},
	})
	var verr *domain.GenerationValidationError
	if err != nil && !errors.As(err, &verr) {
		return fmt.Errorf("メタデータの生成に失敗しました: %w", err)
	}
	if verr != nil {
		slog.Warn("ジャンル制約を満たせなかったのだ", "error", verr)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

// ExecuteImage は物語とは独立に1枚の画像を生成して保存するのだ。
func ExecuteImage(ctx context.Context, cfg *config.Config, narrative string) (string, error) {
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer appCtx.Close()

	res := appCtx.Manager.Synthesize(ctx, generator.SynthesisRequest{
		Narrative: narrative,
		Genre:     cfg.Options.Genre,
		Style:     cfg.Options.Style,
	})
	if res.Failed() {
		return "", errors.New("すべての画像バックエンドで生成に失敗したのだ")
	}

	path, err := publisher.ResolveOutputPath(cfg.Options.OutputDir, publisher.PanelFileName(1, res.MimeType))
	if err != nil {
		return "", err
	}
	if err := publisher.NewLocalWriter().Write(ctx, path, bytes.NewReader(res.Data), res.MimeType); err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}
	slog.Info("画像を保存したのだ", "path", path, "backend", res.BackendID)
	return path, nil
}

// ExecuteRate は画像バックエンドへの評価を1件記録するのだ。
func ExecuteRate(ctx context.Context, cfg *config.Config, backendID string, rating int, out io.Writer) error {
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	if !appCtx.HasStore() {
		slog.Warn("RATINGS_DB が未設定のため、評価はこのプロセス内でしか保持されないのだ")
	}
	rec, err := appCtx.Manager.Rate(ctx, backendID, rating)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s: %.2f (%d 件)\n", rec.BackendID, rec.RunningAverageScore, rec.RatingCount)
	return nil
}

// ExecuteRatings は評価レコードの一覧を出力するのだ。
func ExecuteRatings(ctx context.Context, cfg *config.Config, out io.Writer) error {
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	records := appCtx.Manager.Ratings()
	if len(records) == 0 {
		fmt.Fprintln(out, "評価はまだないのだ")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%-10s %.2f (%d 件)\n", rec.BackendID, rec.RunningAverageScore, rec.RatingCount)
	}
	return nil
}

// ExecuteServe は HTTP サーバーを起動し、ctx がキャンセルされるまで待つのだ。
func ExecuteServe(ctx context.Context, cfg *config.Config, srvCfg server.Config) error {
	appCtx, err := builder.BuildAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	srv, err := server.New(srvCfg, appCtx.Manager)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
