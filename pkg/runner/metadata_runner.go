package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shouni/go-story-kit/pkg/adapters"
	"github.com/shouni/go-story-kit/pkg/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/prompts"

	"google.golang.org/genai"
)

var jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")

// MetadataSchema はゲームメタデータの応答スキーマです。形は保証されますが、中身の妥当性は別途検証します。
var MetadataSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":       {Type: genai.TypeString, Description: "Short catchy title"},
		"genre":       {Type: genai.TypeString},
		"tagline":     {Type: genai.TypeString},
		"description": {Type: genai.TypeString},
		"difficulty":  {Type: genai.TypeString, Enum: []string{"easy", "normal", "hard"}},
		"setting":     {Type: genai.TypeString},
	},
	Required:         []string{"title", "genre", "tagline", "description", "difficulty", "setting"},
	PropertyOrdering: []string{"title", "genre", "tagline", "description", "difficulty", "setting"},
}

// MetadataRunner はスキーマ制約付き生成でゲームメタデータを作り、ジャンル制約を検証します。
type MetadataRunner struct {
	cfg           config.Config
	promptBuilder prompts.TextPrompt
	aiClient      adapters.JSONGenerator
}

// NewMetadataRunner は依存関係を注入して初期化します。
func NewMetadataRunner(cfg config.Config, pb prompts.TextPrompt, ai adapters.JSONGenerator) *MetadataRunner {
	return &MetadataRunner{
		cfg:           cfg,
		promptBuilder: pb,
		aiClient:      ai,
	}
}

// Run はメタデータを生成します。
// ジャンルが要求に合わない場合は制約を言い直したプロンプトで最大 MaxValidationRetries 回まで再試行し、
// 使い切った場合は最後の結果と *domain.GenerationValidationError を両方返します。採否は呼び出し側が決めます。
func (mr *MetadataRunner) Run(ctx context.Context, req domain.GenerationRequest) (domain.GameMetadata, error) {
	if strings.TrimSpace(req.SourceText) == "" {
		return domain.GameMetadata{}, errors.New("メタデータ生成の入力テキストが空です")
	}
	model := req.ModelID
	if model == "" {
		model = mr.cfg.MetadataModel
	}
	retries := mr.cfg.MaxValidationRetries
	if retries < 0 {
		retries = 0
	}

	data := prompts.TemplateData{
		InputText:   req.SourceText,
		Constraints: req.Constraints,
	}

	var meta domain.GameMetadata
	attempts := 0
	for attempts <= retries {
		attempts++

		finalPrompt, err := mr.promptBuilder.Build(prompts.ModeMetadata, data)
		if err != nil {
			return domain.GameMetadata{}, fmt.Errorf("プロンプト生成に失敗: %w", err)
		}

		slog.Info("MetadataRunner: Calling model", "model", model, "attempt", attempts)
		raw, err := mr.aiClient.GenerateJSON(ctx, model, finalPrompt, MetadataSchema)
		if err != nil {
			return domain.GameMetadata{}, fmt.Errorf("メタデータ生成に失敗しました: %w", err)
		}

		meta, err = parseMetadata(raw)
		if err != nil {
			return domain.GameMetadata{}, err
		}

		if GenreMatches(req.Constraints.Genre, meta.Genre) {
			return meta, nil
		}

		slog.Warn("MetadataRunner: Genre constraint not satisfied",
			"attempt", attempts,
			"requested", req.Constraints.Genre,
			"returned", meta.Genre,
		)
		data.Amendments = append(data.Amendments, amendment(attempts, req.Constraints.Genre, meta.Genre))
	}

	return meta, &domain.GenerationValidationError{
		Attempts:  attempts,
		Field:     "genre",
		Requested: req.Constraints.Genre,
		Returned:  meta.Genre,
	}
}

// GenreMatches は要求ジャンルと応答ジャンルが大文字小文字を無視して相互に部分一致するかを判定します。
// 要求が空なら常に一致とみなします。
func GenreMatches(requested, returned string) bool {
	want := strings.ToLower(strings.TrimSpace(requested))
	if want == "" {
		return true
	}
	got := strings.ToLower(strings.TrimSpace(returned))
	if got == "" {
		return false
	}
	return strings.Contains(got, want) || strings.Contains(want, got)
}

func amendment(attempt int, requested, returned string) string {
	return fmt.Sprintf(
		"IMPORTANT (correction %d): your previous answer used the genre %q. This is NOT acceptable. The genre field MUST be exactly %q. This constraint is non-negotiable.",
		attempt, returned, requested,
	)
}

func parseMetadata(raw string) (domain.GameMetadata, error) {
	raw = strings.TrimSpace(raw)
	rawJSON := raw

	if matches := jsonBlockRegex.FindStringSubmatch(raw); len(matches) > 1 {
		rawJSON = matches[1]
	} else {
		first := strings.Index(raw, "{")
		last := strings.LastIndex(raw, "}")
		if first != -1 && last > first {
			rawJSON = raw[first : last+1]
		}
	}

	var meta domain.GameMetadata
	if err := json.Unmarshal([]byte(rawJSON), &meta); err != nil {
		return domain.GameMetadata{}, fmt.Errorf("AIからの応答に含まれるJSONの解析に失敗しました (応答抜粋: %q): %w", truncateString(raw, 200), err)
	}
	return meta, nil
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
