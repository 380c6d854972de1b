package config

import (
	"strconv"
	"strings"
	"time"

	storycfg "github.com/shouni/go-story-kit/pkg/config"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultImageBackends     = "gemini"
	DefaultRatingsDB         = "output/ratings.db"
	DefaultOutputDir         = "output"
	DefaultArticleFile       = "examples/article.md"
	DefaultImagePromptSuffix = "storybook illustration, painterly, soft cinematic lighting, rich colors, detailed background, no text, no speech bubbles, high resolution"
)

// 画像バックエンドの識別子なのだ。評価レコードのキーにもなるのだ。
const (
	BackendGemini = "gemini"
	BackendImagen = "imagen"
	BackendOpenAI = "openai"
)

// Config はアプリケーション全体の環境設定（APIキーやクラウド設定）を保持する構造体なのだ。
type Config struct {
	ProjectID    string
	LocationID   string
	GeminiAPIKey string
	OpenAIAPIKey string

	GeminiModel      string
	MetadataModel    string
	GeminiImageModel string
	ImagenModel      string
	OpenAIImageModel string

	// ImageBackends は有効にする画像バックエンドの一覧なのだ（例: gemini,imagen,openai）。
	ImageBackends     []string
	ImagePromptSuffix string
	RatingsDB         string
	MaxPanels         int

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		ProjectID:         envutil.GetEnv("PROJECT_ID", ""),
		LocationID:        envutil.GetEnv("REGION", storycfg.DefaultLocationID),
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:      envutil.GetEnv("OPENAI_API_KEY", ""),
		GeminiModel:       envutil.GetEnv("GEMINI_MODEL", storycfg.DefaultNarrativeModel),
		MetadataModel:     envutil.GetEnv("METADATA_MODEL", storycfg.DefaultMetadataModel),
		GeminiImageModel:  envutil.GetEnv("IMAGE_GEMINI_MODEL", storycfg.DefaultImageGeminiModel),
		ImagenModel:       envutil.GetEnv("IMAGEN_MODEL", storycfg.DefaultImagenModel),
		OpenAIImageModel:  envutil.GetEnv("OPENAI_IMAGE_MODEL", storycfg.DefaultOpenAIImageModel),
		ImageBackends:     SplitList(envutil.GetEnv("IMAGE_BACKENDS", DefaultImageBackends)),
		ImagePromptSuffix: envutil.GetEnv("IMAGE_PROMPT_SUFFIX", DefaultImagePromptSuffix),
		RatingsDB:         envutil.GetEnv("RATINGS_DB", DefaultRatingsDB),
		MaxPanels:         parseInt(envutil.GetEnv("MAX_PANELS", ""), storycfg.DefaultMaxPanels),
	}
	return cfg
}

// StoryConfig は物語生成エンジン向けの設定に変換するのだ。
// CLI フラグで指定された値は環境変数より優先されるのだ。
func (c *Config) StoryConfig() storycfg.Config {
	sc := storycfg.DefaultConfig()
	if c.GeminiModel != "" {
		sc.NarrativeModel = c.GeminiModel
	}
	if c.MetadataModel != "" {
		sc.MetadataModel = c.MetadataModel
	}
	if c.MaxPanels > 0 {
		sc.MaxPanels = c.MaxPanels
	}

	if c.Options.AIModel != "" {
		sc.NarrativeModel = c.Options.AIModel
	}
	if c.Options.MaxPanels > 0 {
		sc.MaxPanels = c.Options.MaxPanels
	}
	if c.Options.Style != "" {
		sc.Style = c.Options.Style
	}
	if c.Options.AspectRatio != "" {
		sc.AspectRatio = c.Options.AspectRatio
	}
	if c.Options.NarrativeTimeout > 0 {
		sc.NarrativeTimeout = c.Options.NarrativeTimeout
	}
	return sc
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// ソース入力関連
	ArticleFile string // --article-file

	// 出力関連
	OutputDir string // --output-dir

	// 物語の制約
	Genre      string // --genre
	Difficulty string // --difficulty
	MaxPanels  int    // --max-panels

	// AI挙動設定
	AIModel     string // --model
	Style       string // --style
	AspectRatio string // --aspect-ratio

	// 実行制御
	Auto             bool          // --auto: 常に最初の選択肢を選ぶのだ
	SkipMetadata     bool          // --skip-metadata
	NarrativeTimeout time.Duration // --narrative-timeout
}

// SplitList はカンマ区切りの文字列を、空要素を除いたスライスにするのだ。
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
