package prompts

import (
	_ "embed"

	"github.com/shouni/go-story-kit/pkg/domain"
)

const (
	ModeNarrator = "narrator"
	ModeOpening  = "opening"
	ModeChoice   = "choice"
	ModeMetadata = "metadata"
)

// TemplateData はプロンプトテンプレートに渡すデータ構造です。
type TemplateData struct {
	// InputText は記事本文、または読者の入力です。
	InputText   string
	Metadata    domain.GameMetadata
	Constraints domain.StructuralConstraints

	// ナレーター用
	Guidance    string
	Final       bool
	ChoiceCount int
	MinLength   int
	MaxLength   int
	LengthUnit  string

	// Amendments は再試行時に追記する制約の言い直しです。
	Amendments []string
}

var (
	//go:embed narrator.md
	NarratorPrompt string
	//go:embed opening.md
	OpeningPrompt string
	//go:embed choice.md
	ChoicePrompt string
	//go:embed metadata.md
	MetadataPrompt string
)

// allTemplates はモードとテンプレート文字列を紐づけるマップなのだ。
var allTemplates = map[string]string{
	ModeNarrator: NarratorPrompt,
	ModeOpening:  OpeningPrompt,
	ModeChoice:   ChoicePrompt,
	ModeMetadata: MetadataPrompt,
}
