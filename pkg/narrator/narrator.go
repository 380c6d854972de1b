// Package narrator は、1パネル分の物語テキストをストリーミングで生成します。
package narrator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shouni/go-story-kit/pkg/adapters"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/pacing"
	"github.com/shouni/go-story-kit/pkg/parser"
	"github.com/shouni/go-story-kit/pkg/prompts"
)

// DefaultTimeout はストリーム全体に許す時間です。
const DefaultTimeout = 2 * time.Minute

// ErrAlreadyConsumed は同じストリームを2回走査しようとした場合に返されます。
var ErrAlreadyConsumed = errors.New("ストリームはすでに読み出されています")

// Options は Narrator の挙動を調整します。
type Options struct {
	Timeout         time.Duration
	Temperature     *float32
	MaxOutputTokens int32
}

// ComposeInput はプロンプト組み立ての材料です。
type ComposeInput struct {
	PanelIndex int
	Model      string
	History    []domain.Turn
	// Article は履歴が空（最初のパネル）のときに使う元記事です。
	Article string
	// Choice は読者が選んだ選択肢の本文、または自由入力です。
	Choice      string
	Metadata    domain.GameMetadata
	Constraints domain.StructuralConstraints
	Guidance    pacing.Guidance
	Budget      parser.Budget
}

// Request はストリーミング1回分の入力です。Input は履歴にそのまま積める完成済みのユーザー発話です。
type Request struct {
	PanelIndex        int
	Model             string
	History           []domain.Turn
	Input             string
	SystemInstruction string
}

// Narrator はモデル名に応じてバックエンドを振り分け、テキストの差分を逐次返します。
type Narrator struct {
	prompt  prompts.TextPrompt
	gemini  adapters.TextStreamer
	openai  adapters.TextStreamer
	timeout time.Duration
	opts    Options
}

// New は Narrator を生成します。openai は nil でも構いません（その場合 OpenAI 系モデルは使えません）。
func New(prompt prompts.TextPrompt, gemini, openai adapters.TextStreamer, opts Options) (*Narrator, error) {
	if prompt == nil {
		return nil, errors.New("TextPrompt は必須です")
	}
	if gemini == nil && openai == nil {
		return nil, errors.New("テキストバックエンドを1つ以上指定してください")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Narrator{
		prompt:  prompt,
		gemini:  gemini,
		openai:  openai,
		timeout: timeout,
		opts:    opts,
	}, nil
}

// Compose はシステム指示（場面ルール・長さ・ペース配分）とユーザー発話を組み立てます。
func (n *Narrator) Compose(in ComposeInput) (Request, error) {
	unit := in.Budget.Unit
	if unit == "" {
		unit = parser.UnitSentences
	}
	data := prompts.TemplateData{
		Metadata:    in.Metadata,
		Constraints: in.Constraints,
		Guidance:    in.Guidance.Text,
		Final:       in.Guidance.Final,
		ChoiceCount: in.Guidance.ChoiceCount,
		MinLength:   in.Budget.Min,
		MaxLength:   in.Budget.Max,
		LengthUnit:  string(unit),
	}

	system, err := n.prompt.Build(prompts.ModeNarrator, data)
	if err != nil {
		return Request{}, fmt.Errorf("システム指示の構築に失敗しました: %w", err)
	}

	mode := prompts.ModeChoice
	data.InputText = in.Choice
	if len(in.History) == 0 {
		mode = prompts.ModeOpening
		data.InputText = in.Article
	}
	if strings.TrimSpace(data.InputText) == "" {
		return Request{}, fmt.Errorf("パネル %d の入力が空です", in.PanelIndex)
	}
	input, err := n.prompt.Build(mode, data)
	if err != nil {
		return Request{}, fmt.Errorf("ユーザープロンプトの構築に失敗しました: %w", err)
	}

	return Request{
		PanelIndex:        in.PanelIndex,
		Model:             in.Model,
		History:           in.History,
		Input:             input,
		SystemInstruction: system,
	}, nil
}

// Stream は1回のストリーミング呼び出しを行い、テキスト差分を順に返します。
// 返されるシーケンスは一度しか走査できません。失敗やタイムアウトは *domain.NarrativeGenerationError として最後に返ります。
func (n *Narrator) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	var consumed atomic.Bool
	return func(yield func(string, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield("", n.fail(req, ErrAlreadyConsumed))
			return
		}

		streamer, err := n.route(req.Model)
		if err != nil {
			yield("", n.fail(req, err))
			return
		}

		streamCtx, cancel := context.WithTimeout(ctx, n.timeout)
		defer cancel()

		logger := slog.With("panel", req.PanelIndex, "model", req.Model)
		logger.Info("Starting narrative stream")
		startTime := time.Now()
		chunks := 0

		for text, err := range streamer.StreamText(streamCtx, adapters.StreamRequest{
			Model:             req.Model,
			SystemInstruction: req.SystemInstruction,
			History:           req.History,
			Input:             req.Input,
			Temperature:       n.opts.Temperature,
			MaxOutputTokens:   n.opts.MaxOutputTokens,
		}) {
			if err != nil {
				logger.Warn("Narrative stream failed", "error", err, "chunks", chunks, "duration", time.Since(startTime).Round(time.Millisecond))
				yield("", n.fail(req, err))
				return
			}
			// 上流が黙って打ち切った場合もタイムアウトとして扱う
			if streamCtx.Err() != nil {
				yield("", n.fail(req, streamCtx.Err()))
				return
			}
			chunks++
			if !yield(text, nil) {
				return
			}
		}

		if err := streamCtx.Err(); err != nil {
			yield("", n.fail(req, err))
			return
		}
		logger.Info("Narrative stream completed", "chunks", chunks, "duration", time.Since(startTime).Round(time.Millisecond))
	}
}

func (n *Narrator) fail(req Request, err error) error {
	return &domain.NarrativeGenerationError{PanelIndex: req.PanelIndex, Model: req.Model, Err: err}
}

// route はモデル名から使用するストリーマーを決めます。
func (n *Narrator) route(model string) (adapters.TextStreamer, error) {
	if model == "" {
		return nil, errors.New("モデル名は必須です")
	}
	if IsOpenAIModel(model) {
		if n.openai == nil {
			return nil, fmt.Errorf("OpenAI のモデル %q が指定されましたが OpenAI クライアントが未設定です", model)
		}
		return n.openai, nil
	}
	if n.gemini == nil {
		return nil, fmt.Errorf("Gemini のモデル %q が指定されましたが Gemini クライアントが未設定です", model)
	}
	return n.gemini, nil
}

// IsOpenAIModel は OpenAI 系のモデル名（gpt-*, o1, o3 など）かどうかを判定します。
func IsOpenAIModel(model string) bool {
	m := strings.ToLower(model)
	if strings.HasPrefix(m, "gpt-") || strings.HasPrefix(m, "chatgpt-") {
		return true
	}
	return len(m) >= 2 && m[0] == 'o' && m[1] >= '0' && m[1] <= '9'
}
