package runner

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-story-kit/pkg/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/gate"
	"github.com/shouni/go-story-kit/pkg/generator"
	"github.com/shouni/go-story-kit/pkg/narrator"
	"github.com/shouni/go-story-kit/pkg/parser"

	"golang.org/x/sync/errgroup"
)

// Narrator はパネル本文のストリーミング生成を行う契約です。
type Narrator interface {
	Compose(in narrator.ComposeInput) (narrator.Request, error)
	Stream(ctx context.Context, req narrator.Request) iter.Seq2[string, error]
}

// PanelRequest は1パネル分の生成要求です。Compose.PanelIndex と Compose.Guidance は呼び出し側で決めます。
type PanelRequest struct {
	Compose     narrator.ComposeInput
	Style       string
	AspectRatio string
}

// PanelResult は PanelReady に到達したパネルと、履歴に積むべきユーザー発話です。
type PanelResult struct {
	Panel     domain.Panel
	UserInput string
}

// PanelRunner は本文と画像を並行に生成し、Gate で合流させます。
type PanelRunner struct {
	cfg         config.Config
	narrator    Narrator
	synthesizer generator.Synthesizer
}

// NewPanelRunner は依存関係を注入して初期化します。
func NewPanelRunner(cfg config.Config, n Narrator, s generator.Synthesizer) (*PanelRunner, error) {
	if n == nil {
		return nil, errors.New("Narrator は必須です")
	}
	if s == nil {
		return nil, errors.New("Synthesizer は必須です")
	}
	return &PanelRunner{cfg: cfg, narrator: n, synthesizer: s}, nil
}

// Run は1パネルを生成します。g は StartPanel 済みである必要があります。
// 本文の生成に失敗した場合はパネルを破棄して g.Abort() を呼び、エラーを返します。
// 画像の失敗はエラーにならず、画像なしのパネルとして完了します。
func (r *PanelRunner) Run(ctx context.Context, g *gate.Gate, req PanelRequest, emit domain.Emitter) (PanelResult, error) {
	if emit == nil {
		emit = domain.Discard
	}
	send := lockedEmitter(emit)
	panelIndex := req.Compose.PanelIndex
	final := req.Compose.Guidance.Final
	logger := slog.With("panel", panelIndex, "final", final)

	req.Compose.Budget = r.budget(req.Compose.Budget)
	nreq, err := r.narrator.Compose(req.Compose)
	if err != nil {
		g.Abort()
		send(domain.Event{Kind: domain.EventError, Payload: domain.ErrorPayload{PanelIndex: panelIndex, Message: err.Error()}})
		return PanelResult{}, err
	}

	var (
		draft = domain.PanelDraft{PanelIndex: panelIndex}
		image domain.ImageResult
	)
	textCh := make(chan string, 1)
	eg, egCtx := errgroup.WithContext(ctx)
	startTime := time.Now()

	// 本文: ストリームを読み切り、長さ制約と選択肢解析を通してから TextReady を通知する
	eg.Go(func() error {
		var sb strings.Builder
		for chunk, err := range r.narrator.Stream(egCtx, nreq) {
			if err != nil {
				return err
			}
			sb.WriteString(chunk)
			send(domain.Event{Kind: domain.EventContent, Payload: chunk})
		}
		draft.RawText = sb.String()

		enforced := parser.EnforceLength(draft.RawText, req.Compose.Budget)
		narrative, _, _ := parser.SplitNarrative(enforced)
		draft.NarrativeText = strings.TrimSpace(narrative)
		draft.Options = parser.ParseOptions(enforced)
		draft.IsTextComplete = true

		if draft.NarrativeText == "" {
			return &domain.NarrativeGenerationError{PanelIndex: panelIndex, Model: nreq.Model, Err: errors.New("本文が空でした")}
		}

		g.MarkTextReady()
		logger.Info("Panel text ready", "options", len(draft.Options), "duration", time.Since(startTime).Round(time.Millisecond))
		if !final {
			send(domain.Event{Kind: domain.EventOptions, Payload: domain.OptionsPayload{
				PanelIndex:    panelIndex,
				NarrativeText: draft.NarrativeText,
				Options:       draft.Options,
			}})
		}
		textCh <- draft.NarrativeText
		return nil
	})

	// 画像: 本文が確定した直後に開始する。失敗は劣化結果として吸収し、エラーは返さない
	eg.Go(func() error {
		var narrative string
		select {
		case narrative = <-textCh:
		case <-egCtx.Done():
			return nil
		}

		g.MarkImagesStarted()
		image = r.synthesizer.Synthesize(egCtx, generator.SynthesisRequest{
			Narrative:   narrative,
			Genre:       req.Compose.Metadata.Genre,
			Style:       req.Style,
			AspectRatio: req.AspectRatio,
		})
		if egCtx.Err() != nil {
			return nil
		}
		g.MarkImagesReady()
		send(domain.Event{Kind: domain.EventImage, Payload: image})
		return nil
	})

	if err := eg.Wait(); err != nil {
		g.Abort()
		logger.Warn("Panel generation failed", "error", err)
		send(domain.Event{Kind: domain.EventError, Payload: domain.ErrorPayload{PanelIndex: panelIndex, Message: err.Error(), Retryable: true}})
		return PanelResult{}, err
	}
	// 本文は成功したが呼び出し元がキャンセルした場合、画像側は合流しないまま終わる
	if g.State() != gate.PanelReady {
		g.Abort()
		cause := ctx.Err()
		if cause == nil {
			cause = errors.New("画像側が合流しませんでした")
		}
		return PanelResult{}, &domain.NarrativeGenerationError{PanelIndex: panelIndex, Model: nreq.Model, Err: cause}
	}

	logger.Info("Panel ready", "backend_id", image.BackendID, "image", !image.Failed(), "duration", time.Since(startTime).Round(time.Millisecond))
	send(domain.Event{Kind: domain.EventEnd, Payload: domain.EndPayload{
		PanelIndex:          panelIndex,
		Final:               final,
		CanAcceptNextChoice: g.CanAcceptNextChoice(),
	}})

	return PanelResult{
		Panel: domain.Panel{
			PanelDraft: draft,
			Image:      image,
			Input:      req.Compose.Choice,
			Final:      final,
		},
		UserInput: nreq.Input,
	}, nil
}

func (r *PanelRunner) budget(b parser.Budget) parser.Budget {
	if b.Max > 0 {
		return b
	}
	return parser.Budget{
		Min:  r.cfg.MinSentences,
		Max:  r.cfg.MaxSentences,
		Unit: parser.Unit(r.cfg.LengthUnit),
	}
}

// lockedEmitter は複数のゴルーチンから呼ばれる Emitter を直列化します。
func lockedEmitter(emit domain.Emitter) domain.Emitter {
	var mu sync.Mutex
	return func(ev domain.Event) {
		mu.Lock()
		defer mu.Unlock()
		emit(ev)
	}
}
