package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shouni/go-story-kit/pkg/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/gate"
	"github.com/shouni/go-story-kit/pkg/narrator"
	"github.com/shouni/go-story-kit/pkg/pacing"
	"github.com/shouni/go-story-kit/pkg/parser"
	"github.com/shouni/go-story-kit/pkg/runner"
)

// Session は1つの物語の進行を管理します。パネルはセッションごとに厳密に1枚ずつ生成されます。
type Session struct {
	id     string
	cfg    config.Config
	runner PanelRunner
	opts   SessionOptions

	mu      sync.Mutex
	gate    *gate.Gate
	history []domain.Turn
	panels  []domain.Panel
	// pending は失敗したパネルの入力です。nil でなければ Retry で同じ入力を再送できます。
	pending *string
	// busy はパネル生成中に立ちます。生成中は mu を手放すため、入力の排他はこのフラグで行うのだ
	busy bool
}

func newSession(id string, cfg config.Config, pr PanelRunner, opts SessionOptions) (*Session, error) {
	if pr == nil {
		return nil, errors.New("PanelRunner は必須です")
	}
	if strings.TrimSpace(opts.Article) == "" {
		return nil, errors.New("記事本文は必須です")
	}
	if opts.MaxPanels <= 0 {
		opts.MaxPanels = cfg.MaxPanels
	}
	if opts.MaxPanels <= 0 {
		opts.MaxPanels = config.DefaultMaxPanels
	}
	if opts.Model == "" {
		opts.Model = cfg.NarrativeModel
	}
	opts.Article = truncateArticle(opts.Article, cfg.ArticleCharLimit)

	return &Session{
		id:     id,
		cfg:    cfg,
		runner: pr,
		opts:   opts,
		gate:   gate.New(opts.MaxPanels),
	}, nil
}

// ID はセッションの識別子を返します。
func (s *Session) ID() string {
	return s.id
}

// Start は記事から最初のパネルを生成します。
func (s *Session) Start(ctx context.Context, emit domain.Emitter) (domain.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdle(); err != nil {
		return domain.Panel{}, err
	}
	if len(s.panels) > 0 || s.pending != nil {
		return domain.Panel{}, fmt.Errorf("%w: 物語はすでに開始されています", domain.ErrChoiceNotAllowed)
	}
	return s.run(ctx, "", emit)
}

// Choose は直前のパネルで提示された選択肢を選び、次のパネルを生成します。
func (s *Session) Choose(ctx context.Context, optionID int, emit domain.Emitter) (domain.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdle(); err != nil {
		return domain.Panel{}, err
	}
	if len(s.panels) == 0 {
		return domain.Panel{}, fmt.Errorf("%w: 物語が開始されていません", domain.ErrChoiceNotAllowed)
	}
	last := s.panels[len(s.panels)-1]
	if last.Final {
		// 最終パネルの選択肢は結末の分岐であり、続きは生成しない
		return s.advance(ctx, "", emit)
	}
	for _, opt := range last.Options {
		if opt.ID == optionID {
			return s.advance(ctx, opt.Text, emit)
		}
	}
	return domain.Panel{}, fmt.Errorf("%w: %d", domain.ErrUnknownOption, optionID)
}

// Say は自由入力で次のパネルを生成します。
func (s *Session) Say(ctx context.Context, text string, emit domain.Emitter) (domain.Panel, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Panel{}, errors.New("入力が空です")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdle(); err != nil {
		return domain.Panel{}, err
	}
	if len(s.panels) == 0 {
		return domain.Panel{}, fmt.Errorf("%w: 物語が開始されていません", domain.ErrChoiceNotAllowed)
	}
	return s.advance(ctx, text, emit)
}

// Retry は失敗したパネルを同じ入力で生成し直します。それまでの履歴は保持されます。
func (s *Session) Retry(ctx context.Context, emit domain.Emitter) (domain.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkIdle(); err != nil {
		return domain.Panel{}, err
	}
	if s.pending == nil {
		return domain.Panel{}, domain.ErrNothingToRetry
	}
	return s.run(ctx, *s.pending, emit)
}

// Finish は最終パネルの表示を終え、物語を StoryComplete にします。完了済みなら何もしません。
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishLocked()
}

func (s *Session) finishLocked() error {
	if err := s.checkIdle(); err != nil {
		return err
	}
	switch s.gate.State() {
	case gate.StoryComplete:
		return nil
	case gate.PanelReady:
		if !s.gate.Progress().IsFinal() {
			return fmt.Errorf("%w: まだ最終パネルではありません", domain.ErrChoiceNotAllowed)
		}
		_, err := s.gate.Advance()
		return err
	default:
		return fmt.Errorf("%w: state=%s", domain.ErrChoiceNotAllowed, s.gate.State())
	}
}

// advance は表示中のパネルから次のパネルへ進みます。
// 最終パネルでの入力は物語を完結させ、domain.ErrStoryComplete を返します。
func (s *Session) advance(ctx context.Context, input string, emit domain.Emitter) (domain.Panel, error) {
	switch s.gate.State() {
	case gate.StoryComplete:
		return domain.Panel{}, domain.ErrStoryComplete
	case gate.PanelReady:
		if !s.gate.CanAcceptNextChoice() {
			if err := s.finishLocked(); err != nil {
				return domain.Panel{}, err
			}
			return domain.Panel{}, domain.ErrStoryComplete
		}
		if _, err := s.gate.Advance(); err != nil {
			return domain.Panel{}, err
		}
	case gate.AwaitingInput:
		// 失敗したパネルの後は、別の選択肢で生成し直せる
		if s.pending == nil {
			return domain.Panel{}, domain.ErrChoiceNotAllowed
		}
	default:
		return domain.Panel{}, fmt.Errorf("%w: state=%s", domain.ErrChoiceNotAllowed, s.gate.State())
	}
	return s.run(ctx, input, emit)
}

// run は1パネルを生成し、成功した場合のみ履歴とパネル列に積みます。
func (s *Session) run(ctx context.Context, input string, emit domain.Emitter) (domain.Panel, error) {
	idx, err := s.gate.StartPanel()
	if err != nil {
		return domain.Panel{}, err
	}

	req := runner.PanelRequest{
		Compose: narrator.ComposeInput{
			PanelIndex:  idx,
			Model:       s.opts.Model,
			History:     append([]domain.Turn(nil), s.history...),
			Article:     s.opts.Article,
			Choice:      input,
			Metadata:    s.opts.Metadata,
			Constraints: s.opts.Constraints,
			Guidance:    pacing.Guide(idx, s.opts.MaxPanels),
			Budget:      s.budget(),
		},
		Style:       s.cfg.Style,
		AspectRatio: s.cfg.AspectRatio,
	}

	s.busy = true
	res, err := s.runUnlocked(ctx, req, emit)
	s.busy = false
	if err != nil {
		s.pending = &input
		return domain.Panel{}, err
	}

	s.pending = nil
	s.history = append(s.history,
		domain.Turn{Role: domain.RoleUser, Text: res.UserInput},
		domain.Turn{Role: domain.RoleModel, Text: res.Panel.RawText},
	)
	s.panels = append(s.panels, res.Panel)
	return res.Panel, nil
}

// runUnlocked は mu を手放してパネルを生成します。Story などの読み取りは生成中も待たされません。
func (s *Session) runUnlocked(ctx context.Context, req runner.PanelRequest, emit domain.Emitter) (runner.PanelResult, error) {
	s.mu.Unlock()
	defer s.mu.Lock()
	return s.runner.Run(ctx, s.gate, req, emit)
}

// checkIdle はパネル生成中の入力を拒否します。mu を保持した状態で呼び出します。
func (s *Session) checkIdle() error {
	if s.busy {
		return fmt.Errorf("%w: パネルを生成中です", domain.ErrChoiceNotAllowed)
	}
	return nil
}

func (s *Session) budget() parser.Budget {
	unit := parser.Unit(s.cfg.LengthUnit)
	if unit == "" {
		unit = parser.UnitSentences
	}
	return parser.Budget{Min: s.cfg.MinSentences, Max: s.cfg.MaxSentences, Unit: unit}
}

// Story は現在までに完成したパネルのスナップショットを返します。
func (s *Session) Story() domain.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Story{
		Metadata: s.opts.Metadata,
		Panels:   append([]domain.Panel(nil), s.panels...),
	}
}

// SetMetadata は開始前のセッションにメタデータを設定します。
func (s *Session) SetMetadata(meta domain.GameMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy || len(s.panels) > 0 {
		return fmt.Errorf("%w: 開始後はメタデータを変更できません", domain.ErrChoiceNotAllowed)
	}
	s.opts.Metadata = meta
	return nil
}

// State はゲートの現在の状態を返します。
func (s *Session) State() gate.State {
	return s.gate.State()
}

// Progress は物語の進行度を返します。
func (s *Session) Progress() domain.StoryProgress {
	return s.gate.Progress()
}

// CanRetry は失敗したパネルを再試行できるかを返します。
func (s *Session) CanRetry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Complete は物語が完結したかを返します。
func (s *Session) Complete() bool {
	return s.gate.State() == gate.StoryComplete
}

func truncateArticle(article string, limit int) string {
	article = strings.TrimSpace(article)
	if limit <= 0 {
		return article
	}
	r := []rune(article)
	if len(r) <= limit {
		return article
	}
	return string(r[:limit])
}
