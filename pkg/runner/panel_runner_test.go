package runner

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shouni/go-story-kit/pkg/config"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/gate"
	"github.com/shouni/go-story-kit/pkg/generator"
	"github.com/shouni/go-story-kit/pkg/narrator"
	"github.com/shouni/go-story-kit/pkg/pacing"
	"github.com/shouni/go-story-kit/pkg/parser"
)

// fakeNarrator は固定のチャンクを返すナレーターです。
type fakeNarrator struct {
	chunks []string
	err    error
}

func (f *fakeNarrator) Compose(in narrator.ComposeInput) (narrator.Request, error) {
	return narrator.Request{PanelIndex: in.PanelIndex, Model: in.Model, Input: "input:" + in.Choice}, nil
}

func (f *fakeNarrator) Stream(_ context.Context, req narrator.Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.err != nil {
			yield("", &domain.NarrativeGenerationError{PanelIndex: req.PanelIndex, Model: req.Model, Err: f.err})
		}
	}
}

// fakeSynth は呼び出しを数え、固定の結果を返す Synthesizer です。
type fakeSynth struct {
	calls  atomic.Int32
	result domain.ImageResult
	got    generator.SynthesisRequest
}

func (f *fakeSynth) Synthesize(_ context.Context, req generator.SynthesisRequest) domain.ImageResult {
	f.calls.Add(1)
	f.got = req
	return f.result
}

// heldSynth は ctx が終わるまで戻らない Synthesizer です。started は呼び出し開始で閉じます。
type heldSynth struct {
	started chan struct{}
	once    sync.Once
}

func (h *heldSynth) Synthesize(ctx context.Context, _ generator.SynthesisRequest) domain.ImageResult {
	h.once.Do(func() { close(h.started) })
	<-ctx.Done()
	return domain.FailedImage(time.Now())
}

// recorder はイベントを記録する Emitter です。
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) emit(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []domain.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (r *recorder) count(kind domain.EventKind) int {
	n := 0
	for _, k := range r.kinds() {
		if k == kind {
			n++
		}
	}
	return n
}

const panelText = "The tide turns. A bell rings. The keeper runs. Gulls scatter.\n\n1. Follow the keeper\n2. Ring the bell\n3. Hide\n4. Call for help"

func panelRequest(index, maxPanels int) PanelRequest {
	return PanelRequest{
		Compose: narrator.ComposeInput{
			PanelIndex: index,
			Model:      "gemini-2.5-flash",
			Choice:     "Ring the bell",
			Metadata:   domain.GameMetadata{Genre: "mystery"},
			Guidance:   pacing.Guide(index, maxPanels),
			Budget:     parser.Budget{Min: 1, Max: 3, Unit: parser.UnitSentences},
		},
		Style: "ink",
	}
}

func TestPanelRunner_Run(t *testing.T) {
	url := "data:image/png;base64,AA=="
	okImage := domain.ImageResult{ImageURL: &url, BackendID: "gemini", GeneratedAt: time.Now()}

	t.Run("本文と画像が揃って PanelReady になる", func(t *testing.T) {
		synth := &fakeSynth{result: okImage}
		r, err := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{chunks: []string{panelText[:20], panelText[20:]}}, synth)
		if err != nil {
			t.Fatalf("NewPanelRunner() error = %v", err)
		}
		g := gate.New(3)
		idx, _ := g.StartPanel()
		rec := &recorder{}

		res, err := r.Run(context.Background(), g, panelRequest(idx, 3), rec.emit)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if g.State() != gate.PanelReady || !g.CanAcceptNextChoice() {
			t.Errorf("state = %s, canAccept = %v", g.State(), g.CanAcceptNextChoice())
		}
		if res.Panel.NarrativeText != "The tide turns. A bell rings. The keeper runs." {
			t.Errorf("長さ制約が適用されていません: %q", res.Panel.NarrativeText)
		}
		if len(res.Panel.Options) != 4 {
			t.Errorf("選択肢の数 = %d, want 4", len(res.Panel.Options))
		}
		if res.UserInput != "input:Ring the bell" || res.Panel.Input != "Ring the bell" {
			t.Errorf("入力が引き継がれていません: %+v", res)
		}
		if synth.got.Narrative != res.Panel.NarrativeText || synth.got.Genre != "mystery" || synth.got.Style != "ink" {
			t.Errorf("画像要求が不正です: %+v", synth.got)
		}

		kinds := rec.kinds()
		if rec.count(domain.EventContent) != 2 || rec.count(domain.EventOptions) != 1 || rec.count(domain.EventImage) != 1 {
			t.Errorf("イベント構成が不正です: %v", kinds)
		}
		if kinds[len(kinds)-1] != domain.EventEnd {
			t.Errorf("最後のイベントは end であるべきです: %v", kinds)
		}
	})

	t.Run("画像の失敗はパネルを止めない", func(t *testing.T) {
		synth := &fakeSynth{result: domain.FailedImage(time.Now())}
		r, _ := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{chunks: []string{panelText}}, synth)
		g := gate.New(3)
		idx, _ := g.StartPanel()

		res, err := r.Run(context.Background(), g, panelRequest(idx, 3), nil)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.Panel.Image.Failed() || res.Panel.Image.BackendID != domain.FailedBackendID {
			t.Errorf("劣化結果になっていません: %+v", res.Panel.Image)
		}
		if g.State() != gate.PanelReady {
			t.Errorf("state = %s, want PanelReady", g.State())
		}
	})

	t.Run("本文の失敗はパネルを破棄する", func(t *testing.T) {
		synth := &fakeSynth{result: okImage}
		r, _ := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{chunks: []string{"partial"}, err: errors.New("reset")}, synth)
		g := gate.New(3)
		idx, _ := g.StartPanel()
		rec := &recorder{}

		_, err := r.Run(context.Background(), g, panelRequest(idx, 3), rec.emit)
		var nerr *domain.NarrativeGenerationError
		if !errors.As(err, &nerr) {
			t.Fatalf("NarrativeGenerationError になるべきです: %v", err)
		}
		if g.State() != gate.AwaitingInput || g.Progress().CurrentPanelIndex != 0 {
			t.Errorf("ゲートが巻き戻っていません: state=%s progress=%+v", g.State(), g.Progress())
		}
		if synth.calls.Load() != 0 {
			t.Errorf("本文が失敗したのに画像が要求されました")
		}
		if rec.count(domain.EventError) != 1 || rec.count(domain.EventEnd) != 0 {
			t.Errorf("イベント構成が不正です: %v", rec.kinds())
		}
	})

	t.Run("空の本文は失敗扱い", func(t *testing.T) {
		r, _ := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{chunks: []string{"1. Run\n2. Hide"}}, &fakeSynth{result: okImage})
		g := gate.New(3)
		idx, _ := g.StartPanel()
		_, err := r.Run(context.Background(), g, panelRequest(idx, 3), nil)
		var nerr *domain.NarrativeGenerationError
		if !errors.As(err, &nerr) {
			t.Fatalf("NarrativeGenerationError になるべきです: %v", err)
		}
		if nerr.PanelIndex != idx {
			t.Errorf("PanelIndex = %d, want %d", nerr.PanelIndex, idx)
		}
		if g.State() != gate.AwaitingInput {
			t.Errorf("state = %s, want AwaitingInput", g.State())
		}
	})

	t.Run("画像生成中のキャンセルでパネルを破棄する", func(t *testing.T) {
		synth := &heldSynth{started: make(chan struct{})}
		r, _ := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{chunks: []string{panelText}}, synth)
		g := gate.New(3)
		idx, _ := g.StartPanel()
		rec := &recorder{}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		go func() {
			_, err := r.Run(ctx, g, panelRequest(idx, 3), rec.emit)
			errCh <- err
		}()

		select {
		case <-synth.started:
		case <-time.After(time.Second):
			t.Fatal("画像生成が開始されませんでした")
		}
		if g.State() != gate.ImagesGenerating {
			t.Fatalf("state = %s, want ImagesGenerating", g.State())
		}
		cancel()

		var err error
		select {
		case err = <-errCh:
		case <-time.After(time.Second):
			t.Fatal("キャンセル後に Run が戻りません")
		}
		var nerr *domain.NarrativeGenerationError
		if !errors.As(err, &nerr) || !errors.Is(err, context.Canceled) {
			t.Fatalf("キャンセル由来の NarrativeGenerationError になるべきです: %v", err)
		}
		if g.State() != gate.AwaitingInput || g.Progress().CurrentPanelIndex != 0 {
			t.Errorf("ゲートが巻き戻っていません: state=%s progress=%+v", g.State(), g.Progress())
		}
		if rec.count(domain.EventImage) != 0 || rec.count(domain.EventEnd) != 0 {
			t.Errorf("キャンセルされたパネルの完了イベントが出ました: %v", rec.kinds())
		}
	})

	t.Run("最終パネルでは選択肢イベントを出さない", func(t *testing.T) {
		r, _ := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{chunks: []string{panelText}}, &fakeSynth{result: okImage})
		g := gate.New(1)
		idx, _ := g.StartPanel()
		rec := &recorder{}

		res, err := r.Run(context.Background(), g, panelRequest(idx, 1), rec.emit)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !res.Panel.Final {
			t.Error("最終パネルとしてマークされていません")
		}
		if rec.count(domain.EventOptions) != 0 {
			t.Errorf("最終パネルで options イベントが出ました: %v", rec.kinds())
		}
		if g.CanAcceptNextChoice() {
			t.Error("最終パネルでは次の選択を受け付けないべきです")
		}
	})

	t.Run("依存関係の検証", func(t *testing.T) {
		if _, err := NewPanelRunner(config.DefaultConfig(), nil, &fakeSynth{}); err == nil {
			t.Error("Narrator が nil でもエラーになりません")
		}
		if _, err := NewPanelRunner(config.DefaultConfig(), &fakeNarrator{}, nil); err == nil {
			t.Error("Synthesizer が nil でもエラーになりません")
		}
	})
}
