package narrator

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/shouni/go-story-kit/pkg/adapters"
	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/pacing"
	"github.com/shouni/go-story-kit/pkg/parser"
	"github.com/shouni/go-story-kit/pkg/prompts"
)

// fakeStreamer は決められたチャンクを返し、最後に任意のエラーを返すストリーマーです。
type fakeStreamer struct {
	chunks []string
	err    error
	// block が true の場合、コンテキストが終わるまで待機してからエラーを返す
	block bool
	calls int
	last  adapters.StreamRequest
}

func (f *fakeStreamer) StreamText(ctx context.Context, req adapters.StreamRequest) iter.Seq2[string, error] {
	f.calls++
	f.last = req
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.block {
			<-ctx.Done()
			yield("", ctx.Err())
			return
		}
		if f.err != nil {
			yield("", f.err)
		}
	}
}

func newTestNarrator(t *testing.T, gemini, openai adapters.TextStreamer, opts Options) *Narrator {
	t.Helper()
	pb, err := prompts.NewTextPromptBuilder()
	if err != nil {
		t.Fatalf("NewTextPromptBuilder() error = %v", err)
	}
	n, err := New(pb, gemini, openai, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return n
}

func collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for text, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func TestCompose(t *testing.T) {
	n := newTestNarrator(t, &fakeStreamer{}, nil, Options{})
	base := ComposeInput{
		PanelIndex: 1,
		Model:      "gemini-2.5-flash",
		Article:    "港町で古い灯台が再点灯した。",
		Metadata:   domain.GameMetadata{Title: "The Last Lighthouse", Genre: "mystery", Setting: "a harbor town"},
		Guidance:   pacing.Guide(1, 5),
		Budget:     parser.Budget{Min: 3, Max: 5, Unit: parser.UnitSentences},
	}

	t.Run("最初のパネルは記事を埋め込む", func(t *testing.T) {
		req, err := n.Compose(base)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}
		if !strings.Contains(req.Input, "古い灯台") {
			t.Errorf("記事本文がユーザー発話に含まれていません: %q", req.Input)
		}
		for _, want := range []string{"SCENE RULE", "between 3 and 5 sentences", "PHASE: SETUP", "The Last Lighthouse", "exactly 4 numbered choices"} {
			if !strings.Contains(req.SystemInstruction, want) {
				t.Errorf("システム指示に %q が含まれていません", want)
			}
		}
	})

	t.Run("履歴があれば選択肢を使う", func(t *testing.T) {
		in := base
		in.PanelIndex = 2
		in.History = []domain.Turn{{Role: domain.RoleUser, Text: "x"}, {Role: domain.RoleModel, Text: "y"}}
		in.Choice = "灯台に登る"
		in.Guidance = pacing.Guide(2, 5)
		req, err := n.Compose(in)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}
		if !strings.Contains(req.Input, "The reader chose: 灯台に登る") {
			t.Errorf("選択肢がユーザー発話に含まれていません: %q", req.Input)
		}
		if len(req.History) != 2 {
			t.Errorf("履歴が引き継がれていません: %d", len(req.History))
		}
	})

	t.Run("最終パネルは結末を指示する", func(t *testing.T) {
		in := base
		in.PanelIndex = 5
		in.History = []domain.Turn{{Role: domain.RoleUser, Text: "x"}}
		in.Choice = "扉を開ける"
		in.Guidance = pacing.Guide(5, 5)
		req, err := n.Compose(in)
		if err != nil {
			t.Fatalf("Compose() error = %v", err)
		}
		if !strings.Contains(req.SystemInstruction, "numbered endings") {
			t.Errorf("最終パネルの指示になっていません: %q", req.SystemInstruction)
		}
	})

	t.Run("入力が空ならエラー", func(t *testing.T) {
		in := base
		in.Article = "  "
		if _, err := n.Compose(in); err == nil {
			t.Error("空の入力でエラーが返されませんでした")
		}
	})
}

func TestStream(t *testing.T) {
	t.Run("チャンクを順に返す", func(t *testing.T) {
		fake := &fakeStreamer{chunks: []string{"The tide ", "turns. ", "\n1. Run"}}
		n := newTestNarrator(t, fake, nil, Options{})

		got, err := collect(n.Stream(context.Background(), Request{PanelIndex: 1, Model: "gemini-2.5-flash", Input: "go", SystemInstruction: "sys"}))
		if err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if got != "The tide turns. \n1. Run" {
			t.Errorf("Stream() = %q", got)
		}
		if fake.last.SystemInstruction != "sys" || fake.last.Input != "go" {
			t.Errorf("リクエストが引き渡されていません: %+v", fake.last)
		}
	})

	t.Run("失敗は NarrativeGenerationError になる", func(t *testing.T) {
		cause := errors.New("connection reset")
		n := newTestNarrator(t, &fakeStreamer{chunks: []string{"partial"}, err: cause}, nil, Options{})

		_, err := collect(n.Stream(context.Background(), Request{PanelIndex: 2, Model: "gemini-2.5-flash", Input: "go"}))
		var nerr *domain.NarrativeGenerationError
		if !errors.As(err, &nerr) {
			t.Fatalf("エラー型が違います: %T %v", err, err)
		}
		if nerr.PanelIndex != 2 || !errors.Is(err, cause) {
			t.Errorf("エラー内容が不正です: %+v", nerr)
		}
	})

	t.Run("二度目の走査はエラー", func(t *testing.T) {
		fake := &fakeStreamer{chunks: []string{"a"}}
		n := newTestNarrator(t, fake, nil, Options{})
		seq := n.Stream(context.Background(), Request{PanelIndex: 1, Model: "gemini-2.5-flash", Input: "go"})

		if _, err := collect(seq); err != nil {
			t.Fatalf("1回目でエラー: %v", err)
		}
		_, err := collect(seq)
		if !errors.Is(err, ErrAlreadyConsumed) {
			t.Errorf("2回目は ErrAlreadyConsumed になるべきです: %v", err)
		}
		if fake.calls != 1 {
			t.Errorf("バックエンド呼び出し回数 = %d, want 1", fake.calls)
		}
	})

	t.Run("タイムアウト", func(t *testing.T) {
		n := newTestNarrator(t, &fakeStreamer{block: true}, nil, Options{Timeout: 20 * time.Millisecond})
		_, err := collect(n.Stream(context.Background(), Request{PanelIndex: 1, Model: "gemini-2.5-flash", Input: "go"}))
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("タイムアウトになるべきです: %v", err)
		}
	})

	t.Run("モデル名で振り分ける", func(t *testing.T) {
		gemini := &fakeStreamer{chunks: []string{"g"}}
		openai := &fakeStreamer{chunks: []string{"o"}}
		n := newTestNarrator(t, gemini, openai, Options{})

		got, _ := collect(n.Stream(context.Background(), Request{PanelIndex: 1, Model: "gpt-4o-mini", Input: "go"}))
		if got != "o" || openai.calls != 1 || gemini.calls != 0 {
			t.Errorf("OpenAI に振り分けられていません: got=%q openai=%d gemini=%d", got, openai.calls, gemini.calls)
		}
	})

	t.Run("未設定のバックエンド", func(t *testing.T) {
		n := newTestNarrator(t, &fakeStreamer{}, nil, Options{})
		_, err := collect(n.Stream(context.Background(), Request{PanelIndex: 1, Model: "o3-mini", Input: "go"}))
		var nerr *domain.NarrativeGenerationError
		if !errors.As(err, &nerr) {
			t.Errorf("NarrativeGenerationError になるべきです: %v", err)
		}
	})
}

func TestIsOpenAIModel(t *testing.T) {
	tests := map[string]bool{
		"gpt-4o":           true,
		"GPT-4.1-mini":     true,
		"o3-mini":          true,
		"o1":               true,
		"gemini-2.5-flash": false,
		"omni":             false,
		"":                 false,
	}
	for model, want := range tests {
		if got := IsOpenAIModel(model); got != want {
			t.Errorf("IsOpenAIModel(%q) = %v, want %v", model, got, want)
		}
	}
}
