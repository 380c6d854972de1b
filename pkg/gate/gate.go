// Package gate は、1パネル分の「本文完了」と「画像完了」という独立した2つの通知を
// 1回きりの PanelReady 遷移にまとめる状態機械を提供します。
package gate

import (
	"fmt"
	"sync"

	"github.com/shouni/go-story-kit/pkg/domain"
)

// State はゲートの状態です。
type State int

const (
	AwaitingInput State = iota
	TextStreaming
	TextReady
	ImagesGenerating
	PanelReady
	StoryComplete
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "AwaitingInput"
	case TextStreaming:
		return "TextStreaming"
	case TextReady:
		return "TextReady"
	case ImagesGenerating:
		return "ImagesGenerating"
	case PanelReady:
		return "PanelReady"
	case StoryComplete:
		return "StoryComplete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Gate はセッションごとのパネル進行を管理します。すべてのメソッドは並行に呼び出せます。
type Gate struct {
	mu            sync.Mutex
	state         State
	readiness     domain.PanelReadiness
	imagesStarted bool
	progress      domain.StoryProgress
	ready         chan struct{}
	readyCount    int
}

// New は最大パネル数を指定して Gate を生成します。
func New(maxPanels int) *Gate {
	if maxPanels < 1 {
		maxPanels = 1
	}
	return &Gate{
		state:    AwaitingInput,
		progress: domain.StoryProgress{MaxPanels: maxPanels},
		ready:    make(chan struct{}),
	}
}

// StartPanel は次のパネルの生成を開始し、そのパネル番号（1始まり）を返します。
func (g *Gate) StartPanel() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case AwaitingInput:
	case StoryComplete:
		return 0, domain.ErrStoryComplete
	default:
		return 0, fmt.Errorf("%w: state=%s", domain.ErrChoiceNotAllowed, g.state)
	}
	if g.progress.CurrentPanelIndex >= g.progress.MaxPanels {
		return 0, domain.ErrStoryComplete
	}

	g.progress.CurrentPanelIndex++
	g.readiness = domain.PanelReadiness{}
	g.imagesStarted = false
	g.ready = make(chan struct{})
	g.state = TextStreaming
	return g.progress.CurrentPanelIndex, nil
}

// MarkTextReady は本文の完了を記録します。この呼び出しで PanelReady に到達した場合のみ true を返します。
func (g *Gate) MarkTextReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inFlight() || g.readiness.TextReady {
		return false
	}
	g.readiness.TextReady = true
	return g.settle()
}

// MarkImagesStarted は画像生成の開始を記録します。
func (g *Gate) MarkImagesStarted() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inFlight() {
		return
	}
	g.imagesStarted = true
	g.settle()
}

// MarkImagesReady は画像の完了（失敗による劣化結果を含む）を記録します。
// この呼び出しで PanelReady に到達した場合のみ true を返します。
func (g *Gate) MarkImagesReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inFlight() || g.readiness.ImagesReady {
		return false
	}
	g.imagesStarted = true
	g.readiness.ImagesReady = true
	return g.settle()
}

// settle はフラグから状態を導きます。PanelReady への遷移は1パネルにつき1回だけ起こります。
func (g *Gate) settle() bool {
	if g.readiness.Ready() {
		g.state = PanelReady
		g.readyCount++
		close(g.ready)
		return true
	}
	switch {
	case g.readiness.TextReady && g.imagesStarted:
		g.state = ImagesGenerating
	case g.readiness.TextReady:
		g.state = TextReady
	default:
		g.state = TextStreaming
	}
	return false
}

func (g *Gate) inFlight() bool {
	switch g.state {
	case TextStreaming, TextReady, ImagesGenerating:
		return true
	default:
		return false
	}
}

// Abort は生成中のパネルを破棄し、同じパネル番号から再試行できる状態に戻します。
func (g *Gate) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.inFlight() {
		return
	}
	g.progress.CurrentPanelIndex--
	g.readiness = domain.PanelReadiness{}
	g.imagesStarted = false
	g.state = AwaitingInput
}

// CanAcceptNextChoice は次の選択を受け付けられるかを返します。
// PanelReady に達するまで、また最終パネルでは常に false です。
func (g *Gate) CanAcceptNextChoice() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == PanelReady && !g.progress.IsFinal()
}

// Advance は表示済みのパネルから次へ進みます。
// 最終パネルでは StoryComplete に、それ以外では AwaitingInput に遷移します。
func (g *Gate) Advance() (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == StoryComplete {
		return g.state, domain.ErrStoryComplete
	}
	if g.state != PanelReady {
		return g.state, fmt.Errorf("%w: state=%s", domain.ErrChoiceNotAllowed, g.state)
	}
	if g.progress.IsFinal() {
		g.state = StoryComplete
	} else {
		g.state = AwaitingInput
	}
	return g.state, nil
}

// Ready は現在のパネルが PanelReady に達したときに閉じられるチャネルを返します。
func (g *Gate) Ready() <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ready
}

// State は現在の状態を返します。
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Readiness は現在のパネルのフラグを返します。
func (g *Gate) Readiness() domain.PanelReadiness {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readiness
}

// Progress は物語の進行度を返します。
func (g *Gate) Progress() domain.StoryProgress {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.progress
}

// ReadyCount はこれまでに PanelReady に達した回数を返します。
func (g *Gate) ReadyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readyCount
}
