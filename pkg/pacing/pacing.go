// Package pacing は、パネル位置から物語の段階（起・承・転・結）を決める純粋関数を提供します。
package pacing

import "fmt"

// Phase は物語の段階です。
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseEscalation Phase = "escalation"
	PhaseClimax     Phase = "climax"
	PhaseResolution Phase = "resolution"
)

// ChoicesPerPanel は最終パネル以外で要求する選択肢の数です。
const ChoicesPerPanel = 4

// Guidance はナレーターに渡す段階別の指示です。
type Guidance struct {
	Phase        Phase
	CurrentPanel int
	MaxPanels    int
	Final        bool
	// ChoiceCount は要求する番号付き選択肢の数です。最終パネルでは結末の分岐を表します。
	ChoiceCount int
	Text        string
}

// String は指示文をそのまま返します。
func (g Guidance) String() string {
	return g.Text
}

const (
	setupDirective = `PHASE: SETUP (panel %d of %d).
Establish the protagonist, the setting and what they want. Introduce one concrete hook drawn from the source article.
Keep the stakes small but clear. End on a moment that invites a decision.`

	escalationDirective = `PHASE: ESCALATION (panel %d of %d).
Complicate the situation. Raise the stakes with an obstacle, a rival or a revelation that follows from the reader's choice.
Do not resolve the central conflict yet. End on rising tension that invites a decision.`

	climaxDirective = `PHASE: CLIMAX (panel %d of %d).
Bring the central conflict to its peak. Consequences of earlier choices must land now.
The story is close to its end: narrow the possibilities and push toward a decisive moment.`

	finalDirective = `PHASE: RESOLUTION (panel %d of %d). THIS IS THE FINAL PANEL.
You MUST conclude the story in this panel. Resolve the central conflict and show the outcome for the protagonist.
No cliffhangers. Do not open new threads, do not tease a sequel, do not leave the ending undecided.
If you list numbered options, each one must describe a different way the story ENDS. None of them may extend the story beyond this panel.`
)

// Guide は現在のパネル番号（1始まり）と最大パネル数から段階別の指示を返します。
// 範囲外の入力は丸めて扱います。
func Guide(currentPanel, maxPanels int) Guidance {
	if maxPanels < 1 {
		maxPanels = 1
	}
	if currentPanel < 1 {
		currentPanel = 1
	}
	if currentPanel > maxPanels {
		currentPanel = maxPanels
	}

	g := Guidance{
		CurrentPanel: currentPanel,
		MaxPanels:    maxPanels,
		ChoiceCount:  ChoicesPerPanel,
	}

	if currentPanel == maxPanels {
		g.Phase = PhaseResolution
		g.Final = true
		g.Text = fmt.Sprintf(finalDirective, currentPanel, maxPanels)
		return g
	}

	// 整数演算で 1/3, 2/3 の境界を判定する（current/max <= 1/3 ⇔ 3*current <= max）
	switch {
	case 3*currentPanel <= maxPanels:
		g.Phase = PhaseSetup
		g.Text = fmt.Sprintf(setupDirective, currentPanel, maxPanels)
	case 3*currentPanel <= 2*maxPanels:
		g.Phase = PhaseEscalation
		g.Text = fmt.Sprintf(escalationDirective, currentPanel, maxPanels)
	default:
		g.Phase = PhaseClimax
		g.Text = fmt.Sprintf(climaxDirective, currentPanel, maxPanels)
	}
	return g
}
