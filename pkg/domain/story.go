package domain

import "time"

// Role は会話履歴の発話者を表します。
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// StructuralConstraints は生成物に課す宣言的な制約です。
type StructuralConstraints struct {
	Genre      string `json:"genre,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// GenerationRequest は1回の生成呼び出しの入力です。呼び出しごとに作られ、応答後に破棄されます。
type GenerationRequest struct {
	SourceText  string                `json:"source_text,omitempty"`
	Constraints StructuralConstraints `json:"constraints"`
	ModelID     string                `json:"model_id"`
}

// GameMetadata はスキーマ制約付き生成で得られるストーリーのメタデータです。
type GameMetadata struct {
	Title       string `json:"title"`
	Genre       string `json:"genre"`
	Tagline     string `json:"tagline"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	Setting     string `json:"setting"`
}

// Turn は会話履歴の1発話です。
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Option は番号付き選択肢です。ID は 1 から 4 の範囲に限られます。
type Option struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// PanelDraft は1パネル分のテキスト生成状態を保持します。
// パネルを進めるたびに新しい値へ置き換えられ、パネル間で使い回されることはありません。
type PanelDraft struct {
	PanelIndex     int      `json:"panel_index"`
	RawText        string   `json:"raw_text"`
	NarrativeText  string   `json:"narrative_text"`
	Options        []Option `json:"options"`
	IsTextComplete bool     `json:"is_text_complete"`
}

// FailedBackendID は画像生成に失敗した結果に付与される BackendID です。
const FailedBackendID = "failed"

// ImageResult は1パネル分の画像生成結果です。
// ImageURL が nil の場合は「画像なしで表示を続行する」ことを示します。
type ImageResult struct {
	ImageURL    *string   `json:"image_url"`
	BackendID   string    `json:"backend_id"`
	GeneratedAt time.Time `json:"generated_at"`

	// Data と MimeType は保存用の生データで、イベントには載せません。
	Data     []byte `json:"-"`
	MimeType string `json:"-"`
}

// Failed は劣化結果（画像なし）かどうかを返します。
func (r ImageResult) Failed() bool {
	return r.ImageURL == nil
}

// FailedImage は画像生成失敗時の劣化結果を生成します。
func FailedImage(at time.Time) ImageResult {
	return ImageResult{BackendID: FailedBackendID, GeneratedAt: at}
}

// Panel は表示可能になったパネルです。
type Panel struct {
	PanelDraft
	Image ImageResult `json:"image"`
	// Input はこのパネルを生んだ読者の入力です。最初のパネルでは空になります。
	Input string `json:"input,omitempty"`
	Final bool   `json:"final"`
}

// Story は完成済みのパネル列とメタデータです。
type Story struct {
	Metadata GameMetadata `json:"metadata"`
	Panels   []Panel      `json:"panels"`
}

// ModelPerformanceRecord はバックエンドごとの評価の累積です。
type ModelPerformanceRecord struct {
	BackendID           string  `json:"backend_id" db:"backend_id"`
	RatingCount         int     `json:"rating_count" db:"rating_count"`
	RunningAverageScore float64 `json:"running_average_score" db:"running_average_score"`
}

// PanelReadiness はパネル表示に必要な2つの完了フラグです。
type PanelReadiness struct {
	TextReady   bool `json:"text_ready"`
	ImagesReady bool `json:"images_ready"`
}

// Ready は両方のフラグが揃っているかを返します。
func (r PanelReadiness) Ready() bool {
	return r.TextReady && r.ImagesReady
}

// StoryProgress は物語全体の進行度です。
type StoryProgress struct {
	CurrentPanelIndex int `json:"current_panel_index"`
	MaxPanels         int `json:"max_panels"`
}

// IsFinal は現在のパネルが最終パネルかどうかを返します。
func (p StoryProgress) IsFinal() bool {
	return p.MaxPanels > 0 && p.CurrentPanelIndex >= p.MaxPanels
}
