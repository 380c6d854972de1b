package generator

import "time"

const (
	// PanelAspectRatio は単体パネル（1コマ）の推奨アスペクト比です。
	PanelAspectRatio = "16:9"

	// DefaultImageTimeout は1回の画像リクエストに許す時間です。
	DefaultImageTimeout = 90 * time.Second

	// cacheCleanupInterval は期限付きキャッシュを使う場合の掃除間隔です。
	cacheCleanupInterval = 10 * time.Minute
)

// SynthesisRequest はパネル画像1枚分の要求です。
type SynthesisRequest struct {
	Narrative   string
	Genre       string
	Style       string
	AspectRatio string
}
