package domain

// EventKind はクライアントへ送るイベントの種別です。
type EventKind string

const (
	EventContent EventKind = "content"
	EventOptions EventKind = "options"
	EventImage   EventKind = "image"
	EventEnd     EventKind = "end"
	EventError   EventKind = "error"
)

// Event はトランスポート非依存のイベントレコードです。
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
}

// OptionsPayload は options イベントの中身です。
type OptionsPayload struct {
	PanelIndex    int      `json:"panel_index"`
	NarrativeText string   `json:"narrative_text"`
	Options       []Option `json:"options"`
}

// EndPayload はパネル完了時の end イベントの中身です。
type EndPayload struct {
	PanelIndex          int  `json:"panel_index"`
	Final               bool `json:"final"`
	CanAcceptNextChoice bool `json:"can_accept_next_choice"`
}

// ErrorPayload は error イベントの中身です。
type ErrorPayload struct {
	PanelIndex int    `json:"panel_index"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable"`
}

// Emitter はイベントの送り先です。
type Emitter func(Event)

// Discard はイベントを捨てる Emitter です。
func Discard(Event) {}
