package prompts

// TextPrompt は、テキスト生成用プロンプトを構築する契約です。
type TextPrompt interface {
	// Build は、指定されたモード（例: "narrator", "metadata"）とデータに基づいてプロンプト文字列を生成します。
	Build(mode string, data TemplateData) (string, error)
}

// ImagePrompt は、パネル画像用プロンプトを構築する契約です。
type ImagePrompt interface {
	// BuildPanel は、物語本文からユーザープロンプト、システムプロンプト、および seed 値を決定します。
	BuildPanel(req PanelImageInput) (userPrompt string, systemPrompt string, seed int64)
}
