package prompts

const (
	// CinematicTags クオリティ向上のための共通タグ
	CinematicTags = "cinematic composition, high resolution, sharp focus"

	// NegativePanelPrompt はパネル画像に描かせたくない要素です。
	// 選択肢や本文はUI側で表示するため、画像内の文字は一律で禁止します。
	NegativePanelPrompt = "speech bubble, dialogue balloon, text, caption, alphabet, letters, words, numbers, signatures, watermark, username, low quality, distorted, bad anatomy"

	// PanelSystemInstruction は単体パネル生成時の役割定義です。
	PanelSystemInstruction = "You are a professional comic illustrator. Draw a single panel that captures exactly one moment of an ongoing story. Never render any text inside the image."

	// RenderingStyle は共通の画風を定義します。
	RenderingStyle = `### GLOBAL VISUAL STYLE ###
- RENDERING: Clean lineart, vibrant colors, high contrast, cinematic comic lighting.
- FRAMING: One scene, one focal point, no panel borders, no split screens.`
)
