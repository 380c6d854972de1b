package parser

import "regexp"

var (
	// OptionBoundaryRegex は選択肢ブロックの開始行（"1." "- 1)" "1:" など）を特定します。
	OptionBoundaryRegex = regexp.MustCompile(`(?m)^[ \t]*(?:[-*•][ \t]*)?1[.):\-][ \t]`)

	// PrimaryOptionRegex は "1. text" / "2) text" 形式の選択肢行をキャプチャします。
	PrimaryOptionRegex = regexp.MustCompile(`^\s*(?:[-*•]\s*)?(\d+)[.)]\s+(.+)$`)

	// FallbackOptionRegex は区切りに ':' や '-' を許す緩いパターンです。
	FallbackOptionRegex = regexp.MustCompile(`^\s*(?:[-*•]\s*)?(\d+)\s*[.):\-]\s*(.+)$`)

	// SentenceRegex は終端記号（と直後の閉じ引用符）までを1文として切り出します。
	SentenceRegex = regexp.MustCompile(`[^.!?]+[.!?]*["'”’)\]]*`)
)
