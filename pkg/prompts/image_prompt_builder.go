package prompts

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// maxNarrativeRunes は画像プロンプトに含める本文の最大文字数です。
const maxNarrativeRunes = 1200

// PanelImageInput はパネル画像プロンプトの材料です。
type PanelImageInput struct {
	Narrative string
	Genre     string
	Style     string
}

// ImagePromptBuilder は、物語本文からパネル画像用のプロンプトを構築します。
type ImagePromptBuilder struct {
	defaultSuffix string // "comic style, high quality" 等の共通サフィックス
}

// NewImagePromptBuilder は新しい ImagePromptBuilder を生成します。
func NewImagePromptBuilder(suffix string) *ImagePromptBuilder {
	return &ImagePromptBuilder{defaultSuffix: suffix}
}

// BuildPanel は、単体パネル用の UserPrompt, SystemPrompt, およびシード値を生成します。
// 同じ入力からは常に同じシード値が得られるため、再生成しても絵柄がぶれにくくなります。
func (pb *ImagePromptBuilder) BuildPanel(req PanelImageInput) (string, string, int64) {
	// --- 1. System Prompt の構築 ---
	var ss strings.Builder
	ss.WriteString(PanelSystemInstruction)
	ss.WriteString("\n\n")
	ss.WriteString(RenderingStyle)
	if style := strings.TrimSpace(req.Style); style != "" {
		ss.WriteString(fmt.Sprintf("\n\n### ART STYLE ###\n%s", style))
	}
	if pb.defaultSuffix != "" {
		ss.WriteString(fmt.Sprintf("\n\n### QUALITY ###\n%s", pb.defaultSuffix))
	}
	systemPrompt := ss.String()

	// --- 2. User Prompt の構築 ---
	parts := []string{
		"Illustrate this moment: " + truncateRunes(strings.TrimSpace(req.Narrative), maxNarrativeRunes),
	}
	if genre := strings.TrimSpace(req.Genre); genre != "" {
		parts = append(parts, fmt.Sprintf("Mood and palette fitting a %s story", genre))
	}
	parts = append(parts, CinematicTags)

	var cleanParts []string
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			cleanParts = append(cleanParts, s)
		}
	}
	userPrompt := strings.Join(cleanParts, ". ")

	return userPrompt, systemPrompt, SeedFromText(req.Narrative, req.Genre, req.Style)
}

// SeedFromText は文字列群から決定論的な正のシード値を生成します。
func SeedFromText(parts ...string) int64 {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	// 画像生成APIのシード値は int32 の正の範囲に収める必要があるのだ
	return int64(binary.BigEndian.Uint32(hash[:4]) & 0x7FFFFFFF)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
