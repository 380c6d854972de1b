package publisher

import (
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// ResolveOutputPath は、ベースとなるディレクトリパスとファイル名から最終的な出力パスを生成します。
func ResolveOutputPath(baseDir, fileName string) (string, error) {
	if strings.Contains(baseDir, "://") {
		return "", fmt.Errorf("リモートの出力先には対応していません: %s", baseDir)
	}
	if fileName == "" {
		return "", errors.New("ファイル名は必須です")
	}
	return filepath.Join(baseDir, fileName), nil
}

// PanelFileName は MIME タイプから panel_N.<ext> 形式のファイル名を決めます。
func PanelFileName(index int, mimeType string) string {
	return fmt.Sprintf("panel_%d%s", index, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0])) {
	case "image/png", "":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	// 既知のもの以外は mime パッケージに任せるのだ
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".png"
}
