package parser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shouni/go-story-kit/pkg/domain"
)

const (
	minOptionID = 1
	maxOptionID = 4
	// fallbackThreshold 未満しか取れなかった場合のみ緩いパターンで再走査します。
	fallbackThreshold = 2
)

// ParseOptions はモデル出力の末尾にある番号付き選択肢を抽出し、ID 順に並べて返します。
// 選択肢が見つからない場合は空のスライスを返します（最終パネルなど）。
func ParseOptions(text string) []domain.Option {
	lines := strings.Split(text, "\n")

	primary := scanOptions(lines, PrimaryOptionRegex)
	if len(primary) >= fallbackThreshold {
		return primary
	}

	fallback := scanOptions(lines, FallbackOptionRegex)
	if len(fallback) > len(primary) {
		return fallback
	}
	return primary
}

func scanOptions(lines []string, re *regexp.Regexp) []domain.Option {
	seen := make(map[int]struct{}, maxOptionID)
	options := make([]domain.Option, 0, maxOptionID)

	for _, line := range lines {
		m := re.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil || id < minOptionID || id > maxOptionID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		text := cleanOptionText(m[2])
		if text == "" {
			continue
		}
		seen[id] = struct{}{}
		options = append(options, domain.Option{ID: id, Text: text})
	}

	sort.Slice(options, func(i, j int) bool { return options[i].ID < options[j].ID })
	return options
}

// cleanOptionText は前後の空白と Markdown の強調記号を取り除きます。
func cleanOptionText(s string) string {
	s = strings.TrimSpace(s)
	for _, mark := range []string{"**", "__"} {
		if strings.HasPrefix(s, mark) && strings.HasSuffix(s, mark) && len(s) > 2*len(mark) {
			s = strings.TrimSpace(s[len(mark) : len(s)-len(mark)])
		}
	}
	return s
}
