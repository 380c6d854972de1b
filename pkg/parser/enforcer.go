package parser

import (
	"strings"
	"unicode"
)

// Unit は長さ制約の単位です。
type Unit string

const (
	UnitSentences Unit = "sentences"
	UnitWords     Unit = "words"
)

// Budget は物語部分の長さ制約です。Max が 0 以下なら上限なしとして扱います。
type Budget struct {
	Min  int
	Max  int
	Unit Unit
}

// SplitNarrative は本文と選択肢ブロックを分割します。
// 選択肢ブロックが見つからない場合は全体を本文として扱い、found は false になります。
func SplitNarrative(text string) (narrative, options string, found bool) {
	loc := OptionBoundaryRegex.FindStringIndex(text)
	if loc == nil {
		return text, "", false
	}
	return text[:loc[0]], text[loc[0]:], true
}

// EnforceLength は本文を長さ制約に収め、選択肢ブロックはそのまま残して再結合します。
// 下限を下回る場合は何もしません（水増しはしない）。制約を満たす入力はそのまま返すため冪等です。
func EnforceLength(text string, budget Budget) string {
	if budget.Max <= 0 {
		return text
	}

	narrative, options, _ := SplitNarrative(text)

	var trimmed string
	switch budget.Unit {
	case UnitWords:
		if len(strings.Fields(narrative)) <= budget.Max {
			return text
		}
		trimmed = trimWords(narrative, budget.Max)
	default:
		sentences := Sentences(narrative)
		if len(sentences) <= budget.Max {
			return text
		}
		trimmed = joinSentences(sentences[:budget.Max])
	}

	if options == "" {
		return trimmed
	}
	return trimmed + "\n\n" + options
}

// Sentences は本文を文に分割します。空の断片は捨てます。
func Sentences(narrative string) []string {
	var out []string
	for _, frag := range SentenceRegex.FindAllString(narrative, -1) {
		s := strings.Join(strings.Fields(frag), " ")
		if !hasWordChar(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CountSentences は本文の文数を返します。
func CountSentences(narrative string) int {
	return len(Sentences(narrative))
}

func joinSentences(sentences []string) string {
	normalized := make([]string, 0, len(sentences))
	for _, s := range sentences {
		normalized = append(normalized, terminate(s))
	}
	return strings.Join(normalized, " ")
}

// trimWords は文の区切りを優先し、上限語数に収まるところまで文単位で残します。
func trimWords(narrative string, max int) string {
	var kept []string
	total := 0
	for _, s := range Sentences(narrative) {
		n := len(strings.Fields(s))
		if total+n > max {
			break
		}
		kept = append(kept, s)
		total += n
	}
	if len(kept) > 0 {
		return joinSentences(kept)
	}

	// 最初の1文だけで上限を超える場合は語単位で切るしかない
	words := strings.Fields(narrative)
	cut := strings.TrimRight(strings.Join(words[:max], " "), ",;:-")
	return terminate(cut)
}

func terminate(s string) string {
	core := strings.TrimRight(s, `"'”’)]`)
	if strings.HasSuffix(core, ".") || strings.HasSuffix(core, "!") || strings.HasSuffix(core, "?") {
		return s
	}
	return s + "."
}

func hasWordChar(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
