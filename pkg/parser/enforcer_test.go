package parser

import (
	"testing"
)

func TestEnforceLength_Sentences(t *testing.T) {
	budget := Budget{Min: 1, Max: 2, Unit: UnitSentences}

	t.Run("上限を超える本文は先頭から上限の文数まで残すのだ", func(t *testing.T) {
		input := "One fish swims. Two birds sing! Three cats sleep? Four dogs bark. Five cows moo.\n1. Run\n2. Hide"
		want := "One fish swims. Two birds sing!\n\n1. Run\n2. Hide"
		if got := EnforceLength(input, budget); got != want {
			t.Errorf("結果が違うのだ。\n期待: %q\n実際: %q", want, got)
		}
	})

	t.Run("選択肢ブロックがなければ全体を本文として扱うのだ", func(t *testing.T) {
		input := "Alpha beta. Gamma delta. Epsilon zeta."
		want := "Alpha beta. Gamma delta."
		if got := EnforceLength(input, budget); got != want {
			t.Errorf("結果が違うのだ。\n期待: %q\n実際: %q", want, got)
		}
	})

	t.Run("選択肢ブロックは一字一句そのまま残すのだ", func(t *testing.T) {
		input := "A one. B two. C three.\n  - 1) Go left   \n- 2) Go right\n"
		want := "A one. B two.\n\n  - 1) Go left   \n- 2) Go right\n"
		if got := EnforceLength(input, budget); got != want {
			t.Errorf("結果が違うのだ。\n期待: %q\n実際: %q", want, got)
		}
	})

	t.Run("下限を下回っても水増ししないのだ", func(t *testing.T) {
		input := "Short.\n1. Next"
		got := EnforceLength(input, Budget{Min: 3, Max: 5, Unit: UnitSentences})
		if got != input {
			t.Errorf("短い本文が変更されたのだ: %q", got)
		}
	})

	t.Run("上限0は制約なしとして扱うのだ", func(t *testing.T) {
		input := "A. B. C. D."
		if got := EnforceLength(input, Budget{}); got != input {
			t.Errorf("変更されたのだ: %q", got)
		}
	})
}

func TestEnforceLength_Idempotent(t *testing.T) {
	budget := Budget{Min: 2, Max: 4, Unit: UnitSentences}
	inputs := []string{
		"The door creaks open. A cold wind rushes in! Who is there?\n\n1. Step inside\n2. Close the door\n3. Call out\n4. Run",
		"The sky darkens. Thunder rolls.",
		"She whispers, \"Wait!\" Nobody answers. The lamp flickers... Then silence.\n1. Listen",
		"",
		"No punctuation at all",
	}

	for _, input := range inputs {
		if CountSentences(input) < budget.Min {
			continue
		}
		if got := EnforceLength(input, budget); got != input {
			t.Errorf("制約を満たす入力が変更されたのだ。\n入力: %q\n出力: %q", input, got)
		}
	}

	t.Run("2回適用しても結果は変わらないのだ", func(t *testing.T) {
		long := "S1 a. S2 b! S3 c? S4 d. S5 e. S6 f.\n1. x\n2. y"
		once := EnforceLength(long, budget)
		twice := EnforceLength(once, budget)
		if once != twice {
			t.Errorf("冪等ではないのだ。\n1回目: %q\n2回目: %q", once, twice)
		}
		narrative, _, _ := SplitNarrative(once)
		if n := CountSentences(narrative); n != budget.Max {
			t.Errorf("文数が上限と一致しないのだ: %d", n)
		}
	})
}

func TestEnforceLength_Words(t *testing.T) {
	budget := Budget{Min: 1, Max: 5, Unit: UnitWords}

	t.Run("文の区切りを優先して語数に収めるのだ", func(t *testing.T) {
		input := "Tiny one. Second sentence here. Third.\n1. Go"
		want := "Tiny one. Second sentence here.\n\n1. Go"
		if got := EnforceLength(input, budget); got != want {
			t.Errorf("結果が違うのだ。\n期待: %q\n実際: %q", want, got)
		}
	})

	t.Run("最初の1文が長すぎる場合は語単位で切るのだ", func(t *testing.T) {
		input := "one two three four five six seven."
		want := "one two three four five."
		got := EnforceLength(input, budget)
		if got != want {
			t.Errorf("結果が違うのだ。\n期待: %q\n実際: %q", want, got)
		}
		if again := EnforceLength(got, budget); again != got {
			t.Errorf("冪等ではないのだ: %q", again)
		}
	})
}

func TestSplitNarrative(t *testing.T) {
	t.Run("2以降から始まる番号は境界にならないのだ", func(t *testing.T) {
		_, _, found := SplitNarrative("It was 1999.\n2. not a boundary")
		if found {
			t.Error("1 以外の番号が境界として扱われたのだ")
		}
	})

	t.Run("10. は境界にならないのだ", func(t *testing.T) {
		_, _, found := SplitNarrative("Intro.\n10. ten")
		if found {
			t.Error("10. が境界として扱われたのだ")
		}
	})

	t.Run("最初の1.の行で分割するのだ", func(t *testing.T) {
		narrative, options, found := SplitNarrative("Story.\n* 1: first\n2: second")
		if !found || narrative != "Story.\n" || options != "* 1: first\n2: second" {
			t.Errorf("分割結果が違うのだ: %q / %q / %v", narrative, options, found)
		}
	})
}

func TestSentences(t *testing.T) {
	got := Sentences("  Hello there!  How are you?... Fine.  ")
	want := []string{"Hello there!", "How are you?...", "Fine."}
	if len(got) != len(want) {
		t.Fatalf("文数が違うのだ: %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%d 文目が違うのだ。期待: %q, 実際: %q", i, want[i], got[i])
		}
	}
}
