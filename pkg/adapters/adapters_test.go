package adapters

import (
	"testing"

	"github.com/openai/openai-go"
	"github.com/shouni/go-story-kit/pkg/domain"
	"google.golang.org/genai"
)

func TestToGeminiContents(t *testing.T) {
	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "記事本文"},
		{Role: domain.RoleModel, Text: "第1パネル"},
		{Role: domain.RoleUser, Text: ""},
	}

	got := toGeminiContents(history, "2番を選ぶ")
	if len(got) != 3 {
		t.Fatalf("空のターンは除外されるべきです: got %d", len(got))
	}

	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	wantTexts := []string{"記事本文", "第1パネル", "2番を選ぶ"}
	for i, c := range got {
		if string(c.Role) != wantRoles[i] {
			t.Errorf("[%d] Role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != wantTexts[i] {
			t.Errorf("[%d] Text が一致しません: %+v", i, c.Parts)
		}
	}
}

func TestToOpenAIMessages(t *testing.T) {
	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "記事本文"},
		{Role: domain.RoleModel, Text: "第1パネル"},
	}

	t.Run("システム指示あり", func(t *testing.T) {
		got := toOpenAIMessages("you are a narrator", history, "次へ")
		if len(got) != 4 {
			t.Fatalf("メッセージ数 = %d, want 4", len(got))
		}
		if got[0].OfSystem == nil {
			t.Error("先頭はシステムメッセージであるべきです")
		}
		if got[2].OfAssistant == nil {
			t.Error("モデルのターンはアシスタントメッセージに変換されるべきです")
		}
		if got[3].OfUser == nil {
			t.Error("入力はユーザーメッセージであるべきです")
		}
	})

	t.Run("システム指示と入力なし", func(t *testing.T) {
		got := toOpenAIMessages("", history, "")
		if len(got) != 2 {
			t.Fatalf("メッセージ数 = %d, want 2", len(got))
		}
	})
}

func TestOpenAISize(t *testing.T) {
	tests := []struct {
		model string
		ratio string
		want  openai.ImageGenerateParamsSize
	}{
		{"gpt-image-1", "16:9", openai.ImageGenerateParamsSize1536x1024},
		{"gpt-image-1", "9:16", openai.ImageGenerateParamsSize1024x1536},
		{"gpt-image-1", "1:1", openai.ImageGenerateParamsSize1024x1024},
		{"dall-e-3", "16:9", openai.ImageGenerateParamsSize1792x1024},
		{"dall-e-3", "", openai.ImageGenerateParamsSize1024x1024},
		{"dall-e-2", "16:9", openai.ImageGenerateParamsSize1024x1024},
	}
	for _, tt := range tests {
		t.Run(tt.model+"_"+tt.ratio, func(t *testing.T) {
			if got := openAISize(tt.model, tt.ratio); got != tt.want {
				t.Errorf("openAISize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBlockedReason(t *testing.T) {
	if err := blockedReason(nil); err == nil {
		t.Error("nil 応答はエラーになるべきです")
	}
	blocked := &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}
	if err := blockedReason(blocked); err == nil {
		t.Error("ブロックされた応答はエラーになるべきです")
	}
	if err := blockedReason(&genai.GenerateContentResponse{}); err != nil {
		t.Errorf("通常の応答でエラーが返されました: %v", err)
	}
}
