package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPanelReadiness_Ready(t *testing.T) {
	tests := []struct {
		in   PanelReadiness
		want bool
	}{
		{PanelReadiness{}, false},
		{PanelReadiness{TextReady: true}, false},
		{PanelReadiness{ImagesReady: true}, false},
		{PanelReadiness{TextReady: true, ImagesReady: true}, true},
	}
	for _, tt := range tests {
		if got := tt.in.Ready(); got != tt.want {
			t.Errorf("%+v.Ready() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStoryProgress_IsFinal(t *testing.T) {
	tests := []struct {
		in   StoryProgress
		want bool
	}{
		{StoryProgress{CurrentPanelIndex: 1, MaxPanels: 3}, false},
		{StoryProgress{CurrentPanelIndex: 3, MaxPanels: 3}, true},
		{StoryProgress{CurrentPanelIndex: 0, MaxPanels: 0}, false},
	}
	for _, tt := range tests {
		if got := tt.in.IsFinal(); got != tt.want {
			t.Errorf("%+v.IsFinal() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFailedImage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := FailedImage(at)
	if !res.Failed() || res.BackendID != FailedBackendID || !res.GeneratedAt.Equal(at) {
		t.Errorf("劣化結果が不正です: %+v", res)
	}

	url := "data:image/png;base64,AA=="
	if (ImageResult{ImageURL: &url}).Failed() {
		t.Error("URL のある結果は成功として扱われるべきです")
	}
}

func TestNarrativeGenerationError(t *testing.T) {
	cause := errors.New("reset by peer")
	err := fmt.Errorf("wrap: %w", &NarrativeGenerationError{PanelIndex: 2, Model: "m", Err: cause})

	var nerr *NarrativeGenerationError
	if !errors.As(err, &nerr) {
		t.Fatal("errors.As で取り出せません")
	}
	if nerr.PanelIndex != 2 {
		t.Errorf("PanelIndex = %d", nerr.PanelIndex)
	}
	if !errors.Is(err, cause) {
		t.Error("原因のエラーまで辿れません")
	}
}
