package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrChoiceNotAllowed はパネルが PanelReady になる前、または最終パネルで選択が行われた場合に返されます。
	ErrChoiceNotAllowed = errors.New("現在は次の選択を受け付けていません")
	// ErrStoryComplete は物語が完結した後に操作が行われた場合に返されます。
	ErrStoryComplete = errors.New("物語はすでに完結しています")
	// ErrInvalidRating は評価値が 1〜5 の範囲外の場合に返されます。
	ErrInvalidRating = errors.New("評価は 1 から 5 の整数で指定してください")
	// ErrUnknownBackend は未登録のバックエンドが指定された場合に返されます。
	ErrUnknownBackend = errors.New("未登録のバックエンドです")
	// ErrUnknownOption は提示されていない選択肢が指定された場合に返されます。
	ErrUnknownOption = errors.New("提示されていない選択肢です")
	// ErrNothingToRetry は再試行できる失敗パネルがない場合に返されます。
	ErrNothingToRetry = errors.New("再試行できるパネルがありません")
)

// NarrativeGenerationError はストリーミング中の通信・バックエンド障害を表します。
// このエラーが返ったパネルは破棄され、同じパネルを再試行できます。
type NarrativeGenerationError struct {
	PanelIndex int
	Model      string
	Err        error
}

func (e *NarrativeGenerationError) Error() string {
	return fmt.Sprintf("パネル %d の物語生成に失敗しました (model: %s): %v", e.PanelIndex, e.Model, e.Err)
}

func (e *NarrativeGenerationError) Unwrap() error {
	return e.Err
}

// GenerationValidationError は再試行を使い切っても制約を満たせなかったことを表します。
type GenerationValidationError struct {
	Attempts  int
	Field     string
	Requested string
	Returned  string
}

func (e *GenerationValidationError) Error() string {
	return fmt.Sprintf("%d 回の試行後も %s の制約を満たせませんでした (要求: %q, 応答: %q)", e.Attempts, e.Field, e.Requested, e.Returned)
}
