package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/feedback"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) (*RatingStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ratings.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_AppliesPragmas(t *testing.T) {
	s, _ := openTestStore(t)

	var mode string
	if err := s.conn.Get(&mode, "PRAGMA journal_mode"); err != nil {
		t.Fatalf("journal_mode の取得に失敗しました: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}

	// busy_timeout は接続単位なので、複数の接続を同時に保持して確認する
	ctx := context.Background()
	for i := range 2 {
		c, err := s.conn.Connx(ctx)
		if err != nil {
			t.Fatalf("Connx() error = %v", err)
		}
		defer c.Close()
		var timeout int
		if err := c.GetContext(ctx, &timeout, "PRAGMA busy_timeout"); err != nil {
			t.Fatalf("busy_timeout の取得に失敗しました: %v", err)
		}
		if timeout != 5000 {
			t.Errorf("接続 %d の busy_timeout = %d, want 5000", i, timeout)
		}
	}
}

func TestRatingStore_SaveAndLoad(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	recs := []domain.ModelPerformanceRecord{
		{BackendID: "imagen", RatingCount: 2, RunningAverageScore: 3.5},
		{BackendID: "gemini", RatingCount: 1, RunningAverageScore: 5},
	}
	for _, r := range recs {
		if err := s.SaveRecord(ctx, r); err != nil {
			t.Fatalf("SaveRecord() error = %v", err)
		}
	}
	// 同じ ID は上書きされる
	if err := s.SaveRecord(ctx, domain.ModelPerformanceRecord{BackendID: "gemini", RatingCount: 2, RunningAverageScore: 4.5}); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}

	got, err := s.LoadRecords(ctx)
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	want := []domain.ModelPerformanceRecord{
		{BackendID: "gemini", RatingCount: 2, RunningAverageScore: 4.5},
		{BackendID: "imagen", RatingCount: 2, RunningAverageScore: 3.5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("レコードが一致しません (-want +got):\n%s", diff)
	}
}

func TestRatingStore_LearnerRestore(t *testing.T) {
	ctx := context.Background()
	s, path := openTestStore(t)

	first := feedback.NewLearner([]string{"gemini"}, s)
	for _, r := range []int{5, 2, 2} {
		if _, err := first.Rate(ctx, "gemini", r); err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// 再起動を模して開き直す
	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer reopened.Close()

	second := feedback.NewLearner([]string{"gemini"}, reopened)
	if err := second.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	rec, ok := second.Record("gemini")
	if !ok {
		t.Fatal("レコードが復元されていません")
	}
	if rec.RatingCount != 3 || math.Abs(rec.RunningAverageScore-3) > 1e-9 {
		t.Errorf("復元されたレコードが不正です: %+v", rec)
	}
}
