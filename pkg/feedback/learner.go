// Package feedback は、画像バックエンドごとの評価を集計し、選択の重みとして提供します。
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shouni/go-story-kit/pkg/domain"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Store は評価レコードの永続化先です。
type Store interface {
	LoadRecords(ctx context.Context) ([]domain.ModelPerformanceRecord, error)
	SaveRecord(ctx context.Context, rec domain.ModelPerformanceRecord) error
}

// Learner はプロセス全体で共有される評価テーブルです。
// 平均値の更新は読み取り・計算・書き込みを1つのロックの中で行います。
type Learner struct {
	mu       sync.RWMutex
	records  map[string]domain.ModelPerformanceRecord
	backends map[string]struct{}
	store    Store
}

// NewLearner は評価対象のバックエンドIDを登録して Learner を生成します。
// backendIDs が空の場合はどの ID の評価も受け付けます。store は nil でも構いません。
func NewLearner(backendIDs []string, store Store) *Learner {
	backends := make(map[string]struct{}, len(backendIDs))
	for _, id := range backendIDs {
		backends[id] = struct{}{}
	}
	return &Learner{
		records:  make(map[string]domain.ModelPerformanceRecord),
		backends: backends,
		store:    store,
	}
}

// Restore は永続化先から評価レコードを読み戻します。
func (l *Learner) Restore(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	records, err := l.store.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("評価レコードの読み込みに失敗しました: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range records {
		l.records[rec.BackendID] = rec
	}
	slog.Info("Ratings restored", "records", len(records))
	return nil
}

// Rate は評価を1件記録し、更新後のレコードを返します。
// 新しい平均は (旧平均 * 旧件数 + 評価) / (旧件数 + 1) です。
func (l *Learner) Rate(ctx context.Context, backendID string, rating int) (domain.ModelPerformanceRecord, error) {
	if rating < MinRating || rating > MaxRating {
		return domain.ModelPerformanceRecord{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, rating)
	}
	if !l.accepts(backendID) {
		return domain.ModelPerformanceRecord{}, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, backendID)
	}

	// 永続化も同じロックの中で行い、古いレコードで上書きされないようにする
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := l.records[backendID]
	rec.BackendID = backendID
	rec.RunningAverageScore = (rec.RunningAverageScore*float64(rec.RatingCount) + float64(rating)) / float64(rec.RatingCount+1)
	rec.RatingCount++
	l.records[backendID] = rec

	if l.store != nil {
		if err := l.store.SaveRecord(ctx, rec); err != nil {
			// メモリ上の値は正として扱い、永続化の失敗は呼び出し元に伝える
			return rec, fmt.Errorf("評価レコードの保存に失敗しました: %w", err)
		}
	}

	slog.Debug("Rating recorded", "backend_id", backendID, "rating", rating, "count", rec.RatingCount, "average", rec.RunningAverageScore)
	return rec, nil
}

// Record は指定バックエンドのレコードを返します。
func (l *Learner) Record(backendID string) (domain.ModelPerformanceRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[backendID]
	return rec, ok
}

// Snapshot は現時点のレコードのコピーを返します。
// 呼び出し後の評価はこのコピーに影響しません。
func (l *Learner) Snapshot() map[string]domain.ModelPerformanceRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]domain.ModelPerformanceRecord, len(l.records))
	for k, v := range l.records {
		out[k] = v
	}
	return out
}

// Records はバックエンドID順に並べたレコードを返します。
func (l *Learner) Records() []domain.ModelPerformanceRecord {
	snap := l.Snapshot()
	out := make([]domain.ModelPerformanceRecord, 0, len(snap))
	for _, rec := range snap {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BackendID < out[j].BackendID })
	return out
}

func (l *Learner) accepts(backendID string) bool {
	if backendID == "" || backendID == domain.FailedBackendID {
		return false
	}
	if len(l.backends) == 0 {
		return true
	}
	_, ok := l.backends[backendID]
	return ok
}
