// Package storage は、評価レコードを SQLite に永続化します。
package storage

import (
	"context"
	"fmt"

	"github.com/shouni/go-story-kit/pkg/domain"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// RatingStore は feedback.Store の SQLite 実装です。
type RatingStore struct {
	conn *sqlx.DB
}

// Open は指定パスの SQLite データベースを開き、必要ならテーブルを作成します。
func Open(path string) (*RatingStore, error) {
	// PRAGMA はプール内の接続ごとに適用される必要があるため DSN で渡す
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("データベースのオープンに失敗しました: %w", err)
	}

	s := &RatingStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("マイグレーションに失敗しました: %w", err)
	}
	return s, nil
}

// Close はデータベース接続を閉じます。
func (s *RatingStore) Close() error {
	return s.conn.Close()
}

func (s *RatingStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS model_performance (
		backend_id TEXT PRIMARY KEY,
		rating_count INTEGER NOT NULL,
		running_average_score REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// LoadRecords は保存済みのすべての評価レコードを返します。
func (s *RatingStore) LoadRecords(ctx context.Context) ([]domain.ModelPerformanceRecord, error) {
	var records []domain.ModelPerformanceRecord
	err := s.conn.SelectContext(ctx, &records,
		`SELECT backend_id, rating_count, running_average_score FROM model_performance ORDER BY backend_id`)
	if err != nil {
		return nil, fmt.Errorf("評価レコードの取得に失敗しました: %w", err)
	}
	return records, nil
}

// SaveRecord はレコードを挿入、または既存のレコードを置き換えます。
func (s *RatingStore) SaveRecord(ctx context.Context, rec domain.ModelPerformanceRecord) error {
	_, err := s.conn.NamedExecContext(ctx, `
		INSERT INTO model_performance (backend_id, rating_count, running_average_score, updated_at)
		VALUES (:backend_id, :rating_count, :running_average_score, CURRENT_TIMESTAMP)
		ON CONFLICT(backend_id) DO UPDATE SET
			rating_count = excluded.rating_count,
			running_average_score = excluded.running_average_score,
			updated_at = excluded.updated_at`, rec)
	if err != nil {
		return fmt.Errorf("評価レコードの保存に失敗しました (backend: %s): %w", rec.BackendID, err)
	}
	return nil
}
