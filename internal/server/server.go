// Package server は、物語セッションを HTTP と Server-Sent Events で公開します。
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/workflow"

	"github.com/patrickmn/go-cache"
)

// StoryService はサーバーが利用するワークフローの操作です。
type StoryService interface {
	NewSession(opts workflow.SessionOptions) (*workflow.Session, error)
	GenerateMetadata(ctx context.Context, req domain.GenerationRequest) (domain.GameMetadata, error)
	Rate(ctx context.Context, backendID string, rating int) (domain.ModelPerformanceRecord, error)
	Ratings() []domain.ModelPerformanceRecord
	BackendIDs() []string
}

// Server は物語セッションを保持する HTTP サーバーです。
type Server struct {
	cfg      Config
	service  StoryService
	sessions *cache.Cache
}

// New は Server を生成します。セッションは最後のアクセスから SessionTTL で失効します。
func New(cfg Config, service StoryService) (*Server, error) {
	if service == nil {
		return nil, errors.New("StoryService は必須です")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	return &Server{
		cfg:      cfg,
		service:  service,
		sessions: cache.New(cfg.SessionTTL, cfg.SessionTTL*2),
	}, nil
}

// Handler はルーティング済みの http.Handler を返します。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthcheck", s.handleHealth)

	mux.HandleFunc("POST /api/stories", s.handleCreateStory)
	mux.HandleFunc("GET /api/stories/{id}", s.handleGetStory)
	mux.HandleFunc("GET /api/stories/{id}/next", s.handleNext)
	mux.HandleFunc("POST /api/stories/{id}/retry", s.handleRetry)
	mux.HandleFunc("POST /api/stories/{id}/finish", s.handleFinish)

	mux.HandleFunc("GET /api/ratings", s.handleListRatings)
	mux.HandleFunc("POST /api/ratings", s.handleRate)
	return mux
}

// Run はサーバーを起動し、ctx がキャンセルされたら処理中のリクエストを待って停止します。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", srv.Addr, "session_ttl", s.cfg.SessionTTL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP サーバーの起動に失敗しました: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	slog.Info("HTTP server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP サーバーの停止に失敗しました: %w", err)
	}
	return nil
}

func (s *Server) session(id string) (*workflow.Session, bool) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, false
	}
	sess := v.(*workflow.Session)
	// アクセスのたびに有効期限を延ばす
	s.sessions.SetDefault(id, sess)
	return sess, true
}
