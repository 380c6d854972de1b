package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/workflow"
)

type createStoryRequest struct {
	Article          string `json:"article"`
	Genre            string `json:"genre,omitempty"`
	Difficulty       string `json:"difficulty,omitempty"`
	MaxPanels        int    `json:"max_panels,omitempty"`
	Model            string `json:"model,omitempty"`
	GenerateMetadata bool   `json:"generate_metadata,omitempty"`
}

type storyResponse struct {
	ID       string               `json:"id"`
	State    string               `json:"state"`
	Progress domain.StoryProgress `json:"progress"`
	CanRetry bool                 `json:"can_retry"`
	Complete bool                 `json:"complete"`
	Story    domain.Story         `json:"story"`
	// Warning は制約を満たせなかったメタデータで続行した場合に設定されます。
	Warning string `json:"warning,omitempty"`
}

type rateRequest struct {
	BackendID string `json:"backend_id"`
	Rating    int    `json:"rating"`
}

type ratingsResponse struct {
	Backends []string                        `json:"backends"`
	Records  []domain.ModelPerformanceRecord `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	var req createStoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Article) == "" {
		writeError(w, http.StatusBadRequest, "article は必須です")
		return
	}

	constraints := domain.StructuralConstraints{Genre: req.Genre, Difficulty: req.Difficulty}
	meta := domain.GameMetadata{Genre: req.Genre, Difficulty: req.Difficulty}
	var warning string
	if req.GenerateMetadata {
		m, err := s.service.GenerateMetadata(r.Context(), domain.GenerationRequest{SourceText: req.Article, Constraints: constraints})
		var verr *domain.GenerationValidationError
		switch {
		case errors.As(err, &verr):
			warning = verr.Error()
			meta = m
		case err != nil:
			slog.ErrorContext(r.Context(), "Metadata generation failed", "error", err)
			writeError(w, http.StatusBadGateway, err.Error())
			return
		default:
			meta = m
		}
	}

	maxPanels := req.MaxPanels
	if maxPanels <= 0 {
		maxPanels = s.cfg.MaxPanels
	}
	sess, err := s.service.NewSession(workflow.SessionOptions{
		Article:     req.Article,
		Metadata:    meta,
		Constraints: constraints,
		MaxPanels:   maxPanels,
		Model:       req.Model,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.sessions.SetDefault(sess.ID(), sess)
	slog.InfoContext(r.Context(), "Story session created", "session", sess.ID(), "max_panels", sess.Progress().MaxPanels)

	res := snapshot(sess)
	res.Warning = warning
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

// handleNext は次のパネルを SSE で配信します。
// choice も text もなく、まだ開始していなければ最初のパネルを生成します。
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	choice, text := q.Get("choice"), q.Get("text")
	var optionID int
	if choice != "" {
		n, err := strconv.Atoi(choice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "choice は数値で指定してください")
			return
		}
		optionID = n
	}

	s.stream(w, r, func(ctx context.Context, emit domain.Emitter) error {
		switch {
		case choice != "":
			_, err := sess.Choose(ctx, optionID, emit)
			return err
		case text != "":
			_, err := sess.Say(ctx, text, emit)
			return err
		default:
			_, err := sess.Start(ctx, emit)
			return err
		}
	})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.stream(w, r, func(ctx context.Context, emit domain.Emitter) error {
		_, err := sess.Retry(ctx, emit)
		return err
	})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Finish(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleListRatings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ratingsResponse{
		Backends: s.service.BackendIDs(),
		Records:  s.service.Ratings(),
	})
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.service.Rate(r.Context(), req.BackendID, req.Rating)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// stream はパネル生成を実行し、イベントを SSE で返します。
// イベントを送る前に失敗した場合は JSON のエラー応答になります。
func (s *Server) stream(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, emit domain.Emitter) error) {
	sw, ok := newSSEWriter(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	go sw.heartbeat(s.cfg.HeartbeatInterval)
	defer sw.close()

	err := run(r.Context(), sw.Emit)
	if err == nil {
		return
	}
	if sw.Started() {
		// パネル生成の失敗は error イベントとして送信済み
		slog.WarnContext(r.Context(), "Panel generation failed", "error", err)
		return
	}
	writeError(w, statusFor(err), err.Error())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*workflow.Session, bool) {
	sess, ok := s.session(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "セッションが見つかりません")
		return nil, false
	}
	return sess, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "リクエストの JSON が不正です: "+err.Error())
		return false
	}
	return true
}

func snapshot(sess *workflow.Session) storyResponse {
	return storyResponse{
		ID:       sess.ID(),
		State:    sess.State().String(),
		Progress: sess.Progress(),
		CanRetry: sess.CanRetry(),
		Complete: sess.Complete(),
		Story:    sess.Story(),
	}
}

func statusFor(err error) int {
	var nerr *domain.NarrativeGenerationError
	switch {
	case errors.Is(err, domain.ErrUnknownOption),
		errors.Is(err, domain.ErrInvalidRating),
		errors.Is(err, domain.ErrUnknownBackend):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrChoiceNotAllowed),
		errors.Is(err, domain.ErrStoryComplete),
		errors.Is(err, domain.ErrNothingToRetry):
		return http.StatusConflict
	case errors.As(err, &nerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
