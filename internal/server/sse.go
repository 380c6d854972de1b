package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shouni/go-story-kit/pkg/domain"
)

// sseWriter は domain.Event を Server-Sent Events として書き出します。
// ヘッダーは最初のイベントで送るため、イベント前のエラーは通常の JSON 応答にできます。
type sseWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	closed  bool
	done    chan struct{}
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}
	return &sseWriter{w: w, flusher: flusher, done: make(chan struct{})}, true
}

func (s *sseWriter) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// Emit は domain.Emitter として使います。
func (s *sseWriter) Emit(ev domain.Event) {
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		slog.Error("Failed to encode SSE event", "kind", ev.Kind, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.start()
	fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Kind, data)
	s.flusher.Flush()
}

// Started はイベントを1件以上送ったかを返します。
func (s *sseWriter) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// heartbeat は close されるまで一定間隔でコメント行を送ります。
func (s *sseWriter) heartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.started && !s.closed {
				fmt.Fprint(s.w, ": heartbeat\n\n")
				s.flusher.Flush()
			}
			s.mu.Unlock()
		}
	}
}

// close 以降はハンドラーが戻った後のため、何も書き込みません。
func (s *sseWriter) close() {
	close(s.done)
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
