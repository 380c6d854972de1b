package generator

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shouni/go-story-kit/pkg/domain"
	"github.com/shouni/go-story-kit/pkg/prompts"

	"github.com/patrickmn/go-cache"
	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Options は ImageSynthesizer の挙動を調整します。ゼロ値は既定値で補われます。
type Options struct {
	// Timeout は1回の画像リクエスト（レート制限の待ち時間を含む）の上限です。
	Timeout time.Duration
	// CacheExpiration が 0 以下ならプロセスが終わるまで保持します。
	CacheExpiration time.Duration
	Limiter         *rate.Limiter
	// Random は [0, 1) の乱数を返す関数です。テストで差し替えます。
	Random func() float64
}

// ImageSynthesizer は本文から画像を生成し、内容キーで結果をキャッシュします。
type ImageSynthesizer struct {
	backends      []Backend
	ids           []string
	ratings       RatingSource
	promptBuilder prompts.ImagePrompt
	cache         *cache.Cache
	limiter       *rate.Limiter
	timeout       time.Duration
	random        func() float64
	now           func() time.Time
	inflight      singleflight.Group
}

// NewImageSynthesizer は ImageSynthesizer の新しいインスタンスを初期化済みの状態で生成します。
func NewImageSynthesizer(backends []Backend, ratings RatingSource, pb prompts.ImagePrompt, opts Options) (*ImageSynthesizer, error) {
	if len(backends) == 0 {
		return nil, errors.New("画像バックエンドを1つ以上指定してください")
	}
	if pb == nil {
		return nil, errors.New("ImagePrompt は必須です")
	}

	ids := make([]string, 0, len(backends))
	seen := make(map[string]struct{}, len(backends))
	for _, b := range backends {
		if b.ID == "" || b.Client == nil {
			return nil, fmt.Errorf("バックエンドの ID と Client は必須です: %q", b.ID)
		}
		if b.ID == domain.FailedBackendID {
			return nil, fmt.Errorf("バックエンド ID %q は予約されています", b.ID)
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("バックエンド ID が重複しています: %q", b.ID)
		}
		seen[b.ID] = struct{}{}
		ids = append(ids, b.ID)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultImageTimeout
	}
	expiration := opts.CacheExpiration
	if expiration <= 0 {
		expiration = cache.NoExpiration
	}
	random := opts.Random
	if random == nil {
		random = rand.Float64
	}

	return &ImageSynthesizer{
		backends:      backends,
		ids:           ids,
		ratings:       ratings,
		promptBuilder: pb,
		cache:         cache.New(expiration, cacheCleanupInterval),
		limiter:       opts.Limiter,
		timeout:       timeout,
		random:        random,
		now:           time.Now,
	}, nil
}

// BackendIDs は登録済みのバックエンドIDを登録順に返します。
func (s *ImageSynthesizer) BackendIDs() []string {
	return append([]string(nil), s.ids...)
}

// CacheKey は (本文, ジャンル, 画風) からキャッシュキーを生成します。
func CacheKey(narrative, genre, style string) string {
	h := sha256.New()
	for _, part := range []string{narrative, genre, style} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Synthesize はパネル画像を1枚生成します。
// キャッシュにあれば外部呼び出しは行いません。失敗時は ImageURL が nil の劣化結果を返し、キャッシュしません。
func (s *ImageSynthesizer) Synthesize(ctx context.Context, req SynthesisRequest) domain.ImageResult {
	key := CacheKey(req.Narrative, req.Genre, req.Style)
	if res, ok := s.lookup(key); ok {
		slog.Debug("Image cache hit", "cache_key", key[:12], "backend_id", res.BackendID)
		return res
	}

	// 共有リクエストはどの呼び出し元のキャンセルにも巻き込まれない。上限は s.timeout のみ
	shared := context.WithoutCancel(ctx)
	ch := s.inflight.DoChan(key, func() (interface{}, error) {
		// singleflight で待機中に他のゴルーチンが生成を終えている可能性があるため、再度キャッシュを確認
		if res, ok := s.lookup(key); ok {
			return res, nil
		}

		res := s.generate(shared, key, req)
		if !res.Failed() {
			s.cache.Set(key, res, cache.DefaultExpiration)
		}
		return res, nil
	})

	select {
	case <-ctx.Done():
		slog.Debug("Image request abandoned by caller", "cache_key", key[:12], "error", ctx.Err())
		return domain.FailedImage(s.now())
	case r := <-ch:
		res, ok := r.Val.(domain.ImageResult)
		if !ok {
			return domain.FailedImage(s.now())
		}
		return res
	}
}

func (s *ImageSynthesizer) lookup(key string) (domain.ImageResult, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		return domain.ImageResult{}, false
	}
	res, ok := v.(domain.ImageResult)
	return res, ok
}

func (s *ImageSynthesizer) generate(ctx context.Context, key string, req SynthesisRequest) domain.ImageResult {
	backend := s.selectBackend()
	logger := slog.With("backend_id", backend.ID, "cache_key", key[:12])

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.limiter != nil {
		if err := s.limiter.Wait(callCtx); err != nil {
			logger.Warn("Image request skipped while waiting for rate limiter", "error", err)
			return domain.FailedImage(s.now())
		}
	}

	userPrompt, systemPrompt, seed := s.promptBuilder.BuildPanel(prompts.PanelImageInput{
		Narrative: req.Narrative,
		Genre:     req.Genre,
		Style:     req.Style,
	})
	aspectRatio := req.AspectRatio
	if aspectRatio == "" {
		aspectRatio = PanelAspectRatio
	}

	logger.Info("Starting panel image generation")
	startTime := time.Now()
	resp, err := backend.Client.GenerateImage(callCtx, imagedom.ImageGenerationRequest{
		Prompt:         userPrompt,
		SystemPrompt:   systemPrompt,
		NegativePrompt: prompts.NegativePanelPrompt,
		AspectRatio:    aspectRatio,
		Seed:           &seed,
	})
	if err != nil {
		logger.Warn("Panel image generation failed", "error", err, "duration", time.Since(startTime).Round(time.Millisecond))
		return domain.FailedImage(s.now())
	}
	if resp == nil || len(resp.Data) == 0 {
		logger.Warn("Panel image generation returned no data", "duration", time.Since(startTime).Round(time.Millisecond))
		return domain.FailedImage(s.now())
	}

	logger.Info("Panel image generation completed", "duration", time.Since(startTime).Round(time.Millisecond), "bytes", len(resp.Data))
	mimeType := resp.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}
	url := DataURL(mimeType, resp.Data)
	return domain.ImageResult{
		ImageURL:    &url,
		BackendID:   backend.ID,
		GeneratedAt: s.now(),
		Data:        resp.Data,
		MimeType:    mimeType,
	}
}

// selectBackend は評価に応じた重み付き抽選でバックエンドを選びます。
// 評価は呼び出し時点のスナップショットを使うため、後からの評価は発行済みの要求に影響しません。
func (s *ImageSynthesizer) selectBackend() Backend {
	var records map[string]domain.ModelPerformanceRecord
	if s.ratings != nil {
		records = s.ratings.Snapshot()
	}
	idx := pickIndex(Weights(s.ids, records), s.random())
	if idx < 0 || idx >= len(s.backends) {
		idx = 0
	}
	return s.backends[idx]
}

// DataURL は画像データを data URL に変換します。
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
