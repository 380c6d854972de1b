package generator

import "github.com/shouni/go-story-kit/pkg/domain"

// Weights はバックエンドごとの選択の重みを返します。
// 評価済みのバックエンドは平均スコア、未評価のバックエンドは評価済みの平均スコアの平均値を重みにします。
// どれも評価されていない場合はすべて 1 になります。
func Weights(ids []string, records map[string]domain.ModelPerformanceRecord) []float64 {
	weights := make([]float64, len(ids))

	var ratedSum float64
	rated := 0
	for _, id := range ids {
		if rec, ok := records[id]; ok && rec.RatingCount > 0 {
			ratedSum += rec.RunningAverageScore
			rated++
		}
	}

	if rated == 0 {
		for i := range weights {
			weights[i] = 1
		}
		return weights
	}

	share := ratedSum / float64(rated)
	for i, id := range ids {
		if rec, ok := records[id]; ok && rec.RatingCount > 0 {
			weights[i] = rec.RunningAverageScore
			continue
		}
		weights[i] = share
	}
	return weights
}

// pickIndex は r ∈ [0, 1) を累積重みに当てはめてインデックスを選びます。
func pickIndex(weights []float64, r float64) int {
	if len(weights) == 0 {
		return -1
	}

	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		idx := int(r * float64(len(weights)))
		return min(max(idx, 0), len(weights)-1)
	}

	target := r * total
	var cumulative float64
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cumulative += w
		last = i
		if target < cumulative {
			return i
		}
	}
	return last
}
