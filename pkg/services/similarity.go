package services

import (
	"sort"
	"strings"
)

// DefaultMatchThreshold は類似度マッチを採用する最小スコア
const DefaultMatchThreshold = 0.4

// MatchResult はあいまい検索の結果です。
type MatchResult struct {
	Best       string   // Found=falseの場合は空
	Found      bool
	Candidates []string // スコア上位3件（閾値未満でも返す）
}

// FindBestMatch はqueryに最も近い候補を探します。
// 優先順位: 完全一致 → 部分文字列（どちら向きでも、最初に見つかったもの） → 類似度（閾値以上のみ採用）。
// 部分文字列一致は閾値の判定を受けません。
func FindBestMatch(query string, candidates []string, threshold float64) MatchResult {
	if query == "" || len(candidates) == 0 {
		return MatchResult{}
	}

	for _, c := range candidates {
		if c == query {
			return MatchResult{Best: query, Found: true, Candidates: []string{query}}
		}
	}

	for _, c := range candidates {
		if strings.Contains(c, query) || strings.Contains(query, c) {
			return MatchResult{Best: c, Found: true, Candidates: []string{c}}
		}
	}

	type scored struct {
		name  string
		score float64
	}
	q := strings.ToLower(query)
	scores := make([]scored, len(candidates))
	for i, c := range candidates {
		scores[i] = scored{name: c, score: sequenceRatio(q, strings.ToLower(c))}
	}
	// 同点は候補リストの順序を保つ
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	n := 3
	if len(scores) < n {
		n = len(scores)
	}
	top := make([]string, n)
	for i := 0; i < n; i++ {
		top[i] = scores[i].name
	}

	if scores[0].score >= threshold {
		return MatchResult{Best: scores[0].name, Found: true, Candidates: top}
	}
	return MatchResult{Candidates: top}
}

// sequenceRatio は 2*M/T の類似度（0〜1）を返します。
// Mは最長一致ブロックを再帰的に集めた一致文字数、Tは両文字列の文字数の合計です。
func sequenceRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingCharacters(ra, rb)) / float64(total)
}

func matchingCharacters(a, b []rune) int {
	type span struct{ alo, ahi, blo, bhi int }

	// b内の各文字の出現位置
	b2j := make(map[rune][]int)
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	matched := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch はa[alo:ahi]とb[blo:bhi]の最長共通部分を返します。
// 同じ長さが複数ある場合はaで最も早く、次にbで最も早いものです。
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	bestI, bestJ, bestK := alo, blo, 0
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestK {
				bestI, bestJ, bestK = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return bestI, bestJ, bestK
}
