package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"agri-price-api/pkg/models"
)

// ルールベース抽出で使う定型文
const (
	WarnLLMParseFailed   = "LLM 파싱 실패로 규칙 기반 추출을 사용했습니다."
	WarnLLMNotConfigured = "LLM이 설정되지 않아 규칙 기반 추출을 사용했습니다."
	WarnClarifyApplied   = "확인 답변을 반영하여 규칙 기반 추출을 사용했습니다."

	defaultRuleItem = "감자"
)

// 索引に見つからない場合に探すよく使われる品目
var commonItems = []string{"감자", "사과", "배추", "양파", "마늘", "대파", "무"}

var (
	recentMonthsPattern = regexp.MustCompile(`최근\s*(\d+)\s*개월`)
	recentDaysPattern   = regexp.MustCompile(`최근\s*(\d+)\s*일`)
	recentOneMonth      = regexp.MustCompile(`최근\s*(한\s*)?달`)
	recentWeeksPattern  = regexp.MustCompile(`최근\s*(\d+)\s*주`)
	yearPattern         = regexp.MustCompile(`(\d{4})년`)

	vagueRecentPattern  = regexp.MustCompile(`요즘|요새`)
	explicitSpanPattern = regexp.MustCompile(`\d+\s*(개월|일|주|년)`)
	vaguePricePattern   = regexp.MustCompile(`비싼|비싸|싼|저렴`)
)

// ParseDateExpression は「최근 N개월」「작년」「2019년」などの表現を日付範囲に変換します。
// todayはデータの最新日を渡します。最初に一致した規則を使い、どれにも一致しなければfalseです。
func ParseDateExpression(text string, today time.Time) (from, to string, ok bool) {
	end := today.Format(models.DateLayout)

	if m := recentMonthsPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return addMonthsClamped(today, -n).Format(models.DateLayout), end, true
	}
	if m := recentDaysPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -n).Format(models.DateLayout), end, true
	}
	if recentOneMonth.MatchString(text) {
		return addMonthsClamped(today, -1).Format(models.DateLayout), end, true
	}
	if m := recentWeeksPattern.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		return today.AddDate(0, 0, -7*n).Format(models.DateLayout), end, true
	}
	if strings.Contains(text, "작년") {
		y := strconv.Itoa(today.Year() - 1)
		return y + "-01-01", y + "-12-31", true
	}
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		return m[1] + "-01-01", m[1] + "-12-31", true
	}
	if strings.Contains(text, "전월") || strings.Contains(text, "전달") {
		// 前月比較用に2か月分
		return addMonthsClamped(today, -2).Format(models.DateLayout), end, true
	}
	return "", "", false
}

// addMonthsClamped は月を加算し、日が月末を超える場合は月末に丸めます（3/31の1か月前は2/28か2/29）。
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	day := t.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, t.Location())
}

// referenceDate は「今日」として使うデータの最新日。日付がなければ現在時刻
func referenceDate(idx *DimensionIndex) time.Time {
	if d, ok := idx.MaxDate(); ok {
		return d
	}
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// ruleBasedExtract は外部依存なしで質問文からフィルタを抽出します。
// firstWarningはルールベースを使った理由で、警告の先頭に入ります。
func ruleBasedExtract(question string, idx *DimensionIndex, firstWarning string) (models.Filter, []string) {
	warnings := []string{firstWarning}
	f := models.DefaultFilter()

	// 品目
	for _, item := range idx.ItemNames {
		if strings.Contains(question, item) {
			f.ItemName = item
			break
		}
	}
	if f.ItemName == "" {
		for _, item := range commonItems {
			if strings.Contains(question, item) {
				f.ItemName = item
				break
			}
		}
	}
	if f.ItemName == "" {
		f.ItemName = defaultRuleItem
		warnings = append(warnings, "품목을 찾을 수 없어 '감자'로 설정했습니다.")
	}

	// 品種（1文字の品種は誤検出が多いので除外）
	for _, v := range idx.VarietyNames {
		if utf8.RuneCountInString(v) > 1 && strings.Contains(question, v) {
			f.VarietyName = models.StringPtr(v)
			break
		}
	}

	// 市場
	f.MarketName = models.StringPtr(models.DefaultMarketName)
	for _, m := range idx.MarketNames {
		if strings.Contains(question, m) {
			f.MarketName = models.StringPtr(m)
			break
		}
	}

	// 期間
	if from, to, ok := ParseDateExpression(question, referenceDate(idx)); ok {
		f.DateFrom, f.DateTo = &from, &to
	} else {
		f.DateFrom, f.DateTo = idx.DefaultDateRange(90)
		warnings = append(warnings, "기간을 찾을 수 없어 최근 90일로 설정했습니다.")
	}

	f.ChartType = inferChartType(question)
	f.Intent = inferIntent(question)
	return f, warnings
}

func inferChartType(q string) models.ChartType {
	switch {
	case strings.Contains(q, "비교") || strings.Contains(q, "시장별"):
		return models.ChartCompareMarkets
	case strings.Contains(q, "변동성") || strings.Contains(q, "급등락"):
		return models.ChartVolatility
	case strings.Contains(q, "반입량") && strings.Contains(q, "가격"):
		return models.ChartVolumePrice
	}
	return models.ChartTrend
}

func inferIntent(q string) models.Intent {
	switch {
	case strings.Contains(q, "비싼") || strings.Contains(q, "비싸"):
		return models.IntentHighAvgPrice
	case strings.Contains(q, "올랐") || strings.Contains(q, "상승"):
		return models.IntentHighPriceChange
	case strings.Contains(q, "변동") || strings.Contains(q, "급등") || strings.Contains(q, "급락"):
		return models.IntentHighVolatility
	}
	return models.IntentNormal
}

// DetectAmbiguity は確認が必要なあいまい表現を検出します（最大2件）。
func DetectAmbiguity(question string) []models.ClarifyQuestion {
	var questions []models.ClarifyQuestion

	if vagueRecentPattern.MatchString(question) && !explicitSpanPattern.MatchString(question) {
		questions = append(questions, models.ClarifyQuestion{
			ID:       ClarifyRecentWindow,
			Question: "어느 기간을 기준으로 분석할까요?",
			Options:  []string{"30d", "90d", "180d"},
			Default:  models.StringPtr("30d"),
		})
	}

	if vaguePricePattern.MatchString(question) {
		questions = append(questions, models.ClarifyQuestion{
			ID:       ClarifyExpensiveMeaning,
			Question: "'비싼/싼'의 기준을 선택해주세요:",
			Options:  []string{string(models.IntentHighAvgPrice), string(models.IntentHighPriceChange), string(models.IntentHighVolatility)},
			Default:  models.StringPtr(string(models.IntentHighAvgPrice)),
		})
	}

	if len(questions) > 2 {
		questions = questions[:2]
	}
	return questions
}
