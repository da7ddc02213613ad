package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"text/template"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"agri-price-api/pkg/models"
)

const (
	recentDataLimit    = 20
	minNarrativeRunes  = 20
	minNarrativePoints = 3
	missingRateCaveat  = 0.3
	trendPctThreshold  = 5.0

	insufficientDataNote = "데이터가 부족하여 상세 분석이 어렵습니다."
	highMissingRateNote  = "결측치 비율이 높아 분석 결과의 신뢰도가 제한적일 수 있습니다."
)

var chartTypeLabels = map[models.ChartType]string{
	models.ChartTrend:          "가격 추세 분석",
	models.ChartCompareMarkets: "시장 비교 분석",
	models.ChartVolumePrice:    "가격/반입량 분석",
	models.ChartVolatility:     "변동성 분석",
}

// ChartTypeLabel はchart_typeの韓国語ラベルを返します。
func ChartTypeLabel(c models.ChartType) string {
	if l, ok := chartTypeLabels[c]; ok {
		return l
	}
	return "추세 분석"
}

// NarrativePrompts 説明文生成のテンプレート（text/template形式）
type NarrativePrompts struct {
	Prompt   string // LLMモードのプロンプト
	Fallback string // テンプレートモードの本文
}

// NarrativeGenerator はフィルタ・系列・要約統計から説明文を生成します。
// 既定はテンプレートモードで、useLLMが有効かつCompleterがある場合のみLLMを使います。
type NarrativeGenerator struct {
	completer Completer
	useLLM    bool
	prompt    *template.Template
	fallback  *template.Template
	printer   *message.Printer
}

// NewNarrativeGenerator は新しいNarrativeGeneratorを生成します。
func NewNarrativeGenerator(completer Completer, useLLM bool, prompts NarrativePrompts) (*NarrativeGenerator, error) {
	prompt, err := template.New("narrative.prompt").Parse(prompts.Prompt)
	if err != nil {
		return nil, fmt.Errorf("ナラティブプロンプトのパースに失敗: %w", err)
	}
	fallback, err := template.New("narrative.fallback").Parse(prompts.Fallback)
	if err != nil {
		return nil, fmt.Errorf("ナラティブテンプレートのパースに失敗: %w", err)
	}
	return &NarrativeGenerator{
		completer: completer,
		useLLM:    useLLM && completer != nil,
		prompt:    prompt,
		fallback:  fallback,
		printer:   message.NewPrinter(language.Korean),
	}, nil
}

// Generate は説明文を生成します。LLMの失敗や短すぎる応答はテンプレートモードに切り替えます。
func (g *NarrativeGenerator) Generate(ctx context.Context, f models.Filter, series []models.SeriesPoint, summary *models.SummaryStats) (string, error) {
	if summary == nil {
		summary = &models.SummaryStats{MissingRate: 1.0}
	}
	if len(series) < minNarrativePoints {
		return g.renderFallback(f, summary, insufficientDataNote)
	}
	if !g.useLLM {
		return g.renderFallback(f, summary, "")
	}

	prompt, err := g.renderPrompt(f, series, summary)
	if err != nil {
		return "", err
	}
	text, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		log.Printf("⚠️ [narrative] LLM呼び出しに失敗したためテンプレートを使用します: %v", err)
		return g.renderFallback(f, summary, "")
	}
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minNarrativeRunes {
		log.Printf("⚠️ [narrative] LLM応答が短すぎるためテンプレートを使用します (%d文字)", utf8.RuneCountInString(text))
		return g.renderFallback(f, summary, "")
	}
	log.Printf("📝 [narrative] LLMで説明文を生成しました (%d文字)", utf8.RuneCountInString(text))
	return text, nil
}

func (g *NarrativeGenerator) renderPrompt(f models.Filter, series []models.SeriesPoint, s *models.SummaryStats) (string, error) {
	variety := "전체"
	if f.VarietyName != nil {
		variety = *f.VarietyName
	}
	data := map[string]string{
		"ItemName":    f.ItemName,
		"VarietyName": variety,
		"MarketName":  f.Market(),
		"DateFrom":    orNA(f.DateFrom),
		"DateTo":      orNA(f.DateTo),
		"ChartType":   ChartTypeLabel(f.ChartType),
		"SummaryText": g.SummaryText(s),
		"RecentData":  g.RecentData(series, recentDataLimit),
	}
	var buf bytes.Buffer
	if err := g.prompt.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ナラティブプロンプトの生成に失敗: %w", err)
	}
	return buf.String(), nil
}

func (g *NarrativeGenerator) renderFallback(f models.Filter, s *models.SummaryStats, note string) (string, error) {
	varietySuffix := ""
	if f.VarietyName != nil {
		varietySuffix = fmt.Sprintf(" (%s)", *f.VarietyName)
	}
	marketSuffix := ""
	if f.MarketName != nil {
		marketSuffix = " - " + *f.MarketName
	}

	trendText := ""
	switch {
	case s.WoWPricePct != nil && s.MoMPricePct != nil:
		switch {
		case *s.WoWPricePct > trendPctThreshold:
			trendText = "📈 최근 가격이 상승세를 보이고 있습니다.\n"
		case *s.WoWPricePct < -trendPctThreshold:
			trendText = "📉 최근 가격이 하락세를 보이고 있습니다.\n"
		default:
			trendText = "➡️ 가격이 비교적 안정적입니다.\n"
		}
	case s.TrendDirection != "":
		trendText = fmt.Sprintf("📈 분석 기간 동안 가격은 %s 추세를 보였습니다.\n", s.TrendDirection)
	}

	qualityNote := ""
	switch {
	case note != "":
		qualityNote = "\n⚠️ " + note
	case s.MissingRate > missingRateCaveat:
		qualityNote = "\n⚠️ " + highMissingRateNote
	}

	latestPrice := "N/A"
	if nonZero(s.LatestPrice) {
		latestPrice = g.printer.Sprintf("%.0f원/kg", *s.LatestPrice)
	}
	volatility := "N/A"
	if nonZero(s.Volatility14d) {
		volatility = fmt.Sprintf("%.0f", *s.Volatility14d)
	}

	data := map[string]string{
		"ItemName":        f.ItemName,
		"VarietySuffix":   varietySuffix,
		"MarketSuffix":    marketSuffix,
		"DateFrom":        orNA(f.DateFrom),
		"DateTo":          orNA(f.DateTo),
		"LatestPrice":     latestPrice,
		"WoWPct":          signedPct(s.WoWPricePct),
		"MoMPct":          signedPct(s.MoMPricePct),
		"Volatility":      volatility,
		"TrendText":       trendText,
		"DataQualityNote": qualityNote,
	}
	var buf bytes.Buffer
	if err := g.fallback.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ナラティブテンプレートの生成に失敗: %w", err)
	}
	return buf.String(), nil
}

// SummaryText は要約統計をLLM向けの箇条書きにします。
func (g *NarrativeGenerator) SummaryText(s *models.SummaryStats) string {
	var lines []string
	if nonZero(s.LatestPrice) {
		lines = append(lines, g.printer.Sprintf("- 최근 가격: %.0f원/kg", *s.LatestPrice))
	}
	if nonZero(s.LatestVolume) {
		lines = append(lines, g.printer.Sprintf("- 최근 반입량: %.0fkg", *s.LatestVolume))
	}
	if s.WoWPricePct != nil {
		lines = append(lines, fmt.Sprintf("- 전주 대비 가격: %.1f%% %s", math.Abs(*s.WoWPricePct), direction(*s.WoWPricePct)))
	}
	if s.MoMPricePct != nil {
		lines = append(lines, fmt.Sprintf("- 전월 대비 가격: %.1f%% %s", math.Abs(*s.MoMPricePct), direction(*s.MoMPricePct)))
	}
	if nonZero(s.Volatility14d) {
		lines = append(lines, fmt.Sprintf("- 14일 변동성: %.0f", *s.Volatility14d))
	}
	if s.DataPoints > 0 {
		lines = append(lines, fmt.Sprintf("- 데이터 포인트: %d개", s.DataPoints))
	}
	lines = append(lines, fmt.Sprintf("- 결측치 비율: %.1f%%", s.MissingRate*100))
	return strings.Join(lines, "\n")
}

// RecentData は直近limit件の系列を1行ずつのテキストにします。
func (g *NarrativeGenerator) RecentData(series []models.SeriesPoint, limit int) string {
	if len(series) == 0 {
		return "데이터 없음"
	}
	if len(series) > limit {
		series = series[len(series)-limit:]
	}

	lines := make([]string, 0, len(series))
	for _, p := range series {
		price, volume := "N/A", "N/A"
		if nonZero(p.Price) {
			price = g.printer.Sprintf("%.0f", *p.Price)
		}
		if nonZero(p.Volume) {
			volume = g.printer.Sprintf("%.0f", *p.Volume)
		}
		line := fmt.Sprintf("%s: 가격 %s원/kg, 반입량 %skg", p.Date, price, volume)
		if p.MarketName != nil && *p.MarketName != "" {
			line += fmt.Sprintf(" (%s)", *p.MarketName)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// DefaultNarrative は説明文の生成に失敗した場合の1行の説明です。
func DefaultNarrative(f models.Filter) string {
	return fmt.Sprintf("%s %s 결과입니다.", f.ItemName, ChartTypeLabel(f.ChartType))
}

func direction(pct float64) string {
	if pct > 0 {
		return TrendUp
	}
	return TrendDown
}

func signedPct(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}

func nonZero(v *float64) bool {
	return v != nil && *v != 0 && !math.IsNaN(*v)
}

func orNA(v *string) string {
	if v == nil || *v == "" {
		return "N/A"
	}
	return *v
}
