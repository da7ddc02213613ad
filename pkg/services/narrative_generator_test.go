package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "agri-price-api/configs"
	"agri-price-api/pkg/models"
)

func newTestNarrator(t *testing.T, completer Completer, useLLM bool) *NarrativeGenerator {
	t.Helper()
	prompts, err := config.LoadPromptConfig("")
	require.NoError(t, err)
	g, err := NewNarrativeGenerator(completer, useLLM, NarrativePrompts{
		Prompt:   prompts.Narrative.Prompt,
		Fallback: prompts.Narrative.Fallback,
	})
	require.NoError(t, err)
	return g
}

func narrativeSummary() *models.SummaryStats {
	return &models.SummaryStats{
		LatestPrice:   models.Float64Ptr(1234),
		WoWPricePct:   models.Float64Ptr(6.5),
		MoMPricePct:   models.Float64Ptr(-2),
		Volatility14d: models.Float64Ptr(45),
		DataPoints:    10,
		MissingRate:   0.1,
	}
}

func TestNarrativeTemplateMode(t *testing.T) {
	g := newTestNarrator(t, nil, false)
	f := testFilter()
	f.VarietyName = models.StringPtr("수미")

	text, err := g.Generate(context.Background(), f, pricePoints(1, 2, 3, 4), narrativeSummary())
	require.NoError(t, err)

	assert.Contains(t, text, "📊 감자 (수미) 분석 결과 - 전국도매시장")
	assert.Contains(t, text, "2018-01-01 ~ 2018-12-31")
	assert.Contains(t, text, "1,234원/kg")
	assert.Contains(t, text, "+6.5%")
	assert.Contains(t, text, "-2.0%")
	assert.Contains(t, text, "📈 최근 가격이 상승세를 보이고 있습니다.")
	assert.NotContains(t, text, "⚠️")
}

func TestNarrativeTemplateNotes(t *testing.T) {
	g := newTestNarrator(t, nil, false)

	t.Run("insufficient points", func(t *testing.T) {
		text, err := g.Generate(context.Background(), testFilter(), pricePoints(1, 2), narrativeSummary())
		require.NoError(t, err)
		assert.Contains(t, text, "⚠️ 데이터가 부족하여 상세 분석이 어렵습니다.")
	})

	t.Run("high missing rate", func(t *testing.T) {
		s := narrativeSummary()
		s.MissingRate = 0.5
		s.WoWPricePct = models.Float64Ptr(0)
		text, err := g.Generate(context.Background(), testFilter(), pricePoints(1, 2, 3), s)
		require.NoError(t, err)
		assert.Contains(t, text, "➡️ 가격이 비교적 안정적입니다.")
		assert.Contains(t, text, "결측치 비율이 높아")
	})

	t.Run("missing figures render as N/A", func(t *testing.T) {
		text, err := g.Generate(context.Background(), testFilter(), pricePoints(1, 2, 3), &models.SummaryStats{TrendDirection: TrendDown})
		require.NoError(t, err)
		assert.Contains(t, text, "최근 가격: N/A")
		assert.Contains(t, text, "분석 기간 동안 가격은 하락 추세를 보였습니다.")
	})
}

func TestNarrativeLLMMode(t *testing.T) {
	series := pricePoints(1000, 1100, 1200)

	t.Run("uses completion", func(t *testing.T) {
		var got string
		g := newTestNarrator(t, CompleterFunc(func(_ context.Context, prompt string) (string, error) {
			got = prompt
			return "  감자 가격은 분석 기간 동안 꾸준히 상승한 것으로 추정됩니다. 공급 감소 가능성이 있습니다.  ", nil
		}), true)

		text, err := g.Generate(context.Background(), testFilter(), series, narrativeSummary())
		require.NoError(t, err)
		assert.Equal(t, "감자 가격은 분석 기간 동안 꾸준히 상승한 것으로 추정됩니다. 공급 감소 가능성이 있습니다.", text)
		assert.Contains(t, got, "- 품목: 감자")
		assert.Contains(t, got, "- 품종: 전체")
		assert.Contains(t, got, "가격 추세 분석")
		assert.Contains(t, got, "2018-01-03: 가격 1,200원/kg, 반입량 N/Akg")
	})

	t.Run("short answer falls back to template", func(t *testing.T) {
		g := newTestNarrator(t, CompleterFunc(func(context.Context, string) (string, error) {
			return "상승", nil
		}), true)
		text, err := g.Generate(context.Background(), testFilter(), series, narrativeSummary())
		require.NoError(t, err)
		assert.Contains(t, text, "📊 감자 분석 결과")
	})

	t.Run("completion error falls back to template", func(t *testing.T) {
		g := newTestNarrator(t, CompleterFunc(func(context.Context, string) (string, error) {
			return "", errors.New("503")
		}), true)
		text, err := g.Generate(context.Background(), testFilter(), series, narrativeSummary())
		require.NoError(t, err)
		assert.Contains(t, text, "💰 주요 지표")
	})
}

func TestNarrativeHelpers(t *testing.T) {
	g := newTestNarrator(t, nil, false)

	text := g.SummaryText(narrativeSummary())
	assert.Contains(t, text, "- 최근 가격: 1,234원/kg")
	assert.Contains(t, text, "- 전주 대비 가격: 6.5% 상승")
	assert.Contains(t, text, "- 전월 대비 가격: 2.0% 하락")
	assert.Contains(t, text, "- 결측치 비율: 10.0%")

	assert.Equal(t, "데이터 없음", g.RecentData(nil, 20))
	recent := g.RecentData(pricePoints(1, 2, 3, 4, 5), 2)
	assert.Equal(t, "2018-01-04: 가격 4원/kg, 반입량 N/Akg\n2018-01-05: 가격 5원/kg, 반입량 N/Akg", recent)

	assert.Equal(t, "시장 비교 분석", ChartTypeLabel(models.ChartCompareMarkets))
	assert.Equal(t, "추세 분석", ChartTypeLabel("unknown"))
	assert.Equal(t, "감자 가격 추세 분석 결과입니다.", DefaultNarrative(testFilter()))
}
