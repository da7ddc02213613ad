package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri-price-api/pkg/models"
)

func assertAscendingUnique(t *testing.T, series []models.SeriesPoint, withMarket bool) {
	t.Helper()
	seen := map[string]bool{}
	for i, p := range series {
		key := p.Date
		if withMarket {
			require.NotNil(t, p.MarketName, "point %d", i)
			key += "|" + *p.MarketName
		} else {
			assert.Nil(t, p.MarketName, "point %d", i)
		}
		assert.False(t, seen[key], "duplicate %s", key)
		seen[key] = true
		if i > 0 {
			assert.LessOrEqual(t, series[i-1].Date, p.Date)
		}
	}
}

func TestQueryEngineTrendWeekly(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))

	res, err := engine.Execute(testFilter())
	require.NoError(t, err)

	require.Len(t, res.Series, 36)
	assertAscendingUnique(t, res.Series, false)
	for _, p := range res.Series {
		assert.NotEmpty(t, p.Date)
		assert.True(t, p.Price != nil || p.Volume != nil)
	}
	// 2018-01-05(金)の週は月曜 2018-01-01
	assert.Equal(t, "2018-01-01", res.Series[0].Date)
	assert.Equal(t, 1010.0, *res.Series[0].Price)
	assert.Equal(t, 5000.0, *res.Series[0].Volume)
	assert.Empty(t, res.Warnings)
}

func TestQueryEngineDailyUsesRepresentativeDates(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))
	f := testFilter()
	f.Granularity = models.GranularityDaily
	f.DateTo = models.StringPtr("2018-01-31")

	res, err := engine.Execute(f)
	require.NoError(t, err)

	dates := make([]string, len(res.Series))
	for i, p := range res.Series {
		dates[i] = p.Date
	}
	assert.Equal(t, []string{"2018-01-05", "2018-01-15", "2018-01-25"}, dates)
}

func TestQueryEngineMissingItem(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))
	f := testFilter()
	f.ItemName = "배추"

	res, err := engine.Execute(f)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.NotNil(t, res.Series)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "배추")
}

func TestQueryEngineNarrowingFallbacks(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))

	t.Run("variety", func(t *testing.T) {
		f := testFilter()
		f.VarietyName = models.StringPtr("홍감자")
		res, err := engine.Execute(f)
		require.NoError(t, err)
		assert.Nil(t, res.Filter.VarietyName)
		assert.Contains(t, res.Warnings, "품종 '홍감자'에 해당하는 데이터가 없어 전체로 대체합니다.")
		assert.NotEmpty(t, res.Series)
	})

	t.Run("market", func(t *testing.T) {
		f := testFilter()
		f.MarketName = models.StringPtr("대구북부")
		res, err := engine.Execute(f)
		require.NoError(t, err)
		assert.Equal(t, models.DefaultMarketName, res.Filter.Market())
		assert.Contains(t, res.Warnings[0], "시장 '대구북부'에 해당하는 데이터가 없어")
		assert.NotEmpty(t, res.Series)
	})

	t.Run("date range", func(t *testing.T) {
		f := testFilter()
		f.DateFrom = models.StringPtr("2020-01-01")
		f.DateTo = models.StringPtr("2020-12-31")
		res, err := engine.Execute(f)
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.Contains(t, res.Warnings, "지정된 기간에 해당하는 데이터가 없습니다.")
	})
}

func TestQueryEngineCompareMarkets(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))
	f := testFilter()
	f.ChartType = models.ChartCompareMarkets
	f.TopNMarkets = 2
	f.MarketName = models.StringPtr("부산엄궁")

	res, err := engine.Execute(f)
	require.NoError(t, err)
	assertAscendingUnique(t, res.Series, true)

	markets := map[string]bool{}
	for _, p := range res.Series {
		markets[*p.MarketName] = true
	}
	// 取引金額: 전국(5000kg) > 서울가락(3000kg) > 부산엄궁
	assert.Equal(t, map[string]bool{"전국도매시장": true, "서울가락": true}, markets)
}

func TestQueryEngineVolatility(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))

	t.Run("rolling window", func(t *testing.T) {
		f := testFilter()
		f.ChartType = models.ChartVolatility
		res, err := engine.Execute(f)
		require.NoError(t, err)
		require.Len(t, res.Series, 36)
		assert.Nil(t, res.Series[0].Volatility, "1点目は最小期間に満たない")
		assert.NotNil(t, res.Series[1].Volatility)
		assert.NotNil(t, res.Series[35].Volatility)
		assert.Empty(t, res.Warnings)
	})

	t.Run("short series uses whole-period std", func(t *testing.T) {
		f := testFilter()
		f.ChartType = models.ChartVolatility
		f.DateTo = models.StringPtr("2018-01-31")
		res, err := engine.Execute(f)
		require.NoError(t, err)
		require.Len(t, res.Series, 3)
		assert.Equal(t, *res.Series[0].Volatility, *res.Series[2].Volatility)
		assert.Equal(t, 2.0, *res.Series[0].Volatility)
		assert.Contains(t, res.Warnings, "데이터가 부족하여 전체 기간 변동성을 계산했습니다.")
	})

	t.Run("intent forces volatility chart", func(t *testing.T) {
		f := testFilter()
		f.Intent = models.IntentHighVolatility
		res, err := engine.Execute(f)
		require.NoError(t, err)
		assert.Equal(t, models.ChartVolatility, res.Filter.ChartType)
		assert.Equal(t, "변동성 분석 차트로 표시합니다.", res.Warnings[0])
	})
}

func TestQueryEngineHighAvgPriceIntent(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))
	f := testFilter()
	f.Intent = models.IntentHighAvgPrice
	f.TopNMarkets = 1
	f.MarketName = models.StringPtr("부산엄궁")

	res, err := engine.Execute(f)
	require.NoError(t, err)

	assert.Equal(t, models.ChartCompareMarkets, res.Filter.ChartType)
	require.NotEmpty(t, res.Series)
	for _, p := range res.Series {
		assert.Equal(t, "서울가락", *p.MarketName)
	}
	assert.Contains(t, res.Warnings, "'비싼' 분석을 위해 시장별 비교 차트로 표시합니다.")
}

func TestQueryEngineHighPriceChangeIntent(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))

	t.Run("ranks by first-to-last change", func(t *testing.T) {
		f := testFilter()
		f.Intent = models.IntentHighPriceChange
		f.TopNMarkets = 1
		res, err := engine.Execute(f)
		require.NoError(t, err)
		assert.Equal(t, models.ChartCompareMarkets, res.Filter.ChartType)
		require.NotEmpty(t, res.Series)
		assert.Equal(t, "서울가락", *res.Series[0].MarketName)
		assertAscendingUnique(t, res.Series, true)
	})

	t.Run("falls back to trend with a single bucket", func(t *testing.T) {
		f := testFilter()
		f.Intent = models.IntentHighPriceChange
		f.DateFrom = models.StringPtr("2018-01-01")
		f.DateTo = models.StringPtr("2018-01-07")
		res, err := engine.Execute(f)
		require.NoError(t, err)
		assert.Equal(t, models.ChartTrend, res.Filter.ChartType)
		assert.Contains(t, res.Warnings, "상승률을 계산할 수 있는 시장이 없습니다.")
		assertAscendingUnique(t, res.Series, false)
	})
}

func TestQueryEngineDoesNotMutateInputOrTable(t *testing.T) {
	dataset := testDataset(t)
	engine := NewQueryEngine(dataset)
	table, err := dataset.Table()
	require.NoError(t, err)
	before := table.Len()

	f := testFilter()
	f.Intent = models.IntentHighAvgPrice
	_, err = engine.Execute(f)
	require.NoError(t, err)

	assert.Equal(t, models.ChartTrend, f.ChartType)
	assert.Equal(t, before, table.Len())
}

func TestTopMarkets(t *testing.T) {
	engine := NewQueryEngine(testDataset(t))

	stats, _, err := engine.TopMarkets(testFilter(), MetricPrice, false, 3)
	require.NoError(t, err)
	require.Len(t, stats, 3)
	assert.Equal(t, "서울가락", stats[0].MarketName)
	assert.Equal(t, "부산엄궁", stats[2].MarketName)
	require.NotNil(t, stats[0].AvgPrice)
	assert.Equal(t, 1330.0, *stats[0].AvgPrice)

	stats, _, err = engine.TopMarkets(testFilter(), MetricVolume, true, 1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "부산엄궁", stats[0].MarketName)
	assert.Equal(t, 36000.0, *stats[0].TotalVolume)

	stats, _, err = engine.TopMarkets(testFilter(), MetricChange, false, 0)
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.Equal(t, "서울가락", stats[0].MarketName)
	assert.Equal(t, 1220.0, *stats[0].FirstPrice)
	assert.Equal(t, 1440.0, *stats[0].LastPrice)

	_, _, err = engine.TopMarkets(testFilter(), "amount", false, 3)
	var schemaErr *models.SchemaValidationError
	assert.True(t, errors.As(err, &schemaErr))
}

func TestWeekStartIsMonday(t *testing.T) {
	p, err := ParsePeriod("201801중순") // 2018-01-15 は月曜
	require.NoError(t, err)
	assert.Equal(t, "2018-01-15", weekStart(p.Date).Format(models.DateLayout))

	p, err = ParsePeriod("201801하순") // 2018-01-25 は木曜
	require.NoError(t, err)
	assert.Equal(t, "2018-01-22", weekStart(p.Date).Format(models.DateLayout))
}
