package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agri-price-api/pkg/models"
)

func weeklyFilter() models.Filter {
	f := testFilter()
	f.Granularity = models.GranularityWeekly
	return f
}

func TestCalculatePctChange(t *testing.T) {
	p := models.Float64Ptr
	assert.Equal(t, 10.0, *calculatePctChange(p(110), p(100)))
	assert.Equal(t, -10.0, *calculatePctChange(p(90), p(100)))
	assert.Equal(t, 33.33, *calculatePctChange(p(4), p(3)))

	assert.Nil(t, calculatePctChange(p(110), nil))
	assert.Nil(t, calculatePctChange(p(110), p(0)))
	assert.Nil(t, calculatePctChange(p(110), p(math.NaN())))
	assert.Nil(t, calculatePctChange(nil, p(100)))
	assert.Nil(t, calculatePctChange(p(math.NaN()), p(100)))
}

func TestRoundToUsesHalfEven(t *testing.T) {
	assert.Equal(t, 0.12, roundTo(0.125, 2))
	assert.Equal(t, 0.14, roundTo(0.135, 2))
	assert.True(t, math.IsNaN(roundTo(math.NaN(), 2)))
}

func TestRollingStdDev(t *testing.T) {
	p := models.Float64Ptr
	out := rollingStdDev([]*float64{p(1), p(2), nil, p(4), p(5)}, 3, 2)
	require.Len(t, out, 5)
	assert.Nil(t, out[0])
	assert.InDelta(t, 0.7071, *out[1], 1e-4)
	assert.InDelta(t, 0.7071, *out[2], 1e-4, "nilは無視して有効値2件で計算")
	assert.InDelta(t, 1.4142, *out[3], 1e-4)
	assert.InDelta(t, 0.7071, *out[4], 1e-4)
}

func TestSummaryCalculatorWeekly(t *testing.T) {
	calc := NewSummaryCalculator()
	series := pricePoints(100, 110, 120, 130, 140, 150)
	for i := range series {
		series[i].Volume = models.Float64Ptr(float64(1000 + i*100))
	}

	s := calc.Calculate(series, weeklyFilter())
	assert.Equal(t, 6, s.DataPoints)
	assert.Equal(t, 0.0, s.MissingRate)
	assert.Equal(t, 150.0, *s.LatestPrice)
	assert.Equal(t, 1500.0, *s.LatestVolume)
	assert.Equal(t, 7.14, *s.WoWPricePct)
	assert.Equal(t, 7.14, *s.WoWVolumePct)
	assert.Equal(t, 36.36, *s.MoMPricePct)
	assert.False(t, s.MoMFromWindowStart)
	assert.Equal(t, 12.91, *s.Volatility14d)
}

func TestSummaryCalculatorWeeklyMoMFallsBackToWindowStart(t *testing.T) {
	s := NewSummaryCalculator().Calculate(pricePoints(100, 105, 120), weeklyFilter())

	require.NotNil(t, s.MoMPricePct)
	assert.Equal(t, 20.0, *s.MoMPricePct)
	assert.True(t, s.MoMFromWindowStart)
	assert.Nil(t, s.Volatility14d, "有効な価格が4件未満")
}

func TestSummaryCalculatorDaily(t *testing.T) {
	f := testFilter()
	f.Granularity = models.GranularityDaily

	s := NewSummaryCalculator().Calculate(pricePoints(100, 1, 1, 1, 1, 1, 120), f)
	require.NotNil(t, s.WoWPricePct)
	assert.Equal(t, 20.0, *s.WoWPricePct)
	assert.Nil(t, s.MoMPricePct, "日次は30行必要")
}

func TestSummaryCalculatorMissingRate(t *testing.T) {
	series := pricePoints(100, 100, 100, 100)
	series[1].Price = nil

	s := NewSummaryCalculator().Calculate(series, weeklyFilter())
	assert.Equal(t, 0.625, s.MissingRate)
	assert.Nil(t, s.LatestVolume)

	empty := NewSummaryCalculator().Calculate(nil, weeklyFilter())
	assert.Equal(t, 0, empty.DataPoints)
	assert.Equal(t, 1.0, empty.MissingRate)
}

func TestSummaryCalculatorCollapsesMarkets(t *testing.T) {
	f := weeklyFilter()
	f.ChartType = models.ChartCompareMarkets
	point := func(date, market string, price, volume float64) models.SeriesPoint {
		return models.SeriesPoint{
			Date:       date,
			Price:      models.Float64Ptr(price),
			Volume:     models.Float64Ptr(volume),
			MarketName: models.StringPtr(market),
		}
	}
	series := []models.SeriesPoint{
		point("2018-01-01", "A", 100, 10),
		point("2018-01-01", "B", 200, 20),
		point("2018-01-08", "A", 150, 10),
		point("2018-01-08", "B", 250, 30),
	}

	s := NewSummaryCalculator().Calculate(series, f)
	assert.Equal(t, 2, s.DataPoints)
	assert.Equal(t, 200.0, *s.LatestPrice)
	assert.Equal(t, 40.0, *s.LatestVolume)
	assert.Equal(t, 33.33, *s.WoWPricePct)
}

func TestDetectAnomalies(t *testing.T) {
	t.Run("spike of 3.3x", func(t *testing.T) {
		anomalies := DetectAnomalies(pricePoints(100, 100, 100, 100, 330), 1.5)
		require.NotEmpty(t, anomalies)
		assert.Equal(t, AnomalySpike, anomalies[0].Type)
		assert.Equal(t, 330.0, anomalies[0].Price)
		assert.Equal(t, "2018-01-05", anomalies[0].Date)
	})

	t.Run("crash", func(t *testing.T) {
		anomalies := DetectAnomalies(pricePoints(100, 100, 100, 100, 10), 1.5)
		require.Len(t, anomalies, 1)
		assert.Equal(t, AnomalyCrash, anomalies[0].Type)
	})

	t.Run("needs five points", func(t *testing.T) {
		assert.Empty(t, DetectAnomalies(pricePoints(100, 100, 100, 330), 1.5))
	})

	t.Run("flat series", func(t *testing.T) {
		assert.Empty(t, DetectAnomalies(pricePoints(100, 100, 100, 100, 100), 1.5))
	})
}

func TestEnrich(t *testing.T) {
	calc := NewSummaryCalculator()

	rising := pricePoints(100, 101, 102, 103, 120)
	s := calc.Enrich(calc.Calculate(rising, weeklyFilter()), rising)
	assert.Equal(t, TrendUp, s.TrendDirection)

	flat := pricePoints(100, 99, 101, 100, 102)
	assert.Equal(t, TrendFlat, calc.Enrich(&models.SummaryStats{}, flat).TrendDirection)

	falling := pricePoints(100, 90, 80, 70, 60)
	assert.Equal(t, TrendDown, calc.Enrich(&models.SummaryStats{}, falling).TrendDirection)

	assert.Nil(t, calc.Enrich(nil, rising))
}

func TestEnrichCapsDisplayedAnomalies(t *testing.T) {
	calc := &SummaryCalculator{anomalyThreshold: 0.5}
	series := pricePoints(100, 300, 100, 300, 100, 300, 100, 300)

	s := calc.Enrich(&models.SummaryStats{}, series)
	assert.Equal(t, 8, s.AnomalyCount)
	assert.Len(t, s.Anomalies, maxDisplayedAnomalies)
}
