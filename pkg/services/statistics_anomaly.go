package services

import (
	"math"
	"sort"

	"agri-price-api/pkg/models"
)

// 異常の種類
const (
	AnomalySpike = "급등"
	AnomalyCrash = "급락"
)

// トレンド方向
const (
	TrendUp   = "상승"
	TrendDown = "하락"
	TrendFlat = "보합"
)

// DetectAnomalies は価格のz-scoreの絶対値がthresholdを超える点をすべて返します。
// 5点未満、または価格の標準偏差が0の場合は検知しません。
func DetectAnomalies(series []models.SeriesPoint, threshold float64) []models.Anomaly {
	if len(series) < minAnomalyPoints {
		return []models.Anomaly{}
	}

	sorted := make([]models.SeriesPoint, len(series))
	copy(sorted, series)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	prices := make([]*float64, len(sorted))
	for i, p := range sorted {
		prices[i] = p.Price
	}
	valid := validValues(prices)
	if len(valid) < minAnomalyPoints {
		return []models.Anomaly{}
	}

	mean := calculateMean(valid)
	std := calculateSampleStdDev(valid)
	if math.IsNaN(std) || std <= 0 {
		return []models.Anomaly{}
	}

	anomalies := []models.Anomaly{}
	for _, p := range sorted {
		if p.Price == nil {
			continue
		}
		z := math.Abs(*p.Price-mean) / std
		if z <= threshold {
			continue
		}
		kind := AnomalyCrash
		if *p.Price > mean {
			kind = AnomalySpike
		}
		anomalies = append(anomalies, models.Anomaly{
			Date:   p.Date,
			Type:   kind,
			Price:  roundTo(*p.Price, 2),
			ZScore: roundTo(z, 2),
		})
	}
	return anomalies
}

// Enrich は異常件数と先頭3件の異常、最初と最後の価格によるトレンド方向（±5%）を追加します。
func (c *SummaryCalculator) Enrich(stats *models.SummaryStats, series []models.SeriesPoint) *models.SummaryStats {
	if stats == nil {
		return nil
	}
	out := *stats

	if anomalies := DetectAnomalies(series, c.anomalyThreshold); len(anomalies) > 0 {
		out.AnomalyCount = len(anomalies)
		if len(anomalies) > maxDisplayedAnomalies {
			anomalies = anomalies[:maxDisplayedAnomalies]
		}
		out.Anomalies = anomalies
	}

	out.TrendDirection = trendDirection(series)
	return &out
}

func trendDirection(series []models.SeriesPoint) string {
	if len(series) < 2 {
		return ""
	}
	first, last := series[0].Price, series[len(series)-1].Price
	if first == nil || last == nil || *first == 0 || *last == 0 {
		return ""
	}
	switch {
	case *last > *first*(1+trendDeadband):
		return TrendUp
	case *last < *first*(1-trendDeadband):
		return TrendDown
	}
	return TrendFlat
}
